package detector

import (
	"testing"

	"SignalRadar/pkg/model"
)

func heatEvent(data map[string]any) model.RawMarketEvent {
	return model.NewEvent("narrative", model.EventTypeSentiment, model.MarketCNEquity, "", data)
}

func TestNarrativeHeatAccelLong(t *testing.T) {
	d := NewNarrativeDetector(NarrativeDetectorConfig{AccelThreshold: 0.5, MinHeat: 10})

	signals := d.Detect(heatEvent(map[string]any{
		"topic": "固态电池", "heat": 90.0, "prev_heat": 40.0,
		"tickers": []string{"300750", "002074"},
	}))
	if len(signals) != 2 {
		t.Fatalf("2只关联标的期望2条信号, 实际 %d", len(signals))
	}
	for _, sig := range signals {
		if sig.Direction != model.DirectionLong {
			t.Fatalf("热度加速应为 LONG, 实际 %s", sig.Direction)
		}
		if sig.Source != "narrative/heat_accel" {
			t.Fatalf("来源不符: %s", sig.Source)
		}
		if sig.Metadata["topic"] != "固态电池" {
			t.Fatalf("题材元数据不符: %v", sig.Metadata["topic"])
		}
	}
}

func TestNarrativeHeatDecayShort(t *testing.T) {
	d := NewNarrativeDetector(NarrativeDetectorConfig{AccelThreshold: 0.5, MinHeat: 10})

	signals := d.Detect(heatEvent(map[string]any{
		"topic": "元宇宙", "heat": 30.0, "prev_heat": 100.0,
		"tickers": []string{"002624"},
	}))
	if len(signals) != 1 {
		t.Fatalf("期望1条信号, 实际 %d", len(signals))
	}
	if signals[0].Direction != model.DirectionShort {
		t.Fatalf("热度退潮应为 SHORT, 实际 %s", signals[0].Direction)
	}
}

func TestNarrativeBelowThresholdIgnored(t *testing.T) {
	d := NewNarrativeDetector(NarrativeDetectorConfig{AccelThreshold: 0.5, MinHeat: 10})

	signals := d.Detect(heatEvent(map[string]any{
		"topic": "新能源", "heat": 55.0, "prev_heat": 50.0,
		"tickers": []string{"601012"},
	}))
	if len(signals) != 0 {
		t.Fatalf("变化率10%%不应产生信号: %v", signals)
	}
}

func TestNarrativeLowHeatIgnored(t *testing.T) {
	d := NewNarrativeDetector(NarrativeDetectorConfig{AccelThreshold: 0.5, MinHeat: 10})

	signals := d.Detect(heatEvent(map[string]any{
		"topic": "冷门题材", "heat": 5.0, "prev_heat": 1.0,
		"tickers": []string{"000001"},
	}))
	if len(signals) != 0 {
		t.Fatalf("热度过低不应产生信号: %v", signals)
	}
}
