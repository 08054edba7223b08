package detector

import (
	"testing"

	"SignalRadar/pkg/model"
)

func flowEvent(data map[string]any) model.RawMarketEvent {
	return model.NewEvent("flow", model.EventTypeCapitalFlow, model.MarketCNEquity, "", data)
}

func TestSectorAnomalyLong(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{SectorThreshold: 20})

	signals := d.Detect(flowEvent(map[string]any{
		"kind": "sector", "sector": "半导体", "net_inflow": 25.0, "change_percent": 1.8,
	}))
	sig := findBySource(signals, "flow/sector_anomaly")
	if sig == nil {
		t.Fatal("超阈值净流入应产生板块异动信号")
	}
	if sig.Direction != model.DirectionLong {
		t.Fatalf("净流入应为 LONG, 实际 %s", sig.Direction)
	}
	// 资金与价格同向，置信度应有加成
	if sig.Confidence < 0.7 {
		t.Fatalf("方向一致时置信度应不低于0.75, 实际 %f", sig.Confidence)
	}
}

func TestSectorBelowThresholdIgnored(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{SectorThreshold: 20})

	signals := d.Detect(flowEvent(map[string]any{
		"kind": "sector", "sector": "银行", "net_inflow": 5.0,
	}))
	if len(signals) != 0 {
		t.Fatalf("低于阈值不应产生信号: %v", signals)
	}
}

func TestTrackedSectorLowThreshold(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{
		SectorThreshold:  20,
		TrackedThreshold: 8,
		TrackedSectors:   []string{"人工智能"},
	})

	signals := d.Detect(flowEvent(map[string]any{
		"kind": "sector", "sector": "人工智能", "net_inflow": 10.0,
	}))
	if findBySource(signals, "flow/tracked_sector") == nil {
		t.Fatal("关注板块应走低阈值路径")
	}
}

func TestTrackedSectorRankJump(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{
		TrackedSectors: []string{"机器人"},
		RankJump:       10,
	})

	signals := d.Detect(flowEvent(map[string]any{
		"kind": "sector", "sector": "机器人", "net_inflow": 1.0, "rank": 3.0, "prev_rank": 25.0,
	}))
	sig := findBySource(signals, "flow/rank_jump")
	if sig == nil {
		t.Fatal("排名跃升22位应产生 rank_jump 信号")
	}
	ext := model.FlowExtOf(*sig)
	if ext.SectorRank != 3 || ext.PrevRank != 25 {
		t.Fatalf("扩展字段不符: rank=%d prev=%d", ext.SectorRank, ext.PrevRank)
	}
}

func TestTrackedSectorHotSwap(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{SectorThreshold: 20, TrackedThreshold: 8})

	event := flowEvent(map[string]any{"kind": "sector", "sector": "光伏", "net_inflow": 10.0})
	if len(d.Detect(event)) != 0 {
		t.Fatal("未加入关注列表时不应触发低阈值路径")
	}

	d.UpdateTrackedSectors([]string{"光伏"})
	if findBySource(d.Detect(event), "flow/tracked_sector") == nil {
		t.Fatal("热更新关注列表后应触发低阈值路径")
	}
}

func TestNorthboundThreshold(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{NorthboundThreshold: 50})

	signals := d.Detect(flowEvent(map[string]any{"kind": "northbound", "net_inflow": -80.0}))
	sig := findBySource(signals, "flow/northbound")
	if sig == nil {
		t.Fatal("大额北向流出应产生信号")
	}
	if sig.Direction != model.DirectionShort {
		t.Fatalf("净流出应为 SHORT, 实际 %s", sig.Direction)
	}
	if ext := model.FlowExtOf(*sig); ext.NorthboundAmount != -80.0 {
		t.Fatalf("北向金额扩展字段不符: %f", ext.NorthboundAmount)
	}
}

func TestRotationPairs(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{SectorThreshold: 20, TrackedThreshold: 8, MaxRotationPairs: 3})

	event := flowEvent(map[string]any{
		"kind": "sector_table",
		"sectors": []model.SectorFlow{
			{Sector: "半导体", NetInflow: 40},
			{Sector: "白酒", NetInflow: -35},
			{Sector: "医药", NetInflow: 12},
			{Sector: "地产", NetInflow: -15},
			{Sector: "银行", NetInflow: 2},
		},
	})

	signals := d.Detect(event)
	if len(signals) != 2 {
		t.Fatalf("期望2对轮动, 实际 %d", len(signals))
	}
	first := signals[0]
	if first.Metadata["rotation_to"] != "半导体" || first.Metadata["rotation_from"] != "白酒" {
		t.Fatalf("首对应为 白酒→半导体, 实际 %v→%v", first.Metadata["rotation_from"], first.Metadata["rotation_to"])
	}
	if first.Direction != model.DirectionLong {
		t.Fatalf("轮动信号落在流入板块上应为 LONG, 实际 %s", first.Direction)
	}
}

func TestRotationRequiresBothSides(t *testing.T) {
	d := NewFlowDetector(FlowDetectorConfig{TrackedThreshold: 8, MaxRotationPairs: 3})

	// 只有流入侧显著，不构成轮动
	event := flowEvent(map[string]any{
		"kind": "sector_table",
		"sectors": []model.SectorFlow{
			{Sector: "半导体", NetInflow: 40},
			{Sector: "银行", NetInflow: -2},
		},
	})
	if signals := d.Detect(event); len(signals) != 0 {
		t.Fatalf("流出侧不显著不应产生轮动: %v", signals)
	}
}
