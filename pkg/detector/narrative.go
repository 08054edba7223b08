package detector

import (
	"fmt"
	"time"

	"SignalRadar/pkg/model"
)

// NarrativeDetectorConfig 叙事热度检测配置
type NarrativeDetectorConfig struct {
	AccelThreshold float64 `yaml:"accel_threshold"` // 热度加速比阈值
	MinHeat        float64 `yaml:"min_heat"`        // 低于此热度不产出信号
}

// DefaultNarrativeConfig 默认叙事检测配置
func DefaultNarrativeConfig() NarrativeDetectorConfig {
	return NarrativeDetectorConfig{
		AccelThreshold: 0.5,
		MinHeat:        10,
	}
}

// 叙事信号有效期：热度衰减快，不宜长期生效
const narrativeSignalTTL = 2 * time.Hour

// NarrativeDetector 将外部计算的题材热度变化映射为个股或概念方向信号。
// 热度加速视为看多，热度退潮视为看空，信号落在该题材关联的每只标的上。
type NarrativeDetector struct {
	config NarrativeDetectorConfig
}

// NewNarrativeDetector 创建叙事热度检测器
func NewNarrativeDetector(config NarrativeDetectorConfig) *NarrativeDetector {
	if config.AccelThreshold <= 0 {
		config.AccelThreshold = DefaultNarrativeConfig().AccelThreshold
	}
	return &NarrativeDetector{config: config}
}

// Name 检测器名称
func (d *NarrativeDetector) Name() string { return "narrative" }

// Accepts 消费的事件类别
func (d *NarrativeDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeSentiment}
}

// Detect 对一条题材热度事件执行加速/退潮判定
func (d *NarrativeDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	return runCheck(d.Name(), "heat", func() []model.UnifiedSignal {
		return d.checkHeat(event)
	})
}

// checkHeat 比较当前热度与上期热度，变化率超过阈值时对关联标的出信号
func (d *NarrativeDetector) checkHeat(event model.RawMarketEvent) []model.UnifiedSignal {
	topic := event.Str("topic")
	heat, ok := event.Float("heat")
	if topic == "" || !ok || heat < d.config.MinHeat {
		return nil
	}
	prevHeat, ok := event.Float("prev_heat")
	if !ok || prevHeat <= 0 {
		return nil
	}

	change := (heat - prevHeat) / prevHeat
	if change > -d.config.AccelThreshold && change < d.config.AccelThreshold {
		return nil
	}

	direction := model.DirectionLong
	source := "narrative/heat_accel"
	if change < 0 {
		direction = model.DirectionShort
		source = "narrative/heat_decay"
	}

	tickers := event.Strs("tickers")
	if len(tickers) == 0 && event.Symbol != "" {
		tickers = []string{event.Symbol}
	}
	if len(tickers) == 0 {
		return nil
	}

	strength := clamp01(abs(change) / (d.config.AccelThreshold * 4))
	var signals []model.UnifiedSignal
	for _, ticker := range tickers {
		sig := model.NewSignal(event.Market, ticker, direction, strength, 0.6, model.SignalTypeSentiment, source)
		expires := sig.Timestamp.Add(narrativeSignalTTL)
		sig.ExpiresAt = &expires
		sig.Metadata["topic"] = topic
		sig.Metadata["heat"] = heat
		sig.Metadata["prev_heat"] = prevHeat
		sig.Metadata["heat_change"] = fmt.Sprintf("%+.1f%%", change*100)
		signals = append(signals, sig)
	}
	return signals
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
