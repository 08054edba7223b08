package publisher

import (
	"fmt"
	"strings"

	"SignalRadar/pkg/model"
)

// BridgeConfig 聚合结果到交易信号的转换规则
type BridgeConfig struct {
	MinComposite     float64 `yaml:"min_composite"`      // 综合得分低于此值时观望
	MinorityFraction float64 `yaml:"minority_fraction"`  // 少数方占比达到此值时视为分歧过大
	MinConfidence    float64 `yaml:"min_confidence"`     // 最强信号置信度下限
}

// DefaultBridgeConfig 默认转换规则
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		MinComposite:     0.3,
		MinorityFraction: 0.4,
		MinConfidence:    0.5,
	}
}

// Bridge 把聚合器的资产汇总翻译为对外交易信号。
// 证据不足或分歧过大时输出 wait 而非多空动作。
type Bridge struct {
	config BridgeConfig
}

// NewBridge 创建交易信号转换器
func NewBridge(config BridgeConfig) *Bridge {
	def := DefaultBridgeConfig()
	if config.MinComposite <= 0 {
		config.MinComposite = def.MinComposite
	}
	if config.MinorityFraction <= 0 {
		config.MinorityFraction = def.MinorityFraction
	}
	if config.MinConfidence <= 0 {
		config.MinConfidence = def.MinConfidence
	}
	return &Bridge{config: config}
}

// Translate 将单个资产汇总转换为交易信号
func (b *Bridge) Translate(summary model.AssetSignalSummary) model.TradingSignal {
	sig := model.TradingSignal{
		SignalType: string(model.SignalTypeComposite),
		Asset:      summary.Asset,
		Strength:   summary.CompositeScore,
		Metadata: map[string]any{
			"net_score":     summary.NetScore,
			"long_signals":  summary.LongSignals,
			"short_signals": summary.ShortSignals,
			"sources":       summary.Sources,
			"market":        string(summary.Market),
		},
	}
	if summary.Direction == model.DirectionLong {
		sig.Direction = model.TrendBullish
	} else {
		sig.Direction = model.TrendBearish
	}
	if summary.Strongest != nil {
		sig.Confidence = summary.Strongest.Confidence
		sig.Timestamp = summary.Strongest.Timestamp
	}

	if reason, wait := b.shouldWait(summary); wait {
		sig.Action = model.ActionWait
		sig.Reason = reason
		return sig
	}

	if summary.Direction == model.DirectionLong {
		sig.Action = model.ActionLong
	} else {
		sig.Action = model.ActionShort
	}
	sig.Reason = fmt.Sprintf("综合得分 %.2f，来源 %s", summary.CompositeScore, strings.Join(summary.Sources, ","))
	return sig
}

// shouldWait 判断是否应观望：得分不足、多空分歧过大或最强信号置信度不足
func (b *Bridge) shouldWait(summary model.AssetSignalSummary) (string, bool) {
	if summary.CompositeScore < b.config.MinComposite {
		return fmt.Sprintf("综合得分 %.2f 低于阈值 %.2f", summary.CompositeScore, b.config.MinComposite), true
	}

	total := summary.LongSignals + summary.ShortSignals
	minority := summary.ShortSignals
	if summary.Direction == model.DirectionShort {
		minority = summary.LongSignals
	}
	if total > 0 && minority > 0 {
		fraction := float64(minority) / float64(total)
		if fraction >= b.config.MinorityFraction {
			return fmt.Sprintf("多空分歧过大，少数方占比 %.0f%%", fraction*100), true
		}
	}

	if summary.Strongest != nil && summary.Strongest.Confidence < b.config.MinConfidence {
		return fmt.Sprintf("最强信号置信度 %.2f 不足", summary.Strongest.Confidence), true
	}
	return "", false
}
