package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Direction 信号方向
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// SignalType 信号类别
type SignalType string

const (
	SignalTypeTechnical   SignalType = "technical"
	SignalTypeFundamental SignalType = "fundamental"
	SignalTypeSentiment   SignalType = "sentiment"
	SignalTypeFlow        SignalType = "flow"
	SignalTypeComposite   SignalType = "composite"
)

// UnifiedSignal 市场无关的统一交易信号。
// Source 标识产生信号的检测器子规则，如 "technical/rsi"；
// Metadata 为开放的键值表，携带算法相关的解释字段。
type UnifiedSignal struct {
	SignalID   string         `json:"signal_id"`
	Market     Market         `json:"market"`
	Asset      string         `json:"asset"`
	Direction  Direction      `json:"direction"`
	Strength   float64        `json:"strength"`   // [0,1]
	Confidence float64        `json:"confidence"` // [0,1]
	SignalType SignalType     `json:"signal_type"`
	Source     string         `json:"source"`
	Timestamp  time.Time      `json:"timestamp"`
	ExpiresAt  *time.Time     `json:"expires_at,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewSignal 创建统一信号并裁剪取值范围
func NewSignal(market Market, asset string, direction Direction, strength, confidence float64, signalType SignalType, source string) UnifiedSignal {
	s := UnifiedSignal{
		SignalID:   uuid.New().String(),
		Market:     market,
		Asset:      asset,
		Direction:  direction,
		Strength:   strength,
		Confidence: confidence,
		SignalType: signalType,
		Source:     source,
		Timestamp:  time.Now(),
		Metadata:   make(map[string]any),
	}
	s.Clamp()
	return s
}

// Clamp 将强度和置信度裁剪到 [0,1]
func (s *UnifiedSignal) Clamp() {
	s.Strength = clamp01(s.Strength)
	s.Confidence = clamp01(s.Confidence)
}

// IsExpired 判断信号是否已过期
func (s UnifiedSignal) IsExpired(now time.Time) bool {
	return s.ExpiresAt != nil && !now.Before(*s.ExpiresAt)
}

// Validate 校验信号的基本约束
func (s UnifiedSignal) Validate() error {
	if s.Asset == "" {
		return fmt.Errorf("信号资产不能为空")
	}
	if s.Direction != DirectionLong && s.Direction != DirectionShort {
		return fmt.Errorf("无效的信号方向: %s", s.Direction)
	}
	if s.ExpiresAt != nil && !s.ExpiresAt.After(s.Timestamp) {
		return fmt.Errorf("过期时间必须晚于信号时间")
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// 市场特定扩展：通过 Metadata 组合扩展信号，不收窄共享结构。

// FlowSignalExt 资金流信号扩展字段
type FlowSignalExt struct {
	NorthboundAmount float64 `json:"northbound_amount"` // 北向资金净流入（亿元）
	SectorRank       int     `json:"sector_rank"`
	PrevRank         int     `json:"prev_rank"`
}

// Apply 将扩展字段写入信号元数据
func (ext FlowSignalExt) Apply(s *UnifiedSignal) {
	s.Metadata["northbound_amount"] = ext.NorthboundAmount
	s.Metadata["sector_rank"] = ext.SectorRank
	s.Metadata["prev_rank"] = ext.PrevRank
}

// FlowExtOf 从信号元数据读取资金流扩展字段
func FlowExtOf(s UnifiedSignal) FlowSignalExt {
	var ext FlowSignalExt
	if v, ok := toFloat64(s.Metadata["northbound_amount"]); ok {
		ext.NorthboundAmount = v
	}
	if v, ok := toFloat64(s.Metadata["sector_rank"]); ok {
		ext.SectorRank = int(v)
	}
	if v, ok := toFloat64(s.Metadata["prev_rank"]); ok {
		ext.PrevRank = int(v)
	}
	return ext
}

// CryptoSignalExt 加密市场信号扩展字段
type CryptoSignalExt struct {
	FundingRate float64 `json:"funding_rate"`
}

// Apply 将扩展字段写入信号元数据
func (ext CryptoSignalExt) Apply(s *UnifiedSignal) {
	s.Metadata["funding_rate"] = ext.FundingRate
}

// EarningsSignalExt 财报信号扩展字段
type EarningsSignalExt struct {
	SurprisePct float64 `json:"surprise_pct"` // 业绩超预期幅度
}

// Apply 将扩展字段写入信号元数据
func (ext EarningsSignalExt) Apply(s *UnifiedSignal) {
	s.Metadata["surprise_pct"] = ext.SurprisePct
}
