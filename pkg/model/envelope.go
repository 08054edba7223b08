package model

import "time"

// TradingAction 交易建议动作
type TradingAction string

const (
	ActionLong  TradingAction = "long"
	ActionShort TradingAction = "short"
	ActionWait  TradingAction = "wait"
)

// TradingDirection 行情方向（对外口径）
type TradingDirection string

const (
	TrendBullish TradingDirection = "bullish"
	TrendBearish TradingDirection = "bearish"
)

// TradingSignal 对外输出的交易信号载荷
type TradingSignal struct {
	SignalType string           `json:"signal_type"`
	Asset      string           `json:"asset"`
	Action     TradingAction    `json:"action"`
	Direction  TradingDirection `json:"direction"`
	Strength   float64          `json:"strength"`
	Confidence float64          `json:"confidence"`
	Reason     string           `json:"reason"`
	Timestamp  time.Time        `json:"timestamp"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
}

// SignalEnvelope 信号流的基本单元：单调递增的序号加发布与过期时间。
// ExpiresAt 为Unix秒，0 表示永不过期。
type SignalEnvelope struct {
	Seq            uint64        `json:"seq"`
	PublishedAt    time.Time     `json:"published_at"`
	ExpiresAt      int64         `json:"expires_at"`
	SourcePipeline string        `json:"source_pipeline"`
	Signal         TradingSignal `json:"signal"`
}

// Active 判断信封在给定时刻是否仍然有效
func (e SignalEnvelope) Active(now time.Time) bool {
	return e.ExpiresAt == 0 || now.Unix() < e.ExpiresAt
}
