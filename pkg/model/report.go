package model

import "time"

// AssetSignalSummary 单一资产的信号汇总，summarize 时由缓冲区重建，属于视图而非存储实体
type AssetSignalSummary struct {
	Asset          string          `json:"asset"`
	Market         Market          `json:"market"`
	Direction      Direction       `json:"direction"`
	CompositeScore float64         `json:"composite_score"`
	NetScore       float64         `json:"net_score"`
	LongSignals    int             `json:"long_signals"`
	ShortSignals   int             `json:"short_signals"`
	DominantType   SignalType      `json:"dominant_type"`
	Sources        []string        `json:"sources"`
	Strongest      *UnifiedSignal  `json:"strongest,omitempty"`
	Signals        []UnifiedSignal `json:"signals"`
}

// AggregationReport 单次扫描的聚合快照，返回后不再修改
type AggregationReport struct {
	GeneratedAt     time.Time            `json:"generated_at"`
	TotalSignals    int                  `json:"total_signals"`
	TotalAssets     int                  `json:"total_assets"`
	TopLong         []AssetSignalSummary `json:"top_long"`
	TopShort        []AssetSignalSummary `json:"top_short"`
	MarketBias      Direction            `json:"market_bias"`
	MarketBiasScore float64              `json:"market_bias_score"`
	MarketBreakdown map[Market]int       `json:"market_breakdown"`
}

// HealthStatus 数据源健康状态
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusUnknown   HealthStatus = "unknown"
)

// SourceHealth 数据源健康快照，仅由所属数据源在每次拉取后更新
type SourceHealth struct {
	Source              string        `json:"source"`
	Status              HealthStatus  `json:"status"`
	AvgLatency          time.Duration `json:"avg_latency"`
	ErrorRate           float64       `json:"error_rate"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
	LastSuccess         time.Time     `json:"last_success"`
	LastError           time.Time     `json:"last_error"`
	LastErrorMsg        string        `json:"last_error_msg,omitempty"`
	TotalPolls          int64         `json:"total_polls"`
	TotalEvents         int64         `json:"total_events"`
	Uptime              time.Duration `json:"uptime"`
}
