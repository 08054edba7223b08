package model

import (
	"encoding/json"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// EventType 原始事件类别
type EventType string

const (
	EventTypePrice        EventType = "price_update"  // 实时快照
	EventTypeCandle       EventType = "candle_series" // K线序列
	EventTypeTick         EventType = "tick"          // 逐笔
	EventTypeNews         EventType = "news"          // 新闻快讯
	EventTypeAnnouncement EventType = "announcement"  // 公告
	EventTypeCapitalFlow  EventType = "capital_flow"  // 资金流向
	EventTypeBoardChange  EventType = "board_change"  // 板块成分变动
	EventTypeLimitMove    EventType = "limit_move"    // 涨跌停
	EventTypeIndex        EventType = "index_update"  // 指数更新
	EventTypeETFFlow      EventType = "etf_flow"      // ETF申赎
	EventTypeEarnings     EventType = "earnings"      // 财报
	EventTypeSentiment    EventType = "sentiment"     // 舆情热度
)

// Market 市场范围
type Market string

const (
	MarketCNEquity  Market = "cn_equity"
	MarketCNIndex   Market = "cn_index"
	MarketCNETF     Market = "cn_etf"
	MarketCNBond    Market = "cn_bond"
	MarketHK        Market = "hk"
	MarketUS        Market = "us"
	MarketCrypto    Market = "crypto"
	MarketCommodity Market = "commodity"
	MarketGlobal    Market = "global"
)

// RawMarketEvent 统一的原始行情事件封装。
// 由数据源在每次成功拉取后创建，创建后不再修改；
// Data 字段为开放的键值表，各数据源约定自己的键名。
type RawMarketEvent struct {
	EventID    string         `json:"event_id"`
	Source     string         `json:"source"`
	EventType  EventType      `json:"event_type"`
	Market     Market         `json:"market"`
	Symbol     string         `json:"symbol,omitempty"`
	Data       map[string]any `json:"data"`
	Timestamp  time.Time      `json:"timestamp"`   // 源端事件时间
	ReceivedAt time.Time      `json:"received_at"` // 接收时间
}

// NewEvent 创建原始事件
func NewEvent(source string, eventType EventType, market Market, symbol string, data map[string]any) RawMarketEvent {
	now := time.Now()
	return RawMarketEvent{
		EventID:    uuid.New().String(),
		Source:     source,
		EventType:  eventType,
		Market:     market,
		Symbol:     symbol,
		Data:       data,
		Timestamp:  now,
		ReceivedAt: now,
	}
}

// Latency 源端到接收的延迟
func (e RawMarketEvent) Latency() time.Duration {
	return e.ReceivedAt.Sub(e.Timestamp)
}

// Float 读取数值字段，缺失或无法转换时返回 false。
// NaN 视为脏数据，同样返回 false。
func (e RawMarketEvent) Float(key string) (float64, bool) {
	v, exists := e.Data[key]
	if !exists {
		return 0, false
	}
	f, ok := toFloat64(v)
	if !ok || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// FloatOr 读取数值字段，失败时返回默认值
func (e RawMarketEvent) FloatOr(key string, def float64) float64 {
	if f, ok := e.Float(key); ok {
		return f
	}
	return def
}

// Str 读取字符串字段
func (e RawMarketEvent) Str(key string) string {
	if v, exists := e.Data[key]; exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Strs 读取字符串列表字段
func (e RawMarketEvent) Strs(key string) []string {
	v, exists := e.Data[key]
	if !exists {
		return nil
	}
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// Bars 读取K线序列字段（键名约定为 bars，顺序为旧到新）
func (e RawMarketEvent) Bars() []Bar {
	if bars, ok := e.Data["bars"].([]Bar); ok {
		return bars
	}
	return nil
}

// toFloat64 将接口类型转换为float64
func toFloat64(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(value, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
