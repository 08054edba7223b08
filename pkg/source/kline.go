package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

// KlineSource 日线序列数据源。
// 通过网关的 daily 接口逐代码拉取日线，按代码产出一条 candle_series 事件，
// 事件 Data 的 bars 键携带旧到新排列的K线序列。
type KlineSource struct {
	name     string
	client   *DataClient
	symbols  []string
	lookback int
	guard    *guard
}

// KlineSourceConfig 日线源配置
type KlineSourceConfig struct {
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Symbols     []string      `yaml:"symbols"`
	Lookback    int           `yaml:"lookback"` // 回看的交易日数
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// NewKlineSource 创建日线数据源
func NewKlineSource(cfg KlineSourceConfig, breakerCfg resilience.BreakerConfig, retry resilience.RetryPolicy) *KlineSource {
	lookback := cfg.Lookback
	if lookback <= 0 {
		lookback = 260
	}
	return &KlineSource{
		name:     "kline",
		client:   NewDataClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		symbols:  cfg.Symbols,
		lookback: lookback,
		guard:    newGuard("kline", breakerCfg, retry, cfg.MinInterval),
	}
}

// Name 数据源名称
func (s *KlineSource) Name() string { return s.name }

// Connect 幂等的连接准备
func (s *KlineSource) Connect() error {
	if s.client.BaseURL == "" {
		return fmt.Errorf("日线源缺少 base_url 配置")
	}
	return nil
}

// Disconnect 释放连接资源
func (s *KlineSource) Disconnect() error {
	s.client.Client.CloseIdleConnections()
	return nil
}

// Health 当前健康快照
func (s *KlineSource) Health() model.SourceHealth {
	return s.guard.snapshot()
}

// Poll 拉取一轮日线序列
func (s *KlineSource) Poll(ctx context.Context) ([]model.RawMarketEvent, error) {
	return s.guard.poll(ctx, s.fetch)
}

// fetch 逐代码拉取日线并归一化
func (s *KlineSource) fetch(ctx context.Context) ([]model.RawMarketEvent, error) {
	events := make([]model.RawMarketEvent, 0, len(s.symbols))
	endDate := time.Now().Format("20060102")
	startDate := time.Now().AddDate(0, 0, -s.lookback*2).Format("20060102")

	for _, code := range s.symbols {
		params := map[string]any{
			"ts_code":    code,
			"start_date": startDate,
			"end_date":   endDate,
		}
		resp, err := s.client.Execute(ctx, "daily", params, "ts_code,trade_date,open,high,low,close,vol,amount")
		if err != nil {
			return nil, fmt.Errorf("获取 %s 日线失败: %w", code, err)
		}

		bars, err := s.normalizeBars(resp)
		if err != nil {
			return nil, fmt.Errorf("归一化 %s 日线失败: %w", code, err)
		}
		if len(bars) == 0 {
			continue
		}

		events = append(events, model.NewEvent(s.name, model.EventTypeCandle, model.MarketCNEquity, code, map[string]any{
			"bars": bars,
		}))
	}
	return events, nil
}

// normalizeBars 将网关响应转换为旧到新排列的K线序列。
// 单行内的脏字段按跳过处理，不让一行坏数据拖垮整条序列。
func (s *KlineSource) normalizeBars(resp *DataResponse) ([]model.Bar, error) {
	indices := resp.FieldIndex()
	for _, field := range []string{"trade_date", "close"} {
		if _, exists := indices[field]; !exists {
			return nil, fmt.Errorf("响应中缺少必要字段: %s", field)
		}
	}

	bars := make([]model.Bar, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		dateStr, _ := item[indices["trade_date"]].(string)
		ts, err := time.Parse("20060102", dateStr)
		if err != nil {
			continue
		}
		closePx, ok := itemFloat(item, indices, "close")
		if !ok {
			continue
		}
		bar := model.Bar{
			Close:     closePx,
			Timestamp: ts,
		}
		if v, ok := itemFloat(item, indices, "open"); ok {
			bar.Open = v
		}
		if v, ok := itemFloat(item, indices, "high"); ok {
			bar.High = v
		}
		if v, ok := itemFloat(item, indices, "low"); ok {
			bar.Low = v
		}
		if v, ok := itemFloat(item, indices, "vol"); ok {
			bar.Volume = v
		}
		if v, ok := itemFloat(item, indices, "amount"); ok {
			bar.Amount = v
		}
		bars = append(bars, bar)
	}

	// 网关按新到旧返回，统一排序为旧到新
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Timestamp.Before(bars[j].Timestamp)
	})
	if len(bars) > s.lookback {
		bars = bars[len(bars)-s.lookback:]
	}
	return bars, nil
}

// itemFloat 读取行内指定列的数值
func itemFloat(item []any, indices map[string]int, field string) (float64, bool) {
	idx, exists := indices[field]
	if !exists || idx >= len(item) {
		return 0, false
	}
	switch v := item[idx].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(v, "%f", &f); err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
