package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

// 涨跌停判定阈值（主板10%涨跌幅限制，留出浮点误差）
const limitMoveThreshold = 9.9

// QuoteSource 实时快照数据源。
// 拉取全市场快照表（akshare 风格的公开接口），按配置的代码列表归一化为
// price_update 事件；涨跌幅触及涨跌停阈值时额外产出 limit_move 事件。
//
// 事件 Data 键约定: price, open, high, low, prev_close, volume, amount,
// change_percent, name；limit_move 事件额外携带 limit ("up"|"down")。
type QuoteSource struct {
	name       string
	baseURL    string
	symbols    []string
	httpClient *http.Client
	guard      *guard
}

// QuoteSourceConfig 快照源配置
type QuoteSourceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Symbols     []string      `yaml:"symbols"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// NewQuoteSource 创建快照数据源
func NewQuoteSource(cfg QuoteSourceConfig, breakerCfg resilience.BreakerConfig, retry resilience.RetryPolicy) *QuoteSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &QuoteSource{
		name:       "quote",
		baseURL:    cfg.BaseURL,
		symbols:    cfg.Symbols,
		httpClient: &http.Client{Timeout: timeout},
		guard:      newGuard("quote", breakerCfg, retry, cfg.MinInterval),
	}
}

// Name 数据源名称
func (s *QuoteSource) Name() string { return s.name }

// Connect 幂等的连接准备
func (s *QuoteSource) Connect() error {
	if s.baseURL == "" {
		return fmt.Errorf("快照源缺少 base_url 配置")
	}
	return nil
}

// Disconnect 释放连接资源
func (s *QuoteSource) Disconnect() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// Health 当前健康快照
func (s *QuoteSource) Health() model.SourceHealth {
	return s.guard.snapshot()
}

// Poll 拉取一轮快照并归一化
func (s *QuoteSource) Poll(ctx context.Context) ([]model.RawMarketEvent, error) {
	return s.guard.poll(ctx, s.fetch)
}

// fetch 按市场分组拉取快照表，再逐代码归一化
func (s *QuoteSource) fetch(ctx context.Context) ([]model.RawMarketEvent, error) {
	events := make([]model.RawMarketEvent, 0, len(s.symbols))

	// 同一轮内缓存整表，避免逐代码请求
	var aTable, hkTable []map[string]any

	for _, code := range s.symbols {
		var table *[]map[string]any
		var apiPath string
		var market model.Market

		switch {
		case strings.HasSuffix(code, ".SH") || strings.HasSuffix(code, ".SZ"):
			table, apiPath, market = &aTable, "/api/public/stock_zh_a_spot_em", model.MarketCNEquity
		case strings.HasSuffix(code, ".HK"):
			table, apiPath, market = &hkTable, "/api/public/stock_hk_spot_em", model.MarketHK
		default:
			// 不支持的代码格式按脏数据跳过，不让单条配置拖垮整轮
			continue
		}

		if *table == nil {
			rows, err := s.fetchTable(ctx, apiPath)
			if err != nil {
				return nil, err
			}
			*table = rows
		}

		row, found := lookupRow(*table, code)
		if !found {
			continue
		}

		data := map[string]any{
			"name":           rowStr(row, "名称"),
			"price":          rowFloat(row, "最新价"),
			"open":           rowFloat(row, "今开"),
			"high":           rowFloat(row, "最高"),
			"low":            rowFloat(row, "最低"),
			"prev_close":     rowFloat(row, "昨收"),
			"volume":         rowFloat(row, "成交量"),
			"amount":         rowFloat(row, "成交额"),
			"change_percent": rowFloat(row, "涨跌幅"),
		}
		events = append(events, model.NewEvent(s.name, model.EventTypePrice, market, code, data))

		if pct := rowFloat(row, "涨跌幅"); math.Abs(pct) >= limitMoveThreshold {
			limit := "up"
			if pct < 0 {
				limit = "down"
			}
			events = append(events, model.NewEvent(s.name, model.EventTypeLimitMove, market, code, map[string]any{
				"limit":          limit,
				"change_percent": pct,
				"price":          rowFloat(row, "最新价"),
			}))
		}
	}

	if len(events) == 0 {
		return nil, fmt.Errorf("未找到任何配置的代码快照")
	}
	return events, nil
}

// fetchTable 拉取并解析一张快照表
func (s *QuoteSource) fetchTable(ctx context.Context, apiPath string) ([]map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+apiPath, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &resilience.RateLimitError{Source: s.name, Msg: "HTTP 429"}
	}
	if resp.StatusCode >= 500 {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("接口返回状态码 %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("接口返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("解析JSON失败: %w", err)}
	}
	return rows, nil
}

// lookupRow 在快照表中按代码查找行，忽略前导零差异
func lookupRow(table []map[string]any, code string) (map[string]any, bool) {
	bare := strings.TrimLeft(strings.Split(code, ".")[0], "0")
	for _, row := range table {
		rowCode := strings.TrimLeft(fmt.Sprintf("%v", row["代码"]), "0")
		if rowCode == bare {
			return row, true
		}
	}
	return nil, false
}

// rowStr 读取行内字符串字段
func rowStr(row map[string]any, key string) string {
	if s, ok := row[key].(string); ok {
		return s
	}
	return ""
}

// rowFloat 读取行内数值字段，脏数据按零值处理
func rowFloat(row map[string]any, key string) float64 {
	switch v := row[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case string:
		var f float64
		fmt.Sscanf(v, "%f", &f)
		return f
	default:
		return 0
	}
}
