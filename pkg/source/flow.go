package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

// FlowSource 资金流向数据源。
// 一轮拉取覆盖行业板块资金流排行与北向资金汇总，
// 按板块产出 capital_flow 事件，北向汇总单独产出一条。
//
// 事件 Data 键约定: kind ("sector"|"northbound"), sector, net_inflow（亿元）,
// rank, prev_rank, change_percent。
type FlowSource struct {
	name       string
	baseURL    string
	httpClient *http.Client
	guard      *guard

	// 上一轮的板块排名，用于排名变动检测
	prevRanks map[string]int
}

// FlowSourceConfig 资金流源配置
type FlowSourceConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// NewFlowSource 创建资金流数据源
func NewFlowSource(cfg FlowSourceConfig, breakerCfg resilience.BreakerConfig, retry resilience.RetryPolicy) *FlowSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FlowSource{
		name:       "flow",
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		guard:      newGuard("flow", breakerCfg, retry, cfg.MinInterval),
		prevRanks:  make(map[string]int),
	}
}

// Name 数据源名称
func (s *FlowSource) Name() string { return s.name }

// Connect 幂等的连接准备
func (s *FlowSource) Connect() error {
	if s.baseURL == "" {
		return fmt.Errorf("资金流源缺少 base_url 配置")
	}
	return nil
}

// Disconnect 释放连接资源
func (s *FlowSource) Disconnect() error {
	s.httpClient.CloseIdleConnections()
	return nil
}

// Health 当前健康快照
func (s *FlowSource) Health() model.SourceHealth {
	return s.guard.snapshot()
}

// Poll 拉取一轮资金流数据
func (s *FlowSource) Poll(ctx context.Context) ([]model.RawMarketEvent, error) {
	return s.guard.poll(ctx, s.fetch)
}

func (s *FlowSource) fetch(ctx context.Context) ([]model.RawMarketEvent, error) {
	var events []model.RawMarketEvent

	sectors, err := s.fetchJSON(ctx, "/api/public/stock_sector_fund_flow_rank")
	if err != nil {
		return nil, fmt.Errorf("获取板块资金流失败: %w", err)
	}

	nextRanks := make(map[string]int, len(sectors))
	table := make([]model.SectorFlow, 0, len(sectors))
	for i, row := range sectors {
		sector := rowStr(row, "名称")
		if sector == "" {
			continue
		}
		rank := i + 1
		prevRank, hadPrev := s.prevRanks[sector]
		if !hadPrev {
			prevRank = rank
		}
		nextRanks[sector] = rank

		// 主力净流入单位转换为亿元
		flow := model.SectorFlow{
			Sector:        sector,
			NetInflow:     rowFloat(row, "今日主力净流入-净额") / 1e8,
			Rank:          rank,
			PrevRank:      prevRank,
			ChangePercent: rowFloat(row, "今日涨跌幅"),
		}
		table = append(table, flow)
		events = append(events, model.NewEvent(s.name, model.EventTypeCapitalFlow, model.MarketCNEquity, sector, map[string]any{
			"kind":           "sector",
			"sector":         flow.Sector,
			"net_inflow":     flow.NetInflow,
			"rank":           flow.Rank,
			"prev_rank":      flow.PrevRank,
			"change_percent": flow.ChangePercent,
		}))
	}
	s.prevRanks = nextRanks

	// 整表事件供轮动检测使用
	if len(table) > 0 {
		events = append(events, model.NewEvent(s.name, model.EventTypeCapitalFlow, model.MarketCNEquity, "sector_table", map[string]any{
			"kind":    "sector_table",
			"sectors": table,
		}))
	}

	north, err := s.fetchNorthbound(ctx)
	if err != nil {
		// 北向数据缺失不拖垮板块数据，按非致命处理
		return events, nil
	}
	events = append(events, north)
	return events, nil
}

// fetchNorthbound 拉取北向资金当日汇总
func (s *FlowSource) fetchNorthbound(ctx context.Context) (model.RawMarketEvent, error) {
	rows, err := s.fetchJSON(ctx, "/api/public/stock_hsgt_fund_flow_summary_em")
	if err != nil {
		return model.RawMarketEvent{}, err
	}

	total := 0.0
	for _, row := range rows {
		if rowStr(row, "资金方向") == "北向" {
			total += rowFloat(row, "成交净买额")
		}
	}

	return model.NewEvent(s.name, model.EventTypeCapitalFlow, model.MarketCNEquity, "northbound", map[string]any{
		"kind":       "northbound",
		"net_inflow": total,
	}), nil
}

// fetchJSON 拉取并解析一张JSON表
func (s *FlowSource) fetchJSON(ctx context.Context, apiPath string) ([]map[string]any, error) {
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
