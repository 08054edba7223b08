package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"SignalRadar/pkg/aggregator"
	"SignalRadar/pkg/detector"
	"SignalRadar/pkg/model"
	"SignalRadar/pkg/source"
)

// Config 扫描编排配置
type Config struct {
	ScanTimeoutSeconds int `yaml:"scan_timeout_seconds"` // 单周期超时（秒），0 表示不限
	RestartFailures    int `yaml:"restart_failures"`     // 连续失败多少次后自动重启数据源
	SummaryLimit       int `yaml:"summary_limit"`        // 汇总时每个方向的资产数
}

// DefaultConfig 默认编排配置
func DefaultConfig() Config {
	return Config{
		ScanTimeoutSeconds: 120,
		RestartFailures:    3,
		SummaryLimit:       10,
	}
}

// ScanResult 一次完整扫描周期的结果。
// Events 和 Signals 携带本周期的原始事件与检出信号供下游分发和落库，
// 不参与JSON序列化。
type ScanResult struct {
	Timestamp       time.Time                     `json:"timestamp"`
	Duration        time.Duration                 `json:"duration"`
	EventsFetched   int                           `json:"events_fetched"`
	SignalsDetected int                           `json:"signals_detected"`
	SignalsIngested int                           `json:"signals_ingested"`
	Report          model.AggregationReport       `json:"report"`
	Health          map[string]model.SourceHealth `json:"health"`
	Errors          []string                      `json:"errors,omitempty"`
	Events          []model.RawMarketEvent        `json:"-"`
	Signals         []model.UnifiedSignal         `json:"-"`
}

// Pipeline 扫描编排器。
// 持有数据源、检测器与聚合器的全部引用，不依赖任何全局单例。
// 路由表在构造时由各检测器的 Accepts 声明预计算，扫描期间只读。
type Pipeline struct {
	config    Config
	sources   []source.Source
	detectors []detector.Detector
	routing   map[model.EventType][]detector.Detector
	agg       *aggregator.Aggregator

	mu          sync.RWMutex
	lastResult  *ScanResult
	sourceFails map[string]int // 数据源连续失败计数
}

// New 创建编排器并预计算事件类型到检测器的路由表
func New(config Config, sources []source.Source, detectors []detector.Detector, agg *aggregator.Aggregator) *Pipeline {
	def := DefaultConfig()
	if config.RestartFailures <= 0 {
		config.RestartFailures = def.RestartFailures
	}
	if config.SummaryLimit <= 0 {
		config.SummaryLimit = def.SummaryLimit
	}

	routing := make(map[model.EventType][]detector.Detector)
	for _, d := range detectors {
		for _, t := range d.Accepts() {
			routing[t] = append(routing[t], d)
		}
	}
	return &Pipeline{
		config:      config,
		sources:     sources,
		detectors:   detectors,
		routing:     routing,
		agg:         agg,
		sourceFails: make(map[string]int),
	}
}

// Start 连接所有数据源。单个源连接失败仅记日志，不阻止启动。
func (p *Pipeline) Start() {
	for _, src := range p.sources {
		if err := src.Connect(); err != nil {
			log.Printf("数据源 %s 连接失败: %v", src.Name(), err)
		}
	}
}

// Stop 断开所有数据源
func (p *Pipeline) Stop() {
	for _, src := range p.sources {
		if err := src.Disconnect(); err != nil {
			log.Printf("数据源 %s 断开失败: %v", src.Name(), err)
		}
	}
}

// pollResult 单个数据源的拉取结果
type pollResult struct {
	name   string
	events []model.RawMarketEvent
	err    error
}

// Scan 执行一次完整扫描周期：并发拉取、路由检测、入库聚合、汇总报告。
// 单个源或检测器的失败不会中断周期，只记入结果的错误列表。
func (p *Pipeline) Scan(ctx context.Context) *ScanResult {
	start := time.Now()
	if p.config.ScanTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.config.ScanTimeoutSeconds)*time.Second)
		defer cancel()
	}

	result := &ScanResult{
		Timestamp: start,
		Health:    make(map[string]model.SourceHealth),
	}

	// 并发拉取所有数据源，故障相互隔离
	results := make(chan pollResult, len(p.sources))
	var wg sync.WaitGroup
	for _, src := range p.sources {
		wg.Add(1)
		go func(src source.Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results <- pollResult{name: src.Name(), err: fmt.Errorf("数据源内部异常: %v", r)}
				}
			}()
			events, err := src.Poll(ctx)
			results <- pollResult{name: src.Name(), events: events, err: err}
		}(src)
	}
	wg.Wait()
	close(results)

	var allEvents []model.RawMarketEvent
	for r := range results {
		if r.err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.name, r.err))
			p.recordSourceFailure(r.name)
			continue
		}
		p.resetSourceFailure(r.name)
		allEvents = append(allEvents, r.events...)
	}
	result.EventsFetched = len(allEvents)
	result.Events = allEvents

	// 按预计算路由表逐事件调用检测器
	var signals []model.UnifiedSignal
	for _, event := range allEvents {
		for _, d := range p.routing[event.EventType] {
			signals = append(signals, safeDetect(d, event)...)
		}
	}
	result.SignalsDetected = len(signals)
	result.Signals = signals

	result.SignalsIngested = p.agg.Ingest(signals)
	result.Report = p.agg.Summarize(p.config.SummaryLimit)

	for _, src := range p.sources {
		result.Health[src.Name()] = src.Health()
	}

	result.Duration = time.Since(start)

	p.mu.Lock()
	p.lastResult = result
	p.mu.Unlock()

	log.Printf("扫描完成: 事件 %d, 检出信号 %d, 入库 %d, 耗时 %v, 错误 %d",
		result.EventsFetched, result.SignalsDetected, result.SignalsIngested, result.Duration, len(result.Errors))
	return result
}

// safeDetect 调用单个检测器并吸收异常。
// 检测器契约要求自身不抛出，这里兜底保证单个检测器不会中断扫描。
func safeDetect(d detector.Detector, event model.RawMarketEvent) (signals []model.UnifiedSignal) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("检测器 %s 处理事件 %s 异常: %v", d.Name(), event.EventType, r)
			signals = nil
		}
	}()
	return d.Detect(event)
}

// recordSourceFailure 累计数据源连续失败，超过阈值时自动重启
func (p *Pipeline) recordSourceFailure(name string) {
	p.mu.Lock()
	p.sourceFails[name]++
	fails := p.sourceFails[name]
	p.mu.Unlock()

	if fails < p.config.RestartFailures {
		return
	}
	for _, src := range p.sources {
		if src.Name() != name {
			continue
		}
		log.Printf("数据源 %s 连续失败 %d 次，尝试重启", name, fails)
		if err := src.Disconnect(); err != nil {
			log.Printf("数据源 %s 重启断开失败: %v", name, err)
		}
		if err := src.Connect(); err != nil {
			log.Printf("数据源 %s 重启连接失败: %v", name, err)
			return
		}
		p.resetSourceFailure(name)
		return
	}
}

func (p *Pipeline) resetSourceFailure(name string) {
	p.mu.Lock()
	p.sourceFails[name] = 0
	p.mu.Unlock()
}

// LastResult 最近一次扫描结果，未扫描过时返回 nil
func (p *Pipeline) LastResult() *ScanResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastResult
}

// CurrentSignals 最近一次扫描的聚合报告按方向截断后的只读视图
func (p *Pipeline) CurrentSignals(limit int) model.AggregationReport {
	p.mu.RLock()
	last := p.lastResult
	p.mu.RUnlock()

	if last == nil {
		return model.AggregationReport{GeneratedAt: time.Now(), MarketBreakdown: map[model.Market]int{}}
	}
	report := last.Report
	if limit > 0 {
		if len(report.TopLong) > limit {
			report.TopLong = report.TopLong[:limit]
		}
		if len(report.TopShort) > limit {
			report.TopShort = report.TopShort[:limit]
		}
	}
	return report
}

// Health 所有数据源的当前健康快照
func (p *Pipeline) Health() map[string]model.SourceHealth {
	health := make(map[string]model.SourceHealth, len(p.sources))
	for _, src := range p.sources {
		health[src.Name()] = src.Health()
	}
	return health
}
