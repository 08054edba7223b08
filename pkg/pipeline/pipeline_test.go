package pipeline

import (
	"context"
	"errors"
	"testing"

	"SignalRadar/pkg/aggregator"
	"SignalRadar/pkg/detector"
	"SignalRadar/pkg/model"
	"SignalRadar/pkg/source"
)

func sourcesOf(srcs ...*stubSource) []source.Source {
	out := make([]source.Source, len(srcs))
	for i, s := range srcs {
		out[i] = s
	}
	return out
}

// stubSource 固定返回事件或错误的数据源
type stubSource struct {
	name        string
	events      []model.RawMarketEvent
	pollErr     error
	connects    int
	disconnects int
}

func (s *stubSource) Name() string   { return s.name }
func (s *stubSource) Connect() error { s.connects++; return nil }
func (s *stubSource) Poll(ctx context.Context) ([]model.RawMarketEvent, error) {
	if s.pollErr != nil {
		return nil, s.pollErr
	}
	return s.events, nil
}
func (s *stubSource) Disconnect() error { s.disconnects++; return nil }
func (s *stubSource) Health() model.SourceHealth {
	return model.SourceHealth{Source: s.name, Status: model.StatusHealthy}
}

// stubDetector 对每个事件产出一条固定信号
type stubDetector struct {
	name    string
	accepts []model.EventType
	panics  bool
}

func (d *stubDetector) Name() string               { return d.name }
func (d *stubDetector) Accepts() []model.EventType { return d.accepts }
func (d *stubDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	if d.panics {
		panic("检测器内部故障")
	}
	return []model.UnifiedSignal{
		model.NewSignal(event.Market, event.Symbol, model.DirectionLong, 0.8, 0.8, model.SignalTypeTechnical, d.name+"/stub"),
	}
}

func priceEvent(symbol string) model.RawMarketEvent {
	return model.NewEvent("quote", model.EventTypePrice, model.MarketCNEquity, symbol, map[string]any{"price": 10.0})
}

func TestScanCollectsSignals(t *testing.T) {
	src := &stubSource{name: "quote", events: []model.RawMarketEvent{priceEvent("600519"), priceEvent("000858")}}
	det := &stubDetector{name: "stub", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(src), []detector.Detector{det}, agg)
	result := p.Scan(context.Background())

	if result.EventsFetched != 2 {
		t.Fatalf("期望2条事件, 实际 %d", result.EventsFetched)
	}
	if result.SignalsDetected != 2 || result.SignalsIngested != 2 {
		t.Fatalf("信号计数不符: detected=%d ingested=%d", result.SignalsDetected, result.SignalsIngested)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("不应有错误: %v", result.Errors)
	}
	if len(result.Report.TopLong) != 2 {
		t.Fatalf("报告应含2个多头资产, 实际 %d", len(result.Report.TopLong))
	}
}

func TestScanIsolatesSourceFailure(t *testing.T) {
	good := &stubSource{name: "quote", events: []model.RawMarketEvent{priceEvent("600519")}}
	bad := &stubSource{name: "flow", pollErr: errors.New("上游超时")}
	det := &stubDetector{name: "stub", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(good, bad), []detector.Detector{det}, agg)
	result := p.Scan(context.Background())

	if result.EventsFetched != 1 {
		t.Fatalf("正常源的事件应保留, 实际 %d", result.EventsFetched)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("失败源应记入错误列表, 实际 %v", result.Errors)
	}
	if result.SignalsIngested != 1 {
		t.Fatalf("单源失败不应影响聚合, 实际入 %d 条", result.SignalsIngested)
	}
}

func TestScanIsolatesPanickingDetector(t *testing.T) {
	src := &stubSource{name: "quote", events: []model.RawMarketEvent{priceEvent("600519")}}
	broken := &stubDetector{name: "broken", accepts: []model.EventType{model.EventTypePrice}, panics: true}
	healthy := &stubDetector{name: "healthy", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(src), []detector.Detector{broken, healthy}, agg)
	result := p.Scan(context.Background())

	if result.SignalsDetected != 1 {
		t.Fatalf("崩溃的检测器不应中断扫描, 健康检测器的信号应保留, 实际 %d", result.SignalsDetected)
	}
}

func TestRoutingSkipsUnacceptedEvents(t *testing.T) {
	src := &stubSource{name: "news", events: []model.RawMarketEvent{
		model.NewEvent("news", model.EventTypeNews, model.MarketCNEquity, "", map[string]any{"title": "测试"}),
	}}
	det := &stubDetector{name: "stub", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(src), []detector.Detector{det}, agg)
	result := p.Scan(context.Background())

	if result.SignalsDetected != 0 {
		t.Fatalf("未声明消费的事件不应路由到检测器, 实际 %d 条信号", result.SignalsDetected)
	}
}

func TestConsecutiveFailuresRestartSource(t *testing.T) {
	bad := &stubSource{name: "flow", pollErr: errors.New("503")}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{RestartFailures: 3}, sourcesOf(bad), nil, agg)
	for i := 0; i < 3; i++ {
		p.Scan(context.Background())
	}

	if bad.disconnects != 1 || bad.connects != 1 {
		t.Fatalf("连续3次失败应触发一次重启: disconnects=%d connects=%d", bad.disconnects, bad.connects)
	}
}

func TestCurrentSignalsBeforeScan(t *testing.T) {
	agg := aggregator.New(aggregator.Config{})
	p := New(Config{}, nil, nil, agg)

	report := p.CurrentSignals(5)
	if len(report.TopLong) != 0 || len(report.TopShort) != 0 {
		t.Fatal("未扫描前应返回空报告")
	}
	if p.LastResult() != nil {
		t.Fatal("未扫描前 LastResult 应为 nil")
	}
}

func TestCurrentSignalsTruncates(t *testing.T) {
	events := []model.RawMarketEvent{priceEvent("A"), priceEvent("B"), priceEvent("C")}
	src := &stubSource{name: "quote", events: events}
	det := &stubDetector{name: "stub", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(src), []detector.Detector{det}, agg)
	p.Scan(context.Background())

	report := p.CurrentSignals(2)
	if len(report.TopLong) != 2 {
		t.Fatalf("期望截断到2个, 实际 %d", len(report.TopLong))
	}
}

func TestScanResultCarriesEventsAndSignals(t *testing.T) {
	src := &stubSource{name: "quote", events: []model.RawMarketEvent{priceEvent("600519"), priceEvent("000858")}}
	det := &stubDetector{name: "stub", accepts: []model.EventType{model.EventTypePrice}}
	agg := aggregator.New(aggregator.Config{})

	p := New(Config{}, sourcesOf(src), []detector.Detector{det}, agg)
	result := p.Scan(context.Background())

	// 原始事件与检出信号随结果携带，供落库和事件流分发
	if len(result.Events) != 2 {
		t.Fatalf("结果应携带2条原始事件, 实际 %d", len(result.Events))
	}
	if len(result.Signals) != 2 {
		t.Fatalf("结果应携带2条检出信号, 实际 %d", len(result.Signals))
	}
	if result.Signals[0].Source != "stub/stub" {
		t.Fatalf("携带的信号来源不符: %s", result.Signals[0].Source)
	}
}
