package source

import (
	"context"
	"sync"
	"time"

	"SignalRadar/pkg/health"
	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

// Source 数据源契约：一次 Poll 完成一轮拉取加归一化。
// Connect 为幂等的准备工作，Poll 失败向上抛出由编排层隔离处理。
type Source interface {
	Name() string
	Connect() error
	Poll(ctx context.Context) ([]model.RawMarketEvent, error)
	Disconnect() error
	Health() model.SourceHealth
}

// guard 数据源出站调用的统一防护：熔断、重试退避、请求间隔与健康记录。
// 每个数据源持有自己的 guard，互不共享。
type guard struct {
	name        string
	breaker     *resilience.CircuitBreaker
	retry       resilience.RetryPolicy
	tracker     *health.Tracker
	minInterval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

func newGuard(name string, breakerCfg resilience.BreakerConfig, retry resilience.RetryPolicy, minInterval time.Duration) *guard {
	return &guard{
		name:        name,
		breaker:     resilience.NewCircuitBreaker(breakerCfg),
		retry:       retry,
		tracker:     health.NewTracker(name),
		minInterval: minInterval,
	}
}

// poll 执行一轮受防护的拉取。
// 熔断打开时快速失败不触网；限流错误立即计入熔断失败。
func (g *guard) poll(ctx context.Context, fetch func(ctx context.Context) ([]model.RawMarketEvent, error)) ([]model.RawMarketEvent, error) {
	start := time.Now()

	if !g.breaker.Allow() {
		g.tracker.RecordFailure(time.Since(start), resilience.ErrBreakerOpen)
		return nil, resilience.ErrBreakerOpen
	}

	if err := g.throttle(ctx); err != nil {
		g.tracker.RecordFailure(time.Since(start), err)
		return nil, err
	}

	var events []model.RawMarketEvent
	err := resilience.Do(ctx, g.retry, func() error {
		var fetchErr error
		events, fetchErr = fetch(ctx)
		return fetchErr
	})

	latency := time.Since(start)
	if err != nil {
		g.breaker.RecordFailure()
		g.tracker.RecordFailure(latency, err)
		return nil, err
	}

	g.breaker.RecordSuccess()
	g.tracker.RecordSuccess(latency, len(events))
	return events, nil
}

// throttle 控制最小请求间隔，避免触发上游限流
func (g *guard) throttle(ctx context.Context) error {
	g.mu.Lock()
	wait := g.minInterval - time.Since(g.lastRequest)
	if wait <= 0 {
		g.lastRequest = time.Now()
		g.mu.Unlock()
		return nil
	}
	g.lastRequest = time.Now().Add(wait)
	g.mu.Unlock()
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// snapshot 当前健康快照
func (g *guard) snapshot() model.SourceHealth {
	return g.tracker.Snapshot()
}
