package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

func newTestGuard(threshold, maxRetries int) *guard {
	return newGuard("test-source",
		resilience.BreakerConfig{
			FailureThreshold: threshold,
			RecoveryTimeout:  30 * time.Second,
			HalfOpenMaxCalls: 1,
		},
		resilience.RetryPolicy{
			MaxRetries:  maxRetries,
			BaseBackoff: time.Millisecond,
			MaxBackoff:  5 * time.Millisecond,
		},
		0)
}

func TestGuardRateLimitOpensBreaker(t *testing.T) {
	g := newTestGuard(3, 2)
	calls := 0
	fetch := func(ctx context.Context) ([]model.RawMarketEvent, error) {
		calls++
		return nil, &resilience.RateLimitError{Source: "test-source", Msg: "每分钟调用超限"}
	}

	for i := 0; i < 3; i++ {
		if _, err := g.poll(context.Background(), fetch); err == nil {
			t.Fatal("限流时拉取应返回错误")
		}
	}

	// 限流错误不做本地重试，每轮只应触网一次
	if calls != 3 {
		t.Fatalf("限流时不应本地重试: 期望3次调用, 实际 %d", calls)
	}
	if g.breaker.State() != resilience.StateOpen {
		t.Fatalf("连续限流应打开熔断器, 实际 %s", g.breaker.State())
	}
	if status := g.snapshot().Status; status != model.StatusUnhealthy {
		t.Fatalf("全部失败后健康状态应为 unhealthy, 实际 %s", status)
	}
}

func TestGuardFastFailWhenOpen(t *testing.T) {
	g := newTestGuard(2, 0)
	calls := 0
	fetch := func(ctx context.Context) ([]model.RawMarketEvent, error) {
		calls++
		return nil, &resilience.RateLimitError{Source: "test-source", Msg: "HTTP 429"}
	}

	g.poll(context.Background(), fetch)
	g.poll(context.Background(), fetch)

	_, err := g.poll(context.Background(), fetch)
	if !errors.Is(err, resilience.ErrBreakerOpen) {
		t.Fatalf("熔断打开后应快速失败, 实际错误 %v", err)
	}
	if calls != 2 {
		t.Fatalf("熔断打开后不应触网: 期望2次调用, 实际 %d", calls)
	}
}

func TestGuardTransientRetriedToSuccess(t *testing.T) {
	g := newTestGuard(5, 2)
	calls := 0
	fetch := func(ctx context.Context) ([]model.RawMarketEvent, error) {
		calls++
		if calls < 3 {
			return nil, &resilience.TransientError{Source: "test-source", Err: errors.New("超时")}
		}
		return []model.RawMarketEvent{{EventID: "e1"}, {EventID: "e2"}}, nil
	}

	events, err := g.poll(context.Background(), fetch)
	if err != nil {
		t.Fatalf("瞬时错误重试后应成功: %v", err)
	}
	if len(events) != 2 || calls != 3 {
		t.Fatalf("期望重试2次后返回2条事件, 实际事件 %d 调用 %d", len(events), calls)
	}
	if g.breaker.State() != resilience.StateClosed {
		t.Fatal("重试成功后熔断器应保持关闭")
	}

	health := g.snapshot()
	if health.Status != model.StatusHealthy || health.TotalEvents != 2 {
		t.Fatalf("健康快照不符: %+v", health)
	}
}

func TestGuardThrottleRespectsContext(t *testing.T) {
	g := newGuard("test-source",
		resilience.BreakerConfig{FailureThreshold: 5},
		resilience.RetryPolicy{MaxRetries: 0, BaseBackoff: time.Millisecond},
		time.Hour)
	fetch := func(ctx context.Context) ([]model.RawMarketEvent, error) {
		return nil, nil
	}

	// 首轮无需等待
	if _, err := g.poll(context.Background(), fetch); err != nil {
		t.Fatalf("首轮拉取失败: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.poll(ctx, fetch); !errors.Is(err, context.Canceled) {
		t.Fatalf("节流等待中上下文取消应中断: %v", err)
	}
}

func TestGuardThrottleEnforcesInterval(t *testing.T) {
	g := newGuard("test-source",
		resilience.BreakerConfig{FailureThreshold: 5},
		resilience.RetryPolicy{MaxRetries: 0, BaseBackoff: time.Millisecond},
		50*time.Millisecond)
	fetch := func(ctx context.Context) ([]model.RawMarketEvent, error) {
		return nil, nil
	}

	if _, err := g.poll(context.Background(), fetch); err != nil {
		t.Fatalf("首轮拉取失败: %v", err)
	}
	start := time.Now()
	if _, err := g.poll(context.Background(), fetch); err != nil {
		t.Fatalf("次轮拉取失败: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("次轮拉取应等满最小请求间隔, 实际只等了 %v", elapsed)
	}
}

func TestDataClientExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r1","code":0,"msg":"","data":{"fields":["ts_code","close"],"items":[["600519.SH",1680.5]]}}`))
	}))
	defer srv.Close()

	client := NewDataClient("token", srv.URL, time.Second)
	resp, err := client.Execute(context.Background(), "daily", nil, "")
	if err != nil {
		t.Fatalf("网关调用失败: %v", err)
	}

	idx := resp.FieldIndex()
	if idx["close"] != 1 || len(resp.Data.Items) != 1 {
		t.Fatalf("响应解析不符: %+v", resp.Data)
	}
}

func TestDataClientRateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewDataClient("token", srv.URL, time.Second)
	_, err := client.Execute(context.Background(), "daily", nil, "")
	if !resilience.IsRateLimit(err) {
		t.Fatalf("429 应转换为限流错误: %v", err)
	}
}

func TestDataClientGatewayRateLimitMsg(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":40203,"msg":"抱歉，您每分钟最多访问该接口2次"}`))
	}))
	defer srv.Close()

	client := NewDataClient("token", srv.URL, time.Second)
	_, err := client.Execute(context.Background(), "daily", nil, "")
	if !resilience.IsRateLimit(err) {
		t.Fatalf("网关限流消息应转换为限流错误: %v", err)
	}
}

func TestDataClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewDataClient("token", srv.URL, time.Second)
	_, err := client.Execute(context.Background(), "daily", nil, "")
	if !resilience.IsTransient(err) {
		t.Fatalf("5xx 应转换为瞬时错误: %v", err)
	}
}
