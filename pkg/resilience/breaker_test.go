package resilience

import (
	"testing"
	"time"
)

func newTestBreaker(cfg BreakerConfig) (*CircuitBreaker, *time.Time) {
	b := NewCircuitBreaker(cfg)
	current := time.Date(2026, 1, 5, 9, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: 30 * time.Second, HalfOpenMaxCalls: 2})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
		if !b.Allow() {
			t.Fatalf("第 %d 次失败后不应拒绝请求", i+1)
		}
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("达到阈值后状态应为 open, 实际 %s", b.State())
	}
	if b.Allow() {
		t.Fatal("open 状态不应放行请求")
	}
}

func TestBreakerHalfOpenProbes(t *testing.T) {
	b, current := newTestBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 30 * time.Second, HalfOpenMaxCalls: 2})

	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("期望 open, 实际 %s", b.State())
	}

	// 恢复时间未到
	*current = current.Add(29 * time.Second)
	if b.Allow() {
		t.Fatal("恢复时间未到不应放行")
	}

	// 恢复时间已到，恰好放行 half_open_max_calls 个探测
	*current = current.Add(2 * time.Second)
	if !b.Allow() {
		t.Fatal("第1个探测应放行")
	}
	if b.State() != StateHalfOpen {
		t.Fatalf("期望 half_open, 实际 %s", b.State())
	}
	if !b.Allow() {
		t.Fatal("第2个探测应放行")
	}
	if b.Allow() {
		t.Fatal("超出探测名额不应放行")
	}
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, current := newTestBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 10 * time.Second, HalfOpenMaxCalls: 2})

	b.RecordFailure()
	b.RecordFailure()
	*current = current.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("探测应放行")
	}

	b.RecordFailure()
	if b.State() != StateOpen {
		t.Fatalf("探测失败应立即重开, 实际 %s", b.State())
	}
	if b.Allow() {
		t.Fatal("重开后不应放行")
	}
}

func TestBreakerProbeSuccessCloses(t *testing.T) {
	b, current := newTestBreaker(BreakerConfig{FailureThreshold: 2, RecoveryTimeout: 10 * time.Second, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	b.RecordFailure()
	*current = current.Add(11 * time.Second)
	if !b.Allow() {
		t.Fatal("探测应放行")
	}

	b.RecordSuccess()
	if b.State() != StateClosed {
		t.Fatalf("探测成功应关闭熔断器, 实际 %s", b.State())
	}
	if b.Failures() != 0 {
		t.Fatalf("关闭后失败计数应清零, 实际 %d", b.Failures())
	}
	if !b.Allow() {
		t.Fatal("关闭后应正常放行")
	}
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b, _ := newTestBreaker(BreakerConfig{FailureThreshold: 3, RecoveryTimeout: 10 * time.Second, HalfOpenMaxCalls: 1})

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	if b.State() != StateClosed {
		t.Fatalf("失败计数清零后两次失败不应打开, 实际 %s", b.State())
	}
}
