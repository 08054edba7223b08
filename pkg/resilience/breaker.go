package resilience

import (
	"sync"
	"time"
)

// BreakerState 熔断器状态
type BreakerState string

const (
	StateClosed   BreakerState = "closed"    // 正常放行
	StateOpen     BreakerState = "open"      // 全部拒绝
	StateHalfOpen BreakerState = "half_open" // 限量探测
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`  // 连续失败多少次后打开
	RecoveryTimeout  time.Duration `yaml:"recovery_timeout"`   // 打开后多久进入半开
	HalfOpenMaxCalls int           `yaml:"half_open_max_calls"` // 半开状态允许的探测请求数
}

// DefaultBreakerConfig 默认熔断配置
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 2,
	}
}

// CircuitBreaker 三态熔断器，保护数据源的所有出站调用。
// 每个数据源持有自己的熔断器，不跨源共享。
type CircuitBreaker struct {
	mu            sync.Mutex
	cfg           BreakerConfig
	state         BreakerState
	failures      int
	halfOpenCalls int
	lastFailure   time.Time
	now           func() time.Time // 测试注入
}

// NewCircuitBreaker 创建熔断器
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.RecoveryTimeout <= 0 {
		cfg.RecoveryTimeout = DefaultBreakerConfig().RecoveryTimeout
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = DefaultBreakerConfig().HalfOpenMaxCalls
	}
	return &CircuitBreaker{
		cfg:   cfg,
		state: StateClosed,
		now:   time.Now,
	}
}

// Allow 判断是否放行请求。
// OPEN→HALF_OPEN 的时间转换在读取时惰性完成。
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.now().Sub(b.lastFailure) >= b.cfg.RecoveryTimeout {
			b.state = StateHalfOpen
			b.halfOpenCalls = 0
			return b.takeProbe()
		}
		return false
	case StateHalfOpen:
		return b.takeProbe()
	}
	return false
}

// takeProbe 消耗一个半开探测名额，调用方需持有锁
func (b *CircuitBreaker) takeProbe() bool {
	if b.halfOpenCalls >= b.cfg.HalfOpenMaxCalls {
		return false
	}
	b.halfOpenCalls++
	return true
}

// RecordSuccess 记录成功调用：清零失败计数并关闭熔断器
func (b *CircuitBreaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	b.state = StateClosed
}

// RecordFailure 记录失败调用：CLOSED 累计到阈值后打开，HALF_OPEN 探测失败立即重开
func (b *CircuitBreaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailure = b.now()
	switch b.state {
	case StateHalfOpen:
		b.state = StateOpen
	default:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			b.state = StateOpen
		}
	}
}

// State 当前状态（含惰性转换前的原始状态）
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures 当前连续失败计数
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
