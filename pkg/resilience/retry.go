package resilience

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy 重试与退避策略
type RetryPolicy struct {
	MaxRetries  int           `yaml:"max_retries"`
	BaseBackoff time.Duration `yaml:"base_backoff"`
	MaxBackoff  time.Duration `yaml:"max_backoff"`
	Jitter      float64       `yaml:"jitter"` // 退避时间的随机抖动比例 [0,1]
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  10 * time.Second,
		Jitter:      0.2,
	}
}

// Backoff 计算第 attempt 次重试的退避时间（指数退避加抖动）
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BaseBackoff
	if base <= 0 {
		base = DefaultRetryPolicy().BaseBackoff
	}
	backoff := base << uint(attempt)
	if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
		backoff = p.MaxBackoff
	}
	if p.Jitter > 0 {
		delta := float64(backoff) * p.Jitter
		backoff = time.Duration(float64(backoff) - delta + rand.Float64()*2*delta)
	}
	return backoff
}

// Do 按策略执行带重试的调用。
// 限流错误立即返回，不再本地重试；上下文取消时中断等待。
func Do(ctx context.Context, policy RetryPolicy, fn func() error) error {
	var lastErr error
	attempts := policy.MaxRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(policy.Backoff(attempt - 1)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if IsRateLimit(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
