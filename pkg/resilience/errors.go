package resilience

import (
	"errors"
	"fmt"
)

// ErrBreakerOpen 熔断器处于打开状态，请求被快速拒绝
var ErrBreakerOpen = errors.New("熔断器已打开，拒绝请求")

// RateLimitError 上游限流错误。
// 限流直接计入熔断失败，不在本地继续重试消耗配额。
type RateLimitError struct {
	Source string
	Msg    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("数据源 %s 被限流: %s", e.Source, e.Msg)
}

// TransientError 瞬时上游错误（超时、5xx、响应不完整），允许退避重试
type TransientError struct {
	Source string
	Err    error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("数据源 %s 瞬时错误: %v", e.Source, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// IsRateLimit 判断是否为限流错误
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsTransient 判断是否为瞬时错误
func IsTransient(err error) bool {
	var tr *TransientError
	return errors.As(err, &tr)
}
