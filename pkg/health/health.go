package health

import (
	"sync"
	"time"

	"SignalRadar/pkg/model"
)

const latencyWindow = 32 // 滚动延迟窗口大小

// 状态分级阈值
const (
	unhealthyFailures = 5
	unhealthyErrRate  = 0.5
	degradedFailures  = 2
	degradedErrRate   = 0.2
	degradedLatency   = 5 * time.Second
)

// Tracker 单个数据源的健康跟踪器。
// 由所属数据源在每次拉取后更新，其余组件只读快照。
type Tracker struct {
	mu                  sync.RWMutex
	source              string
	startedAt           time.Time
	latencies           []time.Duration
	totalPolls          int64
	totalErrors         int64
	totalEvents         int64
	consecutiveFailures int
	lastSuccess         time.Time
	lastError           time.Time
	lastErrorMsg        string
}

// NewTracker 创建健康跟踪器
func NewTracker(source string) *Tracker {
	return &Tracker{
		source:    source,
		startedAt: time.Now(),
	}
}

// RecordSuccess 记录一次成功拉取
func (t *Tracker) RecordSuccess(latency time.Duration, events int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalPolls++
	t.totalEvents += int64(events)
	t.consecutiveFailures = 0
	t.lastSuccess = time.Now()
	t.pushLatency(latency)
}

// RecordFailure 记录一次失败拉取
func (t *Tracker) RecordFailure(latency time.Duration, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalPolls++
	t.totalErrors++
	t.consecutiveFailures++
	t.lastError = time.Now()
	if err != nil {
		t.lastErrorMsg = err.Error()
	}
	t.pushLatency(latency)
}

// pushLatency 维护有界的延迟窗口，调用方需持有锁
func (t *Tracker) pushLatency(latency time.Duration) {
	t.latencies = append(t.latencies, latency)
	if len(t.latencies) > latencyWindow {
		t.latencies = t.latencies[len(t.latencies)-latencyWindow:]
	}
}

// ConsecutiveFailures 当前连续失败次数
func (t *Tracker) ConsecutiveFailures() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.consecutiveFailures
}

// Snapshot 生成只读健康快照
func (t *Tracker) Snapshot() model.SourceHealth {
	t.mu.RLock()
	defer t.mu.RUnlock()

	avgLatency := time.Duration(0)
	if len(t.latencies) > 0 {
		var sum time.Duration
		for _, l := range t.latencies {
			sum += l
		}
		avgLatency = sum / time.Duration(len(t.latencies))
	}

	errorRate := 0.0
	if t.totalPolls > 0 {
		errorRate = float64(t.totalErrors) / float64(t.totalPolls)
	}

	return model.SourceHealth{
		Source:              t.source,
		Status:              t.classify(avgLatency, errorRate),
		AvgLatency:          avgLatency,
		ErrorRate:           errorRate,
		ConsecutiveFailures: t.consecutiveFailures,
		LastSuccess:         t.lastSuccess,
		LastError:           t.lastError,
		LastErrorMsg:        t.lastErrorMsg,
		TotalPolls:          t.totalPolls,
		TotalEvents:         t.totalEvents,
		Uptime:              time.Since(t.startedAt),
	}
}

// classify 按连续失败、错误率和平均延迟分级，调用方需持有锁
func (t *Tracker) classify(avgLatency time.Duration, errorRate float64) model.HealthStatus {
	if t.totalPolls == 0 {
		return model.StatusUnknown
	}
	if t.consecutiveFailures >= unhealthyFailures || errorRate >= unhealthyErrRate {
		return model.StatusUnhealthy
	}
	if t.consecutiveFailures >= degradedFailures || errorRate >= degradedErrRate || avgLatency > degradedLatency {
		return model.StatusDegraded
	}
	return model.StatusHealthy
}
