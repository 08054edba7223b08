package scheduler

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/pipeline"
)

// Config 调度配置
type Config struct {
	ScanSpec   string `yaml:"scan_spec"`   // 扫描周期 cron 表达式
	HealthSpec string `yaml:"health_spec"` // 健康巡检周期
}

// DefaultConfig 默认调度配置
func DefaultConfig() Config {
	return Config{
		ScanSpec:   "@every 1m",
		HealthSpec: "@every 5m",
	}
}

// Scheduler 任务调度器：周期性触发扫描与健康巡检
type Scheduler struct {
	cron     *cron.Cron
	pipeline *pipeline.Pipeline
	config   Config
	onScan   func(*pipeline.ScanResult)
}

// NewScheduler 创建任务调度器。
// onScan 在每次周期扫描完成后回调，可为 nil。
func NewScheduler(config Config, p *pipeline.Pipeline, onScan func(*pipeline.ScanResult)) *Scheduler {
	def := DefaultConfig()
	if config.ScanSpec == "" {
		config.ScanSpec = def.ScanSpec
	}
	if config.HealthSpec == "" {
		config.HealthSpec = def.HealthSpec
	}
	return &Scheduler{
		cron:     cron.New(),
		pipeline: p,
		config:   config,
		onScan:   onScan,
	}
}

// Start 启动调度器
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.config.ScanSpec, s.runScan); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.config.HealthSpec, s.monitorHealth); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("调度器启动: 扫描 %s, 健康巡检 %s", s.config.ScanSpec, s.config.HealthSpec)
	return nil
}

// Stop 停止调度器，等待在途任务完成
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("调度器已停止")
}

// runScan 周期性扫描任务
func (s *Scheduler) runScan() {
	result := s.pipeline.Scan(context.Background())
	if s.onScan != nil {
		s.onScan(result)
	}
}

// monitorHealth 监控数据源健康状态
func (s *Scheduler) monitorHealth() {
	for name, health := range s.pipeline.Health() {
		if health.Status == model.StatusUnhealthy {
			log.Printf("数据源 %s 不健康: 连续失败 %d 次, 错误率 %.2f", name, health.ConsecutiveFailures, health.ErrorRate)
		} else if health.Status == model.StatusDegraded {
			log.Printf("数据源 %s 降级: 错误率 %.2f, 平均延迟 %v", name, health.ErrorRate, health.AvgLatency)
		}
	}
}
