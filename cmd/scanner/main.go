package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SignalRadar/pkg/aggregator"
	"SignalRadar/pkg/api"
	"SignalRadar/pkg/config"
	"SignalRadar/pkg/database"
	"SignalRadar/pkg/detector"
	"SignalRadar/pkg/messaging"
	"SignalRadar/pkg/model"
	"SignalRadar/pkg/pipeline"
	"SignalRadar/pkg/publisher"
	"SignalRadar/pkg/scheduler"
	"SignalRadar/pkg/source"
)

func main() {
	log.Println("启动市场信号扫描器...")

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = config.GetDefaultConfigPath()
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 数据源
	sources := []source.Source{
		source.NewQuoteSource(cfg.Sources.Quote, cfg.Resilience.Breaker, cfg.Resilience.Retry),
		source.NewKlineSource(cfg.Sources.Kline, cfg.Resilience.Breaker, cfg.Resilience.Retry),
		source.NewNewsSource(cfg.Sources.News, cfg.Resilience.Breaker, cfg.Resilience.Retry),
		source.NewFlowSource(cfg.Sources.Flow, cfg.Resilience.Breaker, cfg.Resilience.Retry),
	}

	// 检测器
	detectors := []detector.Detector{
		detector.NewTechnicalDetector(),
		detector.NewPriceDetector(),
		detector.NewVolumeDetector(),
		detector.NewFlowDetector(cfg.Detectors.Flow),
		detector.NewKeywordDetector(cfg.Detectors.Keyword.Rules, cfg.Detectors.Keyword.Watch),
		detector.NewNarrativeDetector(cfg.Detectors.Narrative),
	}

	// 聚合器与编排器
	agg := aggregator.New(cfg.Aggregator)
	pipe := pipeline.New(cfg.Pipeline, sources, detectors, agg)
	pipe.Start()
	defer pipe.Stop()

	// 信号发布器
	pub, err := publisher.New(cfg.Publisher.Feed)
	if err != nil {
		log.Fatalf("创建信号发布器失败: %v", err)
	}
	defer pub.Close()
	bridge := publisher.NewBridge(cfg.Publisher.Bridge)

	// NATS分发（可选）
	var natsClient *messaging.NATSClient
	if cfg.NATS.URL != "" {
		natsClient, err = messaging.NewNATSClient(cfg.NATS.URL)
		if err != nil {
			log.Printf("连接NATS失败，跳过消息分发: %v", err)
		} else {
			defer natsClient.Close()
		}
	}

	// 数据库持久化（可选）
	var store *database.Store
	if cfg.Database.DSN != "" {
		store, err = database.NewStore(cfg.Database.DSN)
		if err != nil {
			log.Printf("连接数据库失败，跳过持久化: %v", err)
		} else {
			defer store.Close()
		}
	}

	// 每次扫描完成后：转换并发布顶部信号，分发原始事件，写快照，落库
	onScan := func(result *pipeline.ScanResult) {
		publishReport(result, bridge, pub, natsClient)
		publishEvents(result, natsClient)
		if err := pub.WriteSnapshot(); err != nil {
			log.Printf("写入信号快照失败: %v", err)
		}
		if store != nil {
			if err := store.SaveSignals(result.Signals); err != nil {
				log.Printf("保存信号历史失败: %v", err)
			}
			if err := store.SaveScan(result); err != nil {
				log.Printf("保存扫描记录失败: %v", err)
			}
		}
	}

	// 调度器
	sched := scheduler.NewScheduler(cfg.Scheduler, pipe, onScan)
	if err := sched.Start(); err != nil {
		log.Fatalf("启动调度器失败: %v", err)
	}
	defer sched.Stop()

	// API服务器
	port := cfg.API.Port
	if port == "" {
		port = "8080"
	}
	server := api.NewServer(port)
	server.SetupRoutes(api.NewHandlers(pipe, store))
	server.Start()

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("正在关闭市场信号扫描器...")
	server.Shutdown()
}

// publishReport 把聚合报告的多空头部资产翻译成交易信号并发布
func publishReport(result *pipeline.ScanResult, bridge *publisher.Bridge, pub *publisher.Publisher, natsClient *messaging.NATSClient) {
	summaries := append(append([]model.AssetSignalSummary{}, result.Report.TopLong...), result.Report.TopShort...)
	for _, summary := range summaries {
		signal := bridge.Translate(summary)
		env, err := pub.Publish(signal, 30*time.Minute)
		if err != nil {
			log.Printf("发布信号失败 %s: %v", summary.Asset, err)
			continue
		}
		if natsClient != nil && natsClient.IsConnected() {
			if err := natsClient.PublishEnvelope(env); err != nil {
				log.Printf("NATS分发信号失败 %s: %v", summary.Asset, err)
			}
		}
	}
}

// publishEvents 把本周期的原始事件分发到事件流，供下游回放与审计
func publishEvents(result *pipeline.ScanResult, natsClient *messaging.NATSClient) {
	if natsClient == nil || !natsClient.IsConnected() {
		return
	}
	for _, event := range result.Events {
		if err := natsClient.PublishEvent(event); err != nil {
			log.Printf("NATS分发事件失败 %s: %v", event.EventID, err)
		}
	}
}
