package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"SignalRadar/pkg/aggregator"
	"SignalRadar/pkg/detector"
	"SignalRadar/pkg/pipeline"
	"SignalRadar/pkg/publisher"
	"SignalRadar/pkg/resilience"
	"SignalRadar/pkg/scheduler"
	"SignalRadar/pkg/source"
)

// Config 应用配置
type Config struct {
	App struct {
		Name string `yaml:"name"`
		Env  string `yaml:"env"`
	} `yaml:"app"`

	Sources struct {
		Quote source.QuoteSourceConfig `yaml:"quote"`
		Kline source.KlineSourceConfig `yaml:"kline"`
		News  source.NewsSourceConfig  `yaml:"news"`
		Flow  source.FlowSourceConfig  `yaml:"flow"`
	} `yaml:"sources"`

	Resilience struct {
		Breaker resilience.BreakerConfig `yaml:"breaker"`
		Retry   resilience.RetryPolicy   `yaml:"retry"`
	} `yaml:"resilience"`

	Detectors struct {
		Flow      detector.FlowDetectorConfig      `yaml:"flow"`
		Narrative detector.NarrativeDetectorConfig `yaml:"narrative"`
		Keyword   struct {
			Rules []detector.KeywordRule `yaml:"rules"`
			Watch []detector.WatchItem   `yaml:"watch"`
		} `yaml:"keyword"`
	} `yaml:"detectors"`

	Aggregator aggregator.Config `yaml:"aggregator"`

	Pipeline pipeline.Config `yaml:"pipeline"`

	Publisher struct {
		Feed   publisher.Config       `yaml:"feed"`
		Bridge publisher.BridgeConfig `yaml:"bridge"`
	} `yaml:"publisher"`

	NATS struct {
		URL       string `yaml:"url"`
		ClusterID string `yaml:"cluster_id"`
		ClientID  string `yaml:"client_id"`
	} `yaml:"nats"`

	Database struct {
		DSN string `yaml:"dsn"` // 为空时不启用持久化
	} `yaml:"database"`

	API struct {
		Port string `yaml:"port"`
	} `yaml:"api"`

	Scheduler scheduler.Config `yaml:"scheduler"`
}

// LoadConfig 从文件加载配置
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	overrideFromEnv(&config)

	return &config, nil
}

// overrideFromEnv 使用环境变量覆盖配置
func overrideFromEnv(config *Config) {
	if env := os.Getenv("APP_NAME"); env != "" {
		config.App.Name = env
	}
	if env := os.Getenv("APP_ENV"); env != "" {
		config.App.Env = env
	}

	// 数据源密钥与地址
	if env := os.Getenv("DATA_API_KEY"); env != "" {
		config.Sources.Kline.APIKey = env
	}
	if env := os.Getenv("DATA_BASE_URL"); env != "" {
		config.Sources.Kline.BaseURL = env
	}
	if env := os.Getenv("QUOTE_BASE_URL"); env != "" {
		config.Sources.Quote.BaseURL = env
	}
	if env := os.Getenv("FLOW_BASE_URL"); env != "" {
		config.Sources.Flow.BaseURL = env
	}

	// NATS配置
	if env := os.Getenv("NATS_URL"); env != "" {
		config.NATS.URL = env
		config.Sources.News.NATSURL = env
	}
	if env := os.Getenv("NATS_CLUSTER_ID"); env != "" {
		config.NATS.ClusterID = env
		config.Sources.News.ClusterID = env
	}
	if env := os.Getenv("NATS_CLIENT_ID"); env != "" {
		config.NATS.ClientID = env
		config.Sources.News.ClientID = env
	}

	// 数据库配置
	if env := os.Getenv("DATABASE_DSN"); env != "" {
		config.Database.DSN = env
	}

	// API配置
	if env := os.Getenv("API_PORT"); env != "" {
		config.API.Port = env
	}
}

// GetDefaultConfigPath 获取默认配置文件路径
func GetDefaultConfigPath() string {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev" // 默认开发环境
	}

	return fmt.Sprintf("configs/%s/app.yaml", env)
}
