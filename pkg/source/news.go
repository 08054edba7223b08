package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/stan.go"

	"SignalRadar/pkg/model"
	"SignalRadar/pkg/resilience"
)

// 情感与影响度关键词（与上游爬虫口径一致）
var (
	negativeKeywords   = []string{"下跌", "暴跌", "亏损", "风险", "警告", "下滑", "违规", "退市"}
	positiveKeywords   = []string{"上涨", "暴涨", "盈利", "机会", "突破", "增长", "中标", "回购"}
	highImpactKeywords = []string{"重大", "突发", "紧急", "重要", "关键"}

	symbolPattern = regexp.MustCompile(`\b([0-9]{6})\.(SH|SZ)\b`)
)

// crawlerNews 爬虫推送的原始新闻结构
type crawlerNews struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Abstract   string  `json:"abstract"`
	Content    string  `json:"content"`
	Date       string  `json:"date"`
	Link       string  `json:"link"`
	Type       string  `json:"type"`
	ReadNumber float64 `json:"read_number"`
}

// NewsSource 新闻快讯数据源。
// 优先通过 NATS Streaming 订阅爬虫推送，消息进入内存缓冲，
// Poll 时整体取走；未配置 NATS 时退化为轮询 HTTP 快讯接口。
//
// 事件 Data 键约定: title, summary, content, url, sentiment,
// impact, keywords, read_number。
type NewsSource struct {
	name       string
	natsURL    string
	clusterID  string
	clientID   string
	subject    string
	httpURL    string
	httpClient *http.Client
	guard      *guard

	mu     sync.Mutex
	conn   stan.Conn
	sub    stan.Subscription
	buffer []model.RawMarketEvent
}

// NewsSourceConfig 新闻源配置
type NewsSourceConfig struct {
	NATSURL     string        `yaml:"nats_url"`
	ClusterID   string        `yaml:"cluster_id"`
	ClientID    string        `yaml:"client_id"`
	Subject     string        `yaml:"subject"`
	HTTPURL     string        `yaml:"http_url"`
	Timeout     time.Duration `yaml:"timeout"`
	MinInterval time.Duration `yaml:"min_interval"`
}

// NewNewsSource 创建新闻数据源
func NewNewsSource(cfg NewsSourceConfig, breakerCfg resilience.BreakerConfig, retry resilience.RetryPolicy) *NewsSource {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	subject := cfg.Subject
	if subject == "" {
		subject = "news.cls"
	}
	return &NewsSource{
		name:       "news",
		natsURL:    cfg.NATSURL,
		clusterID:  cfg.ClusterID,
		clientID:   cfg.ClientID,
		subject:    subject,
		httpURL:    cfg.HTTPURL,
		httpClient: &http.Client{Timeout: timeout},
		guard:      newGuard("news", breakerCfg, retry, cfg.MinInterval),
	}
}

// Name 数据源名称
func (s *NewsSource) Name() string { return s.name }

// Connect 建立订阅，重复调用不产生新连接
func (s *NewsSource) Connect() error {
	if s.natsURL == "" {
		if s.httpURL == "" {
			return fmt.Errorf("新闻源缺少 nats_url 或 http_url 配置")
		}
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	conn, err := stan.Connect(s.clusterID, s.clientID, stan.NatsURL(s.natsURL))
	if err != nil {
		return fmt.Errorf("连接NATS失败: %w", err)
	}

	sub, err := conn.Subscribe(s.subject, s.handleMessage, stan.StartWithLastReceived())
	if err != nil {
		conn.Close()
		return fmt.Errorf("订阅新闻主题失败: %w", err)
	}

	s.conn = conn
	s.sub = sub
	log.Printf("新闻源已订阅主题 %s", s.subject)
	return nil
}

// Disconnect 取消订阅并关闭连接
func (s *NewsSource) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sub != nil {
		s.sub.Unsubscribe()
		s.sub = nil
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// Health 当前健康快照
func (s *NewsSource) Health() model.SourceHealth {
	return s.guard.snapshot()
}

// Poll 取走缓冲中的新闻事件；HTTP 模式下拉取快讯接口
func (s *NewsSource) Poll(ctx context.Context) ([]model.RawMarketEvent, error) {
	return s.guard.poll(ctx, s.fetch)
}

func (s *NewsSource) fetch(ctx context.Context) ([]model.RawMarketEvent, error) {
	if s.natsURL != "" {
		s.mu.Lock()
		events := s.buffer
		s.buffer = nil
		s.mu.Unlock()
		return events, nil
	}
	return s.fetchHTTP(ctx)
}

// handleMessage 将爬虫消息归一化后放入缓冲
func (s *NewsSource) handleMessage(msg *stan.Msg) {
	var raw crawlerNews
	if err := json.Unmarshal(msg.Data, &raw); err != nil {
		log.Printf("解析新闻数据失败: %v", err)
		return
	}

	event := s.normalize(raw)
	s.mu.Lock()
	s.buffer = append(s.buffer, event)
	s.mu.Unlock()
}

// fetchHTTP 轮询快讯接口的退化路径
func (s *NewsSource) fetchHTTP(ctx context.Context) ([]model.RawMarketEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.httpURL, nil)
	if err != nil {
		return nil, fmt.Errorf("创建HTTP请求失败: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &resilience.RateLimitError{Source: s.name, Msg: "HTTP 429"}
	}
	if resp.StatusCode >= 500 {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("接口返回状态码 %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("接口返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("读取响应失败: %w", err)}
	}

	var items []crawlerNews
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &resilience.TransientError{Source: s.name, Err: fmt.Errorf("解析JSON失败: %w", err)}
	}

	events := make([]model.RawMarketEvent, 0, len(items))
	for _, item := range items {
		events = append(events, s.normalize(item))
	}
	return events, nil
}

// normalize 将原始新闻转换为统一事件，附带情感与影响度评估
func (s *NewsSource) normalize(raw crawlerNews) model.RawMarketEvent {
	text := raw.Title + " " + raw.Content
	symbol := extractSymbol(text)

	eventType := model.EventTypeNews
	if raw.Type == "announcement" {
		eventType = model.EventTypeAnnouncement
	}

	event := model.NewEvent(s.name, eventType, model.MarketCNEquity, symbol, map[string]any{
		"title":       raw.Title,
		"summary":     raw.Abstract,
		"content":     raw.Content,
		"url":         raw.Link,
		"sentiment":   analyzeSentiment(text),
		"impact":      calculateImpact(raw.Title, raw.ReadNumber),
		"keywords":    extractKeywords(text),
		"read_number": raw.ReadNumber,
	})

	// 源端时间优先使用爬虫给出的发布时间
	if publishedAt, err := time.Parse("2006-01-02 15:04:05", raw.Date); err == nil {
		event.Timestamp = publishedAt
	}
	return event
}

// extractSymbol 从文本中提取股票代码，无法识别时返回空（通用新闻）
func extractSymbol(text string) string {
	if m := symbolPattern.FindString(text); m != "" {
		return m
	}
	return ""
}

// 新闻情感取值
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// analyzeSentiment 简单的关键词情感分析
func analyzeSentiment(text string) string {
	negativeScore := 0
	positiveScore := 0

	for _, keyword := range negativeKeywords {
		if strings.Contains(text, keyword) {
			negativeScore++
		}
	}
	for _, keyword := range positiveKeywords {
		if strings.Contains(text, keyword) {
			positiveScore++
		}
	}

	if positiveScore > negativeScore {
		return SentimentPositive
	}
	if negativeScore > positiveScore {
		return SentimentNegative
	}
	return SentimentNeutral
}

// calculateImpact 按阅读量和标题关键词估计影响程度 [0,1]
func calculateImpact(title string, readNumber float64) float64 {
	impact := 0.3

	switch {
	case readNumber > 10000:
		impact += 0.3
	case readNumber > 5000:
		impact += 0.2
	case readNumber > 1000:
		impact += 0.1
	}

	for _, keyword := range highImpactKeywords {
		if strings.Contains(title, keyword) {
			impact += 0.2
			break
		}
	}

	if impact > 1.0 {
		impact = 1.0
	}
	return impact
}

// extractKeywords 提取命中的情感关键词
func extractKeywords(text string) []string {
	keywords := []string{}
	for _, keyword := range append(append([]string{}, negativeKeywords...), positiveKeywords...) {
		if strings.Contains(text, keyword) {
			keywords = append(keywords, keyword)
		}
	}
	return keywords
}
