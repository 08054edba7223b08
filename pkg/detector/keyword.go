package detector

import (
	"strings"
	"sync"
	"time"

	"SignalRadar/pkg/model"
)

// KeywordPriority 关键词规则优先级
type KeywordPriority string

const (
	PriorityUrgent KeywordPriority = "urgent"
	PriorityHigh   KeywordPriority = "high"
	PriorityNormal KeywordPriority = "normal"
)

// 各优先级的基础强度与置信度
var priorityBase = map[KeywordPriority]struct {
	strength   float64
	confidence float64
}{
	PriorityUrgent: {0.9, 0.8},
	PriorityHigh:   {0.7, 0.7},
	PriorityNormal: {0.5, 0.6},
}

// KeywordRule 单条关键词规则
type KeywordRule struct {
	Name     string          `yaml:"name"`
	Keywords []string        `yaml:"keywords"`
	Priority KeywordPriority `yaml:"priority"`
}

// WatchItem 关注标的：代码与其别名
type WatchItem struct {
	Symbol string   `yaml:"symbol"`
	Names  []string `yaml:"names"`
}

// 多次命中的置信度加成与信号有效期
const (
	extraHitBoost  = 0.05
	watchHitBoost  = 0.1
	keywordSignalTTL = 15 * time.Minute
)

// KeywordDetector 关键词与关注标的匹配检测器。
// 规则分 urgent/high/normal 三级，单条新闻的多次命中合并为一条信号，
// 取最高优先级，每多一次命中或关注标的命中提升置信度。
// 规则与关注列表可热更新，无需重启。
//
// 方向约定：关键词信号一律为 LONG，表达的是关注度而非多空判断，
// 不从关键词语义反推涨跌方向。
type KeywordDetector struct {
	mu    sync.RWMutex
	rules []KeywordRule
	watch []WatchItem
}

// NewKeywordDetector 创建关键词检测器
func NewKeywordDetector(rules []KeywordRule, watch []WatchItem) *KeywordDetector {
	return &KeywordDetector{rules: rules, watch: watch}
}

// UpdateRules 热更新关键词规则
func (d *KeywordDetector) UpdateRules(rules []KeywordRule) {
	d.mu.Lock()
	d.rules = rules
	d.mu.Unlock()
}

// UpdateWatchlist 热更新关注列表
func (d *KeywordDetector) UpdateWatchlist(watch []WatchItem) {
	d.mu.Lock()
	d.watch = watch
	d.mu.Unlock()
}

// Name 检测器名称
func (d *KeywordDetector) Name() string { return "keyword" }

// Accepts 消费的事件类别
func (d *KeywordDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeNews, model.EventTypeAnnouncement}
}

// Detect 对一条新闻执行关键词与关注标的匹配
func (d *KeywordDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	return runCheck(d.Name(), "match", func() []model.UnifiedSignal {
		return d.match(event)
	})
}

func (d *KeywordDetector) match(event model.RawMarketEvent) []model.UnifiedSignal {
	text := event.Str("title") + " " + event.Str("content")
	if strings.TrimSpace(text) == "" {
		return nil
	}

	d.mu.RLock()
	rules := d.rules
	watch := d.watch
	d.mu.RUnlock()

	var best KeywordPriority
	var hits []string
	for _, rule := range rules {
		for _, keyword := range rule.Keywords {
			if keyword != "" && strings.Contains(text, keyword) {
				hits = append(hits, keyword)
				if higherPriority(rule.Priority, best) {
					best = rule.Priority
				}
			}
		}
	}

	var watchSymbol string
	watchHits := 0
	for _, item := range watch {
		for _, name := range append([]string{item.Symbol}, item.Names...) {
			if name != "" && strings.Contains(text, name) {
				watchHits++
				if watchSymbol == "" {
					watchSymbol = item.Symbol
				}
				break
			}
		}
	}

	if len(hits) == 0 && watchHits == 0 {
		return nil
	}
	if best == "" {
		best = PriorityNormal
	}

	base := priorityBase[best]
	confidence := base.confidence
	if len(hits) > 1 {
		confidence += float64(len(hits)-1) * extraHitBoost
	}
	confidence += float64(watchHits) * watchHitBoost

	asset := event.Symbol
	if asset == "" {
		asset = watchSymbol
	}
	if asset == "" {
		asset = "market"
	}

	sig := model.NewSignal(event.Market, asset, model.DirectionLong, base.strength, confidence, model.SignalTypeSentiment, "keyword/"+string(best))
	expires := sig.Timestamp.Add(keywordSignalTTL)
	sig.ExpiresAt = &expires
	sig.Metadata["matched_keywords"] = hits
	sig.Metadata["watch_hits"] = watchHits
	sig.Metadata["priority"] = string(best)
	sig.Metadata["title"] = event.Str("title")
	sig.Clamp()
	return []model.UnifiedSignal{sig}
}

// higherPriority 判断 a 是否比 b 优先级更高
func higherPriority(a, b KeywordPriority) bool {
	rank := func(p KeywordPriority) int {
		switch p {
		case PriorityUrgent:
			return 3
		case PriorityHigh:
			return 2
		case PriorityNormal:
			return 1
		}
		return 0
	}
	return rank(a) > rank(b)
}
