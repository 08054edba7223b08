package aggregator

import (
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"SignalRadar/pkg/model"
)

// 市场情绪分母的下限，极低活跃度时避免除零
const biasEpsilon = 1e-9

// Config 聚合器配置
type Config struct {
	DedupWindowSeconds  int     `yaml:"dedup_window_seconds"`  // 去重窗口（秒）
	MaxSignalAgeSeconds int     `yaml:"max_signal_age_seconds"` // 信号最大存活时间（秒）
	ConflictPenalty     float64 `yaml:"conflict_penalty"`      // 多空冲突惩罚系数
	TopN                int     `yaml:"top_n"`                 // 每个方向返回的资产数上限

	// 来源可靠度权重，按检测器子规则前缀匹配，未知来源使用默认值
	SourceWeights map[string]float64 `yaml:"source_weights"`
	// 信号类别权重，未知类别使用默认值
	TypeWeights map[model.SignalType]float64 `yaml:"type_weights"`
}

// DefaultConfig 默认聚合配置
func DefaultConfig() Config {
	return Config{
		DedupWindowSeconds:  60,
		MaxSignalAgeSeconds: 1800,
		ConflictPenalty:     0.5,
		TopN:                10,
		SourceWeights: map[string]float64{
			"technical": 1.0,
			"price":     0.9,
			"volume":    0.8,
			"flow":      1.1,
			"keyword":   0.7,
			"narrative": 0.6,
		},
		TypeWeights: map[model.SignalType]float64{
			model.SignalTypeTechnical:   1.0,
			model.SignalTypeFlow:        1.1,
			model.SignalTypeSentiment:   0.7,
			model.SignalTypeFundamental: 1.0,
			model.SignalTypeComposite:   1.0,
		},
	}
}

const (
	defaultSourceWeight = 0.8
	defaultTypeWeight   = 0.8
)

// Aggregator 信号聚合器。
// 按资产缓冲信号，去重后在 Summarize 时计算加权多空得分。
// 缓冲区跨扫描周期保留，过期信号在汇总时淘汰。
// Ingest 由互斥锁串行化以保证去重不变量；Summarize 读取时允许短暂滞后。
type Aggregator struct {
	mu     sync.Mutex
	config Config
	buffer map[string][]model.UnifiedSignal // 资产 -> 信号列表
	now    func() time.Time
}

// New 创建聚合器
func New(config Config) *Aggregator {
	def := DefaultConfig()
	if config.DedupWindowSeconds <= 0 {
		config.DedupWindowSeconds = def.DedupWindowSeconds
	}
	if config.MaxSignalAgeSeconds <= 0 {
		config.MaxSignalAgeSeconds = def.MaxSignalAgeSeconds
	}
	if config.ConflictPenalty <= 0 {
		config.ConflictPenalty = def.ConflictPenalty
	}
	if config.TopN <= 0 {
		config.TopN = def.TopN
	}
	if config.SourceWeights == nil {
		config.SourceWeights = def.SourceWeights
	}
	if config.TypeWeights == nil {
		config.TypeWeights = def.TypeWeights
	}
	return &Aggregator{
		config: config,
		buffer: make(map[string][]model.UnifiedSignal),
		now:    time.Now,
	}
}

// Ingest 接收一批信号：丢弃过期与近重复信号，其余按资产入缓冲区。
// 返回实际入缓冲的信号数。
func (a *Aggregator) Ingest(signals []model.UnifiedSignal) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	window := time.Duration(a.config.DedupWindowSeconds) * time.Second
	ingested := 0
	for _, sig := range signals {
		if err := sig.Validate(); err != nil {
			log.Printf("丢弃非法信号 %s: %v", sig.Asset, err)
			continue
		}
		if sig.IsExpired(now) {
			continue
		}
		if a.isDuplicate(sig, window) {
			continue
		}
		a.buffer[sig.Asset] = append(a.buffer[sig.Asset], sig)
		ingested++
	}
	return ingested
}

// isDuplicate 判断是否与缓冲区内同资产+同来源+同方向、且时间差在窗口内的信号重复
func (a *Aggregator) isDuplicate(sig model.UnifiedSignal, window time.Duration) bool {
	for _, existing := range a.buffer[sig.Asset] {
		if existing.Source == sig.Source && existing.Direction == sig.Direction {
			diff := sig.Timestamp.Sub(existing.Timestamp)
			if diff < 0 {
				diff = -diff
			}
			if diff < window {
				return true
			}
		}
	}
	return false
}

// BufferedCount 返回当前缓冲区中的信号总数
func (a *Aggregator) BufferedCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	total := 0
	for _, sigs := range a.buffer {
		total += len(sigs)
	}
	return total
}

// Summarize 淘汰过老信号后生成聚合报告。
// limit 为每个方向返回的资产数上限，<=0 时使用配置值。
func (a *Aggregator) Summarize(limit int) model.AggregationReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 {
		limit = a.config.TopN
	}
	now := a.now()
	a.evict(now)

	report := model.AggregationReport{
		GeneratedAt:     now,
		MarketBreakdown: make(map[model.Market]int),
	}

	var summaries []model.AssetSignalSummary
	for asset, sigs := range a.buffer {
		report.TotalSignals += len(sigs)
		summaries = append(summaries, a.summarizeAsset(asset, sigs))
	}
	report.TotalAssets = len(summaries)

	var netTotal, magnitudeTotal float64
	for _, s := range summaries {
		netTotal += s.NetScore
		magnitudeTotal += math.Abs(s.NetScore)
		report.MarketBreakdown[s.Market]++
	}

	// 市场情绪：净得分占总幅度的比例，分母加下限避免极低活跃时除零
	report.MarketBiasScore = netTotal / math.Max(magnitudeTotal, biasEpsilon)
	if report.MarketBiasScore >= 0 {
		report.MarketBias = model.DirectionLong
	} else {
		report.MarketBias = model.DirectionShort
	}

	report.TopLong = topByScore(summaries, model.DirectionLong, limit)
	report.TopShort = topByScore(summaries, model.DirectionShort, limit)
	return report
}

// evict 移除时间戳早于最大存活时间的信号
func (a *Aggregator) evict(now time.Time) {
	maxAge := time.Duration(a.config.MaxSignalAgeSeconds) * time.Second
	cutoff := now.Add(-maxAge)
	for asset, sigs := range a.buffer {
		kept := sigs[:0]
		for _, sig := range sigs {
			if sig.Timestamp.After(cutoff) && !sig.IsExpired(now) {
				kept = append(kept, sig)
			}
		}
		if len(kept) == 0 {
			delete(a.buffer, asset)
		} else {
			a.buffer[asset] = kept
		}
	}
}

// summarizeAsset 计算单一资产的加权多空得分
func (a *Aggregator) summarizeAsset(asset string, sigs []model.UnifiedSignal) model.AssetSignalSummary {
	summary := model.AssetSignalSummary{
		Asset:   asset,
		Signals: append([]model.UnifiedSignal(nil), sigs...),
	}

	var longSum, shortSum float64
	strongestIdx := -1
	var strongestWeight float64
	sourceSet := make(map[string]bool)
	typeWeightSum := make(map[model.SignalType]float64)

	for i := range sigs {
		sig := sigs[i]
		weight := sig.Strength * sig.Confidence * a.sourceWeight(sig.Source) * a.typeWeight(sig.SignalType)
		if sig.Direction == model.DirectionLong {
			longSum += weight
			summary.LongSignals++
		} else {
			shortSum += weight
			summary.ShortSignals++
		}
		sourceSet[sig.Source] = true
		typeWeightSum[sig.SignalType] += weight
		if strongestIdx < 0 || weight > strongestWeight {
			strongestIdx = i
			strongestWeight = weight
		}
		if summary.Market == "" {
			summary.Market = sig.Market
		}
	}

	// 多空同时存在时按少数方权重施加冲突惩罚，双方同减
	if longSum > 0 && shortSum > 0 {
		penalty := a.config.ConflictPenalty * math.Min(longSum, shortSum)
		longSum = math.Max(0, longSum-penalty)
		shortSum = math.Max(0, shortSum-penalty)
	}

	summary.CompositeScore = math.Max(longSum, shortSum)
	summary.NetScore = longSum - shortSum
	// 平手时确定性地判多
	if summary.NetScore >= 0 {
		summary.Direction = model.DirectionLong
	} else {
		summary.Direction = model.DirectionShort
	}
	// 指向汇总自带的信号副本，返回后的报告不受缓冲区后续整理影响
	if strongestIdx >= 0 {
		summary.Strongest = &summary.Signals[strongestIdx]
	}

	for source := range sourceSet {
		summary.Sources = append(summary.Sources, source)
	}
	sort.Strings(summary.Sources)

	var bestType model.SignalType
	var bestTypeWeight float64
	for t, w := range typeWeightSum {
		if w > bestTypeWeight || (w == bestTypeWeight && t < bestType) {
			bestType, bestTypeWeight = t, w
		}
	}
	summary.DominantType = bestType
	return summary
}

// sourceWeight 按检测器前缀查来源权重，如 "technical/rsi" 匹配 "technical"
func (a *Aggregator) sourceWeight(source string) float64 {
	if w, ok := a.config.SourceWeights[source]; ok {
		return w
	}
	for i := 0; i < len(source); i++ {
		if source[i] == '/' {
			if w, ok := a.config.SourceWeights[source[:i]]; ok {
				return w
			}
			break
		}
	}
	return defaultSourceWeight
}

func (a *Aggregator) typeWeight(t model.SignalType) float64 {
	if w, ok := a.config.TypeWeights[t]; ok {
		return w
	}
	return defaultTypeWeight
}

// topByScore 按综合得分取指定方向的前 limit 个资产
func topByScore(summaries []model.AssetSignalSummary, direction model.Direction, limit int) []model.AssetSignalSummary {
	var matched []model.AssetSignalSummary
	for _, s := range summaries {
		if s.Direction == direction && s.CompositeScore > 0 {
			matched = append(matched, s)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CompositeScore != matched[j].CompositeScore {
			return matched[i].CompositeScore > matched[j].CompositeScore
		}
		return matched[i].Asset < matched[j].Asset
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}
