package detector

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"SignalRadar/pkg/model"
)

// FlowDetectorConfig 资金流检测配置
type FlowDetectorConfig struct {
	SectorThreshold     float64  `yaml:"sector_threshold"`     // 板块净流入异动阈值（亿元）
	NorthboundThreshold float64  `yaml:"northbound_threshold"` // 北向资金异动阈值（亿元）
	TrackedThreshold    float64  `yaml:"tracked_threshold"`    // 关注板块的低阈值（亿元）
	TrackedSectors      []string `yaml:"tracked_sectors"`      // 关注板块列表
	RankJump            int      `yaml:"rank_jump"`            // 关注板块的排名跃升阈值
	MaxRotationPairs    int      `yaml:"max_rotation_pairs"`   // 轮动配对上限
}

// DefaultFlowDetectorConfig 默认资金流检测配置
func DefaultFlowDetectorConfig() FlowDetectorConfig {
	return FlowDetectorConfig{
		SectorThreshold:     20,
		NorthboundThreshold: 50,
		TrackedThreshold:    8,
		RankJump:            10,
		MaxRotationPairs:    3,
	}
}

// FlowDetector 资金流检测器：板块净流入异动、北向资金异动、
// 板块轮动配对与关注板块的低阈值路径。消费 capital_flow 事件。
type FlowDetector struct {
	mu      sync.RWMutex
	cfg     FlowDetectorConfig
	tracked map[string]bool
}

// NewFlowDetector 创建资金流检测器
func NewFlowDetector(cfg FlowDetectorConfig) *FlowDetector {
	def := DefaultFlowDetectorConfig()
	if cfg.SectorThreshold <= 0 {
		cfg.SectorThreshold = def.SectorThreshold
	}
	if cfg.NorthboundThreshold <= 0 {
		cfg.NorthboundThreshold = def.NorthboundThreshold
	}
	if cfg.TrackedThreshold <= 0 {
		cfg.TrackedThreshold = def.TrackedThreshold
	}
	if cfg.RankJump <= 0 {
		cfg.RankJump = def.RankJump
	}
	if cfg.MaxRotationPairs <= 0 {
		cfg.MaxRotationPairs = def.MaxRotationPairs
	}

	d := &FlowDetector{cfg: cfg}
	d.UpdateTrackedSectors(cfg.TrackedSectors)
	return d
}

// UpdateTrackedSectors 热更新关注板块列表，无需重启
func (d *FlowDetector) UpdateTrackedSectors(sectors []string) {
	tracked := make(map[string]bool, len(sectors))
	for _, s := range sectors {
		tracked[s] = true
	}
	d.mu.Lock()
	d.tracked = tracked
	d.mu.Unlock()
}

// Name 检测器名称
func (d *FlowDetector) Name() string { return "flow" }

// Accepts 消费的事件类别
func (d *FlowDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeCapitalFlow, model.EventTypeETFFlow}
}

// Detect 按事件载荷类别分派检查
func (d *FlowDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	switch event.Str("kind") {
	case "sector":
		return runCheck(d.Name(), "sector", func() []model.UnifiedSignal {
			return d.checkSector(event)
		})
	case "northbound":
		return runCheck(d.Name(), "northbound", func() []model.UnifiedSignal {
			return d.checkNorthbound(event)
		})
	case "sector_table":
		return runCheck(d.Name(), "rotation", func() []model.UnifiedSignal {
			return d.checkRotation(event)
		})
	}
	return nil
}

// checkSector 检测单板块净流入异动；价格方向一致时提升置信度。
// 关注板块走低阈值路径并附带排名跃升检测。
func (d *FlowDetector) checkSector(event model.RawMarketEvent) []model.UnifiedSignal {
	netInflow, ok := event.Float("net_inflow")
	if !ok {
		return nil
	}
	sector := event.Str("sector")
	changePct := event.FloatOr("change_percent", 0)

	d.mu.RLock()
	isTracked := d.tracked[sector]
	d.mu.RUnlock()

	threshold := d.cfg.SectorThreshold
	source := "flow/sector_anomaly"
	if isTracked {
		threshold = d.cfg.TrackedThreshold
		source = "flow/tracked_sector"
	}

	var signals []model.UnifiedSignal
	if math.Abs(netInflow) >= threshold {
		direction := model.DirectionLong
		if netInflow < 0 {
			direction = model.DirectionShort
		}

		confidence := 0.6
		// 资金方向与价格方向一致时增强置信度
		if (netInflow > 0 && changePct > 0) || (netInflow < 0 && changePct < 0) {
			confidence += 0.15
		}

		sig := model.NewSignal(event.Market, sector, direction, clamp01(math.Abs(netInflow)/(threshold*3)), confidence, model.SignalTypeFlow, source)
		sig.Metadata["net_inflow"] = netInflow
		sig.Metadata["change_percent"] = changePct
		sig.Metadata["tracked"] = isTracked
		signals = append(signals, sig)
	}

	// 关注板块的排名跃升异动
	if isTracked {
		rank := int(event.FloatOr("rank", 0))
		prevRank := int(event.FloatOr("prev_rank", 0))
		if prevRank > 0 && prevRank-rank >= d.cfg.RankJump {
			sig := model.NewSignal(event.Market, sector, model.DirectionLong, clamp01(float64(prevRank-rank)/30), 0.55, model.SignalTypeFlow, "flow/rank_jump")
			model.FlowSignalExt{SectorRank: rank, PrevRank: prevRank}.Apply(&sig)
			signals = append(signals, sig)
		}
	}
	return signals
}

// checkNorthbound 检测北向资金大额进出
func (d *FlowDetector) checkNorthbound(event model.RawMarketEvent) []model.UnifiedSignal {
	netInflow, ok := event.Float("net_inflow")
	if !ok || math.Abs(netInflow) < d.cfg.NorthboundThreshold {
		return nil
	}

	direction := model.DirectionLong
	if netInflow < 0 {
		direction = model.DirectionShort
	}

	sig := model.NewSignal(event.Market, "northbound", direction, clamp01(math.Abs(netInflow)/(d.cfg.NorthboundThreshold*3)), 0.7, model.SignalTypeFlow, "flow/northbound")
	model.FlowSignalExt{NorthboundAmount: netInflow}.Apply(&sig)
	return []model.UnifiedSignal{sig}
}

// checkRotation 将最强流出板块与最强流入板块配对（最多 MaxRotationPairs 对），
// 强度正比于两侧流量的平均幅度。
func (d *FlowDetector) checkRotation(event model.RawMarketEvent) []model.UnifiedSignal {
	sectors := event.Sectors()
	if len(sectors) < 2 {
		return nil
	}

	sorted := make([]model.SectorFlow, len(sectors))
	copy(sorted, sectors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].NetInflow > sorted[j].NetInflow
	})

	var signals []model.UnifiedSignal
	for pair := 0; pair < d.cfg.MaxRotationPairs; pair++ {
		in := sorted[pair]
		out := sorted[len(sorted)-1-pair]
		if pair >= len(sorted)/2 {
			break
		}
		// 只有流入流出同时显著时才构成轮动
		if in.NetInflow < d.cfg.TrackedThreshold || out.NetInflow > -d.cfg.TrackedThreshold {
			break
		}

		avgMagnitude := (math.Abs(in.NetInflow) + math.Abs(out.NetInflow)) / 2
		sig := model.NewSignal(event.Market, in.Sector, model.DirectionLong, clamp01(avgMagnitude/(d.cfg.SectorThreshold*2)), 0.6, model.SignalTypeFlow, "flow/rotation")
		sig.Metadata["rotation_from"] = out.Sector
		sig.Metadata["rotation_to"] = in.Sector
		sig.Metadata["pair"] = pair + 1
		sig.Metadata["avg_magnitude"] = avgMagnitude
		sig.Metadata["reason"] = fmt.Sprintf("资金从 %s 轮动至 %s", out.Sector, in.Sector)
		signals = append(signals, sig)
	}
	return signals
}
