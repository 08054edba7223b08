package detector

import (
	"SignalRadar/pkg/model"
)

// 量能检测参数
const (
	volAvgPeriod      = 20
	surgeRatio        = 2.0
	extremeSurgeRatio = 3.5
	shrinkRatio       = 0.5
	divergenceRatio   = 0.7
	wickBodyRatio     = 1.5
	progressiveBars   = 5
)

// VolumeDetector 量能检测器：放量、量价背离、天量反转、缩量整理
// 与渐进式量能趋势。消费 candle_series 事件。
type VolumeDetector struct{}

// NewVolumeDetector 创建量能检测器
func NewVolumeDetector() *VolumeDetector {
	return &VolumeDetector{}
}

// Name 检测器名称
func (d *VolumeDetector) Name() string { return "volume" }

// Accepts 消费的事件类别
func (d *VolumeDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeCandle}
}

// Detect 对一条K线序列执行全部量能检查
func (d *VolumeDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	bars := event.Bars()
	if len(bars) < volAvgPeriod+1 {
		return nil
	}

	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	prior := bars[len(bars)-1-volAvgPeriod : len(bars)-1]
	sum := 0.0
	for _, b := range prior {
		sum += b.Volume
	}
	avg := sum / float64(volAvgPeriod)
	if avg <= 0 {
		return nil
	}
	ratio := last.Volume / avg

	var signals []model.UnifiedSignal
	signals = append(signals, runCheck(d.Name(), "surge", func() []model.UnifiedSignal {
		return d.checkSurge(event, last, ratio)
	})...)
	signals = append(signals, runCheck(d.Name(), "divergence", func() []model.UnifiedSignal {
		return d.checkDivergence(event, last, prev, ratio)
	})...)
	signals = append(signals, runCheck(d.Name(), "climax", func() []model.UnifiedSignal {
		return d.checkClimax(event, last, ratio)
	})...)
	signals = append(signals, runCheck(d.Name(), "shrinkage", func() []model.UnifiedSignal {
		return d.checkShrinkage(event, last, prev, ratio)
	})...)
	signals = append(signals, runCheck(d.Name(), "progressive", func() []model.UnifiedSignal {
		return d.checkProgressive(event, bars)
	})...)
	return signals
}

// checkSurge 检测放量与极端放量
func (d *VolumeDetector) checkSurge(event model.RawMarketEvent, last model.Bar, ratio float64) []model.UnifiedSignal {
	if ratio < surgeRatio {
		return nil
	}

	direction := model.DirectionLong
	if last.Close < last.Open {
		direction = model.DirectionShort
	}

	source := "volume/surge"
	confidence := 0.6
	if ratio >= extremeSurgeRatio {
		source = "volume/extreme_surge"
		confidence = 0.7
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(ratio/5), confidence, model.SignalTypeTechnical, source)
	sig.Metadata["volume_ratio"] = ratio
	return []model.UnifiedSignal{sig}
}

// checkDivergence 检测量价背离：
// 价涨量缩看空，价跌量缩视为抛压衰竭看多，价跌放量视为恐慌看空。
func (d *VolumeDetector) checkDivergence(event model.RawMarketEvent, last, prev model.Bar, ratio float64) []model.UnifiedSignal {
	priceUp := last.Close > prev.Close
	priceDown := last.Close < prev.Close

	var source string
	var direction model.Direction
	var confidence float64
	switch {
	case priceUp && ratio <= divergenceRatio:
		source, direction, confidence = "volume/divergence", model.DirectionShort, 0.6
	case priceDown && ratio <= divergenceRatio:
		source, direction, confidence = "volume/exhaustion", model.DirectionLong, 0.55
	case priceDown && ratio >= surgeRatio:
		source, direction, confidence = "volume/panic", model.DirectionShort, 0.65
	default:
		return nil
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(1-ratio/2), confidence, model.SignalTypeTechnical, source)
	if source == "volume/panic" {
		sig.Strength = clamp01(ratio / 5)
	}
	sig.Metadata["volume_ratio"] = ratio
	sig.Metadata["price_up"] = priceUp
	return []model.UnifiedSignal{sig}
}

// checkClimax 检测极端放量伴随主导性反向影线的反转形态
func (d *VolumeDetector) checkClimax(event model.RawMarketEvent, last model.Bar, ratio float64) []model.UnifiedSignal {
	if ratio < extremeSurgeRatio {
		return nil
	}

	body := last.Close - last.Open
	if body < 0 {
		body = -body
	}
	upperWick := last.High - maxF(last.Open, last.Close)
	lowerWick := minF(last.Open, last.Close) - last.Low
	if body <= 0 {
		body = (last.High - last.Low) * 0.1 // 十字星按区间近似
	}

	var direction model.Direction
	var wick string
	switch {
	case upperWick >= body*wickBodyRatio && upperWick > lowerWick:
		direction, wick = model.DirectionShort, "upper"
	case lowerWick >= body*wickBodyRatio && lowerWick > upperWick:
		direction, wick = model.DirectionLong, "lower"
	default:
		return nil
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(ratio/5), 0.7, model.SignalTypeTechnical, "volume/climax_reversal")
	sig.Metadata["volume_ratio"] = ratio
	sig.Metadata["dominant_wick"] = wick
	return []model.UnifiedSignal{sig}
}

// checkShrinkage 检测缩量整理（低置信度的趋势延续提示）
func (d *VolumeDetector) checkShrinkage(event model.RawMarketEvent, last, prev model.Bar, ratio float64) []model.UnifiedSignal {
	if ratio > shrinkRatio {
		return nil
	}

	direction := model.DirectionLong
	if last.Close < prev.Close {
		direction = model.DirectionShort
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, 0.2, 0.4, model.SignalTypeTechnical, "volume/shrinkage")
	sig.Metadata["volume_ratio"] = ratio
	return []model.UnifiedSignal{sig}
}

// checkProgressive 检测连续N根K线的量能递增或递减趋势
func (d *VolumeDetector) checkProgressive(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	if len(bars) < progressiveBars {
		return nil
	}

	tail := bars[len(bars)-progressiveBars:]
	expanding, contracting := true, true
	for i := 1; i < len(tail); i++ {
		if tail[i].Volume <= tail[i-1].Volume {
			expanding = false
		}
		if tail[i].Volume >= tail[i-1].Volume {
			contracting = false
		}
	}
	if !expanding && !contracting {
		return nil
	}

	priceUp := tail[len(tail)-1].Close > tail[0].Close
	direction := model.DirectionLong
	if !priceUp {
		direction = model.DirectionShort
	}

	trend := "expansion"
	strength := 0.5
	if contracting {
		trend = "contraction"
		strength = 0.3
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, strength, 0.5, model.SignalTypeTechnical, "volume/progressive")
	sig.Metadata["trend"] = trend
	sig.Metadata["bars"] = progressiveBars
	return []model.UnifiedSignal{sig}
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
