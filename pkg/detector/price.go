package detector

import (
	"math"

	"SignalRadar/pkg/model"
)

// 价格行为参数
const (
	nearHighRatio   = 0.98
	minorGapPct     = 1.0
	largeGapPct     = 3.0
	minStreakDays   = 3
	accelWindow     = 3
	accelRatio      = 1.5
	breakoutShort   = 20
	breakoutLong    = 250
)

// PriceDetector 价格行为检测器：新高新低突破、逼近前高、跳空缺口、
// 连续涨跌与短窗加速。消费 candle_series 事件。
type PriceDetector struct{}

// NewPriceDetector 创建价格行为检测器
func NewPriceDetector() *PriceDetector {
	return &PriceDetector{}
}

// Name 检测器名称
func (d *PriceDetector) Name() string { return "price" }

// Accepts 消费的事件类别
func (d *PriceDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeCandle}
}

// Detect 对一条K线序列执行全部价格行为检查
func (d *PriceDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	bars := event.Bars()
	if len(bars) < 2 {
		return nil
	}

	var signals []model.UnifiedSignal
	signals = append(signals, runCheck(d.Name(), "breakout", func() []model.UnifiedSignal {
		return d.checkBreakout(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "gap", func() []model.UnifiedSignal {
		return d.checkGap(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "streak", func() []model.UnifiedSignal {
		return d.checkStreak(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "acceleration", func() []model.UnifiedSignal {
		return d.checkAcceleration(event, bars)
	})...)
	return signals
}

// checkBreakout 检测 N 日新高新低突破与逼近前高
func (d *PriceDetector) checkBreakout(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	var signals []model.UnifiedSignal
	last := bars[len(bars)-1]
	prior := bars[:len(bars)-1]

	for _, period := range []int{breakoutShort, breakoutLong} {
		if len(prior) < period {
			continue
		}
		priorHigh := model.PeriodHigh(prior, period)
		priorLow := model.PeriodLow(prior, period)

		switch {
		case priorHigh > 0 && last.Close > priorHigh:
			pctBeyond := (last.Close - priorHigh) / priorHigh * 100
			sig := model.NewSignal(event.Market, event.Symbol, model.DirectionLong, clamp01(pctBeyond/5), 0.75, model.SignalTypeTechnical, "price/breakout_high")
			sig.Metadata["period"] = period
			sig.Metadata["prior_extreme"] = priorHigh
			sig.Metadata["pct_beyond"] = pctBeyond
			signals = append(signals, sig)
		case priorLow > 0 && last.Close < priorLow:
			pctBeyond := (priorLow - last.Close) / priorLow * 100
			sig := model.NewSignal(event.Market, event.Symbol, model.DirectionShort, clamp01(pctBeyond/5), 0.75, model.SignalTypeTechnical, "price/breakout_low")
			sig.Metadata["period"] = period
			sig.Metadata["prior_extreme"] = priorLow
			sig.Metadata["pct_beyond"] = pctBeyond
			signals = append(signals, sig)
		case priorHigh > 0 && last.Close >= priorHigh*nearHighRatio:
			// 逼近而未突破前高
			sig := model.NewSignal(event.Market, event.Symbol, model.DirectionLong, 0.3, 0.6, model.SignalTypeTechnical, "price/near_high")
			sig.Metadata["period"] = period
			sig.Metadata["period_high"] = priorHigh
			sig.Metadata["proximity"] = last.Close / priorHigh
			signals = append(signals, sig)
		}
	}
	return signals
}

// checkGap 检测开盘跳空缺口并标记是否日内回补
func (d *PriceDetector) checkGap(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	last := bars[len(bars)-1]
	prev := bars[len(bars)-2]
	if prev.Close <= 0 || last.Open <= 0 {
		return nil
	}

	gapPct := (last.Open - prev.Close) / prev.Close * 100
	if math.Abs(gapPct) < minorGapPct {
		return nil
	}

	var source string
	var direction model.Direction
	var filled bool
	if gapPct > 0 {
		direction = model.DirectionLong
		source = "price/gap_up"
		if gapPct >= largeGapPct {
			source = "price/large_gap_up"
		}
		filled = last.Low <= prev.Close
	} else {
		direction = model.DirectionShort
		source = "price/gap_down"
		if -gapPct >= largeGapPct {
			source = "price/large_gap_down"
		}
		filled = last.High >= prev.Close
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(math.Abs(gapPct)/6), 0.7, model.SignalTypeTechnical, source)
	sig.Metadata["gap_percent"] = gapPct
	sig.Metadata["gap_filled"] = filled
	sig.Metadata["prev_close"] = prev.Close
	sig.Metadata["open"] = last.Open
	return []model.UnifiedSignal{sig}
}

// checkStreak 检测3日以上的连续同向收盘
func (d *PriceDetector) checkStreak(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	if len(bars) < minStreakDays+1 {
		return nil
	}

	up, down := 0, 0
	for i := len(bars) - 1; i > 0; i-- {
		if bars[i].Close > bars[i-1].Close {
			if down > 0 {
				break
			}
			up++
		} else if bars[i].Close < bars[i-1].Close {
			if up > 0 {
				break
			}
			down++
		} else {
			break
		}
	}

	var direction model.Direction
	var days int
	switch {
	case up >= minStreakDays:
		direction, days = model.DirectionLong, up
	case down >= minStreakDays:
		direction, days = model.DirectionShort, down
	default:
		return nil
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(float64(days)/6), 0.6, model.SignalTypeTechnical, "price/streak")
	sig.Metadata["streak_days"] = days
	return []model.UnifiedSignal{sig}
}

// checkAcceleration 检测短窗变化率超过前窗1.5倍的同向加速
func (d *PriceDetector) checkAcceleration(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	if len(bars) < accelWindow*2+1 {
		return nil
	}

	n := len(bars)
	cNow := bars[n-1].Close
	cMid := bars[n-1-accelWindow].Close
	cOld := bars[n-1-accelWindow*2].Close
	if cMid <= 0 || cOld <= 0 {
		return nil
	}

	recent := (cNow - cMid) / cMid
	earlier := (cMid - cOld) / cOld
	if earlier == 0 || recent*earlier <= 0 {
		return nil
	}
	if math.Abs(recent) < math.Abs(earlier)*accelRatio {
		return nil
	}

	direction := model.DirectionLong
	if recent < 0 {
		direction = model.DirectionShort
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(math.Abs(recent)*10), 0.6, model.SignalTypeTechnical, "price/acceleration")
	sig.Metadata["recent_roc"] = recent
	sig.Metadata["earlier_roc"] = earlier
	sig.Metadata["window"] = accelWindow
	return []model.UnifiedSignal{sig}
}
