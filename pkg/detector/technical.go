package detector

import (
	"fmt"
	"math"

	"SignalRadar/pkg/indicator"
	"SignalRadar/pkg/model"
)

// 技术指标参数
const (
	rsiPeriod     = 14
	rsiOverbought = 70.0
	rsiOversold   = 30.0

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9

	volumeAvgPeriod     = 20
	volumeBreakoutRatio = 2.0
)

// 均线交叉组合（短周期，长周期）
var maCrossPairs = [][2]int{{5, 10}, {5, 20}, {10, 20}}

// TechnicalDetector 技术指标检测器：均线交叉、RSI、MACD 与放量突破。
// 消费 candle_series 事件，序列须为旧到新排列。
type TechnicalDetector struct{}

// NewTechnicalDetector 创建技术指标检测器
func NewTechnicalDetector() *TechnicalDetector {
	return &TechnicalDetector{}
}

// Name 检测器名称
func (d *TechnicalDetector) Name() string { return "technical" }

// Accepts 消费的事件类别
func (d *TechnicalDetector) Accepts() []model.EventType {
	return []model.EventType{model.EventTypeCandle}
}

// Detect 对一条K线序列执行全部技术检查
func (d *TechnicalDetector) Detect(event model.RawMarketEvent) []model.UnifiedSignal {
	bars := event.Bars()
	if len(bars) < 2 {
		return nil
	}

	var signals []model.UnifiedSignal
	signals = append(signals, runCheck(d.Name(), "ma_cross", func() []model.UnifiedSignal {
		return d.checkMACross(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "rsi", func() []model.UnifiedSignal {
		return d.checkRSI(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "macd", func() []model.UnifiedSignal {
		return d.checkMACD(event, bars)
	})...)
	signals = append(signals, runCheck(d.Name(), "volume_breakout", func() []model.UnifiedSignal {
		return d.checkVolumeBreakout(event, bars)
	})...)
	return signals
}

// checkMACross 检测末两根K线之间的均线金叉死叉，强度正比于均线离差
func (d *TechnicalDetector) checkMACross(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	closes := model.Closes(bars)
	var signals []model.UnifiedSignal

	for _, pair := range maCrossPairs {
		short, long := pair[0], pair[1]
		if len(closes) < long+1 {
			continue
		}

		shortNow, err1 := indicator.SMA(closes, short)
		longNow, err2 := indicator.SMA(closes, long)
		shortPrev, err3 := indicator.SMA(closes[:len(closes)-1], short)
		longPrev, err4 := indicator.SMA(closes[:len(closes)-1], long)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || longNow == 0 {
			continue
		}

		spreadPct := math.Abs(shortNow-longNow) / longNow * 100
		strength := clamp01(spreadPct / 2)

		var cross string
		var direction model.Direction
		switch {
		case shortPrev <= longPrev && shortNow > longNow:
			cross, direction = "golden_cross", model.DirectionLong
		case shortPrev >= longPrev && shortNow < longNow:
			cross, direction = "death_cross", model.DirectionShort
		default:
			continue
		}

		sig := model.NewSignal(event.Market, event.Symbol, direction, strength, 0.7, model.SignalTypeTechnical, "technical/ma_cross")
		sig.Metadata["cross"] = cross
		sig.Metadata["short_period"] = short
		sig.Metadata["long_period"] = long
		sig.Metadata["short_ma"] = shortNow
		sig.Metadata["long_ma"] = longNow
		sig.Metadata["reason"] = fmt.Sprintf("MA%d/%d %s", short, long, cross)
		signals = append(signals, sig)
	}
	return signals
}

// checkRSI 检测超买超卖，强度正比于偏离70/30的幅度
func (d *TechnicalDetector) checkRSI(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	closes := model.Closes(bars)
	if len(closes) < rsiPeriod+1 {
		return nil
	}

	rsi, err := indicator.RSI(closes, rsiPeriod)
	if err != nil {
		return nil
	}

	var direction model.Direction
	var state string
	var strength float64
	switch {
	case rsi > rsiOverbought:
		direction, state = model.DirectionShort, "overbought"
		strength = clamp01((rsi - rsiOverbought) / (100 - rsiOverbought))
	case rsi < rsiOversold:
		direction, state = model.DirectionLong, "oversold"
		strength = clamp01((rsiOversold - rsi) / rsiOversold)
	default:
		return nil
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, strength, 0.65, model.SignalTypeTechnical, "technical/rsi")
	sig.Metadata["rsi"] = rsi
	sig.Metadata["state"] = state
	sig.Metadata["period"] = rsiPeriod
	return []model.UnifiedSignal{sig}
}

// checkMACD 检测柱状值符号翻转（金叉死叉）
func (d *TechnicalDetector) checkMACD(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	closes := model.Closes(bars)
	result, err := indicator.MACD(closes, macdFast, macdSlow, macdSignal)
	if err != nil {
		return nil
	}

	lastClose := closes[len(closes)-1]
	if lastClose == 0 {
		return nil
	}

	var cross string
	var direction model.Direction
	switch {
	case result.PrevHist <= 0 && result.Histogram > 0:
		cross, direction = "golden_cross", model.DirectionLong
	case result.PrevHist >= 0 && result.Histogram < 0:
		cross, direction = "death_cross", model.DirectionShort
	default:
		return nil
	}

	strength := clamp01(math.Abs(result.Histogram) / lastClose * 200)
	sig := model.NewSignal(event.Market, event.Symbol, direction, strength, 0.7, model.SignalTypeTechnical, "technical/macd")
	sig.Metadata["cross"] = cross
	sig.Metadata["dif"] = result.DIF
	sig.Metadata["dea"] = result.DEA
	sig.Metadata["histogram"] = result.Histogram
	return []model.UnifiedSignal{sig}
}

// checkVolumeBreakout 检测当前成交量达到20根均量的2倍以上
func (d *TechnicalDetector) checkVolumeBreakout(event model.RawMarketEvent, bars []model.Bar) []model.UnifiedSignal {
	if len(bars) < volumeAvgPeriod+1 {
		return nil
	}

	last := bars[len(bars)-1]
	prior := bars[len(bars)-1-volumeAvgPeriod : len(bars)-1]
	sum := 0.0
	for _, b := range prior {
		sum += b.Volume
	}
	avg := sum / float64(volumeAvgPeriod)
	if avg <= 0 {
		return nil
	}

	ratio := last.Volume / avg
	if ratio < volumeBreakoutRatio {
		return nil
	}

	direction := model.DirectionLong
	if last.Close < last.Open {
		direction = model.DirectionShort
	}

	sig := model.NewSignal(event.Market, event.Symbol, direction, clamp01(ratio/4), 0.6, model.SignalTypeTechnical, "technical/volume_breakout")
	sig.Metadata["volume_ratio"] = ratio
	sig.Metadata["avg_volume"] = avg
	return []model.UnifiedSignal{sig}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
