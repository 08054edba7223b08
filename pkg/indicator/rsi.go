package indicator

import "errors"

// RSI 计算 Wilder 平滑的相对强弱指标。
// 至少需要 period+1 个收盘价，数据不足时返回中性值 50。
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("周期必须为正数")
	}
	if len(closes) < period+1 {
		return 50.0, nil
	}

	// 首 period 个涨跌的平均
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := closes[i] - closes[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// 其余点做 Wilder 平滑
	for i := period + 1; i < len(closes); i++ {
		change := closes[i] - closes[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100.0, nil
	}
	rs := avgGain / avgLoss
	return 100.0 - 100.0/(1.0+rs), nil
}
