package indicator

// MACDResult MACD 末两个点的柱状值，用于判断金叉死叉
type MACDResult struct {
	DIF       float64 // 快慢线差值（末点）
	DEA       float64 // 信号线（末点）
	Histogram float64 // 末点柱状值
	PrevHist  float64 // 前一点柱状值
}

// MACD 计算 MACD(fast, slow, signal) 并返回末两个柱状点。
// 序列须为旧到新排列，至少需要 slow+signal 个点。
func MACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if len(closes) < slow+signal {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA, err := EMASeries(closes, fast)
	if err != nil {
		return MACDResult{}, err
	}
	slowEMA, err := EMASeries(closes, slow)
	if err != nil {
		return MACDResult{}, err
	}

	dif := make([]float64, len(closes))
	for i := range closes {
		dif[i] = fastEMA[i] - slowEMA[i]
	}

	dea, err := EMASeries(dif, signal)
	if err != nil {
		return MACDResult{}, err
	}

	n := len(closes)
	return MACDResult{
		DIF:       dif[n-1],
		DEA:       dea[n-1],
		Histogram: dif[n-1] - dea[n-1],
		PrevHist:  dif[n-2] - dea[n-2],
	}, nil
}
