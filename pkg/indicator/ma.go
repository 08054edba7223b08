package indicator

import "errors"

// ErrInsufficientData 序列长度不足以完成计算
var ErrInsufficientData = errors.New("数据长度不足")

// SMA 计算序列末尾 period 个点的简单移动平均
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("周期必须为正数")
	}
	if len(values) < period {
		return 0, ErrInsufficientData
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period), nil
}

// SMASeries 计算整条简单移动平均序列，前 period-1 个点无值（返回序列与原序列尾部对齐）。
// 返回序列长度为 len(values)-period+1。
func SMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("周期必须为正数")
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}
	out := make([]float64, 0, len(values)-period+1)
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out = append(out, sum/float64(period))
		}
	}
	return out, nil
}

// EMASeries 计算整条指数移动平均序列，以首 period 个点的SMA作为种子。
// 返回序列与原序列等长，前 period-1 个点沿用种子前的简单累计。
func EMASeries(values []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, errors.New("周期必须为正数")
	}
	if len(values) < period {
		return nil, ErrInsufficientData
	}
	out := make([]float64, len(values))
	k := 2.0 / float64(period+1)

	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
		out[i] = seed / float64(i+1)
	}
	out[period-1] = seed / float64(period)

	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out, nil
}
