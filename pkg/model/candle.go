package model

import "time"

// Bar 单根K线（日线或分钟线），序列约定旧到新排列
type Bar struct {
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Amount    float64   `json:"amount,omitempty"` // 成交额
	Timestamp time.Time `json:"timestamp"`
}

// Closes 提取收盘价序列
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}

// Volumes 提取成交量序列
func Volumes(bars []Bar) []float64 {
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		volumes[i] = b.Volume
	}
	return volumes
}

// PeriodHigh 返回最近 n 根K线内的最高价，数据不足时取全部
func PeriodHigh(bars []Bar, n int) float64 {
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	high := 0.0
	for i := start; i < len(bars); i++ {
		if bars[i].High > high {
			high = bars[i].High
		}
	}
	return high
}

// PeriodLow 返回最近 n 根K线内的最低价，数据不足时取全部
func PeriodLow(bars []Bar, n int) float64 {
	if len(bars) == 0 {
		return 0
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	low := bars[start].Low
	for i := start; i < len(bars); i++ {
		if bars[i].Low < low {
			low = bars[i].Low
		}
	}
	return low
}
