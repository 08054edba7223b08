package indicator

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}

	got, err := SMA(values, 3)
	if err != nil {
		t.Fatalf("SMA 失败: %v", err)
	}
	if !almostEqual(got, 4) {
		t.Fatalf("SMA(3) 期望4, 实际 %f", got)
	}

	if _, err := SMA(values, 10); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("数据不足期望 ErrInsufficientData, 实际 %v", err)
	}
	if _, err := SMA(values, 0); err == nil {
		t.Fatal("非法周期应返回错误")
	}
}

func TestSMASeries(t *testing.T) {
	values := []float64{2, 4, 6, 8, 10}

	series, err := SMASeries(values, 2)
	if err != nil {
		t.Fatalf("SMASeries 失败: %v", err)
	}
	want := []float64{3, 5, 7, 9}
	if len(series) != len(want) {
		t.Fatalf("序列长度期望 %d, 实际 %d", len(want), len(series))
	}
	for i := range want {
		if !almostEqual(series[i], want[i]) {
			t.Fatalf("第%d点期望 %f, 实际 %f", i, want[i], series[i])
		}
	}
}

func TestEMASeriesConstantInput(t *testing.T) {
	values := make([]float64, 30)
	for i := range values {
		values[i] = 10
	}

	series, err := EMASeries(values, 12)
	if err != nil {
		t.Fatalf("EMASeries 失败: %v", err)
	}
	if !almostEqual(series[len(series)-1], 10) {
		t.Fatalf("常数序列的EMA应等于常数, 实际 %f", series[len(series)-1])
	}
}

func TestRSINeutralWhenShort(t *testing.T) {
	got, err := RSI([]float64{1, 2, 3}, 14)
	if err != nil {
		t.Fatalf("RSI 失败: %v", err)
	}
	if got != 50.0 {
		t.Fatalf("数据不足时期望中性值50, 实际 %f", got)
	}
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	got, err := RSI(closes, 14)
	if err != nil {
		t.Fatalf("RSI 失败: %v", err)
	}
	if got != 100.0 {
		t.Fatalf("单边上涨期望100, 实际 %f", got)
	}
}

func TestRSIRange(t *testing.T) {
	closes := []float64{44.34, 44.09, 44.15, 43.61, 44.33, 44.83, 45.10, 45.42,
		45.84, 46.08, 45.89, 46.03, 45.61, 46.28, 46.28, 46.00, 46.03, 46.41, 46.22, 45.64}
	got, err := RSI(closes, 14)
	if err != nil {
		t.Fatalf("RSI 失败: %v", err)
	}
	if got <= 0 || got >= 100 {
		t.Fatalf("RSI 应落在 (0,100), 实际 %f", got)
	}
	// 该段数据整体偏多
	if got < 50 {
		t.Fatalf("上涨序列的RSI应大于50, 实际 %f", got)
	}
}

func TestMACDHistogramFlipsOnReversal(t *testing.T) {
	// 先跌后涨，末端柱状值应由负翻正方向变化
	closes := make([]float64, 0, 80)
	price := 100.0
	for i := 0; i < 40; i++ {
		price -= 0.5
		closes = append(closes, price)
	}
	for i := 0; i < 40; i++ {
		price += 1.2
		closes = append(closes, price)
	}

	result, err := MACD(closes, 12, 26, 9)
	if err != nil {
		t.Fatalf("MACD 失败: %v", err)
	}
	if result.Histogram <= 0 {
		t.Fatalf("持续反弹末端柱状值应为正, 实际 %f", result.Histogram)
	}
}

func TestMACDInsufficientData(t *testing.T) {
	if _, err := MACD([]float64{1, 2, 3}, 12, 26, 9); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("数据不足期望 ErrInsufficientData, 实际 %v", err)
	}
}
