package detector

import (
	"testing"

	"SignalRadar/pkg/model"
)

func TestLargeGapUpNotFilled(t *testing.T) {
	d := NewPriceDetector()

	// 昨收10.00，今开10.35（3.5%跳空），日内最低未回补
	bars := flatBars(2, 10.0)
	last := &bars[1]
	last.Open = 10.35
	last.High = 10.60
	last.Low = 10.20
	last.Close = 10.50

	var gap *model.UnifiedSignal
	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/large_gap_up" {
			s := sig
			gap = &s
		}
	}
	if gap == nil {
		t.Fatal("3.5%跳空应产生 large_gap_up 信号")
	}
	if gap.Direction != model.DirectionLong {
		t.Fatalf("向上跳空应为 LONG, 实际 %s", gap.Direction)
	}
	if filled, _ := gap.Metadata["gap_filled"].(bool); filled {
		t.Fatal("最低价未触及昨收，缺口不应标记为已回补")
	}
}

func TestGapUpFilledIntraday(t *testing.T) {
	d := NewPriceDetector()

	bars := flatBars(2, 10.0)
	last := &bars[1]
	last.Open = 10.35
	last.High = 10.40
	last.Low = 9.95 // 日内回补缺口
	last.Close = 10.10

	found := false
	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/large_gap_up" {
			found = true
			if filled, _ := sig.Metadata["gap_filled"].(bool); !filled {
				t.Fatal("最低价触及昨收，缺口应标记为已回补")
			}
		}
	}
	if !found {
		t.Fatal("期望 large_gap_up 信号")
	}
}

func TestMinorGapIgnored(t *testing.T) {
	d := NewPriceDetector()

	bars := flatBars(2, 10.0)
	bars[1].Open = 10.05 // 0.5%，低于起报线

	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/gap_up" || sig.Source == "price/large_gap_up" {
			t.Fatalf("0.5%%跳空不应产生缺口信号: %s", sig.Source)
		}
	}
}

func TestBreakoutHigh(t *testing.T) {
	d := NewPriceDetector()

	// 前21根最高10.5，末根收于11.0突破20日新高
	bars := flatBars(22, 10.0)
	for i := range bars[:21] {
		bars[i].High = 10.5
	}
	last := &bars[21]
	last.Open = 10.4
	last.High = 11.1
	last.Close = 11.0

	found := false
	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/breakout_high" {
			found = true
			if sig.Direction != model.DirectionLong {
				t.Fatalf("新高突破应为 LONG, 实际 %s", sig.Direction)
			}
		}
	}
	if !found {
		t.Fatal("收盘创20日新高应产生突破信号")
	}
}

func TestStreakLong(t *testing.T) {
	d := NewPriceDetector()

	bars := flatBars(10, 10.0)
	price := 10.0
	for i := 6; i < 10; i++ {
		price += 0.1
		bars[i].Close = price
		bars[i].High = price + 0.05
	}

	found := false
	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/streak" {
			found = true
			if sig.Direction != model.DirectionLong {
				t.Fatalf("连涨应为 LONG, 实际 %s", sig.Direction)
			}
			if days, _ := sig.Metadata["streak_days"].(int); days != 4 {
				t.Fatalf("连涨天数期望4, 实际 %v", sig.Metadata["streak_days"])
			}
		}
	}
	if !found {
		t.Fatal("4日连涨应产生 streak 信号")
	}
}

func TestAccelerationLong(t *testing.T) {
	d := NewPriceDetector()

	// 前窗缓涨、近窗加速
	closes := []float64{10.0, 10.02, 10.04, 10.06, 10.2, 10.4, 10.6}
	bars := flatBars(len(closes), 10.0)
	for i, c := range closes {
		bars[i].Close = c
		bars[i].High = c + 0.05
	}

	found := false
	for _, sig := range d.Detect(candleEvent(bars)) {
		if sig.Source == "price/acceleration" {
			found = true
			if sig.Direction != model.DirectionLong {
				t.Fatalf("加速上涨应为 LONG, 实际 %s", sig.Direction)
			}
		}
	}
	if !found {
		t.Fatal("近窗加速应产生 acceleration 信号")
	}
}
