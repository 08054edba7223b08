package detector

import (
	"testing"
	"time"

	"SignalRadar/pkg/model"
)

func newsEvent(title, content string) model.RawMarketEvent {
	return model.NewEvent("news", model.EventTypeNews, model.MarketCNEquity, "", map[string]any{
		"title":   title,
		"content": content,
	})
}

var testRules = []KeywordRule{
	{Name: "监管", Keywords: []string{"立案调查", "退市"}, Priority: PriorityUrgent},
	{Name: "重组", Keywords: []string{"重大资产重组", "并购"}, Priority: PriorityHigh},
	{Name: "订单", Keywords: []string{"中标", "签订合同"}, Priority: PriorityNormal},
}

func TestKeywordSingleHit(t *testing.T) {
	d := NewKeywordDetector(testRules, nil)

	signals := d.Detect(newsEvent("某公司中标大额项目", ""))
	if len(signals) != 1 {
		t.Fatalf("期望1条信号, 实际 %d", len(signals))
	}
	sig := signals[0]
	if sig.Direction != model.DirectionLong {
		t.Fatalf("关键词信号应恒为 LONG, 实际 %s", sig.Direction)
	}
	if sig.Metadata["priority"] != "normal" {
		t.Fatalf("期望 normal 优先级, 实际 %v", sig.Metadata["priority"])
	}
	if sig.SignalType != model.SignalTypeSentiment {
		t.Fatalf("期望 sentiment 类别, 实际 %s", sig.SignalType)
	}
	if sig.ExpiresAt == nil {
		t.Fatal("关键词信号应带过期时间")
	}
}

func TestKeywordMultiHitMergesToHighestPriority(t *testing.T) {
	d := NewKeywordDetector(testRules, nil)

	signals := d.Detect(newsEvent("公司被立案调查，并购计划终止", "此前签订合同的项目仍在履行"))
	if len(signals) != 1 {
		t.Fatalf("多次命中应合并为1条信号, 实际 %d", len(signals))
	}
	sig := signals[0]
	if sig.Metadata["priority"] != "urgent" {
		t.Fatalf("合并后应取最高优先级 urgent, 实际 %v", sig.Metadata["priority"])
	}
	// 3次命中：基础0.8 + 2次额外命中加成
	if sig.Confidence <= 0.8 {
		t.Fatalf("多次命中应有置信度加成, 实际 %f", sig.Confidence)
	}
	if sig.Source != "keyword/urgent" {
		t.Fatalf("来源不符: %s", sig.Source)
	}
}

func TestKeywordWatchlistMatch(t *testing.T) {
	watch := []WatchItem{{Symbol: "600519", Names: []string{"贵州茅台", "茅台"}}}
	d := NewKeywordDetector(testRules, watch)

	signals := d.Detect(newsEvent("贵州茅台签订合同", ""))
	if len(signals) != 1 {
		t.Fatalf("期望1条信号, 实际 %d", len(signals))
	}
	sig := signals[0]
	if sig.Asset != "600519" {
		t.Fatalf("事件无代码时应使用关注标的代码, 实际 %s", sig.Asset)
	}
	if hits, _ := sig.Metadata["watch_hits"].(int); hits != 1 {
		t.Fatalf("关注命中数期望1, 实际 %v", sig.Metadata["watch_hits"])
	}
}

func TestKeywordNoHit(t *testing.T) {
	d := NewKeywordDetector(testRules, nil)
	if signals := d.Detect(newsEvent("今日天气晴", "")); len(signals) != 0 {
		t.Fatalf("无命中不应产生信号: %v", signals)
	}
}

func TestKeywordHotSwapRules(t *testing.T) {
	d := NewKeywordDetector(testRules, nil)

	event := newsEvent("公告：股份回购", "")
	if len(d.Detect(event)) != 0 {
		t.Fatal("更新前不应命中")
	}

	d.UpdateRules([]KeywordRule{{Name: "回购", Keywords: []string{"回购"}, Priority: PriorityHigh}})
	signals := d.Detect(event)
	if len(signals) != 1 || signals[0].Metadata["priority"] != "high" {
		t.Fatalf("热更新后应命中 high 规则: %v", signals)
	}
}

func TestKeywordExpiry(t *testing.T) {
	d := NewKeywordDetector(testRules, nil)

	signals := d.Detect(newsEvent("某公司中标", ""))
	if len(signals) != 1 {
		t.Fatalf("期望1条信号, 实际 %d", len(signals))
	}
	sig := signals[0]
	if sig.IsExpired(sig.Timestamp.Add(time.Minute)) {
		t.Fatal("1分钟后不应过期")
	}
	if !sig.IsExpired(sig.Timestamp.Add(16 * time.Minute)) {
		t.Fatal("16分钟后应已过期")
	}
}
