package detector

import (
	"log"

	"SignalRadar/pkg/model"
)

// Detector 信号检测器契约。
// Detect 必须是纯函数：不持有跨调用的可变共享状态，绝不向上抛出错误；
// 单个子检查的内部故障只导致该子检查不产出信号。
// Accepts 静态声明消费的事件类别，供编排层预计算路由表。
type Detector interface {
	Name() string
	Accepts() []model.EventType
	Detect(event model.RawMarketEvent) []model.UnifiedSignal
}

// runCheck 执行单个子检查并吸收内部异常。
// 子检查崩溃时记录日志并返回空，绝不中断整次 Detect。
func runCheck(detector, check string, fn func() []model.UnifiedSignal) (signals []model.UnifiedSignal) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("检测器 %s 子检查 %s 内部异常: %v", detector, check, r)
			signals = nil
		}
	}()
	return fn()
}
