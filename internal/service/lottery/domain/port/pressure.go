// internal/service/lottery/domain/port/pressure.go
package port

import "context"

// PressureGauge 是系统压力探测的出站端口
// P 维分档依赖滑动窗口内的活动抽奖量；探测失败时调用方退回基础权重
type PressureGauge interface {
	// RecordDraw 在压力窗口内记一次抽奖
	RecordDraw(ctx context.Context, campaignID int64) error

	// WindowDraws 返回当前窗口内的抽奖量
	WindowDraws(ctx context.Context, campaignID int64) (int64, error)
}
