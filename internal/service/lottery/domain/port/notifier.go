// internal/service/lottery/domain/port/notifier.go
package port

import "context"

// DrawNotifier 是中奖结果事件的出站端口
// 通知/大屏等下游消费该事件，投递失败不回滚已提交的抽奖事务
type DrawNotifier interface {
	PublishDrawResult(ctx context.Context, key string, payload []byte) error
}
