package adapter

import (
	"context"

	"github.com/segmentio/kafka-go"

	"lucky/internal/pkg/mq"
)

// NotifierKafkaAdapter 是 port.DrawNotifier 接口的 Kafka 实现
// 以幂等键为消息 key，同一用户的结果事件保序投递
type NotifierKafkaAdapter struct {
	writer *kafka.Writer
}

// NewNotifierKafkaAdapter 创建一个新的结果事件生产者适配器
func NewNotifierKafkaAdapter(writer *kafka.Writer) *NotifierKafkaAdapter {
	return &NotifierKafkaAdapter{writer: writer}
}

// PublishDrawResult 发布中奖结果事件
// 投递失败由调用方记日志，不回滚已提交的抽奖事务
func (a *NotifierKafkaAdapter) PublishDrawResult(ctx context.Context, key string, payload []byte) error {
	return mq.ProduceMessage(ctx, a.writer, []byte(key), payload)
}
