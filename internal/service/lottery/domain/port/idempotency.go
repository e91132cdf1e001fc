// internal/service/lottery/domain/port/idempotency.go
package port

import "context"

// IdempotencyStore 是幂等结果缓存的出站端口
// 数据库流水表是幂等性的最终裁决者，该缓存只负责热路径上的快速短路
type IdempotencyStore interface {
	// Get 查询幂等键对应的历史结果，未命中返回 ("", false, nil)
	Get(ctx context.Context, key string) (payload string, ok bool, err error)

	// PutNX 以 compare-and-swap 语义写入结果
	// 键已存在时不覆盖并返回 false
	PutNX(ctx context.Context, key string, payload string) (bool, error)
}
