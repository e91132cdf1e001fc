// internal/service/lottery/domain/port/ledger.go
package port

import (
	"context"
	"errors"
)

// 账本侧可预期的业务错误
var (
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")
	ErrLedgerTimeout       = errors.New("ledger: request timeout")
)

// AssetLedger 是外部资产/积分账本的出站端口
// 抽奖消耗与积分类奖品发放都经由它完成；扣费必须携带幂等键
type AssetLedger interface {
	// Debit 扣减用户积分，同一幂等键的重复扣费不会二次生效
	Debit(ctx context.Context, userID int64, amount int64, idempotencyKey string) (newBalance int64, err error)

	// Credit 给用户入账（发放积分类奖品、失败补偿退款）
	Credit(ctx context.Context, userID int64, amount int64, reason string) error
}
