// internal/service/lottery/domain/errors.go
package domain

import "errors"

// 抽奖决策管线的错误分类
// 配置类错误直接中断抽奖；资源类错误按业务规则降级或转为欠账
var (
	// ErrInvalidConfiguration 活动或奖池配置缺失/非法，抽奖失败且不产生任何扣费
	ErrInvalidConfiguration = errors.New("lottery: invalid configuration")

	// ErrCampaignNotFound 活动不存在
	ErrCampaignNotFound = errors.New("lottery: campaign not found")

	// ErrCampaignNotActive 活动不在有效期内或已停用
	ErrCampaignNotActive = errors.New("lottery: campaign not active")

	// ErrDrawLimitExceeded 用户超出活动的抽奖次数限制
	ErrDrawLimitExceeded = errors.New("lottery: draw limit exceeded")

	// ErrInsufficientResource 降级走完全部档位仍无可用奖品
	// 兜底档容量视为无限，正常情况下不应出现；出现即视为配置缺陷
	ErrInsufficientResource = errors.New("lottery: no tier reachable after downgrade")

	// ErrDebtCeilingExceeded 记账会突破欠账上限，单次抽奖被拒绝或继续降级
	ErrDebtCeilingExceeded = errors.New("lottery: debt ceiling exceeded")

	// ErrConcurrencyConflict 行锁/版本冲突，由调用方在有限次数内透明重试
	ErrConcurrencyConflict = errors.New("lottery: concurrency conflict")

	// ErrLedgerUnavailable 资产账本扣费/入账失败，整个抽奖事务必须回滚
	ErrLedgerUnavailable = errors.New("lottery: ledger operation failed")

	// ErrDebtAlreadyWrittenOff 对已核销完毕的欠账再次核销
	ErrDebtAlreadyWrittenOff = errors.New("lottery: debt already written off")

	// ErrInvalidClearAmount 核销金额非法（非正数或超出未清余额）
	ErrInvalidClearAmount = errors.New("lottery: invalid clear amount")

	// ErrPresetConsumed 预设已被消费，不能重复生效
	ErrPresetConsumed = errors.New("lottery: preset already consumed")

	// ErrDuplicateDraw 幂等键已有落库流水，本次执行整体回滚并回放历史结果
	ErrDuplicateDraw = errors.New("lottery: duplicate idempotency key")

	// ErrDebtNotFound 欠账记录不存在
	ErrDebtNotFound = errors.New("lottery: debt not found")
)
