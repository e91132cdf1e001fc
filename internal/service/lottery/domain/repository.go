// internal/service/lottery/domain/repository.go
package domain

import (
	"context"
	"time"
)

// CampaignRepository 定义活动配置的只读仓储接口
// 活动与奖品由管理后台维护，决策管线只读取
type CampaignRepository interface {
	FindByID(ctx context.Context, id int64) (*Campaign, error)

	// AddSpentBudget 条件累加已消耗预算
	// strict=true 时仅在剩余预算足够的前提下扣减，返回是否扣减成功（线性化保证）
	// strict=false 时无条件累加（欠账发奖路径）
	AddSpentBudget(ctx context.Context, id int64, amount int64, strict bool) (bool, error)
}

// PrizeRepository 定义奖品行的仓储接口
type PrizeRepository interface {
	FindByCampaign(ctx context.Context, campaignID int64) ([]*Prize, error)
	FindByID(ctx context.Context, id int64) (*Prize, error)

	// DecrementStock 条件扣减一件库存，仅在 stock > 0 时生效
	// 返回是否扣减成功；两次并发发奖绝不能同时扣到最后一件库存
	DecrementStock(ctx context.Context, prizeID int64) (bool, error)

	// AdjustStock 按差量调整库存（回补、核销扣留用），调整后不得为负
	AdjustStock(ctx context.Context, prizeID int64, delta int64) error
}

// ExperienceRepository 定义用户体验状态仓储
// 同一 (user, campaign) 的并发抽奖必须在该行上串行化
type ExperienceRepository interface {
	// GetForUpdate 加行锁读取，不存在时惰性创建初始行
	GetForUpdate(ctx context.Context, userID, campaignID int64) (*UserExperienceState, error)
	Save(ctx context.Context, state *UserExperienceState) error
}

// PresetRepository 定义预设/强制干预的读取与消费接口
type PresetRepository interface {
	FindUsablePreset(ctx context.Context, campaignID, userID int64, now time.Time) (*DrawPreset, error)
	FindUsableOverride(ctx context.Context, campaignID, userID int64, now time.Time) (*DrawOverride, error)
	MarkPresetConsumed(ctx context.Context, presetID int64) error
	MarkOverrideConsumed(ctx context.Context, overrideID int64) error
}

// DebtRepository 定义欠账台账仓储
type DebtRepository interface {
	CreateInventoryDebt(ctx context.Context, debt *InventoryDebt) error
	CreateBudgetDebt(ctx context.Context, debt *BudgetDebt) error

	FindInventoryDebt(ctx context.Context, id string) (*InventoryDebt, error)
	FindBudgetDebt(ctx context.Context, id string) (*BudgetDebt, error)
	SaveInventoryDebt(ctx context.Context, debt *InventoryDebt) error
	SaveBudgetDebt(ctx context.Context, debt *BudgetDebt) error

	// Outstanding* 返回活动当前未清欠账总量，记账前的上限预检使用
	OutstandingInventory(ctx context.Context, campaignID int64) (int64, error)
	OutstandingBudget(ctx context.Context, campaignID int64) (int64, error)

	// FindDebtLimit 取活动级上限，未配置时回退全局(campaignID=0)
	FindDebtLimit(ctx context.Context, campaignID int64) (*DebtLimit, error)

	// 只读聚合视图，运营侧展示用
	SummarizeByCampaign(ctx context.Context, campaignID int64) (*DebtSummary, error)
	SummarizeByPrize(ctx context.Context, campaignID int64) ([]*DebtSummary, error)
	SummarizeByCreator(ctx context.Context, campaignID int64) ([]*DebtSummary, error)
}

// DrawRecordRepository 定义抽奖流水仓储，幂等键在此落库
type DrawRecordRepository interface {
	// Create 落一条抽奖流水，幂等键冲突时返回 ErrDuplicateKey 语义的错误
	Create(ctx context.Context, record *DrawRecord) error
	FindByIdempotencyKey(ctx context.Context, key string) (*DrawRecord, error)
}

// RepoSet 是一次数据库事务内可用的全部仓储
type RepoSet struct {
	Campaigns   CampaignRepository
	Prizes      PrizeRepository
	Experiences ExperienceRepository
	Presets     PresetRepository
	Debts       DebtRepository
	Records     DrawRecordRepository
}

// UnitOfWork 把一次抽奖的全部落库动作圈进同一个数据库事务
// fn 返回错误时整个事务回滚，任何阶段的副作用都不允许部分提交
type UnitOfWork interface {
	Within(ctx context.Context, fn func(tx RepoSet) error) error
}

// DrawRecord 是单次抽奖的持久化流水，幂等键唯一
type DrawRecord struct {
	ID             string
	IdempotencyKey string
	UserID         int64
	CampaignID     int64
	PrizeID        int64
	SelectedTier   Tier
	DecisionSource DecisionKind
	ResultPayload  string // DrawResult 的 JSON 快照，重试请求直接回放
	CreatedAt      time.Time
}
