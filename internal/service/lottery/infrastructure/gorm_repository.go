package infrastructure

import (
	"context"
	"errors"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lucky/internal/service/lottery/domain"
)

const (
	mysqlErrDuplicateEntry = 1062
	mysqlErrDeadlock       = 1213
	mysqlErrLockWaitTime   = 1205
)

// translateError 把驱动层错误翻译为领域错误
// 唯一键冲突与锁冲突在应用层各有明确的处理路径
func translateError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysqldrv.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case mysqlErrDuplicateEntry:
			return domain.ErrDuplicateDraw
		case mysqlErrDeadlock, mysqlErrLockWaitTime:
			return domain.ErrConcurrencyConflict
		}
	}
	return err
}

// GormCampaignRepository 是 CampaignRepository 的 GORM 实现
type GormCampaignRepository struct {
	db *gorm.DB
}

// NewGormCampaignRepository 创建一个新的 GORM 仓储实例
func NewGormCampaignRepository(db *gorm.DB) *GormCampaignRepository {
	return &GormCampaignRepository{db: db}
}

func (r *GormCampaignRepository) FindByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	var model CampaignModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCampaignNotFound
		}
		return nil, translateError(err)
	}
	return ToDomainCampaign(&model)
}

// AddSpentBudget 条件累加已消耗预算
// strict 模式用一条条件 UPDATE 实现线性化的预算扣减，
// RowsAffected=0 意味着剩余预算不足，调用方转入欠账或降级路径
func (r *GormCampaignRepository) AddSpentBudget(ctx context.Context, id int64, amount int64, strict bool) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&CampaignModel{}).Where("id = ?", id)
	if strict && amount > 0 {
		tx = tx.Where("total_budget - spent_budget >= ?", amount)
	}
	result := tx.Update("spent_budget", gorm.Expr("spent_budget + ?", amount))
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GormPrizeRepository 是 PrizeRepository 的 GORM 实现
type GormPrizeRepository struct {
	db *gorm.DB
}

// NewGormPrizeRepository 创建一个新的 GORM 仓储实例
func NewGormPrizeRepository(db *gorm.DB) *GormPrizeRepository {
	return &GormPrizeRepository{db: db}
}

func (r *GormPrizeRepository) FindByCampaign(ctx context.Context, campaignID int64) ([]*domain.Prize, error) {
	var models []PrizeModel
	err := r.db.WithContext(ctx).Where("campaign_id = ?", campaignID).Order("id").Find(&models).Error
	if err != nil {
		return nil, translateError(err)
	}
	prizes := make([]*domain.Prize, 0, len(models))
	for i := range models {
		prizes = append(prizes, ToDomainPrize(&models[i]))
	}
	return prizes, nil
}

func (r *GormPrizeRepository) FindByID(ctx context.Context, id int64) (*domain.Prize, error) {
	var model PrizeModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrInsufficientResource
		}
		return nil, translateError(err)
	}
	return ToDomainPrize(&model), nil
}

// DecrementStock 条件扣减一件库存
// "stock > 0" 谓词保证并发扣减绝不把库存打穿成负数
func (r *GormPrizeRepository) DecrementStock(ctx context.Context, prizeID int64) (bool, error) {
	result := r.db.WithContext(ctx).Model(&PrizeModel{}).
		Where("id = ? AND unlimited = ? AND stock > 0", prizeID, false).
		Update("stock", gorm.Expr("stock - 1"))
	if result.Error != nil {
		return false, translateError(result.Error)
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	// 无限库存奖品不扣减，视为永远成功
	var model PrizeModel
	if err := r.db.WithContext(ctx).Select("unlimited").First(&model, "id = ?", prizeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, translateError(err)
	}
	return model.Unlimited, nil
}

// AdjustStock 按差量调整库存，结果不得为负
func (r *GormPrizeRepository) AdjustStock(ctx context.Context, prizeID int64, delta int64) error {
	tx := r.db.WithContext(ctx).Model(&PrizeModel{}).Where("id = ?", prizeID)
	if delta < 0 {
		tx = tx.Where("stock >= ?", -delta)
	}
	result := tx.Update("stock", gorm.Expr("stock + ?", delta))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrInsufficientResource
	}
	return nil
}

// GormExperienceRepository 是 ExperienceRepository 的 GORM 实现
type GormExperienceRepository struct {
	db *gorm.DB
}

// NewGormExperienceRepository 创建一个新的 GORM 仓储实例
func NewGormExperienceRepository(db *gorm.DB) *GormExperienceRepository {
	return &GormExperienceRepository{db: db}
}

// GetForUpdate 以 FOR UPDATE 行锁读取体验状态
// 同一 (user, campaign) 的并发抽奖在这一行上排队，后到的事务串行看到前序结果
// 首抽时惰性插入初始行；并发首抽撞唯一键时重读拿锁
func (r *GormExperienceRepository) GetForUpdate(ctx context.Context, userID, campaignID int64) (*domain.UserExperienceState, error) {
	var model ExperienceModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND campaign_id = ?", userID, campaignID).
		First(&model).Error
	if err == nil {
		return ToDomainExperience(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, translateError(err)
	}

	model = ExperienceModel{UserID: userID, CampaignID: campaignID, LastDrawDate: time.Unix(0, 0)}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if translated := translateError(err); !errors.Is(translated, domain.ErrDuplicateDraw) {
			return nil, translated
		}
		// 并发首抽，另一个事务先插入了，重读加锁
		if err := r.db.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ? AND campaign_id = ?", userID, campaignID).
			First(&model).Error; err != nil {
			return nil, translateError(err)
		}
	}
	return ToDomainExperience(&model), nil
}

// Save 以乐观锁写回体验状态，版本号不匹配说明行锁语义被破坏，按并发冲突上抛
func (r *GormExperienceRepository) Save(ctx context.Context, state *domain.UserExperienceState) error {
	result := r.db.WithContext(ctx).Model(&ExperienceModel{}).
		Where("user_id = ? AND campaign_id = ? AND version = ?", state.UserID, state.CampaignID, state.Version).
		Updates(map[string]interface{}{
			"total_draw_count":    state.TotalDrawCount,
			"empty_streak":        state.EmptyStreak,
			"last_high_tier_draw": state.LastHighTierDraw,
			"guarantee_hits":      state.GuaranteeHits,
			"today_draw_count":    state.TodayDrawCount,
			"last_draw_date":      state.LastDrawDate,
			"version":             state.Version + 1,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrConcurrencyConflict
	}
	state.Version++
	return nil
}

// GormPresetRepository 是 PresetRepository 的 GORM 实现
type GormPresetRepository struct {
	db *gorm.DB
}

// NewGormPresetRepository 创建一个新的 GORM 仓储实例
func NewGormPresetRepository(db *gorm.DB) *GormPresetRepository {
	return &GormPresetRepository{db: db}
}

func (r *GormPresetRepository) FindUsablePreset(ctx context.Context, campaignID, userID int64, now time.Time) (*domain.DrawPreset, error) {
	var model PresetModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ? AND consumed = ? AND expire_at > ?", campaignID, userID, false, now).
		Order("id").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return ToDomainPreset(&model), nil
}

func (r *GormPresetRepository) FindUsableOverride(ctx context.Context, campaignID, userID int64, now time.Time) (*domain.DrawOverride, error) {
	var model OverrideModel
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND user_id = ? AND consumed = ? AND expire_at > ?", campaignID, userID, false, now).
		Order("id").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return ToDomainOverride(&model), nil
}

// MarkPresetConsumed 条件更新实现一次性消费
// 已被并发消费时返回 ErrPresetConsumed，整个抽奖事务回滚重试
func (r *GormPresetRepository) MarkPresetConsumed(ctx context.Context, presetID int64) error {
	result := r.db.WithContext(ctx).Model(&PresetModel{}).
		Where("id = ? AND consumed = ?", presetID, false).
		Update("consumed", true)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPresetConsumed
	}
	return nil
}

func (r *GormPresetRepository) MarkOverrideConsumed(ctx context.Context, overrideID int64) error {
	result := r.db.WithContext(ctx).Model(&OverrideModel{}).
		Where("id = ? AND consumed = ?", overrideID, false).
		Update("consumed", true)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrPresetConsumed
	}
	return nil
}

// GormDebtRepository 是 DebtRepository 的 GORM 实现
type GormDebtRepository struct {
	db *gorm.DB
}

// NewGormDebtRepository 创建一个新的 GORM 仓储实例
func NewGormDebtRepository(db *gorm.DB) *GormDebtRepository {
	return &GormDebtRepository{db: db}
}

func (r *GormDebtRepository) CreateInventoryDebt(ctx context.Context, debt *domain.InventoryDebt) error {
	return translateError(r.db.WithContext(ctx).Create(FromDomainInventoryDebt(debt)).Error)
}

func (r *GormDebtRepository) CreateBudgetDebt(ctx context.Context, debt *domain.BudgetDebt) error {
	return translateError(r.db.WithContext(ctx).Create(FromDomainBudgetDebt(debt)).Error)
}

// FindInventoryDebt 加行锁读取，核销路径在欠账行上串行化
func (r *GormDebtRepository) FindInventoryDebt(ctx context.Context, id string) (*domain.InventoryDebt, error) {
	var model InventoryDebtModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDebtNotFound
		}
		return nil, translateError(err)
	}
	return ToDomainInventoryDebt(&model), nil
}

func (r *GormDebtRepository) FindBudgetDebt(ctx context.Context, id string) (*domain.BudgetDebt, error) {
	var model BudgetDebtModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&model, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrDebtNotFound
		}
		return nil, translateError(err)
	}
	return ToDomainBudgetDebt(&model), nil
}

func (r *GormDebtRepository) SaveInventoryDebt(ctx context.Context, debt *domain.InventoryDebt) error {
	return translateError(r.db.WithContext(ctx).Model(&InventoryDebtModel{}).
		Where("id = ?", debt.ID).
		Updates(map[string]interface{}{
			"cleared_quantity": debt.ClearedQuantity,
			"status":           string(debt.Status),
		}).Error)
}

func (r *GormDebtRepository) SaveBudgetDebt(ctx context.Context, debt *domain.BudgetDebt) error {
	return translateError(r.db.WithContext(ctx).Model(&BudgetDebtModel{}).
		Where("id = ?", debt.ID).
		Updates(map[string]interface{}{
			"cleared_amount": debt.ClearedAmount,
			"status":         string(debt.Status),
		}).Error)
}

func (r *GormDebtRepository) OutstandingInventory(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&InventoryDebtModel{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(domain.DebtStatusPending)).
		Select("COALESCE(SUM(debt_quantity - cleared_quantity), 0)").
		Scan(&total).Error
	return total, translateError(err)
}

func (r *GormDebtRepository) OutstandingBudget(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&BudgetDebtModel{}).
		Where("campaign_id = ? AND status = ?", campaignID, string(domain.DebtStatusPending)).
		Select("COALESCE(SUM(debt_amount - cleared_amount), 0)").
		Scan(&total).Error
	return total, translateError(err)
}

// FindDebtLimit 取活动级上限，未配置时回退全局兜底行(campaign_id=0)
func (r *GormDebtRepository) FindDebtLimit(ctx context.Context, campaignID int64) (*domain.DebtLimit, error) {
	var model DebtLimitModel
	err := r.db.WithContext(ctx).First(&model, "campaign_id = ?", campaignID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && campaignID != 0 {
		err = r.db.WithContext(ctx).First(&model, "campaign_id = ?", int64(0)).Error
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return &domain.DebtLimit{
		CampaignID:         model.CampaignID,
		InventoryDebtLimit: model.InventoryDebtLimit,
		BudgetDebtLimit:    model.BudgetDebtLimit,
	}, nil
}

// debtSummaryRow 承接聚合查询的扫描结果
type debtSummaryRow struct {
	GroupKey             int64
	PendingCount         int64
	InventoryOutstanding int64
	BudgetOutstanding    int64
}

func (r *GormDebtRepository) SummarizeByCampaign(ctx context.Context, campaignID int64) (*domain.DebtSummary, error) {
	summary := &domain.DebtSummary{GroupKey: campaignID}

	var inv debtSummaryRow
	err := r.db.WithContext(ctx).Model(&InventoryDebtModel{}).
		Where("campaign_id = ?", campaignID).
		Select("COUNT(CASE WHEN status = ? THEN 1 END) AS pending_count, COALESCE(SUM(debt_quantity - cleared_quantity), 0) AS inventory_outstanding",
			string(domain.DebtStatusPending)).
		Scan(&inv).Error
	if err != nil {
		return nil, translateError(err)
	}
	summary.PendingCount = inv.PendingCount
	summary.InventoryOutstanding = inv.InventoryOutstanding

	var bud debtSummaryRow
	err = r.db.WithContext(ctx).Model(&BudgetDebtModel{}).
		Where("campaign_id = ?", campaignID).
		Select("COUNT(CASE WHEN status = ? THEN 1 END) AS pending_count, COALESCE(SUM(debt_amount - cleared_amount), 0) AS budget_outstanding",
			string(domain.DebtStatusPending)).
		Scan(&bud).Error
	if err != nil {
		return nil, translateError(err)
	}
	summary.PendingCount += bud.PendingCount
	summary.BudgetOutstanding = bud.BudgetOutstanding
	return summary, nil
}

func (r *GormDebtRepository) SummarizeByPrize(ctx context.Context, campaignID int64) ([]*domain.DebtSummary, error) {
	return r.summarizeGrouped(ctx, campaignID, "prize_id")
}

func (r *GormDebtRepository) SummarizeByCreator(ctx context.Context, campaignID int64) ([]*domain.DebtSummary, error) {
	return r.summarizeGrouped(ctx, campaignID, "preset_creator_id")
}

// summarizeGrouped 在两张欠账表上分别做分组聚合后合并
func (r *GormDebtRepository) summarizeGrouped(ctx context.Context, campaignID int64, groupCol string) ([]*domain.DebtSummary, error) {
	merged := make(map[int64]*domain.DebtSummary)

	var invRows []debtSummaryRow
	err := r.db.WithContext(ctx).Model(&InventoryDebtModel{}).
		Where("campaign_id = ?", campaignID).
		Select(groupCol+" AS group_key, COUNT(CASE WHEN status = ? THEN 1 END) AS pending_count, COALESCE(SUM(debt_quantity - cleared_quantity), 0) AS inventory_outstanding",
			string(domain.DebtStatusPending)).
		Group(groupCol).
		Scan(&invRows).Error
	if err != nil {
		return nil, translateError(err)
	}
	for _, row := range invRows {
		merged[row.GroupKey] = &domain.DebtSummary{
			GroupKey:             row.GroupKey,
			PendingCount:         row.PendingCount,
			InventoryOutstanding: row.InventoryOutstanding,
		}
	}

	var budRows []debtSummaryRow
	err = r.db.WithContext(ctx).Model(&BudgetDebtModel{}).
		Where("campaign_id = ?", campaignID).
		Select(groupCol+" AS group_key, COUNT(CASE WHEN status = ? THEN 1 END) AS pending_count, COALESCE(SUM(debt_amount - cleared_amount), 0) AS budget_outstanding",
			string(domain.DebtStatusPending)).
		Group(groupCol).
		Scan(&budRows).Error
	if err != nil {
		return nil, translateError(err)
	}
	for _, row := range budRows {
		if existing, ok := merged[row.GroupKey]; ok {
			existing.PendingCount += row.PendingCount
			existing.BudgetOutstanding = row.BudgetOutstanding
		} else {
			merged[row.GroupKey] = &domain.DebtSummary{
				GroupKey:          row.GroupKey,
				PendingCount:      row.PendingCount,
				BudgetOutstanding: row.BudgetOutstanding,
			}
		}
	}

	summaries := make([]*domain.DebtSummary, 0, len(merged))
	for _, s := range merged {
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// GormDrawRecordRepository 是 DrawRecordRepository 的 GORM 实现
type GormDrawRecordRepository struct {
	db *gorm.DB
}

// NewGormDrawRecordRepository 创建一个新的 GORM 仓储实例
func NewGormDrawRecordRepository(db *gorm.DB) *GormDrawRecordRepository {
	return &GormDrawRecordRepository{db: db}
}

// Create 落一条抽奖流水
// idempotency_key 唯一索引冲突翻译为 ErrDuplicateDraw，应用层转入回放路径
func (r *GormDrawRecordRepository) Create(ctx context.Context, record *domain.DrawRecord) error {
	return translateError(r.db.WithContext(ctx).Create(FromDomainDrawRecord(record)).Error)
}

func (r *GormDrawRecordRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.DrawRecord, error) {
	var model DrawRecordModel
	err := r.db.WithContext(ctx).First(&model, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, translateError(err)
	}
	return ToDomainDrawRecord(&model), nil
}
