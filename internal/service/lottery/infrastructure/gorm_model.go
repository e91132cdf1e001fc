package infrastructure

import (
	"time"
)

// CampaignModel 对应数据库中的 lottery_campaign 表
type CampaignModel struct {
	ID          int64 `gorm:"primaryKey"`
	Name        string
	Status      string `gorm:"type:varchar(16);index"`
	StartAt     time.Time
	EndAt       time.Time
	CostPoints  int64
	DailyLimit  int
	TotalLimit  int
	TotalBudget int64
	SpentBudget int64

	WeightHigh     int64
	WeightMid      int64
	WeightLow      int64
	WeightFallback int64

	// PityRules 是 PityPolicy 的 JSON 快照，活动配置变更频率低，不拆表
	PityRules          string `gorm:"type:text"`
	GuaranteeEnabled   bool
	GuaranteeThreshold int
	EligibilityRule    string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (CampaignModel) TableName() string {
	return "lottery_campaign"
}

// PrizeModel 对应数据库中的 lottery_prize 表
type PrizeModel struct {
	ID          int64  `gorm:"primaryKey"`
	CampaignID  int64  `gorm:"index"`
	Name        string
	Kind        string `gorm:"type:varchar(16)"`
	Tier        string `gorm:"type:varchar(16)"`
	Status      string `gorm:"type:varchar(16)"`
	Stock       int64
	Unlimited   bool
	ValuePoints int64
	Weight      int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PrizeModel) TableName() string {
	return "lottery_prize"
}

// ExperienceModel 对应数据库中的 lottery_user_experience 表
// (user_id, campaign_id) 唯一，抽奖事务内对该行加 FOR UPDATE 锁
type ExperienceModel struct {
	ID               int64 `gorm:"primaryKey"`
	UserID           int64 `gorm:"uniqueIndex:uk_user_campaign"`
	CampaignID       int64 `gorm:"uniqueIndex:uk_user_campaign"`
	TotalDrawCount   int
	EmptyStreak      int
	LastHighTierDraw int
	GuaranteeHits    int
	TodayDrawCount   int
	LastDrawDate     time.Time
	Version          int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (ExperienceModel) TableName() string {
	return "lottery_user_experience"
}

// PresetModel 对应数据库中的 lottery_draw_preset 表
type PresetModel struct {
	ID         int64 `gorm:"primaryKey"`
	CampaignID int64 `gorm:"index:idx_preset_lookup"`
	UserID     int64 `gorm:"index:idx_preset_lookup"`
	PrizeID    int64
	CreatorID  int64
	Consumed   bool
	ExpireAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (PresetModel) TableName() string {
	return "lottery_draw_preset"
}

// OverrideModel 对应数据库中的 lottery_draw_override 表
type OverrideModel struct {
	ID         int64  `gorm:"primaryKey"`
	CampaignID int64  `gorm:"index:idx_override_lookup"`
	UserID     int64  `gorm:"index:idx_override_lookup"`
	Direction  string `gorm:"type:varchar(16)"`
	Consumed   bool
	ExpireAt   time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (OverrideModel) TableName() string {
	return "lottery_draw_override"
}

// InventoryDebtModel 对应数据库中的 lottery_inventory_debt 表
type InventoryDebtModel struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	CampaignID      int64  `gorm:"index"`
	PrizeID         int64  `gorm:"index"`
	PresetCreatorID int64
	DebtQuantity    int64
	ClearedQuantity int64
	Status          string `gorm:"type:varchar(16);index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (InventoryDebtModel) TableName() string {
	return "lottery_inventory_debt"
}

// BudgetDebtModel 对应数据库中的 lottery_budget_debt 表
type BudgetDebtModel struct {
	ID              string `gorm:"primaryKey;type:varchar(64)"`
	CampaignID      int64  `gorm:"index"`
	PrizeID         int64  `gorm:"index"`
	PresetCreatorID int64
	Source          string `gorm:"type:varchar(16)"`
	DebtAmount      int64
	ClearedAmount   int64
	Status          string `gorm:"type:varchar(16);index"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (BudgetDebtModel) TableName() string {
	return "lottery_budget_debt"
}

// DebtLimitModel 对应数据库中的 lottery_debt_limit 表
// campaign_id=0 的行是全局默认上限
type DebtLimitModel struct {
	CampaignID         int64 `gorm:"primaryKey"`
	InventoryDebtLimit int64
	BudgetDebtLimit    int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (DebtLimitModel) TableName() string {
	return "lottery_debt_limit"
}

// DrawRecordModel 对应数据库中的 lottery_draw_record 表
// idempotency_key 上的唯一索引是幂等性的最终裁决者
type DrawRecordModel struct {
	ID             string `gorm:"primaryKey;type:varchar(64)"`
	IdempotencyKey string `gorm:"uniqueIndex;type:varchar(128)"`
	UserID         int64  `gorm:"index"`
	CampaignID     int64  `gorm:"index"`
	PrizeID        int64
	SelectedTier   string `gorm:"type:varchar(16)"`
	DecisionSource string `gorm:"type:varchar(16)"`
	ResultPayload  string `gorm:"type:text"`

	CreatedAt time.Time
}

// TableName 指定 GORM 应该使用的表名
func (DrawRecordModel) TableName() string {
	return "lottery_draw_record"
}

// AllModels 返回建表迁移用的模型清单
func AllModels() []interface{} {
	return []interface{}{
		&CampaignModel{},
		&PrizeModel{},
		&ExperienceModel{},
		&PresetModel{},
		&OverrideModel{},
		&InventoryDebtModel{},
		&BudgetDebtModel{},
		&DebtLimitModel{},
		&DrawRecordModel{},
	}
}
