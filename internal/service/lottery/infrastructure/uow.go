package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"lucky/internal/service/lottery/domain"
)

// GormUnitOfWork 用 GORM 事务实现 UnitOfWork
// fn 内通过事务绑定的仓储集合访问数据库，fn 返回错误时整个事务回滚
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork 创建一个新的工作单元
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Within(ctx context.Context, fn func(tx domain.RepoSet) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(domain.RepoSet{
			Campaigns:   NewGormCampaignRepository(tx),
			Prizes:      NewGormPrizeRepository(tx),
			Experiences: NewGormExperienceRepository(tx),
			Presets:     NewGormPresetRepository(tx),
			Debts:       NewGormDebtRepository(tx),
			Records:     NewGormDrawRecordRepository(tx),
		})
	})
	return translateError(err)
}
