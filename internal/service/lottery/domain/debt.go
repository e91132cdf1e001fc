// internal/service/lottery/domain/debt.go
package domain

import (
	"fmt"
	"time"
)

// DebtStatus 是欠账记录的状态机: pending → (部分核销)* → written_off
type DebtStatus string

const (
	DebtStatusPending    DebtStatus = "PENDING"     // 未清偿
	DebtStatusWrittenOff DebtStatus = "WRITTEN_OFF" // 已核销完毕
)

// BudgetDebtSource 区分预算欠账的扣减来源
type BudgetDebtSource string

const (
	BudgetSourceUser      BudgetDebtSource = "USER_BUDGET" // 用户维度预算
	BudgetSourcePool      BudgetDebtSource = "POOL_BUDGET" // 活动奖池预算
	BudgetSourcePoolQuota BudgetDebtSource = "POOL_QUOTA"  // 奖池限额
)

// InventoryDebt 是库存欠账：发奖量超出剩余库存时记账的缺口
// 不变式: 0 <= ClearedQuantity <= DebtQuantity
type InventoryDebt struct {
	ID              string
	CampaignID      int64
	PrizeID         int64
	PresetCreatorID int64 // 预设钦定造成的欠账记录其创建人，用于运营归因
	DebtQuantity    int64
	ClearedQuantity int64
	Status          DebtStatus
	CreatedAt       time.Time
}

// Outstanding 返回未清偿数量
func (d *InventoryDebt) Outstanding() int64 {
	return d.DebtQuantity - d.ClearedQuantity
}

// Clear 对欠账执行一次单调核销
// amount 必须为正且不得超过未清余额；清偿至满额时状态恰好迁移一次到 written_off
func (d *InventoryDebt) Clear(amount int64) error {
	if d.Status == DebtStatusWrittenOff {
		return fmt.Errorf("%w: inventory debt %s", ErrDebtAlreadyWrittenOff, d.ID)
	}
	if amount <= 0 || amount > d.Outstanding() {
		return fmt.Errorf("%w: amount=%d outstanding=%d", ErrInvalidClearAmount, amount, d.Outstanding())
	}
	d.ClearedQuantity += amount
	if d.ClearedQuantity == d.DebtQuantity {
		d.Status = DebtStatusWrittenOff
	}
	return nil
}

// BudgetDebt 是预算欠账：发奖成本超出剩余预算时记账的缺口
// 与库存欠账遵循同一套状态机与核销不变式
type BudgetDebt struct {
	ID              string
	CampaignID      int64
	PrizeID         int64
	PresetCreatorID int64
	Source          BudgetDebtSource
	DebtAmount      int64
	ClearedAmount   int64
	Status          DebtStatus
	CreatedAt       time.Time
}

// Outstanding 返回未清偿金额
func (d *BudgetDebt) Outstanding() int64 {
	return d.DebtAmount - d.ClearedAmount
}

// Clear 对预算欠账执行一次单调核销
func (d *BudgetDebt) Clear(amount int64) error {
	if d.Status == DebtStatusWrittenOff {
		return fmt.Errorf("%w: budget debt %s", ErrDebtAlreadyWrittenOff, d.ID)
	}
	if amount <= 0 || amount > d.Outstanding() {
		return fmt.Errorf("%w: amount=%d outstanding=%d", ErrInvalidClearAmount, amount, d.Outstanding())
	}
	d.ClearedAmount += amount
	if d.ClearedAmount == d.DebtAmount {
		d.Status = DebtStatusWrittenOff
	}
	return nil
}

// DebtLimit 是活动（campaignID=0 时为全局）的欠账上限
// 记账前必须先做上限预检，越线的发奖要么继续降级要么拒绝，绝不静默突破
type DebtLimit struct {
	CampaignID         int64
	InventoryDebtLimit int64
	BudgetDebtLimit    int64
}

// AllowInventory 检查在现有未清库存欠账 outstanding 之上再记 quantity 是否越线
// 未配置上限（nil）时不设限
func (l *DebtLimit) AllowInventory(outstanding, quantity int64) bool {
	if l == nil {
		return true
	}
	return outstanding+quantity <= l.InventoryDebtLimit
}

// AllowBudget 检查在现有未清预算欠账 outstanding 之上再记 amount 是否越线
// 未配置上限（nil）时不设限
func (l *DebtLimit) AllowBudget(outstanding, amount int64) bool {
	if l == nil {
		return true
	}
	return outstanding+amount <= l.BudgetDebtLimit
}

// DebtSummary 是欠账的只读聚合视图，按活动/奖品/预设创建人分组
// 仅供运营侧查询，不在抽奖热路径上
type DebtSummary struct {
	GroupKey             int64
	PendingCount         int64
	InventoryOutstanding int64
	BudgetOutstanding    int64
}
