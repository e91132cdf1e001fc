// internal/service/lottery/domain/campaign.go
package domain

import (
	"fmt"
	"time"
)

// CampaignStatus 定义活动的上下线状态
type CampaignStatus string

const (
	CampaignStatusActive   CampaignStatus = "ACTIVE"
	CampaignStatusInactive CampaignStatus = "INACTIVE"
)

// PityRule 是一条软保底规则：连续空奖次数达到 Streak 后，
// 非兜底档位权重按 Permille/1000 放大
type PityRule struct {
	Streak   int   // 触发该档所需的连续空奖次数（含）
	Permille int64 // 千分比放大系数，如 1100 = ×1.1
	Hard     bool  // 是否硬保底档（最高一档）
}

// PityPolicy 是按 Streak 升序排列的软保底规则表
type PityPolicy []PityRule

// DefaultPityPolicy 返回默认保底规则表
func DefaultPityPolicy() PityPolicy {
	return PityPolicy{
		{Streak: 3, Permille: 1100},
		{Streak: 5, Permille: 1250},
		{Streak: 7, Permille: 1500},
		{Streak: 10, Permille: 2000, Hard: true},
	}
}

// Match 返回 streak 命中的最高一档规则，未命中任何档返回 (PityRule{}, false)
func (p PityPolicy) Match(streak int) (PityRule, bool) {
	var hit PityRule
	var ok bool
	for _, rule := range p {
		if streak >= rule.Streak {
			hit = rule
			ok = true
		}
	}
	return hit, ok
}

// GuaranteeConfig 是硬保底（大保底）配置
type GuaranteeConfig struct {
	Enabled   bool
	Threshold int // 自上次高档中奖起，累计抽奖达到该次数时强制命中高档
}

// Campaign 是活动聚合根，在单次抽奖内不可变
type Campaign struct {
	ID          int64
	Name        string
	Status      CampaignStatus
	StartAt     time.Time
	EndAt       time.Time
	CostPoints  int64 // 单次抽奖消耗的积分
	DailyLimit  int   // 单用户每日抽奖上限，0 表示不限
	TotalLimit  int   // 单用户活动期内抽奖上限，0 表示不限
	TotalBudget int64 // 活动总预算（积分）
	SpentBudget int64 // 已消耗预算

	BaseWeights WeightVector
	Pity        PityPolicy
	Guarantee   GuaranteeConfig

	// EligibilityRule 是可选的 CEL 参与资格表达式，空串表示不限制
	EligibilityRule string
}

// RemainingBudget 返回活动剩余预算，欠账超支时可能为负
func (c *Campaign) RemainingBudget() int64 {
	return c.TotalBudget - c.SpentBudget
}

// IsActiveAt 检查活动在给定时刻是否可参与
func (c *Campaign) IsActiveAt(now time.Time) bool {
	if c.Status != CampaignStatusActive {
		return false
	}
	return !now.Before(c.StartAt) && now.Before(c.EndAt)
}

// Validate 校验活动配置
// guarantee.threshold=0 会退化成"每一抽都保底"，按约定在配置层直接拒绝
func (c *Campaign) Validate() error {
	if err := c.BaseWeights.Validate(); err != nil {
		return err
	}
	if c.Guarantee.Enabled && c.Guarantee.Threshold <= 0 {
		return fmt.Errorf("%w: guarantee threshold must be positive, got %d",
			ErrInvalidConfiguration, c.Guarantee.Threshold)
	}
	for i, rule := range c.Pity {
		if rule.Streak <= 0 || rule.Permille < 1000 {
			return fmt.Errorf("%w: pity rule #%d invalid: %+v", ErrInvalidConfiguration, i, rule)
		}
		if i > 0 && rule.Streak <= c.Pity[i-1].Streak {
			return fmt.Errorf("%w: pity rules must be in ascending streak order", ErrInvalidConfiguration)
		}
	}
	if c.CostPoints < 0 || c.TotalBudget < 0 {
		return fmt.Errorf("%w: negative cost or budget", ErrInvalidConfiguration)
	}
	return nil
}
