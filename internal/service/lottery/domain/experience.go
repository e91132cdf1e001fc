// internal/service/lottery/domain/experience.go
package domain

import "time"

// UserExperienceState 是 (user, campaign) 维度的体验平滑计数器
// 首抽时惰性创建，每次抽奖后更新（含兜底结果）
// 该状态由决策管线独占，其他子系统不得改写
type UserExperienceState struct {
	UserID           int64
	CampaignID       int64
	TotalDrawCount   int // 累计抽奖次数
	EmptyStreak      int // 连续空奖（兜底）次数，保底触发时清零
	LastHighTierDraw int // 最近一次高档中奖时的累计抽奖序号
	GuaranteeHits    int // 硬保底累计触发次数
	TodayDrawCount   int // 当日抽奖次数，跨日清零
	LastDrawDate     time.Time
	Version          int64 // 乐观锁版本号
}

// NewUserExperienceState 首抽时的初始状态
func NewUserExperienceState(userID, campaignID int64) *UserExperienceState {
	return &UserExperienceState{UserID: userID, CampaignID: campaignID}
}

// DrawsSinceHighTier 返回包含当前这一抽在内、距上次高档中奖的抽奖次数
// 硬保底引擎以此与阈值比较
func (s *UserExperienceState) DrawsSinceHighTier() int {
	return s.TotalDrawCount - s.LastHighTierDraw + 1
}

// WithinDailyLimit 检查当日抽奖次数是否仍在限额内，limit=0 不限
func (s *UserExperienceState) WithinDailyLimit(limit int, now time.Time) bool {
	if limit <= 0 {
		return true
	}
	if !sameDay(s.LastDrawDate, now) {
		return true
	}
	return s.TodayDrawCount < limit
}

// WithinTotalLimit 检查活动期内总次数是否仍在限额内，limit=0 不限
func (s *UserExperienceState) WithinTotalLimit(limit int) bool {
	if limit <= 0 {
		return true
	}
	return s.TotalDrawCount < limit
}

// RecordDraw 在一次抽奖落定后更新计数器
// selected 为最终发奖档位；smoothed 表示本次软/硬保底任一生效（触发即清空连空计数）
func (s *UserExperienceState) RecordDraw(selected Tier, smoothed bool, now time.Time) {
	s.TotalDrawCount++
	if sameDay(s.LastDrawDate, now) {
		s.TodayDrawCount++
	} else {
		s.TodayDrawCount = 1
	}
	s.LastDrawDate = now

	if selected == TierFallback && !smoothed {
		s.EmptyStreak++
	} else {
		s.EmptyStreak = 0
	}
	if selected == TierHigh {
		s.LastHighTierDraw = s.TotalDrawCount
	}
}

// RecordGuaranteeHit 硬保底成功发奖后重置计数并累计触发次数
func (s *UserExperienceState) RecordGuaranteeHit() {
	s.LastHighTierDraw = s.TotalDrawCount
	s.GuaranteeHits++
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
