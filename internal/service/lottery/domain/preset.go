// internal/service/lottery/domain/preset.go
package domain

import "time"

// DrawPreset 是管理员预埋的定向发奖：指定用户在指定活动的下一抽直接命中某个奖品
// 本服务只读并消费预设，创建/编辑属于管理后台，不在此范围内
type DrawPreset struct {
	ID         int64
	CampaignID int64
	UserID     int64
	PrizeID    int64
	CreatorID  int64 // 预埋人，欠账归因用
	Consumed   bool
	ExpireAt   time.Time
}

// Usable 检查预设在给定时刻是否可生效
func (p *DrawPreset) Usable(now time.Time) bool {
	return !p.Consumed && now.Before(p.ExpireAt)
}

// DrawOverride 是管理员的强制干预：对指定用户强制胜（高档）或强制负（兜底）
type DrawOverride struct {
	ID         int64
	CampaignID int64
	UserID     int64
	Direction  OverrideKind
	Consumed   bool
	ExpireAt   time.Time
}

// Usable 检查干预在给定时刻是否可生效
func (o *DrawOverride) Usable(now time.Time) bool {
	return !o.Consumed && now.Before(o.ExpireAt)
}
