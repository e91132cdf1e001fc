// internal/service/lottery/domain/decision.go
package domain

// DecisionKind 标识单次抽奖的决策来源
type DecisionKind string

const (
	DecisionPreset    DecisionKind = "PRESET"    // 管理员预设指定奖品
	DecisionOverride  DecisionKind = "OVERRIDE"  // 管理员强制胜/负
	DecisionGuarantee DecisionKind = "GUARANTEE" // 硬保底触发
	DecisionNormal    DecisionKind = "NORMAL"    // 正常随机
)

// OverrideKind 区分强制干预的方向
type OverrideKind string

const (
	OverrideForceWin  OverrideKind = "FORCE_WIN"  // 强制高档中奖
	OverrideForceLose OverrideKind = "FORCE_LOSE" // 强制落入兜底
)

// DecisionSource 是封闭的决策来源标签联合
// 每次抽奖计算一次，从不落库；TierPickStage 对其做穷尽分支处理
type DecisionSource interface {
	Kind() DecisionKind
}

// PresetSource 表示本次抽奖由预设钦定某个具体奖品
type PresetSource struct {
	PresetID  int64
	PrizeID   int64
	CreatorID int64
	Tier      Tier
}

func (PresetSource) Kind() DecisionKind { return DecisionPreset }

// OverrideSource 表示本次抽奖被管理员强制干预
type OverrideSource struct {
	OverrideID int64
	Direction  OverrideKind
}

func (OverrideSource) Kind() DecisionKind { return DecisionOverride }

// GuaranteeSource 表示硬保底触发，强制进入高档
type GuaranteeSource struct {
	DrawsSinceHighTier int
	Threshold          int
}

func (GuaranteeSource) Kind() DecisionKind { return DecisionGuarantee }

// NormalSource 表示正常随机抽取
type NormalSource struct{}

func (NormalSource) Kind() DecisionKind { return DecisionNormal }

// ForcedTier 返回决策来源钦定的档位
// 只有 Normal 来源不钦定档位，返回 (_, false) 走加权随机
func ForcedTier(src DecisionSource) (Tier, bool) {
	switch s := src.(type) {
	case PresetSource:
		return s.Tier, true
	case OverrideSource:
		if s.Direction == OverrideForceWin {
			return TierHigh, true
		}
		return TierFallback, true
	case GuaranteeSource:
		return TierHigh, true
	case NormalSource:
		return "", false
	}
	return "", false
}
