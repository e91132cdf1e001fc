// internal/service/lottery/application/pipeline/guarantee.go
package pipeline

import (
	"lucky/internal/service/lottery/domain"
)

// EvaluateGuarantee 是硬保底引擎的判定函数
// 两态状态机：accumulating（自上次高档中奖起计数）与 triggered（当前这一抽被强制）
// 计数含当前这一抽：恰好第 threshold 抽未出高档时，该抽即被强制命中高档
// 引擎关闭或阈值非法时恒定不触发（配置层已拒绝 threshold<=0，此处兜底防御失效配置）
func EvaluateGuarantee(cfg domain.GuaranteeConfig, state *domain.UserExperienceState) GuaranteeOutcome {
	outcome := GuaranteeOutcome{Threshold: cfg.Threshold}
	if !cfg.Enabled || cfg.Threshold <= 0 {
		return outcome
	}
	outcome.DrawsSinceHighTier = state.DrawsSinceHighTier()
	outcome.Triggered = outcome.DrawsSinceHighTier >= cfg.Threshold
	return outcome
}
