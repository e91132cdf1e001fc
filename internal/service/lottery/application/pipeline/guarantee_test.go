package pipeline

import (
	"testing"
	"time"

	"lucky/internal/service/lottery/domain"
)

func TestGuaranteeTriggersExactlyAtThreshold(t *testing.T) {
	cfg := domain.GuaranteeConfig{Enabled: true, Threshold: 5}
	state := domain.NewUserExperienceState(1, 100)
	now := time.Now()

	// 前 threshold-1 抽不触发
	for i := 0; i < cfg.Threshold-1; i++ {
		outcome := EvaluateGuarantee(cfg, state)
		if outcome.Triggered {
			t.Fatalf("draw %d (since high: %d) must not trigger", i+1, outcome.DrawsSinceHighTier)
		}
		state.RecordDraw(domain.TierFallback, false, now)
	}

	// 恰好第 threshold 抽强制高档
	outcome := EvaluateGuarantee(cfg, state)
	if !outcome.Triggered {
		t.Fatalf("draw %d should trigger the guarantee, since-high=%d",
			cfg.Threshold, outcome.DrawsSinceHighTier)
	}
	if outcome.DrawsSinceHighTier != cfg.Threshold {
		t.Fatalf("since-high=%d, want %d", outcome.DrawsSinceHighTier, cfg.Threshold)
	}

	// 保底发出高档后计数重置，下一抽回到累积态
	state.RecordDraw(domain.TierHigh, true, now)
	state.RecordGuaranteeHit()
	outcome = EvaluateGuarantee(cfg, state)
	if outcome.Triggered {
		t.Fatalf("counter must reset after a guarantee hit, since-high=%d", outcome.DrawsSinceHighTier)
	}
	if state.GuaranteeHits != 1 {
		t.Fatalf("guarantee hits should be recorded, got %d", state.GuaranteeHits)
	}
}

func TestGuaranteeResetOnOrganicHighWin(t *testing.T) {
	cfg := domain.GuaranteeConfig{Enabled: true, Threshold: 3}
	state := domain.NewUserExperienceState(1, 100)
	now := time.Now()

	state.RecordDraw(domain.TierFallback, false, now)
	// 自然出了高档，计数同样重置
	state.RecordDraw(domain.TierHigh, false, now)

	outcome := EvaluateGuarantee(cfg, state)
	if outcome.Triggered || outcome.DrawsSinceHighTier != 1 {
		t.Fatalf("organic high win should reset the counter: %+v", outcome)
	}
}

func TestGuaranteeDisabled(t *testing.T) {
	state := domain.NewUserExperienceState(1, 100)
	state.TotalDrawCount = 1000

	if EvaluateGuarantee(domain.GuaranteeConfig{Enabled: false, Threshold: 5}, state).Triggered {
		t.Fatal("disabled guarantee never triggers")
	}
	// 失效配置兜底：threshold<=0 已在配置校验层拒绝，引擎侧恒不触发
	if EvaluateGuarantee(domain.GuaranteeConfig{Enabled: true, Threshold: 0}, state).Triggered {
		t.Fatal("non-positive threshold never triggers")
	}
}
