// internal/service/lottery/application/pipeline/pity.go
package pipeline

import (
	"go.opentelemetry.io/otel/attribute"

	"lucky/internal/service/lottery/domain"
)

const stagePity = "pity"

// EvaluatePity 是软保底的判定函数
// 连空次数命中规则表的最高一档时，对非兜底档位按该档千分比放大
// 低于最低门槛时权重原样透传；本函数只读 streak，从不改写它
func EvaluatePity(policy domain.PityPolicy, streak int, weights domain.WeightVector) (PityOutcome, domain.WeightVector) {
	outcome := PityOutcome{Permille: 1000, Streak: streak}
	rule, ok := policy.Match(streak)
	if !ok {
		return outcome, weights
	}
	outcome.Triggered = true
	outcome.Hard = rule.Hard
	outcome.Permille = rule.Permille
	return outcome, weights.ScaleNonFallback(rule.Permille)
}

// PityHandler 按连续空奖次数对权重向量做软保底放大
// 连空计数的增减由收尾阶段负责，本阶段绝不改写体验状态
type PityHandler struct {
	NextHandler
}

func (h *PityHandler) Handle(drawCtx *DrawContext) error {
	_, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.PityAdjust")
	defer span.End()

	// 钦定来源直接决定档位，软保底不参与
	if _, forced := domain.ForcedTier(drawCtx.Decision); forced {
		span.AddEvent("skipped: tier dictated by decision source")
		drawCtx.RecordStage(StageResult{Stage: stagePity, Status: StageSkipped, Reason: "forced tier"})
		return h.executeNext(drawCtx)
	}

	outcome, adjusted := EvaluatePity(drawCtx.Campaign.Pity, drawCtx.Experience.EmptyStreak, drawCtx.Weights)
	drawCtx.Pity = outcome
	drawCtx.Weights = adjusted

	pityType := "none"
	if outcome.Triggered {
		if outcome.Hard {
			pityType = "hard"
		} else {
			pityType = "soft"
		}
	}
	span.SetAttributes(
		attribute.Bool("pity.triggered", outcome.Triggered),
		attribute.String("pity.type", pityType),
		attribute.Int64("pity.permille", outcome.Permille),
		attribute.Int("pity.streak", outcome.Streak),
	)
	drawCtx.RecordStage(StageResult{Stage: stagePity, Status: StageOk, Reason: pityType})

	return h.executeNext(drawCtx)
}
