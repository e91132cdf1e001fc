// internal/service/lottery/application/pipeline/decision_source.go
package pipeline

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/service/lottery/domain"
)

const stageDecisionSource = "decision_source"

// DecisionSourceHandler 判定本次抽奖的决策来源
// 优先级固定：预设 > 强制干预 > 硬保底 > 正常随机
// 决策来源是抽奖内的瞬态数据，从不落库
type DecisionSourceHandler struct {
	NextHandler
}

func (h *DecisionSourceHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.DecisionSourceResolve")
	defer span.End()

	// 1. 管理员预设：指定用户下一抽直接命中指定奖品
	preset, err := drawCtx.Presets.FindUsablePreset(ctx, drawCtx.CampaignID, drawCtx.UserID, drawCtx.Now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preset lookup failed")
		drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageFailed, Err: err})
		return err
	}
	if preset != nil {
		prize, err := drawCtx.Prizes.FindByID(ctx, preset.PrizeID)
		if err != nil {
			span.RecordError(err)
			drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageFailed, Err: err})
			return err
		}
		drawCtx.Decision = domain.PresetSource{
			PresetID:  preset.ID,
			PrizeID:   preset.PrizeID,
			CreatorID: preset.CreatorID,
			Tier:      prize.Tier,
		}
		span.SetAttributes(attribute.String("decision.source", string(domain.DecisionPreset)))
		drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageOk, Reason: "preset"})
		return h.executeNext(drawCtx)
	}

	// 2. 管理员强制干预：强制胜/强制负
	override, err := drawCtx.Presets.FindUsableOverride(ctx, drawCtx.CampaignID, drawCtx.UserID, drawCtx.Now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "override lookup failed")
		drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageFailed, Err: err})
		return err
	}
	if override != nil {
		drawCtx.Decision = domain.OverrideSource{
			OverrideID: override.ID,
			Direction:  override.Direction,
		}
		span.SetAttributes(
			attribute.String("decision.source", string(domain.DecisionOverride)),
			attribute.String("decision.override", string(override.Direction)),
		)
		drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageOk, Reason: "override"})
		return h.executeNext(drawCtx)
	}

	// 3. 硬保底：累计未出高档达到阈值，强制当前这一抽进入高档
	guarantee := EvaluateGuarantee(drawCtx.Campaign.Guarantee, drawCtx.Experience)
	drawCtx.Guarantee = guarantee
	if guarantee.Triggered {
		drawCtx.Decision = domain.GuaranteeSource{
			DrawsSinceHighTier: guarantee.DrawsSinceHighTier,
			Threshold:          guarantee.Threshold,
		}
		span.SetAttributes(
			attribute.String("decision.source", string(domain.DecisionGuarantee)),
			attribute.Int("guarantee.draws_since_high_tier", guarantee.DrawsSinceHighTier),
		)
		drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageOk, Reason: "guarantee"})
		return h.executeNext(drawCtx)
	}

	// 4. 正常随机
	drawCtx.Decision = domain.NormalSource{}
	span.SetAttributes(attribute.String("decision.source", string(domain.DecisionNormal)))
	drawCtx.RecordStage(StageResult{Stage: stageDecisionSource, Status: StageOk, Reason: "normal"})

	return h.executeNext(drawCtx)
}
