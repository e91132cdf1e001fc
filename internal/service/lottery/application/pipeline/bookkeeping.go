// internal/service/lottery/application/pipeline/bookkeeping.go
package pipeline

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/domain"
)

const stageBookkeeping = "bookkeeping"

// BookkeepingHandler 是管线的收尾阶段，发奖落定后统一更新可变状态：
// 体验计数器（连空、累计、高档标记）、预设/干预的消费标记、压力窗口计数
// 保底与硬保底消费的计数器只在这里改写，前序阶段一律只读
type BookkeepingHandler struct {
	NextHandler
}

func (h *BookkeepingHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.Bookkeeping")
	defer span.End()

	state := drawCtx.Experience
	// 硬保底只有真正发出高档奖品才算兑现；被欠账上限拦截而降级时
	// 计数器原样保留，下一抽继续强制
	guaranteeDelivered := drawCtx.Guarantee.Triggered && drawCtx.Award.Tier == domain.TierHigh
	smoothed := drawCtx.Pity.Triggered || guaranteeDelivered
	state.RecordDraw(drawCtx.Award.Tier, smoothed, drawCtx.Now)

	if guaranteeDelivered {
		state.RecordGuaranteeHit()
	}

	if err := drawCtx.Experiences.Save(ctx, state); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "experience save failed")
		drawCtx.RecordStage(StageResult{Stage: stageBookkeeping, Status: StageFailed, Err: err})
		return err
	}

	// 预设/干预一次性生效，发奖成功即消费
	switch src := drawCtx.Decision.(type) {
	case domain.PresetSource:
		if err := drawCtx.Presets.MarkPresetConsumed(ctx, src.PresetID); err != nil {
			span.RecordError(err)
			drawCtx.RecordStage(StageResult{Stage: stageBookkeeping, Status: StageFailed, Err: err})
			return err
		}
	case domain.OverrideSource:
		if err := drawCtx.Presets.MarkOverrideConsumed(ctx, src.OverrideID); err != nil {
			span.RecordError(err)
			drawCtx.RecordStage(StageResult{Stage: stageBookkeeping, Status: StageFailed, Err: err})
			return err
		}
	}

	// 压力窗口计数失败只降低 P 维精度，不影响抽奖结果
	if drawCtx.Pressure != nil {
		if err := drawCtx.Pressure.RecordDraw(ctx, drawCtx.CampaignID); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("pressure window record failed")
		}
	}

	span.SetAttributes(
		attribute.Int("experience.total_draw_count", state.TotalDrawCount),
		attribute.Int("experience.empty_streak", state.EmptyStreak),
		attribute.Bool("draw.smoothed", smoothed),
	)
	drawCtx.RecordStage(StageResult{Stage: stageBookkeeping, Status: StageOk})

	return h.executeNext(drawCtx)
}
