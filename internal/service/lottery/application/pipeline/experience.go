// internal/service/lottery/application/pipeline/experience.go
package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/service/lottery/domain"
)

const stageExperienceLoad = "experience_load"

// ExperienceLoadHandler 加锁加载 (user, campaign) 体验状态并校验抽奖限额
// 行锁将同一用户同一活动的并发抽奖在此串行化，彼此无关的用户互不阻塞
type ExperienceLoadHandler struct {
	NextHandler
}

func (h *ExperienceLoadHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.ExperienceLoad")
	defer span.End()

	state, err := drawCtx.Experiences.GetForUpdate(ctx, drawCtx.UserID, drawCtx.CampaignID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "experience state load failed")
		drawCtx.RecordStage(StageResult{Stage: stageExperienceLoad, Status: StageFailed, Err: err})
		return err
	}

	campaign := drawCtx.Campaign
	if !state.WithinDailyLimit(campaign.DailyLimit, drawCtx.Now) {
		err := fmt.Errorf("%w: daily limit %d", domain.ErrDrawLimitExceeded, campaign.DailyLimit)
		span.SetStatus(codes.Error, err.Error())
		drawCtx.RecordStage(StageResult{Stage: stageExperienceLoad, Status: StageFailed, Err: err})
		return err
	}
	if !state.WithinTotalLimit(campaign.TotalLimit) {
		err := fmt.Errorf("%w: total limit %d", domain.ErrDrawLimitExceeded, campaign.TotalLimit)
		span.SetStatus(codes.Error, err.Error())
		drawCtx.RecordStage(StageResult{Stage: stageExperienceLoad, Status: StageFailed, Err: err})
		return err
	}

	span.SetAttributes(
		attribute.Int("experience.total_draw_count", state.TotalDrawCount),
		attribute.Int("experience.empty_streak", state.EmptyStreak),
		attribute.Int("experience.last_high_tier_draw", state.LastHighTierDraw),
	)

	drawCtx.Experience = state
	drawCtx.RecordStage(StageResult{Stage: stageExperienceLoad, Status: StageOk})

	return h.executeNext(drawCtx)
}
