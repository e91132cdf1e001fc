// internal/service/lottery/application/pipeline/campaign_loader.go
package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/domain/port"
)

const stageCampaignLoad = "campaign_load"

// CampaignLoadHandler 加载活动配置并做参与前校验
// 活动配置在单次抽奖内不可变，只加载一次，后续阶段不再回库
type CampaignLoadHandler struct {
	NextHandler
}

func (h *CampaignLoadHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.CampaignLoad")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("campaign.id", drawCtx.CampaignID),
		attribute.Int64("user.id", drawCtx.UserID),
	)

	campaign, err := drawCtx.Campaigns.FindByID(ctx, drawCtx.CampaignID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "campaign load failed")
		drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageFailed, Err: err})
		return err
	}

	// 配置异常属于致命错误，直接中断，不产生任何扣费
	if err := campaign.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "campaign configuration invalid")
		drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageFailed, Err: err})
		return err
	}

	if !campaign.IsActiveAt(drawCtx.Now) {
		err := fmt.Errorf("%w: campaign %d", domain.ErrCampaignNotActive, campaign.ID)
		span.SetStatus(codes.Error, err.Error())
		drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageFailed, Err: err})
		return err
	}

	// 可选的 CEL 参与资格表达式
	if campaign.EligibilityRule != "" && drawCtx.Rules != nil {
		fact := drawCtx.UserFact
		if fact == nil {
			fact = port.Fact{}
		}
		fact["user_id"] = drawCtx.UserID
		fact["campaign_id"] = drawCtx.CampaignID

		eligible, err := drawCtx.Rules.Evaluate(ctx, campaign.EligibilityRule, fact)
		if err != nil {
			// 规则本身写错同样是配置问题
			err = fmt.Errorf("%w: eligibility rule: %v", domain.ErrInvalidConfiguration, err)
			span.RecordError(err)
			drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageFailed, Err: err})
			return err
		}
		if !eligible {
			err = fmt.Errorf("%w: user %d not eligible", domain.ErrCampaignNotActive, drawCtx.UserID)
			span.SetStatus(codes.Error, "user not eligible")
			drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageFailed, Err: err})
			return err
		}
	}

	drawCtx.Campaign = campaign
	drawCtx.Weights = campaign.BaseWeights
	drawCtx.RecordStage(StageResult{Stage: stageCampaignLoad, Status: StageOk})
	span.AddEvent("campaign loaded")

	return h.executeNext(drawCtx)
}
