// internal/service/lottery/application/pipeline/prize_pool.go
package pipeline

import (
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/service/lottery/domain"
)

const stagePrizePool = "prize_pool"

// PrizePoolHandler 加载活动全部奖品并按档位分桶
// 同时离散化 B 维（剩余预算）档位；P 维在权重矩阵阶段探测
type PrizePoolHandler struct {
	NextHandler
}

func (h *PrizePoolHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.PrizePoolBuild")
	defer span.End()

	prizes, err := drawCtx.Prizes.FindByCampaign(ctx, drawCtx.CampaignID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prize load failed")
		drawCtx.RecordStage(StageResult{Stage: stagePrizePool, Status: StageFailed, Err: err})
		return err
	}

	pool := domain.NewPrizePool(drawCtx.CampaignID, prizes)

	// 兜底档必须存在，否则降级路径没有终点，属于配置缺陷
	if !pool.HasPrizes(domain.TierFallback) {
		err := fmt.Errorf("%w: campaign %d has no fallback prizes",
			domain.ErrInvalidConfiguration, drawCtx.CampaignID)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fallback tier empty")
		drawCtx.RecordStage(StageResult{Stage: stagePrizePool, Status: StageFailed, Err: err})
		return err
	}

	drawCtx.Pool = pool
	drawCtx.BudgetTier = domain.ClassifyBudget(drawCtx.Campaign.RemainingBudget(), drawCtx.Campaign.TotalBudget)

	span.SetAttributes(
		attribute.Int64("pool.high_stock", pool.TierStock(domain.TierHigh)),
		attribute.Int64("pool.mid_stock", pool.TierStock(domain.TierMid)),
		attribute.Int64("pool.low_stock", pool.TierStock(domain.TierLow)),
		attribute.String("pool.budget_tier", string(drawCtx.BudgetTier)),
	)
	drawCtx.RecordStage(StageResult{Stage: stagePrizePool, Status: StageOk})

	return h.executeNext(drawCtx)
}
