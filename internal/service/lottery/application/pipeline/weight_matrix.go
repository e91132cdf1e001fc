// internal/service/lottery/application/pipeline/weight_matrix.go
package pipeline

import (
	"go.opentelemetry.io/otel/attribute"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/domain"
)

const stageWeightMatrix = "weight_matrix"

// WeightMatrixHandler 按 BxP 矩阵调整基础权重向量
// B（剩余预算档）与 P（系统压力档）越差，high/mid 权重收缩越多，兜底吸收差额
// 本阶段纯确定性计算，不含任何随机；矩阵查找失败时退回未调整的基础权重
type WeightMatrixHandler struct {
	NextHandler

	// Matrix 可注入自定义矩阵，缺省使用默认表
	Matrix domain.AdjustMatrix
}

func (h *WeightMatrixHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.WeightMatrixAdjust")
	defer span.End()

	// 钦定来源不走随机选择，权重调整无意义，跳过
	if _, forced := domain.ForcedTier(drawCtx.Decision); forced {
		span.AddEvent("skipped: tier dictated by decision source")
		drawCtx.RecordStage(StageResult{Stage: stageWeightMatrix, Status: StageSkipped, Reason: "forced tier"})
		return h.executeNext(drawCtx)
	}

	matrix := h.Matrix
	if matrix == nil {
		matrix = domain.DefaultAdjustMatrix()
	}

	// P 维探测：压力来自滑动窗口内的活动抽奖量；探测失败按低压处理
	var windowDraws int64
	if drawCtx.Pressure != nil {
		n, err := drawCtx.Pressure.WindowDraws(ctx, drawCtx.CampaignID)
		if err != nil {
			logger.Ctx(ctx).Warn().Err(err).Msg("pressure gauge unavailable, assuming low pressure")
		} else {
			windowDraws = n
		}
	}
	drawCtx.PressureTier = domain.ClassifyPressure(windowDraws)

	permille, ok := matrix.Lookup(drawCtx.BudgetTier, drawCtx.PressureTier)
	if !ok {
		// 查表失败退回基础权重，不中断抽奖
		logger.Ctx(ctx).Warn().
			Str("budget_tier", string(drawCtx.BudgetTier)).
			Str("pressure_tier", string(drawCtx.PressureTier)).
			Msg("BxP matrix lookup miss, using base weights")
		drawCtx.RecordStage(StageResult{Stage: stageWeightMatrix, Status: StageOk, Reason: "matrix miss"})
		return h.executeNext(drawCtx)
	}

	drawCtx.Weights = drawCtx.Weights.ScaleNonFallback(permille)

	span.SetAttributes(
		attribute.String("matrix.budget_tier", string(drawCtx.BudgetTier)),
		attribute.String("matrix.pressure_tier", string(drawCtx.PressureTier)),
		attribute.Int64("matrix.permille", permille),
		attribute.Int64("weights.high", drawCtx.Weights.High),
		attribute.Int64("weights.fallback", drawCtx.Weights.Fallback),
	)
	drawCtx.RecordStage(StageResult{Stage: stageWeightMatrix, Status: StageOk})

	return h.executeNext(drawCtx)
}
