// internal/service/lottery/application/pipeline/tier_pick.go
package pipeline

import (
	"go.opentelemetry.io/otel/attribute"

	"lucky/internal/service/lottery/domain"
)

const stageTierPick = "tier_pick"

// PickTier 是档位选择的纯函数，给定决策来源、调整后权重、奖池可用性与随机源，
// 产出最终档位与完整的降级轨迹
//
// 钦定来源（预设/干预/硬保底）完全跳过随机选择，档位由来源直接决定；
// 正常来源取一个 [0, WeightScale) 的均匀随机值，按 high→mid→low→fallback 的
// 固定顺序做累计权重查找。累计边界是半开区间 [cum_start, cum_end)：
// 随机值恰等于运行总和时归属下一档，绝不归属当前档。
//
// 命中档位无库存时不重新掷骰，而是沿固定降级路径向后走到第一个可用档位，
// 每一跳都记入轨迹。兜底档容量无限，是走读的必然终点，本函数不可能选不出档位。
func PickTier(decision domain.DecisionSource, weights domain.WeightVector,
	pool *domain.PrizePool, rng domain.RandomSource) PickOutcome {

	if forced, ok := domain.ForcedTier(decision); ok {
		return PickOutcome{
			Selected:      forced,
			Landed:        forced,
			RandomValue:   -1,
			DowngradePath: []domain.Tier{forced},
			Skipped:       true,
		}
	}

	roll := rng.Int64N(domain.WeightScale)

	landed := domain.TierFallback
	var cum int64
	for _, tier := range domain.TierOrder {
		cum += weights.Get(tier)
		if roll < cum {
			landed = tier
			break
		}
	}

	path := []domain.Tier{landed}
	selected := landed
	for i := landed.Index(); i < len(domain.TierOrder); i++ {
		tier := domain.TierOrder[i]
		if tier != landed {
			path = append(path, tier)
		}
		if pool.TierAvailable(tier) {
			selected = tier
			break
		}
	}

	return PickOutcome{
		Selected:      selected,
		Landed:        landed,
		RandomValue:   roll,
		DowngradePath: path,
	}
}

// TierPickHandler 汇合决策来源、BxP 调整、软保底放大后的权重向量，落定发奖档位
type TierPickHandler struct {
	NextHandler
}

func (h *TierPickHandler) Handle(drawCtx *DrawContext) error {
	_, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.TierPick")
	defer span.End()

	pick := PickTier(drawCtx.Decision, drawCtx.Weights, drawCtx.Pool, drawCtx.RNG)
	drawCtx.Pick = pick

	span.SetAttributes(
		attribute.String("pick.selected", string(pick.Selected)),
		attribute.String("pick.landed", string(pick.Landed)),
		attribute.Int64("pick.random_value", pick.RandomValue),
		attribute.Bool("pick.skipped", pick.Skipped),
		attribute.Int("pick.downgrade_hops", len(pick.DowngradePath)-1),
	)
	if pick.Skipped {
		// 跳过随机选择要显式记录，供可观测性排查钦定流量
		span.AddEvent("random selection skipped by decision source")
	}
	drawCtx.RecordStage(StageResult{Stage: stageTierPick, Status: StageOk, Reason: string(pick.Selected)})

	return h.executeNext(drawCtx)
}
