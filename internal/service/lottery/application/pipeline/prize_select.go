// internal/service/lottery/application/pipeline/prize_select.go
package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/domain"
)

const stagePrizeSelect = "prize_select"

// WeightedPick 在候选奖品中做一次加权随机选择
// 累计边界同样是半开区间；全部奖品未配置权重时退化为均匀抽取，
// 存在显式权重时零权重奖品不参与随机
func WeightedPick(candidates []*domain.Prize, rng domain.RandomSource) *domain.Prize {
	if len(candidates) == 0 {
		return nil
	}
	var total int64
	for _, p := range candidates {
		if p.Weight > 0 {
			total += p.Weight
		}
	}
	if total == 0 {
		return candidates[rng.Int64N(int64(len(candidates)))]
	}
	roll := rng.Int64N(total)
	var cum int64
	for _, p := range candidates {
		if p.Weight <= 0 {
			continue
		}
		cum += p.Weight
		if roll < cum {
			return p
		}
	}
	return candidates[len(candidates)-1]
}

// PrizeSelectHandler 在落定档位内选出具体奖品并完成库存/预算记账
//
// 发奖遵循"严格发奖 → 欠账发奖 → 继续降级"的回退组合：
//  1. 先在档位内对有库存的奖品做加权随机，条件扣减库存与预算（线性化）；
//  2. 库存或预算不足且欠账上限仍有余量时，照常发奖并把缺口记入欠账台账；
//  3. 记账会突破上限时不静默越线，沿降级路径走向下一档；
//  4. 兜底档也无法发奖时拒绝本次抽奖（DebtCeilingExceeded）。
type PrizeSelectHandler struct {
	NextHandler
}

func (h *PrizeSelectHandler) Handle(drawCtx *DrawContext) error {
	ctx, span := drawCtx.Tracer.Start(drawCtx.Ctx, "pipeline.PrizeSelect")
	defer span.End()

	award, err := h.selectAndAward(ctx, drawCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prize award failed")
		drawCtx.RecordStage(StageResult{Stage: stagePrizeSelect, Status: StageFailed, Err: err})
		return err
	}

	drawCtx.Award = *award
	span.SetAttributes(
		attribute.Int64("award.prize_id", award.Prize.ID),
		attribute.String("award.tier", string(award.Tier)),
		attribute.Bool("award.inventory_debt", award.InventoryDebt != nil),
		attribute.Bool("award.budget_debt", award.BudgetDebt != nil),
	)
	drawCtx.RecordStage(StageResult{Stage: stagePrizeSelect, Status: StageOk, Reason: string(award.Tier)})

	return h.executeNext(drawCtx)
}

// selectAndAward 从落定档位起沿降级路径逐档尝试发奖
func (h *PrizeSelectHandler) selectAndAward(ctx context.Context, drawCtx *DrawContext) (*AwardOutcome, error) {
	// 预设来源钦定的是具体奖品而不止档位，优先尝试该奖品本身
	if preset, ok := drawCtx.Decision.(domain.PresetSource); ok {
		prize, err := drawCtx.Prizes.FindByID(ctx, preset.PrizeID)
		if err != nil {
			return nil, err
		}
		award, _, err := h.tryAwardPrize(ctx, drawCtx, prize)
		if err != nil {
			return nil, err
		}
		if award != nil {
			return award, nil
		}
		// 预设奖品连欠账都发不出去（欠账上限），从其档位继续降级
		logger.Ctx(ctx).Warn().
			Int64("preset_prize_id", preset.PrizeID).
			Msg("preset prize blocked by debt ceiling, downgrading")
	}

	start := drawCtx.Pick.Selected.Index()
	if start < 0 {
		return nil, fmt.Errorf("%w: unknown tier %q", domain.ErrInvalidConfiguration, drawCtx.Pick.Selected)
	}

	for i := start; i < len(domain.TierOrder); i++ {
		tier := domain.TierOrder[i]
		if tier != drawCtx.Pick.Selected && tier != lastTier(drawCtx.Pick.DowngradePath) {
			// 发奖阶段引起的额外降级同样计入轨迹
			drawCtx.Pick.DowngradePath = append(drawCtx.Pick.DowngradePath, tier)
		}

		// 1. 严格候选：在架且有库存（或无限库存）
		strict := make([]*domain.Prize, 0, 4)
		loose := make([]*domain.Prize, 0, 4)
		for _, p := range drawCtx.Pool.TierPrizes(tier) {
			if p.Selectable() {
				strict = append(strict, p)
			} else if p.Status == domain.PrizeStatusActive {
				loose = append(loose, p)
			}
		}

		if prize := WeightedPick(strict, drawCtx.RNG); prize != nil {
			award, _, err := h.tryAwardPrize(ctx, drawCtx, prize)
			if err != nil {
				return nil, err
			}
			if award != nil {
				award.Tier = tier
				return award, nil
			}
			// 欠账上限拦截，继续向下一档走
			continue
		}

		// 2. 无严格候选：欠账发奖
		if prize := WeightedPick(loose, drawCtx.RNG); prize != nil {
			award, _, err := h.tryAwardPrize(ctx, drawCtx, prize)
			if err != nil {
				return nil, err
			}
			if award != nil {
				award.Tier = tier
				return award, nil
			}
		}
		// 本档发不出去，降级继续
	}

	// 兜底档按配置保证永远可发；走到这里只剩两种解释：
	// 欠账上限收得过紧，或兜底档配置本身损坏
	if drawCtx.Pool.HasPrizes(domain.TierFallback) {
		return nil, fmt.Errorf("%w: fallback award blocked", domain.ErrDebtCeilingExceeded)
	}
	return nil, fmt.Errorf("%w: campaign %d", domain.ErrInsufficientResource, drawCtx.CampaignID)
}

// tryAwardPrize 对单个奖品执行"严格 → 欠账"两段式发奖
// 返回 (award, blocked, err)：blocked=true 表示被欠账上限拦截，可继续降级
//
// 两段的上限预检全部通过后才落欠账台账：任一段被拦截而本奖品发不出去时，
// 事务内不得留下半笔 PENDING 欠账
func (h *PrizeSelectHandler) tryAwardPrize(ctx context.Context, drawCtx *DrawContext,
	prize *domain.Prize) (*AwardOutcome, bool, error) {

	award := &AwardOutcome{Prize: prize, Tier: prize.Tier}

	// --- 库存段 ---
	if !prize.Unlimited {
		deducted := false
		if prize.Stock > 0 {
			ok, err := drawCtx.Prizes.DecrementStock(ctx, prize.ID)
			if err != nil {
				return nil, false, err
			}
			// 条件扣减失败说明并发抽奖先扣走了最后一件，转入欠账
			deducted = ok
		}
		if !deducted {
			debt, blocked, err := h.prepareInventoryDebt(ctx, drawCtx, prize)
			if err != nil {
				return nil, false, err
			}
			if blocked {
				return nil, true, nil
			}
			award.InventoryDebt = debt
		} else {
			prize.Stock--
		}
	}

	// --- 预算段 ---
	if prize.ValuePoints > 0 {
		strictOK, err := drawCtx.Campaigns.AddSpentBudget(ctx, drawCtx.CampaignID, prize.ValuePoints, true)
		if err != nil {
			return nil, false, err
		}
		if !strictOK {
			debt, blocked, err := h.prepareBudgetDebt(ctx, drawCtx, prize)
			if err != nil {
				return nil, false, err
			}
			if blocked {
				// 预算欠账被拦截，回补已扣库存后降级；库存欠账此刻尚未落库，直接丢弃
				if !prize.Unlimited && award.InventoryDebt == nil {
					if err := drawCtx.Prizes.AdjustStock(ctx, prize.ID, 1); err != nil {
						return nil, false, err
					}
					prize.Stock++
				}
				return nil, true, nil
			}
			award.BudgetDebt = debt
			// 欠账发奖仍然计入已消耗预算，保证台账可对平
			if _, err := drawCtx.Campaigns.AddSpentBudget(ctx, drawCtx.CampaignID, prize.ValuePoints, false); err != nil {
				return nil, false, err
			}
		}
		drawCtx.Campaign.SpentBudget += prize.ValuePoints
	}

	if award.InventoryDebt != nil {
		if err := drawCtx.Debts.CreateInventoryDebt(ctx, award.InventoryDebt); err != nil {
			return nil, false, err
		}
	}
	if award.BudgetDebt != nil {
		if err := drawCtx.Debts.CreateBudgetDebt(ctx, award.BudgetDebt); err != nil {
			return nil, false, err
		}
	}

	return award, false, nil
}

// prepareInventoryDebt 构造一笔库存欠账并做上限预检，不落库
// 落库由 tryAwardPrize 在两段预检全部通过后统一执行
func (h *PrizeSelectHandler) prepareInventoryDebt(ctx context.Context, drawCtx *DrawContext,
	prize *domain.Prize) (*domain.InventoryDebt, bool, error) {

	limit, err := drawCtx.Debts.FindDebtLimit(ctx, drawCtx.CampaignID)
	if err != nil {
		return nil, false, err
	}
	outstanding, err := drawCtx.Debts.OutstandingInventory(ctx, drawCtx.CampaignID)
	if err != nil {
		return nil, false, err
	}
	if !limit.AllowInventory(outstanding, 1) {
		logger.Ctx(ctx).Warn().
			Int64("campaign_id", drawCtx.CampaignID).
			Int64("prize_id", prize.ID).
			Int64("outstanding", outstanding).
			Msg("inventory debt ceiling reached")
		return nil, true, nil
	}

	debt := &domain.InventoryDebt{
		ID:              uuid.NewString(),
		CampaignID:      drawCtx.CampaignID,
		PrizeID:         prize.ID,
		PresetCreatorID: presetCreator(drawCtx),
		DebtQuantity:    1,
		Status:          domain.DebtStatusPending,
		CreatedAt:       drawCtx.Now,
	}
	return debt, false, nil
}

// prepareBudgetDebt 构造一笔预算欠账并做上限预检，不落库，缺口按活动剩余预算快照计算
func (h *PrizeSelectHandler) prepareBudgetDebt(ctx context.Context, drawCtx *DrawContext,
	prize *domain.Prize) (*domain.BudgetDebt, bool, error) {

	remaining := drawCtx.Campaign.RemainingBudget()
	shortfall := prize.ValuePoints
	if remaining > 0 && remaining < prize.ValuePoints {
		shortfall = prize.ValuePoints - remaining
	}

	limit, err := drawCtx.Debts.FindDebtLimit(ctx, drawCtx.CampaignID)
	if err != nil {
		return nil, false, err
	}
	outstanding, err := drawCtx.Debts.OutstandingBudget(ctx, drawCtx.CampaignID)
	if err != nil {
		return nil, false, err
	}
	if !limit.AllowBudget(outstanding, shortfall) {
		logger.Ctx(ctx).Warn().
			Int64("campaign_id", drawCtx.CampaignID).
			Int64("prize_id", prize.ID).
			Int64("shortfall", shortfall).
			Int64("outstanding", outstanding).
			Msg("budget debt ceiling reached")
		return nil, true, nil
	}

	debt := &domain.BudgetDebt{
		ID:              uuid.NewString(),
		CampaignID:      drawCtx.CampaignID,
		PrizeID:         prize.ID,
		PresetCreatorID: presetCreator(drawCtx),
		Source:          domain.BudgetSourcePool,
		DebtAmount:      shortfall,
		Status:          domain.DebtStatusPending,
		CreatedAt:       drawCtx.Now,
	}
	return debt, false, nil
}

func presetCreator(drawCtx *DrawContext) int64 {
	if preset, ok := drawCtx.Decision.(domain.PresetSource); ok {
		return preset.CreatorID
	}
	return 0
}

func lastTier(path []domain.Tier) domain.Tier {
	if len(path) == 0 {
		return ""
	}
	return path[len(path)-1]
}
