// internal/service/lottery/application/settlement.go
package application

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/domain"
)

// ClearDebt 对一笔欠账执行一次单调核销
//
// 核销与对应的余额调整在同一个事务内落库：
//   - 库存欠账：补货的奖品直接划拨给欠账，同步扣留等量库存，绝不会二次进入奖池；
//   - 预算欠账：补充的预算冲减活动已消耗额度。
//
// cleared == debt_total 时状态恰好迁移一次到 written_off
func (s *LotteryService) ClearDebt(ctx context.Context, req *ClearDebtRequest) (*ClearDebtResponse, error) {
	ctx, span := s.tracer.Start(ctx, "service.ClearDebt")
	defer span.End()

	span.SetAttributes(
		attribute.String("debt.kind", req.Kind),
		attribute.String("debt.id", req.DebtID),
		attribute.Int64("debt.clear_amount", req.Amount),
	)

	var resp *ClearDebtResponse
	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		switch req.Kind {
		case "inventory":
			debt, err := tx.Debts.FindInventoryDebt(ctx, req.DebtID)
			if err != nil {
				return err
			}
			if debt == nil {
				return fmt.Errorf("%w: inventory debt %s", domain.ErrDebtNotFound, req.DebtID)
			}
			if err := debt.Clear(req.Amount); err != nil {
				return err
			}
			// 补货划拨：扣留等量库存背书已发出去的奖品
			if err := tx.Prizes.AdjustStock(ctx, debt.PrizeID, -req.Amount); err != nil {
				return err
			}
			if err := tx.Debts.SaveInventoryDebt(ctx, debt); err != nil {
				return err
			}
			resp = &ClearDebtResponse{
				DebtID:      debt.ID,
				Outstanding: debt.Outstanding(),
				Status:      string(debt.Status),
			}
			return nil

		case "budget":
			debt, err := tx.Debts.FindBudgetDebt(ctx, req.DebtID)
			if err != nil {
				return err
			}
			if debt == nil {
				return fmt.Errorf("%w: budget debt %s", domain.ErrDebtNotFound, req.DebtID)
			}
			if err := debt.Clear(req.Amount); err != nil {
				return err
			}
			// 预算补充冲减已消耗额度
			if _, err := tx.Campaigns.AddSpentBudget(ctx, debt.CampaignID, -req.Amount, false); err != nil {
				return err
			}
			if err := tx.Debts.SaveBudgetDebt(ctx, debt); err != nil {
				return err
			}
			resp = &ClearDebtResponse{
				DebtID:      debt.ID,
				Outstanding: debt.Outstanding(),
				Status:      string(debt.Status),
			}
			return nil

		default:
			return fmt.Errorf("%w: unknown debt kind %q", domain.ErrInvalidConfiguration, req.Kind)
		}
	})
	if err != nil {
		return nil, err
	}

	logger.Ctx(ctx).Info().
		Str("debt_id", resp.DebtID).
		Str("status", resp.Status).
		Int64("outstanding", resp.Outstanding).
		Msg("debt cleared")
	return resp, nil
}

// DebtSummaryByCampaign 返回活动维度的欠账聚合，运营大盘用，只读
func (s *LotteryService) DebtSummaryByCampaign(ctx context.Context, campaignID int64) (*DebtSummaryView, error) {
	var view *DebtSummaryView
	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		summary, err := tx.Debts.SummarizeByCampaign(ctx, campaignID)
		if err != nil {
			return err
		}
		view = toSummaryView(summary)
		return nil
	})
	return view, err
}

// DebtSummaryByPrize 返回奖品维度的欠账聚合
func (s *LotteryService) DebtSummaryByPrize(ctx context.Context, campaignID int64) ([]*DebtSummaryView, error) {
	var views []*DebtSummaryView
	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		summaries, err := tx.Debts.SummarizeByPrize(ctx, campaignID)
		if err != nil {
			return err
		}
		for _, summary := range summaries {
			views = append(views, toSummaryView(summary))
		}
		return nil
	})
	return views, err
}

// DebtSummaryByCreator 返回预设创建人维度的欠账聚合
func (s *LotteryService) DebtSummaryByCreator(ctx context.Context, campaignID int64) ([]*DebtSummaryView, error) {
	var views []*DebtSummaryView
	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		summaries, err := tx.Debts.SummarizeByCreator(ctx, campaignID)
		if err != nil {
			return err
		}
		for _, summary := range summaries {
			views = append(views, toSummaryView(summary))
		}
		return nil
	})
	return views, err
}

func toSummaryView(summary *domain.DebtSummary) *DebtSummaryView {
	if summary == nil {
		return nil
	}
	return &DebtSummaryView{
		GroupKey:             summary.GroupKey,
		PendingCount:         summary.PendingCount,
		InventoryOutstanding: summary.InventoryOutstanding,
		BudgetOutstanding:    summary.BudgetOutstanding,
	}
}
