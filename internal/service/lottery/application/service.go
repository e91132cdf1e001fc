// internal/service/lottery/application/service.go
package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/application/pipeline"
	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/domain/port"
)

// maxConflictRetries 行锁/版本冲突的透明重试上限
const maxConflictRetries = 3

// LotteryService 是抽奖决策管线的应用服务
// 负责幂等裁决、事务边界、账本 SAGA 与结果投递；决策本身全部在管线内完成
type LotteryService struct {
	uow      domain.UnitOfWork
	ledger   port.AssetLedger
	idem     port.IdempotencyStore
	notifier port.DrawNotifier
	rules    port.RuleEngine
	pressure port.PressureGauge
	tracer   trace.Tracer
	rng      domain.RandomSource
	now      func() time.Time
}

// NewLotteryService 创建抽奖应用服务实例
func NewLotteryService(uow domain.UnitOfWork, ledger port.AssetLedger, idem port.IdempotencyStore,
	notifier port.DrawNotifier, rules port.RuleEngine, pressure port.PressureGauge,
	tracer trace.Tracer) *LotteryService {
	return &LotteryService{
		uow:      uow,
		ledger:   ledger,
		idem:     idem,
		notifier: notifier,
		rules:    rules,
		pressure: pressure,
		tracer:   tracer,
		rng:      domain.DefaultRNG(),
		now:      time.Now,
	}
}

// WithRandomSource 注入自定义随机源（测试/仿真用）
func (s *LotteryService) WithRandomSource(rng domain.RandomSource) *LotteryService {
	s.rng = rng
	return s
}

// WithClock 注入自定义时钟（测试用）
func (s *LotteryService) WithClock(now func() time.Time) *LotteryService {
	s.now = now
	return s
}

// Draw 执行一次抽奖
// 同一幂等键的重复请求（串行或并发）恰好产生一次状态变更，并返回相同的结果载荷
func (s *LotteryService) Draw(ctx context.Context, req *DrawRequest) (*DrawResult, error) {
	ctx, span := s.tracer.Start(ctx, "service.Draw")
	defer span.End()

	if req.UserID <= 0 || req.CampaignID <= 0 || req.IdempotencyKey == "" {
		return nil, fmt.Errorf("%w: missing user/campaign/idempotency key", domain.ErrInvalidConfiguration)
	}

	span.SetAttributes(
		attribute.Int64("user.id", req.UserID),
		attribute.Int64("campaign.id", req.CampaignID),
		attribute.String("draw.idempotency_key", req.IdempotencyKey),
	)

	// 热路径快速短路：缓存命中直接回放，不开事务
	if payload, ok, err := s.idem.Get(ctx, req.IdempotencyKey); err == nil && ok {
		var result DrawResult
		if err := json.Unmarshal([]byte(payload), &result); err == nil {
			result.Replayed = true
			span.AddEvent("idempotent replay from cache")
			return &result, nil
		}
	}

	var result *DrawResult
	var err error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		result, err = s.drawOnce(ctx, req)
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrDuplicateDraw) {
			// 并发重试已经先落库，回放权威流水
			return s.replayFromRecord(ctx, req.IdempotencyKey)
		}
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "draw failed")
			return nil, err
		}
		logger.Ctx(ctx).Warn().
			Int("attempt", attempt+1).
			Str("idempotency_key", req.IdempotencyKey).
			Msg("draw hit concurrency conflict, retrying")
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.afterCommit(ctx, req.IdempotencyKey, result)
	return result, nil
}

// DrawBatch 在一个请求内执行多次抽奖
// 单抽被欠账上限拒绝只标记该抽失败，其余照常执行，绝不拖垮整批
func (s *LotteryService) DrawBatch(ctx context.Context, req *DrawRequest) (*BatchDrawResult, error) {
	count := req.Count
	if count <= 0 {
		count = 1
	}
	batch := &BatchDrawResult{}
	for i := 0; i < count; i++ {
		single := *req
		single.IdempotencyKey = fmt.Sprintf("%s#%d", req.IdempotencyKey, i)
		result, err := s.Draw(ctx, &single)
		if err != nil {
			if errors.Is(err, domain.ErrDebtCeilingExceeded) {
				batch.Failed = append(batch.Failed, BatchFailure{Index: i, Reason: err.Error()})
				continue
			}
			return nil, err
		}
		batch.Results = append(batch.Results, result)
	}
	return batch, nil
}

// drawOnce 在单个数据库事务内跑完整条决策管线
func (s *LotteryService) drawOnce(ctx context.Context, req *DrawRequest) (*DrawResult, error) {
	var result *DrawResult

	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		// 库内流水是幂等性的最终裁决者
		if record, err := tx.Records.FindByIdempotencyKey(ctx, req.IdempotencyKey); err != nil {
			return err
		} else if record != nil {
			replay, err := resultFromRecord(record)
			if err != nil {
				return err
			}
			result = replay
			return nil
		}

		drawCtx := &pipeline.DrawContext{
			Ctx:            ctx,
			Tracer:         s.tracer,
			Now:            s.now(),
			RNG:            s.rng,
			UserID:         req.UserID,
			CampaignID:     req.CampaignID,
			IdempotencyKey: req.IdempotencyKey,
			UserFact:       req.UserFact,
			Campaigns:      tx.Campaigns,
			Prizes:         tx.Prizes,
			Experiences:    tx.Experiences,
			Presets:        tx.Presets,
			Debts:          tx.Debts,
			Rules:          s.rules,
			Pressure:       s.pressure,
		}

		if err := pipeline.BuildDrawChain().Handle(drawCtx); err != nil {
			drawCtx.TriggerCompensation(ctx)
			return err
		}

		// 扣抽奖消耗：外部账本操作，失败即整体回滚，用户绝不会被白扣
		if cost := drawCtx.Campaign.CostPoints; cost > 0 {
			if _, err := s.ledger.Debit(ctx, req.UserID, cost, req.IdempotencyKey); err != nil {
				drawCtx.TriggerCompensation(ctx)
				return fmt.Errorf("%w: debit draw cost: %v", domain.ErrLedgerUnavailable, err)
			}
			drawCtx.AddCompensation(func(compCtx context.Context) {
				if err := s.ledger.Credit(compCtx, req.UserID, cost, "draw-refund:"+req.IdempotencyKey); err != nil {
					logger.Ctx(compCtx).Error().Err(err).
						Str("idempotency_key", req.IdempotencyKey).
						Msg("draw cost refund failed, manual intervention required")
				}
			})
		}

		// 积分类奖品经账本入账
		prize := drawCtx.Award.Prize
		if prize.Kind == domain.PrizeKindPoints && prize.ValuePoints > 0 {
			if err := s.ledger.Credit(ctx, req.UserID, prize.ValuePoints, "draw-prize:"+req.IdempotencyKey); err != nil {
				drawCtx.TriggerCompensation(ctx)
				return fmt.Errorf("%w: credit prize points: %v", domain.ErrLedgerUnavailable, err)
			}
		}

		drawResult := buildResult(drawCtx)
		payload, err := json.Marshal(drawResult)
		if err != nil {
			drawCtx.TriggerCompensation(ctx)
			return err
		}

		record := &domain.DrawRecord{
			ID:             drawResult.DrawID,
			IdempotencyKey: req.IdempotencyKey,
			UserID:         req.UserID,
			CampaignID:     req.CampaignID,
			PrizeID:        prize.ID,
			SelectedTier:   drawCtx.Award.Tier,
			DecisionSource: drawCtx.Decision.Kind(),
			ResultPayload:  string(payload),
			CreatedAt:      drawCtx.Now,
		}
		if err := tx.Records.Create(ctx, record); err != nil {
			drawCtx.TriggerCompensation(ctx)
			return err
		}

		result = drawResult
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// afterCommit 事务提交后的尽力投递：幂等缓存、结果事件
// 投递失败不回滚已提交的抽奖，只记日志
func (s *LotteryService) afterCommit(ctx context.Context, key string, result *DrawResult) {
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	if _, err := s.idem.PutNX(ctx, key, string(payload)); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Msg("idempotency cache put failed")
	}
	if s.notifier != nil {
		if err := s.notifier.PublishDrawResult(ctx, key, payload); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("draw_id", result.DrawID).Msg("draw result publish failed")
		}
	}
}

// replayFromRecord 并发幂等冲突时回放库内权威流水
func (s *LotteryService) replayFromRecord(ctx context.Context, key string) (*DrawResult, error) {
	var result *DrawResult
	err := s.uow.Within(ctx, func(tx domain.RepoSet) error {
		record, err := tx.Records.FindByIdempotencyKey(ctx, key)
		if err != nil {
			return err
		}
		if record == nil {
			return fmt.Errorf("%w: record vanished for key %s", domain.ErrConcurrencyConflict, key)
		}
		result, err = resultFromRecord(record)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func resultFromRecord(record *domain.DrawRecord) (*DrawResult, error) {
	var result DrawResult
	if err := json.Unmarshal([]byte(record.ResultPayload), &result); err != nil {
		return nil, fmt.Errorf("corrupt draw record %s: %w", record.ID, err)
	}
	result.Replayed = true
	return &result, nil
}

// buildResult 从管线上下文组装对外结果载荷
func buildResult(drawCtx *pipeline.DrawContext) *DrawResult {
	prize := drawCtx.Award.Prize

	path := make([]string, 0, len(drawCtx.Pick.DowngradePath))
	for _, tier := range drawCtx.Pick.DowngradePath {
		path = append(path, string(tier))
	}

	pityType := "none"
	if drawCtx.Pity.Triggered {
		if drawCtx.Pity.Hard {
			pityType = "hard"
		} else {
			pityType = "soft"
		}
	}

	result := &DrawResult{
		DrawID:       uuid.NewString(),
		UserID:       drawCtx.UserID,
		CampaignID:   drawCtx.CampaignID,
		SelectedTier: string(drawCtx.Award.Tier),
		PrizeID:      prize.ID,
		PrizeSnapshot: PrizeSnapshot{
			PrizeID:     prize.ID,
			Name:        prize.Name,
			Tier:        string(prize.Tier),
			ValuePoints: prize.ValuePoints,
		},
		DecisionSource:   string(drawCtx.Decision.Kind()),
		DowngradePath:    path,
		RandomValue:      drawCtx.Pick.RandomValue,
		PityApplied:      drawCtx.Pity.Triggered,
		PityType:         pityType,
		GuaranteeApplied: drawCtx.Guarantee.Triggered,
	}
	if debt := drawCtx.Award.InventoryDebt; debt != nil {
		result.DebtCreated = append(result.DebtCreated, DebtCreated{
			Kind: "inventory", DebtID: debt.ID, Amount: debt.DebtQuantity,
		})
	}
	if debt := drawCtx.Award.BudgetDebt; debt != nil {
		result.DebtCreated = append(result.DebtCreated, DebtCreated{
			Kind: "budget", DebtID: debt.ID, Amount: debt.DebtAmount,
		})
	}
	return result
}
