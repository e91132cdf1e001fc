// internal/service/lottery/application/pipeline/handler.go
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"lucky/internal/pkg/logger"
	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/domain/port"
)

// StageStatus 是单个阶段的三态结果
type StageStatus string

const (
	StageOk      StageStatus = "OK"      // 正常完成
	StageSkipped StageStatus = "SKIPPED" // 被决策来源短路跳过
	StageFailed  StageStatus = "FAILED"  // 失败，中断管线
)

// StageResult 记录一个阶段的执行结果，供可观测性与流水快照使用
type StageResult struct {
	Stage  string
	Status StageStatus
	Reason string
	Err    error
}

// PityOutcome 是保底计算阶段的输出
type PityOutcome struct {
	Triggered bool
	Hard      bool
	Permille  int64 // 实际生效的千分比系数，未触发时为 1000
	Streak    int
}

// GuaranteeOutcome 是硬保底引擎的输出
type GuaranteeOutcome struct {
	Triggered          bool
	DrawsSinceHighTier int
	Threshold          int
}

// PickOutcome 是档位选择阶段的输出
type PickOutcome struct {
	Selected      domain.Tier   // 最终落定档位
	Landed        domain.Tier   // 随机值原始命中的档位
	RandomValue   int64         // [0, WeightScale) 内的随机值，-1 表示被钦定跳过
	DowngradePath []domain.Tier // 降级轨迹，含起点与终点
	Skipped       bool          // 是否被钦定来源跳过随机选择
}

// AwardOutcome 是奖品选择与记账阶段的输出
type AwardOutcome struct {
	Prize         *domain.Prize
	Tier          domain.Tier // 实际发奖档位，可能比 PickOutcome 更深
	InventoryDebt *domain.InventoryDebt
	BudgetDebt    *domain.BudgetDebt
}

// CompensationFunc 定义补偿操作的函数签名
type CompensationFunc func(ctx context.Context)

// DrawContext 在管线各阶段间传递单次抽奖的全部数据
// 请求级生命周期，抽奖结束即销毁，绝不跨抽共享
type DrawContext struct {
	Ctx    context.Context
	Tracer trace.Tracer
	Now    time.Time
	RNG    domain.RandomSource

	// 请求参数
	UserID         int64
	CampaignID     int64
	IdempotencyKey string
	UserFact       port.Fact

	// 事务内仓储与出站端口
	Campaigns   domain.CampaignRepository
	Prizes      domain.PrizeRepository
	Experiences domain.ExperienceRepository
	Presets     domain.PresetRepository
	Debts       domain.DebtRepository
	Rules       port.RuleEngine
	Pressure    port.PressureGauge

	// 阶段输出，按执行顺序填充
	Campaign     *domain.Campaign
	Experience   *domain.UserExperienceState
	Pool         *domain.PrizePool
	Decision     domain.DecisionSource
	BudgetTier   domain.BudgetTier
	PressureTier domain.PressureTier
	Weights      domain.WeightVector // 当前已调整到的权重向量，各阶段就地推进
	Pity         PityOutcome
	Guarantee    GuaranteeOutcome
	Pick         PickOutcome
	Award        AwardOutcome

	stages []StageResult

	compensations []CompensationFunc
	compLock      sync.Mutex
}

// RecordStage 记录一个阶段结果
func (c *DrawContext) RecordStage(result StageResult) {
	c.stages = append(c.stages, result)
}

// StageResults 返回按执行顺序记录的全部阶段结果
func (c *DrawContext) StageResults() []StageResult {
	return c.stages
}

// AddCompensation 将一个补偿函数推入栈中
// LIFO：后注册的补偿先执行
func (c *DrawContext) AddCompensation(comp CompensationFunc) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]CompensationFunc{comp}, c.compensations...)
}

// TriggerCompensation 管线失败时执行所有已注册的补偿函数
func (c *DrawContext) TriggerCompensation(ctx context.Context) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	logger.Ctx(ctx).Info().
		Int64("user_id", c.UserID).
		Int64("campaign_id", c.CampaignID).
		Int("compensations", len(c.compensations)).
		Msg("executing draw compensation functions")
	for _, comp := range c.compensations {
		comp(ctx)
	}
}

// Handler 定义管线中每个阶段节点的接口
type Handler interface {
	// SetNext 设置链中的下一个处理器
	SetNext(handler Handler) Handler
	// Handle 执行当前阶段逻辑，失败即中断整条管线
	Handle(drawCtx *DrawContext) error
}

// NextHandler 是嵌入到具体阶段中的辅助结构，减少链式样板代码
type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

// executeNext 调用下一个阶段
func (h *NextHandler) executeNext(drawCtx *DrawContext) error {
	if h.next != nil {
		return h.next.Handle(drawCtx)
	}
	return nil
}

// BuildDrawChain 按固定顺序组装抽奖决策管线
// 顺序本身即业务规则：保底(Pity)先于硬保底(Guarantee)的判定由
// DecisionSourceHandler 与 PityHandler 的相对位置保证
func BuildDrawChain() Handler {
	head := new(CampaignLoadHandler)
	head.
		SetNext(new(ExperienceLoadHandler)).
		SetNext(new(PrizePoolHandler)).
		SetNext(new(DecisionSourceHandler)).
		SetNext(new(WeightMatrixHandler)).
		SetNext(new(PityHandler)).
		SetNext(new(TierPickHandler)).
		SetNext(new(PrizeSelectHandler)).
		SetNext(new(BookkeepingHandler))
	return head
}
