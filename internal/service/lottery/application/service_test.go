package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace/noop"

	"lucky/internal/service/lottery/domain"
)

var testNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

// fixedRNG 每次都返回同一个值（越界时夹到 n-1），用来钦定档位落点
type fixedRNG struct{ v int64 }

func (r fixedRNG) Int64N(n int64) int64 {
	if r.v >= n {
		return n - 1
	}
	return r.v
}

func seedCampaign(store *memStore) {
	store.campaigns[1] = &domain.Campaign{
		ID:          1,
		Name:        "spring-festival",
		Status:      domain.CampaignStatusActive,
		StartAt:     testNow.AddDate(0, -1, 0),
		EndAt:       testNow.AddDate(0, 1, 0),
		CostPoints:  10,
		TotalBudget: 100_000,
		BaseWeights: domain.WeightVector{High: 50_000, Mid: 150_000, Low: 300_000, Fallback: 500_000},
		Pity:        domain.DefaultPityPolicy(),
		Guarantee:   domain.GuaranteeConfig{Enabled: true, Threshold: 5},
	}
	store.prizes[1] = &domain.Prize{
		ID: 1, CampaignID: 1, Name: "grand-points", Kind: domain.PrizeKindPoints,
		Tier: domain.TierHigh, Status: domain.PrizeStatusActive, Stock: 1, ValuePoints: 500,
	}
	store.prizes[2] = &domain.Prize{
		ID: 2, CampaignID: 1, Name: "coupon", Kind: domain.PrizeKindVirtual,
		Tier: domain.TierMid, Status: domain.PrizeStatusActive, Stock: 10, ValuePoints: 50,
	}
	store.prizes[3] = &domain.Prize{
		ID: 3, CampaignID: 1, Name: "sticker", Kind: domain.PrizeKindVirtual,
		Tier: domain.TierLow, Status: domain.PrizeStatusActive, Stock: 10, ValuePoints: 10,
	}
	store.prizes[4] = &domain.Prize{
		ID: 4, CampaignID: 1, Name: "thanks", Kind: domain.PrizeKindVirtual,
		Tier: domain.TierFallback, Status: domain.PrizeStatusActive, Unlimited: true,
	}
}

func newTestService(store *memStore, rng domain.RandomSource) (*LotteryService, *fakeLedger, *fakeIdemStore, *fakeNotifier, *fakePressure) {
	ledger := newFakeLedger()
	idem := newFakeIdemStore()
	notifier := &fakeNotifier{}
	pressure := &fakePressure{}
	tracer := noop.NewTracerProvider().Tracer("test")
	svc := NewLotteryService(store, ledger, idem, notifier, &fakeRules{allow: true}, pressure, tracer).
		WithRandomSource(rng).
		WithClock(func() time.Time { return testNow })
	return svc, ledger, idem, notifier, pressure
}

func TestDrawHappyPath(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	svc, ledger, idem, notifier, pressure := newTestService(store, fixedRNG{999_999})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "draw-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.SelectedTier != string(domain.TierFallback) {
		t.Fatalf("tier = %s, want FALLBACK", result.SelectedTier)
	}
	if result.DecisionSource != string(domain.DecisionNormal) {
		t.Fatalf("source = %s, want NORMAL", result.DecisionSource)
	}
	if result.Replayed {
		t.Fatal("fresh draw marked as replayed")
	}
	if result.PrizeID != 4 {
		t.Fatalf("prize = %d, want fallback prize 4", result.PrizeID)
	}

	if got := ledger.debits["draw-1"]; got != 10 {
		t.Fatalf("debited %d, want cost 10", got)
	}
	if _, ok := store.records["draw-1"]; !ok {
		t.Fatal("draw record not persisted")
	}
	if _, ok, _ := idem.Get(context.Background(), "draw-1"); !ok {
		t.Fatal("result not cached for idempotent replay")
	}
	if len(notifier.published) != 1 {
		t.Fatalf("published %d events, want 1", len(notifier.published))
	}
	if pressure.recorded != 1 {
		t.Fatalf("pressure recorded %d draws, want 1", pressure.recorded)
	}

	state := store.experiences[expKey(1, 1)]
	if state == nil || state.TotalDrawCount != 1 {
		t.Fatalf("experience state not updated: %+v", state)
	}
	if state.EmptyStreak != 1 {
		t.Fatalf("fallback draw should extend empty streak, got %d", state.EmptyStreak)
	}
}

func TestDrawIdempotentReplayFromCache(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	svc, ledger, _, _, _ := newTestService(store, fixedRNG{999_999})

	req := &DrawRequest{UserID: 1, CampaignID: 1, IdempotencyKey: "dup-1"}
	first, err := svc.Draw(context.Background(), req)
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}
	second, err := svc.Draw(context.Background(), req)
	if err != nil {
		t.Fatalf("replay draw: %v", err)
	}
	if !second.Replayed {
		t.Fatal("replay not marked")
	}
	if second.DrawID != first.DrawID {
		t.Fatalf("replay DrawID %s != original %s", second.DrawID, first.DrawID)
	}
	if got := ledger.debits["dup-1"]; got != 10 {
		t.Fatalf("replay must not debit twice, total %d", got)
	}
	if state := store.experiences[expKey(1, 1)]; state.TotalDrawCount != 1 {
		t.Fatalf("replay changed state: draw count %d", state.TotalDrawCount)
	}
}

func TestDrawIdempotentReplayFromRecord(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	svc, ledger, idem, _, _ := newTestService(store, fixedRNG{999_999})

	req := &DrawRequest{UserID: 1, CampaignID: 1, IdempotencyKey: "dup-db"}
	first, err := svc.Draw(context.Background(), req)
	if err != nil {
		t.Fatalf("first draw: %v", err)
	}

	// 缓存失效后库内流水仍是幂等性的最终裁决者
	delete(idem.cache, "dup-db")

	second, err := svc.Draw(context.Background(), req)
	if err != nil {
		t.Fatalf("record replay: %v", err)
	}
	if !second.Replayed || second.DrawID != first.DrawID {
		t.Fatalf("record replay mismatch: %+v", second)
	}
	if got := ledger.debits["dup-db"]; got != 10 {
		t.Fatalf("record replay debited again, total %d", got)
	}
	if len(store.records) != 1 {
		t.Fatalf("record count = %d, want 1", len(store.records))
	}
}

func TestDrawGuaranteeForcesHighTier(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	// 本次是自上次高档中奖以来的第 5 抽，恰好命中阈值
	store.experiences[expKey(7, 1)] = &domain.UserExperienceState{
		UserID: 7, CampaignID: 1, TotalDrawCount: 4, EmptyStreak: 2,
	}
	svc, _, _, _, _ := newTestService(store, fixedRNG{999_999})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 7, CampaignID: 1, IdempotencyKey: "g-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if !result.GuaranteeApplied {
		t.Fatal("guarantee not applied on threshold draw")
	}
	if result.SelectedTier != string(domain.TierHigh) {
		t.Fatalf("tier = %s, want HIGH", result.SelectedTier)
	}
	if result.DecisionSource != string(domain.DecisionGuarantee) {
		t.Fatalf("source = %s, want GUARANTEE", result.DecisionSource)
	}
	if result.RandomValue != -1 {
		t.Fatalf("forced draw should skip random, got %d", result.RandomValue)
	}
	if store.prizes[1].Stock != 0 {
		t.Fatalf("high prize stock = %d, want 0", store.prizes[1].Stock)
	}

	state := store.experiences[expKey(7, 1)]
	if state.LastHighTierDraw != 5 || state.GuaranteeHits != 1 || state.EmptyStreak != 0 {
		t.Fatalf("state after guarantee hit: %+v", state)
	}
}

func TestDrawPresetAwardsPinnedPrize(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	store.presets[9] = &domain.DrawPreset{
		ID: 9, CampaignID: 1, UserID: 3, PrizeID: 2, CreatorID: 77,
		ExpireAt: testNow.Add(time.Hour),
	}
	svc, _, _, _, _ := newTestService(store, fixedRNG{0})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 3, CampaignID: 1, IdempotencyKey: "p-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.DecisionSource != string(domain.DecisionPreset) {
		t.Fatalf("source = %s, want PRESET", result.DecisionSource)
	}
	if result.PrizeID != 2 {
		t.Fatalf("prize = %d, want pinned prize 2", result.PrizeID)
	}
	if result.RandomValue != -1 {
		t.Fatalf("preset draw should skip random, got %d", result.RandomValue)
	}
	if !store.presets[9].Consumed {
		t.Fatal("preset not marked consumed")
	}
	if store.prizes[2].Stock != 9 {
		t.Fatalf("pinned prize stock = %d, want 9", store.prizes[2].Stock)
	}
}

func TestDrawInventoryDebtWithinCeiling(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	fallback := store.prizes[4]
	fallback.Unlimited = false
	fallback.Stock = 0
	store.limits[0] = &domain.DebtLimit{InventoryDebtLimit: 5, BudgetDebtLimit: 0}
	svc, _, _, _, _ := newTestService(store, fixedRNG{999_999})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "debt-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if len(result.DebtCreated) != 1 || result.DebtCreated[0].Kind != "inventory" {
		t.Fatalf("debt created = %+v, want one inventory debt", result.DebtCreated)
	}
	if result.DebtCreated[0].Amount != 1 {
		t.Fatalf("debt amount = %d, want 1", result.DebtCreated[0].Amount)
	}
	if len(store.invDebts) != 1 {
		t.Fatalf("ledger has %d inventory debts, want 1", len(store.invDebts))
	}
	for _, d := range store.invDebts {
		if d.Status != domain.DebtStatusPending || d.PrizeID != 4 {
			t.Fatalf("debt row: %+v", d)
		}
	}
	if store.prizes[4].Stock != 0 {
		t.Fatalf("debt award must not touch stock, got %d", store.prizes[4].Stock)
	}
}

func TestDrawRejectedWhenDebtCeilingExhausted(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	for _, p := range store.prizes {
		p.Unlimited = false
		p.Stock = 0
	}
	store.limits[0] = &domain.DebtLimit{InventoryDebtLimit: 0, BudgetDebtLimit: 0}
	svc, ledger, _, _, _ := newTestService(store, fixedRNG{999_999})

	_, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "ceil-1",
	})
	if !errors.Is(err, domain.ErrDebtCeilingExceeded) {
		t.Fatalf("err = %v, want ErrDebtCeilingExceeded", err)
	}

	// 拒绝的抽奖不留任何痕迹：无扣费、无流水、无体验状态变更
	if len(ledger.debits) != 0 {
		t.Fatalf("rejected draw debited: %v", ledger.debits)
	}
	if len(store.records) != 0 {
		t.Fatal("rejected draw persisted a record")
	}
	if len(store.experiences) != 0 {
		t.Fatal("rejected draw leaked experience state")
	}
	if len(store.invDebts) != 0 {
		t.Fatal("rejected draw recorded debt")
	}
}

func TestDrawLedgerFailureRollsBackEverything(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	svc, ledger, _, notifier, _ := newTestService(store, fixedRNG{0}) // 落在高档

	ledger.debitErr = errors.New("ledger down")

	_, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "led-1",
	})
	if !errors.Is(err, domain.ErrLedgerUnavailable) {
		t.Fatalf("err = %v, want ErrLedgerUnavailable", err)
	}
	if store.prizes[1].Stock != 1 {
		t.Fatalf("stock = %d, want rollback to 1", store.prizes[1].Stock)
	}
	if store.campaigns[1].SpentBudget != 0 {
		t.Fatalf("budget = %d, want rollback to 0", store.campaigns[1].SpentBudget)
	}
	if len(store.records) != 0 {
		t.Fatal("failed draw persisted a record")
	}
	if len(notifier.published) != 0 {
		t.Fatal("failed draw published a result")
	}
}

func TestDrawBatchContinuesPastDebtCeiling(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	fallback := store.prizes[4]
	fallback.Unlimited = false
	fallback.Stock = 0
	store.limits[0] = &domain.DebtLimit{InventoryDebtLimit: 1, BudgetDebtLimit: 0}
	svc, _, _, _, _ := newTestService(store, fixedRNG{999_999})

	batch, err := svc.DrawBatch(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "batch", Count: 2,
	})
	if err != nil {
		t.Fatalf("DrawBatch: %v", err)
	}
	if len(batch.Results) != 1 {
		t.Fatalf("results = %d, want 1", len(batch.Results))
	}
	if len(batch.Failed) != 1 || batch.Failed[0].Index != 1 {
		t.Fatalf("failed = %+v, want single failure at index 1", batch.Failed)
	}
	if len(store.invDebts) != 1 {
		t.Fatalf("inventory debts = %d, want exactly the ceiling", len(store.invDebts))
	}
}

func TestDrawIneligibleUserRejected(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	store.campaigns[1].EligibilityRule = `user.vip == true`

	svc, ledger, _, _, _ := newTestService(store, fixedRNG{0})
	svc.rules = &fakeRules{allow: false}

	_, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "elig-1",
		UserFact: map[string]interface{}{"vip": false},
	})
	if !errors.Is(err, domain.ErrCampaignNotActive) {
		t.Fatalf("err = %v, want ErrCampaignNotActive", err)
	}
	if len(ledger.debits) != 0 {
		t.Fatal("ineligible draw must not debit")
	}
}

func TestDrawRequestValidation(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	svc, _, _, _, _ := newTestService(store, fixedRNG{0})

	cases := []*DrawRequest{
		{UserID: 0, CampaignID: 1, IdempotencyKey: "k"},
		{UserID: 1, CampaignID: 0, IdempotencyKey: "k"},
		{UserID: 1, CampaignID: 1, IdempotencyKey: ""},
	}
	for i, req := range cases {
		if _, err := svc.Draw(context.Background(), req); !errors.Is(err, domain.ErrInvalidConfiguration) {
			t.Fatalf("case %d: err = %v, want ErrInvalidConfiguration", i, err)
		}
	}
}

func TestDrawDailyLimitEnforced(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	store.campaigns[1].DailyLimit = 1
	svc, _, _, _, _ := newTestService(store, fixedRNG{999_999})

	if _, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "lim-1",
	}); err != nil {
		t.Fatalf("first draw: %v", err)
	}
	_, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 1, IdempotencyKey: "lim-2",
	})
	if !errors.Is(err, domain.ErrDrawLimitExceeded) {
		t.Fatalf("err = %v, want ErrDrawLimitExceeded", err)
	}
}

func TestDrawCampaignNotFound(t *testing.T) {
	store := newMemStore()
	svc, _, _, _, _ := newTestService(store, fixedRNG{0})

	_, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 1, CampaignID: 404, IdempotencyKey: "nf-1",
	})
	if !errors.Is(err, domain.ErrCampaignNotFound) {
		t.Fatalf("err = %v, want ErrCampaignNotFound", err)
	}
}

func TestDrawLeavesNoDebtWhenAwardBlockedMidWay(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	// 预设钦定一个零库存、有成本的奖品；预算耗尽且预算欠账上限为 0，
	// 库存欠账上限却有余量：库存段通过、预算段被拦截
	store.prizes[2].Stock = 0
	store.campaigns[1].SpentBudget = store.campaigns[1].TotalBudget
	store.limits[0] = &domain.DebtLimit{InventoryDebtLimit: 10, BudgetDebtLimit: 0}
	store.presets[9] = &domain.DrawPreset{
		ID: 9, CampaignID: 1, UserID: 3, PrizeID: 2, CreatorID: 77,
		ExpireAt: testNow.Add(time.Hour),
	}
	svc, _, _, _, _ := newTestService(store, fixedRNG{0})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 3, CampaignID: 1, IdempotencyKey: "mixed-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	// 中档、低档都因预算拦截发不出去，最终落在零成本兜底
	if result.SelectedTier != string(domain.TierFallback) {
		t.Fatalf("tier = %s, want FALLBACK", result.SelectedTier)
	}
	if len(result.DebtCreated) != 0 {
		t.Fatalf("debt created = %+v, want none", result.DebtCreated)
	}
	// 被拦截的发奖尝试不得留下任何 PENDING 台账
	if len(store.invDebts) != 0 {
		t.Fatalf("committed %d inventory debts for prizes never awarded", len(store.invDebts))
	}
	if len(store.budDebts) != 0 {
		t.Fatalf("committed %d budget debts for prizes never awarded", len(store.budDebts))
	}
	// 低档严格扣减过的库存必须回补
	if store.prizes[3].Stock != 10 {
		t.Fatalf("low prize stock = %d, want 10 after revert", store.prizes[3].Stock)
	}
}

func TestDrawGuaranteePreservedWhenHighTierBlocked(t *testing.T) {
	store := newMemStore()
	seedCampaign(store)
	store.prizes[1].Stock = 0
	store.limits[0] = &domain.DebtLimit{InventoryDebtLimit: 0, BudgetDebtLimit: 0}
	store.experiences[expKey(7, 1)] = &domain.UserExperienceState{
		UserID: 7, CampaignID: 1, TotalDrawCount: 4,
	}
	svc, _, _, _, _ := newTestService(store, fixedRNG{999_999})

	result, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 7, CampaignID: 1, IdempotencyKey: "gb-1",
	})
	if err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if result.DecisionSource != string(domain.DecisionGuarantee) {
		t.Fatalf("source = %s, want GUARANTEE", result.DecisionSource)
	}
	if result.SelectedTier != string(domain.TierMid) {
		t.Fatalf("tier = %s, want MID after downgrade", result.SelectedTier)
	}

	// 高档没发出去，保底不算兑现：计数器原样保留
	state := store.experiences[expKey(7, 1)]
	if state.GuaranteeHits != 0 {
		t.Fatalf("guarantee hits = %d, want 0", state.GuaranteeHits)
	}
	if state.LastHighTierDraw != 0 {
		t.Fatalf("last high tier draw = %d, want 0", state.LastHighTierDraw)
	}

	// 下一抽继续强制高档
	second, err := svc.Draw(context.Background(), &DrawRequest{
		UserID: 7, CampaignID: 1, IdempotencyKey: "gb-2",
	})
	if err != nil {
		t.Fatalf("second draw: %v", err)
	}
	if second.DecisionSource != string(domain.DecisionGuarantee) {
		t.Fatalf("second source = %s, want GUARANTEE again", second.DecisionSource)
	}
}
