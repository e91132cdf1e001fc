package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/domain/port"
)

// memStore 是全部仓储的内存实现，测试用
// Within 在进入事务前做快照，fn 失败时整体回滚，模拟数据库事务语义
type memStore struct {
	mu sync.Mutex

	campaigns   map[int64]*domain.Campaign
	prizes      map[int64]*domain.Prize
	experiences map[string]*domain.UserExperienceState
	presets     map[int64]*domain.DrawPreset
	overrides   map[int64]*domain.DrawOverride
	invDebts    map[string]*domain.InventoryDebt
	budDebts    map[string]*domain.BudgetDebt
	limits      map[int64]*domain.DebtLimit
	records     map[string]*domain.DrawRecord
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:   map[int64]*domain.Campaign{},
		prizes:      map[int64]*domain.Prize{},
		experiences: map[string]*domain.UserExperienceState{},
		presets:     map[int64]*domain.DrawPreset{},
		overrides:   map[int64]*domain.DrawOverride{},
		invDebts:    map[string]*domain.InventoryDebt{},
		budDebts:    map[string]*domain.BudgetDebt{},
		limits:      map[int64]*domain.DebtLimit{},
		records:     map[string]*domain.DrawRecord{},
	}
}

func expKey(userID, campaignID int64) string {
	return fmt.Sprintf("%d/%d", userID, campaignID)
}

func (s *memStore) snapshot() *memStore {
	clone := newMemStore()
	for k, v := range s.campaigns {
		c := *v
		clone.campaigns[k] = &c
	}
	for k, v := range s.prizes {
		p := *v
		clone.prizes[k] = &p
	}
	for k, v := range s.experiences {
		e := *v
		clone.experiences[k] = &e
	}
	for k, v := range s.presets {
		p := *v
		clone.presets[k] = &p
	}
	for k, v := range s.overrides {
		o := *v
		clone.overrides[k] = &o
	}
	for k, v := range s.invDebts {
		d := *v
		clone.invDebts[k] = &d
	}
	for k, v := range s.budDebts {
		d := *v
		clone.budDebts[k] = &d
	}
	for k, v := range s.limits {
		l := *v
		clone.limits[k] = &l
	}
	for k, v := range s.records {
		r := *v
		clone.records[k] = &r
	}
	return clone
}

func (s *memStore) restore(snap *memStore) {
	s.campaigns = snap.campaigns
	s.prizes = snap.prizes
	s.experiences = snap.experiences
	s.presets = snap.presets
	s.overrides = snap.overrides
	s.invDebts = snap.invDebts
	s.budDebts = snap.budDebts
	s.limits = snap.limits
	s.records = snap.records
}

// Within 实现 domain.UnitOfWork
func (s *memStore) Within(ctx context.Context, fn func(tx domain.RepoSet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	err := fn(domain.RepoSet{
		Campaigns:   campaignRepo{s},
		Prizes:      prizeRepo{s},
		Experiences: experienceRepo{s},
		Presets:     presetRepo{s},
		Debts:       debtRepo{s},
		Records:     recordRepo{s},
	})
	if err != nil {
		s.restore(snap)
	}
	return err
}

type campaignRepo struct{ s *memStore }

func (r campaignRepo) FindByID(ctx context.Context, id int64) (*domain.Campaign, error) {
	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, domain.ErrCampaignNotFound
	}
	cp := *c
	return &cp, nil
}

func (r campaignRepo) AddSpentBudget(ctx context.Context, id int64, amount int64, strict bool) (bool, error) {
	c, ok := r.s.campaigns[id]
	if !ok {
		return false, domain.ErrCampaignNotFound
	}
	if strict && amount > 0 && c.TotalBudget-c.SpentBudget < amount {
		return false, nil
	}
	c.SpentBudget += amount
	return true, nil
}

type prizeRepo struct{ s *memStore }

func (r prizeRepo) FindByCampaign(ctx context.Context, campaignID int64) ([]*domain.Prize, error) {
	var out []*domain.Prize
	for _, p := range r.s.prizes {
		if p.CampaignID == campaignID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r prizeRepo) FindByID(ctx context.Context, id int64) (*domain.Prize, error) {
	p, ok := r.s.prizes[id]
	if !ok {
		return nil, domain.ErrInsufficientResource
	}
	cp := *p
	return &cp, nil
}

func (r prizeRepo) DecrementStock(ctx context.Context, prizeID int64) (bool, error) {
	p, ok := r.s.prizes[prizeID]
	if !ok {
		return false, nil
	}
	if p.Unlimited {
		return true, nil
	}
	if p.Stock <= 0 {
		return false, nil
	}
	p.Stock--
	return true, nil
}

func (r prizeRepo) AdjustStock(ctx context.Context, prizeID int64, delta int64) error {
	p, ok := r.s.prizes[prizeID]
	if !ok {
		return domain.ErrInsufficientResource
	}
	if p.Stock+delta < 0 {
		return domain.ErrInsufficientResource
	}
	p.Stock += delta
	return nil
}

type experienceRepo struct{ s *memStore }

func (r experienceRepo) GetForUpdate(ctx context.Context, userID, campaignID int64) (*domain.UserExperienceState, error) {
	key := expKey(userID, campaignID)
	state, ok := r.s.experiences[key]
	if !ok {
		state = domain.NewUserExperienceState(userID, campaignID)
		r.s.experiences[key] = state
	}
	cp := *state
	return &cp, nil
}

func (r experienceRepo) Save(ctx context.Context, state *domain.UserExperienceState) error {
	key := expKey(state.UserID, state.CampaignID)
	current, ok := r.s.experiences[key]
	if !ok || current.Version != state.Version {
		return domain.ErrConcurrencyConflict
	}
	cp := *state
	cp.Version++
	r.s.experiences[key] = &cp
	state.Version++
	return nil
}

type presetRepo struct{ s *memStore }

func (r presetRepo) FindUsablePreset(ctx context.Context, campaignID, userID int64, now time.Time) (*domain.DrawPreset, error) {
	for _, p := range r.s.presets {
		if p.CampaignID == campaignID && p.UserID == userID && p.Usable(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r presetRepo) FindUsableOverride(ctx context.Context, campaignID, userID int64, now time.Time) (*domain.DrawOverride, error) {
	for _, o := range r.s.overrides {
		if o.CampaignID == campaignID && o.UserID == userID && o.Usable(now) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, nil
}

func (r presetRepo) MarkPresetConsumed(ctx context.Context, presetID int64) error {
	p, ok := r.s.presets[presetID]
	if !ok || p.Consumed {
		return domain.ErrPresetConsumed
	}
	p.Consumed = true
	return nil
}

func (r presetRepo) MarkOverrideConsumed(ctx context.Context, overrideID int64) error {
	o, ok := r.s.overrides[overrideID]
	if !ok || o.Consumed {
		return domain.ErrPresetConsumed
	}
	o.Consumed = true
	return nil
}

type debtRepo struct{ s *memStore }

func (r debtRepo) CreateInventoryDebt(ctx context.Context, debt *domain.InventoryDebt) error {
	cp := *debt
	r.s.invDebts[debt.ID] = &cp
	return nil
}

func (r debtRepo) CreateBudgetDebt(ctx context.Context, debt *domain.BudgetDebt) error {
	cp := *debt
	r.s.budDebts[debt.ID] = &cp
	return nil
}

func (r debtRepo) FindInventoryDebt(ctx context.Context, id string) (*domain.InventoryDebt, error) {
	d, ok := r.s.invDebts[id]
	if !ok {
		return nil, domain.ErrDebtNotFound
	}
	cp := *d
	return &cp, nil
}

func (r debtRepo) FindBudgetDebt(ctx context.Context, id string) (*domain.BudgetDebt, error) {
	d, ok := r.s.budDebts[id]
	if !ok {
		return nil, domain.ErrDebtNotFound
	}
	cp := *d
	return &cp, nil
}

func (r debtRepo) SaveInventoryDebt(ctx context.Context, debt *domain.InventoryDebt) error {
	cp := *debt
	r.s.invDebts[debt.ID] = &cp
	return nil
}

func (r debtRepo) SaveBudgetDebt(ctx context.Context, debt *domain.BudgetDebt) error {
	cp := *debt
	r.s.budDebts[debt.ID] = &cp
	return nil
}

func (r debtRepo) OutstandingInventory(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	for _, d := range r.s.invDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			total += d.Outstanding()
		}
	}
	return total, nil
}

func (r debtRepo) OutstandingBudget(ctx context.Context, campaignID int64) (int64, error) {
	var total int64
	for _, d := range r.s.budDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			total += d.Outstanding()
		}
	}
	return total, nil
}

func (r debtRepo) FindDebtLimit(ctx context.Context, campaignID int64) (*domain.DebtLimit, error) {
	if l, ok := r.s.limits[campaignID]; ok {
		cp := *l
		return &cp, nil
	}
	if l, ok := r.s.limits[0]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

func (r debtRepo) SummarizeByCampaign(ctx context.Context, campaignID int64) (*domain.DebtSummary, error) {
	summary := &domain.DebtSummary{GroupKey: campaignID}
	for _, d := range r.s.invDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			summary.PendingCount++
			summary.InventoryOutstanding += d.Outstanding()
		}
	}
	for _, d := range r.s.budDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			summary.PendingCount++
			summary.BudgetOutstanding += d.Outstanding()
		}
	}
	return summary, nil
}

func (r debtRepo) SummarizeByPrize(ctx context.Context, campaignID int64) ([]*domain.DebtSummary, error) {
	return r.summarize(campaignID, func(inv *domain.InventoryDebt, bud *domain.BudgetDebt) int64 {
		if inv != nil {
			return inv.PrizeID
		}
		return bud.PrizeID
	})
}

func (r debtRepo) SummarizeByCreator(ctx context.Context, campaignID int64) ([]*domain.DebtSummary, error) {
	return r.summarize(campaignID, func(inv *domain.InventoryDebt, bud *domain.BudgetDebt) int64 {
		if inv != nil {
			return inv.PresetCreatorID
		}
		return bud.PresetCreatorID
	})
}

func (r debtRepo) summarize(campaignID int64, key func(*domain.InventoryDebt, *domain.BudgetDebt) int64) ([]*domain.DebtSummary, error) {
	merged := map[int64]*domain.DebtSummary{}
	get := func(k int64) *domain.DebtSummary {
		if v, ok := merged[k]; ok {
			return v
		}
		v := &domain.DebtSummary{GroupKey: k}
		merged[k] = v
		return v
	}
	for _, d := range r.s.invDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			v := get(key(d, nil))
			v.PendingCount++
			v.InventoryOutstanding += d.Outstanding()
		}
	}
	for _, d := range r.s.budDebts {
		if d.CampaignID == campaignID && d.Status == domain.DebtStatusPending {
			v := get(key(nil, d))
			v.PendingCount++
			v.BudgetOutstanding += d.Outstanding()
		}
	}
	var out []*domain.DebtSummary
	for _, v := range merged {
		out = append(out, v)
	}
	return out, nil
}

type recordRepo struct{ s *memStore }

func (r recordRepo) Create(ctx context.Context, record *domain.DrawRecord) error {
	if _, exists := r.s.records[record.IdempotencyKey]; exists {
		return domain.ErrDuplicateDraw
	}
	cp := *record
	r.s.records[record.IdempotencyKey] = &cp
	return nil
}

func (r recordRepo) FindByIdempotencyKey(ctx context.Context, key string) (*domain.DrawRecord, error) {
	rec, ok := r.s.records[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// --- 出站端口的测试替身 ---

type fakeLedger struct {
	mu       sync.Mutex
	debits   map[string]int64 // 幂等键 -> 扣费金额
	credits  []string
	debitErr error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{debits: map[string]int64{}}
}

func (l *fakeLedger) Debit(ctx context.Context, userID int64, amount int64, idempotencyKey string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.debitErr != nil {
		return 0, l.debitErr
	}
	l.debits[idempotencyKey] += amount
	return 1000 - amount, nil
}

func (l *fakeLedger) Credit(ctx context.Context, userID int64, amount int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credits = append(l.credits, reason)
	return nil
}

type fakeIdemStore struct {
	mu    sync.Mutex
	cache map[string]string
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{cache: map[string]string{}}
}

func (f *fakeIdemStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	payload, ok := f.cache[key]
	return payload, ok, nil
}

func (f *fakeIdemStore) PutNX(ctx context.Context, key string, payload string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.cache[key]; exists {
		return false, nil
	}
	f.cache[key] = payload
	return true, nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	published []string
}

func (f *fakeNotifier) PublishDrawResult(ctx context.Context, key string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, key)
	return nil
}

type fakePressure struct {
	windowDraws int64
	recorded    int
}

func (f *fakePressure) RecordDraw(ctx context.Context, campaignID int64) error {
	f.recorded++
	return nil
}

func (f *fakePressure) WindowDraws(ctx context.Context, campaignID int64) (int64, error) {
	return f.windowDraws, nil
}

type fakeRules struct {
	allow bool
	err   error
}

func (f *fakeRules) Evaluate(ctx context.Context, expression string, fact port.Fact) (bool, error) {
	return f.allow, f.err
}
