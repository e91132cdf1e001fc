package pipeline

import (
	"testing"

	"lucky/internal/service/lottery/domain"
)

// scriptedRNG 按脚本顺序吐出随机值，耗尽后回绕
type scriptedRNG struct {
	vals []int64
	i    int
}

func (r *scriptedRNG) Int64N(n int64) int64 {
	v := r.vals[r.i%len(r.vals)]
	r.i++
	if v >= n {
		v = n - 1
	}
	return v
}

var testWeights = domain.WeightVector{High: 50_000, Mid: 150_000, Low: 300_000, Fallback: 500_000}

func fullPool() *domain.PrizePool {
	return domain.NewPrizePool(100, []*domain.Prize{
		{ID: 1, CampaignID: 100, Tier: domain.TierHigh, Status: domain.PrizeStatusActive, Stock: 10},
		{ID: 2, CampaignID: 100, Tier: domain.TierMid, Status: domain.PrizeStatusActive, Stock: 10},
		{ID: 3, CampaignID: 100, Tier: domain.TierLow, Status: domain.PrizeStatusActive, Stock: 10},
		{ID: 4, CampaignID: 100, Tier: domain.TierFallback, Status: domain.PrizeStatusActive, Unlimited: true},
	})
}

func TestPickTierHalfOpenBoundaries(t *testing.T) {
	pool := fullPool()
	cases := []struct {
		roll int64
		want domain.Tier
	}{
		{0, domain.TierHigh},
		{49_999, domain.TierHigh},
		{50_000, domain.TierMid}, // 恰在边界上归属下一档
		{199_999, domain.TierMid},
		{200_000, domain.TierLow},
		{499_999, domain.TierLow},
		{500_000, domain.TierFallback},
		{999_999, domain.TierFallback},
	}
	for _, c := range cases {
		pick := PickTier(domain.NormalSource{}, testWeights, pool, &scriptedRNG{vals: []int64{c.roll}})
		if pick.Landed != c.want {
			t.Errorf("roll %d landed %s, want %s", c.roll, pick.Landed, c.want)
		}
		if pick.Selected != c.want {
			t.Errorf("roll %d with full pool selected %s, want %s", c.roll, pick.Selected, c.want)
		}
		if pick.RandomValue != c.roll {
			t.Errorf("random value %d not surfaced, got %d", c.roll, pick.RandomValue)
		}
	}
}

func TestPickTierDowngradeWalk(t *testing.T) {
	// 高档无库存：命中高档后沿固定路径降到中档
	pool := domain.NewPrizePool(100, []*domain.Prize{
		{ID: 1, Tier: domain.TierHigh, Status: domain.PrizeStatusActive, Stock: 0},
		{ID: 2, Tier: domain.TierMid, Status: domain.PrizeStatusActive, Stock: 5},
		{ID: 4, Tier: domain.TierFallback, Status: domain.PrizeStatusActive, Unlimited: true},
	})

	pick := PickTier(domain.NormalSource{}, testWeights, pool, &scriptedRNG{vals: []int64{0}})
	if pick.Landed != domain.TierHigh {
		t.Fatalf("roll 0 should land HIGH, got %s", pick.Landed)
	}
	if pick.Selected != domain.TierMid {
		t.Fatalf("expected downgrade to MID, got %s", pick.Selected)
	}
	wantPath := []domain.Tier{domain.TierHigh, domain.TierMid}
	if len(pick.DowngradePath) != len(wantPath) {
		t.Fatalf("path %v, want %v", pick.DowngradePath, wantPath)
	}
	for i := range wantPath {
		if pick.DowngradePath[i] != wantPath[i] {
			t.Fatalf("path %v, want %v", pick.DowngradePath, wantPath)
		}
	}
}

func TestPickTierFallbackAlwaysAvailable(t *testing.T) {
	// 只有兜底档有奖品，任何命中都必须走到兜底
	pool := domain.NewPrizePool(100, []*domain.Prize{
		{ID: 4, Tier: domain.TierFallback, Status: domain.PrizeStatusActive, Unlimited: true},
	})
	pick := PickTier(domain.NormalSource{}, testWeights, pool, &scriptedRNG{vals: []int64{0}})
	if pick.Selected != domain.TierFallback {
		t.Fatalf("empty pool should end at FALLBACK, got %s", pick.Selected)
	}
	wantPath := []domain.Tier{domain.TierHigh, domain.TierMid, domain.TierLow, domain.TierFallback}
	if len(pick.DowngradePath) != len(wantPath) {
		t.Fatalf("path %v, want full walk %v", pick.DowngradePath, wantPath)
	}
}

func TestPickTierForcedSourcesSkipRandom(t *testing.T) {
	pool := fullPool()

	cases := []struct {
		src  domain.DecisionSource
		want domain.Tier
	}{
		{domain.GuaranteeSource{DrawsSinceHighTier: 50, Threshold: 50}, domain.TierHigh},
		{domain.OverrideSource{Direction: domain.OverrideForceWin}, domain.TierHigh},
		{domain.OverrideSource{Direction: domain.OverrideForceLose}, domain.TierFallback},
		{domain.PresetSource{PrizeID: 2, Tier: domain.TierMid}, domain.TierMid},
	}
	for _, c := range cases {
		pick := PickTier(c.src, testWeights, pool, &scriptedRNG{vals: []int64{999_999}})
		if !pick.Skipped {
			t.Errorf("%T should skip random selection", c.src)
		}
		if pick.Selected != c.want {
			t.Errorf("%T selected %s, want %s", c.src, pick.Selected, c.want)
		}
		if pick.RandomValue != -1 {
			t.Errorf("%T random value should be -1, got %d", c.src, pick.RandomValue)
		}
	}
}

func TestPickTierDistribution(t *testing.T) {
	// 可复现随机源下的分布粗检：兜底权重 50% 应明显占优
	pool := fullPool()
	rng := domain.NewSeededRNG(42)

	counts := map[domain.Tier]int{}
	const draws = 20_000
	for i := 0; i < draws; i++ {
		pick := PickTier(domain.NormalSource{}, testWeights, pool, rng)
		counts[pick.Selected]++
	}

	if counts[domain.TierFallback] < draws*45/100 || counts[domain.TierFallback] > draws*55/100 {
		t.Fatalf("fallback share off: %d/%d", counts[domain.TierFallback], draws)
	}
	if counts[domain.TierHigh] < draws*3/100 || counts[domain.TierHigh] > draws*7/100 {
		t.Fatalf("high share off: %d/%d", counts[domain.TierHigh], draws)
	}
}
