// internal/service/lottery/domain/prize.go
package domain

// PrizeStatus 定义奖品的上下架状态，下架奖品永远不可被选中
type PrizeStatus string

const (
	PrizeStatusActive   PrizeStatus = "ACTIVE"
	PrizeStatusInactive PrizeStatus = "INACTIVE"
)

// PrizeKind 区分奖品的兑付方式
type PrizeKind string

const (
	PrizeKindPoints   PrizeKind = "POINTS"   // 积分类，发奖时经账本入账
	PrizeKindVirtual  PrizeKind = "VIRTUAL"  // 虚拟物品，入用户库存
	PrizeKindPhysical PrizeKind = "PHYSICAL" // 实物，走兑换/物流流程
)

// Prize 是某个活动下的一个具体奖品
type Prize struct {
	ID          int64
	CampaignID  int64
	Name        string
	Kind        PrizeKind
	Tier        Tier
	Status      PrizeStatus
	Stock       int64 // 剩余库存，发奖时扣减，不变式 Stock >= 0
	Unlimited   bool  // 无限库存（兜底类奖品），不参与库存扣减
	ValuePoints int64 // 计入活动预算的成本
	Weight      int64 // 档位内加权随机的权重，0 表示与同档其余奖品均分
}

// Selectable 检查奖品当前是否可被严格选中（不欠账）
func (p *Prize) Selectable() bool {
	if p.Status != PrizeStatusActive {
		return false
	}
	return p.Unlimited || p.Stock > 0
}

// PrizePool 是按档位分桶后的活动奖池视图，单次抽奖内构建一次
type PrizePool struct {
	CampaignID int64
	buckets    map[Tier][]*Prize
}

// NewPrizePool 将奖品列表按档位分桶，下架奖品直接剔除
func NewPrizePool(campaignID int64, prizes []*Prize) *PrizePool {
	pool := &PrizePool{
		CampaignID: campaignID,
		buckets:    make(map[Tier][]*Prize, len(TierOrder)),
	}
	for _, prize := range prizes {
		if prize.Status != PrizeStatusActive || !prize.Tier.IsValid() {
			continue
		}
		pool.buckets[prize.Tier] = append(pool.buckets[prize.Tier], prize)
	}
	return pool
}

// TierPrizes 返回某档位的全部在架奖品
func (p *PrizePool) TierPrizes(t Tier) []*Prize {
	return p.buckets[t]
}

// TierStock 返回某档位的剩余库存总量，含无限库存奖品时返回 -1
func (p *PrizePool) TierStock(t Tier) int64 {
	var total int64
	for _, prize := range p.buckets[t] {
		if prize.Unlimited {
			return -1
		}
		total += prize.Stock
	}
	return total
}

// TierAvailable 检查档位是否有严格可用的奖品
// 兜底档容量视为无限，永远可用，是降级路径保证的终点
func (p *PrizePool) TierAvailable(t Tier) bool {
	if t == TierFallback {
		return true
	}
	for _, prize := range p.buckets[t] {
		if prize.Selectable() {
			return true
		}
	}
	return false
}

// HasPrizes 检查档位是否存在任何在架奖品（不考虑库存）
func (p *PrizePool) HasPrizes(t Tier) bool {
	return len(p.buckets[t]) > 0
}
