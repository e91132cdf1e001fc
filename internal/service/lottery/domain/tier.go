// internal/service/lottery/domain/tier.go
package domain

// Tier 定义了奖品的价值档位
type Tier string

const (
	TierHigh     Tier = "HIGH"     // 高价值档位
	TierMid      Tier = "MID"      // 中价值档位
	TierLow      Tier = "LOW"      // 低价值档位
	TierFallback Tier = "FALLBACK" // 兜底档位（谢谢参与类，容量视为无限）
)

// TierOrder 是固定的降级路径: high → mid → low → fallback
// 抽奖命中的档位无库存时，沿此顺序向后寻找第一个可用档位
var TierOrder = []Tier{TierHigh, TierMid, TierLow, TierFallback}

// Index 返回档位在降级路径中的下标，未知档位返回 -1
func (t Tier) Index() int {
	for i, tier := range TierOrder {
		if tier == t {
			return i
		}
	}
	return -1
}

// IsValid 检查是否是四个合法档位之一
func (t Tier) IsValid() bool {
	return t.Index() >= 0
}
