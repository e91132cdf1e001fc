// internal/service/lottery/domain/weights.go
package domain

import "fmt"

// WeightScale 是权重向量的定点总刻度
// 所有权重向量（基础、BxP调整后、保底调整后）之和必须恒等于该值
const WeightScale int64 = 1_000_000

// WeightVector 是四个档位的定点权重向量
type WeightVector struct {
	High     int64
	Mid      int64
	Low      int64
	Fallback int64
}

// Sum 返回向量各档位权重之和
func (w WeightVector) Sum() int64 {
	return w.High + w.Mid + w.Low + w.Fallback
}

// Get 按档位取权重
func (w WeightVector) Get(t Tier) int64 {
	switch t {
	case TierHigh:
		return w.High
	case TierMid:
		return w.Mid
	case TierLow:
		return w.Low
	case TierFallback:
		return w.Fallback
	}
	return 0
}

// Validate 校验向量是否合法：各分量非负且总和等于刻度
func (w WeightVector) Validate() error {
	if w.High < 0 || w.Mid < 0 || w.Low < 0 || w.Fallback < 0 {
		return fmt.Errorf("%w: weight vector has negative component: %+v", ErrInvalidConfiguration, w)
	}
	if w.Sum() != WeightScale {
		return fmt.Errorf("%w: weight vector sum %d != scale %d", ErrInvalidConfiguration, w.Sum(), WeightScale)
	}
	return nil
}

// ScaleNonFallback 将非兜底档位按千分比系数缩放，兜底档位吸收差额以保持总刻度不变
// permille=1000 表示不变；permille<1000 收缩 high/mid/low；permille>1000 放大
// 放大超出刻度时会按比例钳制，保证兜底权重不为负
func (w WeightVector) ScaleNonFallback(permille int64) WeightVector {
	if permille == 1000 {
		return w
	}
	high := w.High * permille / 1000
	mid := w.Mid * permille / 1000
	low := w.Low * permille / 1000

	// 兜底吸收全部差额；若非兜底部分已超出总刻度，则按剩余空间二次收缩
	nonFallback := high + mid + low
	if nonFallback >= WeightScale {
		// 保留 1 的兜底权重下限，避免兜底完全不可达
		room := WeightScale - 1
		if nonFallback > 0 {
			high = high * room / nonFallback
			mid = mid * room / nonFallback
			low = low * room / nonFallback
		}
	}
	return WeightVector{
		High:     high,
		Mid:      mid,
		Low:      low,
		Fallback: WeightScale - high - mid - low,
	}
}

// BudgetTier 是剩余预算占比的离散分档（B 维）
type BudgetTier string

const (
	BudgetTierB1 BudgetTier = "B1" // 剩余充足 (>= 75%)
	BudgetTierB2 BudgetTier = "B2" // 剩余一般 (>= 50%)
	BudgetTierB3 BudgetTier = "B3" // 剩余偏紧 (>= 25%)
	BudgetTierB4 BudgetTier = "B4" // 剩余枯竭 (< 25%)
)

// PressureTier 是系统并发压力的离散分档（P 维）
type PressureTier string

const (
	PressureTierP1 PressureTier = "P1" // 低压
	PressureTierP2 PressureTier = "P2" // 中压
	PressureTierP3 PressureTier = "P3" // 高压
	PressureTierP4 PressureTier = "P4" // 过载
)

// ClassifyBudget 按剩余预算比例离散化 B 维档位
// total<=0 视为配置异常，归入最差档 B4
func ClassifyBudget(remaining, total int64) BudgetTier {
	if total <= 0 {
		return BudgetTierB4
	}
	ratio := remaining * 100 / total
	switch {
	case ratio >= 75:
		return BudgetTierB1
	case ratio >= 50:
		return BudgetTierB2
	case ratio >= 25:
		return BudgetTierB3
	default:
		return BudgetTierB4
	}
}

// ClassifyPressure 按窗口内并发抽奖数离散化 P 维档位
func ClassifyPressure(drawsPerWindow int64) PressureTier {
	switch {
	case drawsPerWindow < 100:
		return PressureTierP1
	case drawsPerWindow < 500:
		return PressureTierP2
	case drawsPerWindow < 2000:
		return PressureTierP3
	default:
		return PressureTierP4
	}
}

// AdjustMatrix 是 BxP 二维调整矩阵
// 值为作用到非兜底档位上的千分比系数，兜底档位吸收差额保持总刻度不变
type AdjustMatrix map[BudgetTier]map[PressureTier]int64

// Lookup 查找 (B, P) 对应的千分比系数，查不到返回 (0, false)
// 调用方在查找失败时应退回未调整的基础权重
func (m AdjustMatrix) Lookup(b BudgetTier, p PressureTier) (int64, bool) {
	row, ok := m[b]
	if !ok {
		return 0, false
	}
	v, ok := row[p]
	if !ok {
		return 0, false
	}
	return v, ok
}

// DefaultAdjustMatrix 返回默认 BxP 矩阵
// B 或 P 越差，high/mid/low 收缩越多，兜底权重相应增长
func DefaultAdjustMatrix() AdjustMatrix {
	return AdjustMatrix{
		BudgetTierB1: {PressureTierP1: 1000, PressureTierP2: 950, PressureTierP3: 900, PressureTierP4: 800},
		BudgetTierB2: {PressureTierP1: 900, PressureTierP2: 850, PressureTierP3: 780, PressureTierP4: 680},
		BudgetTierB3: {PressureTierP1: 750, PressureTierP2: 700, PressureTierP3: 620, PressureTierP4: 520},
		BudgetTierB4: {PressureTierP1: 500, PressureTierP2: 450, PressureTierP3: 380, PressureTierP4: 300},
	}
}
