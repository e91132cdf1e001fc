// internal/service/lottery/application/dto.go
package application

// DrawRequest 是一次（或一批）抽奖请求
type DrawRequest struct {
	UserID         int64                  `json:"userId"`
	CampaignID     int64                  `json:"campaignId"`
	IdempotencyKey string                 `json:"idempotencyKey"`
	Count          int                    `json:"count,omitempty"` // 批量抽奖次数，缺省为 1
	UserFact       map[string]interface{} `json:"userFact,omitempty"`
}

// PrizeSnapshot 是发奖那一刻的奖品快照，供下游展示，不随后续改配变化
type PrizeSnapshot struct {
	PrizeID     int64  `json:"prizeId"`
	Name        string `json:"name"`
	Tier        string `json:"tier"`
	ValuePoints int64  `json:"valuePoints"`
}

// DebtCreated 描述本次发奖产生的一笔欠账
type DebtCreated struct {
	Kind   string `json:"kind"` // inventory | budget
	DebtID string `json:"debtId"`
	Amount int64  `json:"amount"`
}

// DrawResult 是单次抽奖的最终产出，通知层与报表层消费该载荷
type DrawResult struct {
	DrawID           string        `json:"drawId"`
	UserID           int64         `json:"userId"`
	CampaignID       int64         `json:"campaignId"`
	SelectedTier     string        `json:"selectedTier"`
	PrizeID          int64         `json:"prizeId"`
	PrizeSnapshot    PrizeSnapshot `json:"prizeSnapshot"`
	DecisionSource   string        `json:"decisionSource"`
	DowngradePath    []string      `json:"downgradePath"`
	RandomValue      int64         `json:"randomValue"` // -1 表示被钦定来源跳过随机
	PityApplied      bool          `json:"pityApplied"`
	PityType         string        `json:"pityType"` // none | soft | hard
	GuaranteeApplied bool          `json:"guaranteeApplied"`
	DebtCreated      []DebtCreated `json:"debtCreated,omitempty"`
	Replayed         bool          `json:"replayed,omitempty"` // 幂等重放的历史结果
}

// BatchDrawResult 是批量抽奖的聚合结果
// 单抽被欠账上限拒绝只标记该抽失败，绝不中断整批
type BatchDrawResult struct {
	Results []*DrawResult `json:"results"`
	Failed  []BatchFailure `json:"failed,omitempty"`
}

// BatchFailure 描述批量抽奖中单抽的失败
type BatchFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ClearDebtRequest 是欠账核销请求
type ClearDebtRequest struct {
	Kind   string `json:"kind"` // inventory | budget
	DebtID string `json:"debtId"`
	Amount int64  `json:"amount"`
}

// ClearDebtResponse 返回核销后的欠账状态
type ClearDebtResponse struct {
	DebtID      string `json:"debtId"`
	Outstanding int64  `json:"outstanding"`
	Status      string `json:"status"`
}

// DebtSummaryView 是欠账聚合视图的传输对象
type DebtSummaryView struct {
	GroupKey             int64 `json:"groupKey"`
	PendingCount         int64 `json:"pendingCount"`
	InventoryOutstanding int64 `json:"inventoryOutstanding"`
	BudgetOutstanding    int64 `json:"budgetOutstanding"`
}
