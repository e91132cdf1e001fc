package infrastructure

import (
	"encoding/json"
	"fmt"

	"lucky/internal/service/lottery/domain"
)

// pityRuleJSON 是 PityRule 在 pity_rules 列中的序列化形态
type pityRuleJSON struct {
	Streak   int   `json:"streak"`
	Permille int64 `json:"permille"`
	Hard     bool  `json:"hard,omitempty"`
}

// ToDomainCampaign 将数据库模型转换为领域模型
func ToDomainCampaign(model *CampaignModel) (*domain.Campaign, error) {
	if model == nil {
		return nil, nil
	}
	var pity domain.PityPolicy
	if model.PityRules != "" {
		var rules []pityRuleJSON
		if err := json.Unmarshal([]byte(model.PityRules), &rules); err != nil {
			return nil, fmt.Errorf("%w: malformed pity rules for campaign %d: %v",
				domain.ErrInvalidConfiguration, model.ID, err)
		}
		for _, r := range rules {
			pity = append(pity, domain.PityRule{Streak: r.Streak, Permille: r.Permille, Hard: r.Hard})
		}
	}
	return &domain.Campaign{
		ID:          model.ID,
		Name:        model.Name,
		Status:      domain.CampaignStatus(model.Status),
		StartAt:     model.StartAt,
		EndAt:       model.EndAt,
		CostPoints:  model.CostPoints,
		DailyLimit:  model.DailyLimit,
		TotalLimit:  model.TotalLimit,
		TotalBudget: model.TotalBudget,
		SpentBudget: model.SpentBudget,
		BaseWeights: domain.WeightVector{
			High:     model.WeightHigh,
			Mid:      model.WeightMid,
			Low:      model.WeightLow,
			Fallback: model.WeightFallback,
		},
		Pity: pity,
		Guarantee: domain.GuaranteeConfig{
			Enabled:   model.GuaranteeEnabled,
			Threshold: model.GuaranteeThreshold,
		},
		EligibilityRule: model.EligibilityRule,
	}, nil
}

// ToDomainPrize 将数据库模型转换为领域模型
func ToDomainPrize(model *PrizeModel) *domain.Prize {
	if model == nil {
		return nil
	}
	return &domain.Prize{
		ID:          model.ID,
		CampaignID:  model.CampaignID,
		Name:        model.Name,
		Kind:        domain.PrizeKind(model.Kind),
		Tier:        domain.Tier(model.Tier),
		Status:      domain.PrizeStatus(model.Status),
		Stock:       model.Stock,
		Unlimited:   model.Unlimited,
		ValuePoints: model.ValuePoints,
		Weight:      model.Weight,
	}
}

// ToDomainExperience 将数据库模型转换为领域模型
func ToDomainExperience(model *ExperienceModel) *domain.UserExperienceState {
	if model == nil {
		return nil
	}
	return &domain.UserExperienceState{
		UserID:           model.UserID,
		CampaignID:       model.CampaignID,
		TotalDrawCount:   model.TotalDrawCount,
		EmptyStreak:      model.EmptyStreak,
		LastHighTierDraw: model.LastHighTierDraw,
		GuaranteeHits:    model.GuaranteeHits,
		TodayDrawCount:   model.TodayDrawCount,
		LastDrawDate:     model.LastDrawDate,
		Version:          model.Version,
	}
}

// ToDomainPreset 将数据库模型转换为领域模型
func ToDomainPreset(model *PresetModel) *domain.DrawPreset {
	if model == nil {
		return nil
	}
	return &domain.DrawPreset{
		ID:         model.ID,
		CampaignID: model.CampaignID,
		UserID:     model.UserID,
		PrizeID:    model.PrizeID,
		CreatorID:  model.CreatorID,
		Consumed:   model.Consumed,
		ExpireAt:   model.ExpireAt,
	}
}

// ToDomainOverride 将数据库模型转换为领域模型
func ToDomainOverride(model *OverrideModel) *domain.DrawOverride {
	if model == nil {
		return nil
	}
	return &domain.DrawOverride{
		ID:         model.ID,
		CampaignID: model.CampaignID,
		UserID:     model.UserID,
		Direction:  domain.OverrideKind(model.Direction),
		Consumed:   model.Consumed,
		ExpireAt:   model.ExpireAt,
	}
}

// ToDomainInventoryDebt 将数据库模型转换为领域模型
func ToDomainInventoryDebt(model *InventoryDebtModel) *domain.InventoryDebt {
	if model == nil {
		return nil
	}
	return &domain.InventoryDebt{
		ID:              model.ID,
		CampaignID:      model.CampaignID,
		PrizeID:         model.PrizeID,
		PresetCreatorID: model.PresetCreatorID,
		DebtQuantity:    model.DebtQuantity,
		ClearedQuantity: model.ClearedQuantity,
		Status:          domain.DebtStatus(model.Status),
		CreatedAt:       model.CreatedAt,
	}
}

// FromDomainInventoryDebt 将领域模型转换为数据库模型
func FromDomainInventoryDebt(debt *domain.InventoryDebt) *InventoryDebtModel {
	if debt == nil {
		return nil
	}
	return &InventoryDebtModel{
		ID:              debt.ID,
		CampaignID:      debt.CampaignID,
		PrizeID:         debt.PrizeID,
		PresetCreatorID: debt.PresetCreatorID,
		DebtQuantity:    debt.DebtQuantity,
		ClearedQuantity: debt.ClearedQuantity,
		Status:          string(debt.Status),
		CreatedAt:       debt.CreatedAt,
	}
}

// ToDomainBudgetDebt 将数据库模型转换为领域模型
func ToDomainBudgetDebt(model *BudgetDebtModel) *domain.BudgetDebt {
	if model == nil {
		return nil
	}
	return &domain.BudgetDebt{
		ID:              model.ID,
		CampaignID:      model.CampaignID,
		PrizeID:         model.PrizeID,
		PresetCreatorID: model.PresetCreatorID,
		Source:          domain.BudgetDebtSource(model.Source),
		DebtAmount:      model.DebtAmount,
		ClearedAmount:   model.ClearedAmount,
		Status:          domain.DebtStatus(model.Status),
		CreatedAt:       model.CreatedAt,
	}
}

// FromDomainBudgetDebt 将领域模型转换为数据库模型
func FromDomainBudgetDebt(debt *domain.BudgetDebt) *BudgetDebtModel {
	if debt == nil {
		return nil
	}
	return &BudgetDebtModel{
		ID:              debt.ID,
		CampaignID:      debt.CampaignID,
		PrizeID:         debt.PrizeID,
		PresetCreatorID: debt.PresetCreatorID,
		Source:          string(debt.Source),
		DebtAmount:      debt.DebtAmount,
		ClearedAmount:   debt.ClearedAmount,
		Status:          string(debt.Status),
		CreatedAt:       debt.CreatedAt,
	}
}

// ToDomainDrawRecord 将数据库模型转换为领域模型
func ToDomainDrawRecord(model *DrawRecordModel) *domain.DrawRecord {
	if model == nil {
		return nil
	}
	return &domain.DrawRecord{
		ID:             model.ID,
		IdempotencyKey: model.IdempotencyKey,
		UserID:         model.UserID,
		CampaignID:     model.CampaignID,
		PrizeID:        model.PrizeID,
		SelectedTier:   domain.Tier(model.SelectedTier),
		DecisionSource: domain.DecisionKind(model.DecisionSource),
		ResultPayload:  model.ResultPayload,
		CreatedAt:      model.CreatedAt,
	}
}

// FromDomainDrawRecord 将领域模型转换为数据库模型
func FromDomainDrawRecord(record *domain.DrawRecord) *DrawRecordModel {
	if record == nil {
		return nil
	}
	return &DrawRecordModel{
		ID:             record.ID,
		IdempotencyKey: record.IdempotencyKey,
		UserID:         record.UserID,
		CampaignID:     record.CampaignID,
		PrizeID:        record.PrizeID,
		SelectedTier:   string(record.SelectedTier),
		DecisionSource: string(record.DecisionSource),
		ResultPayload:  record.ResultPayload,
		CreatedAt:      record.CreatedAt,
	}
}
