// internal/service/lottery/domain/port/rule.go
package port

import "context"

// Fact 是规则评估的事实输入（用户画像、抽奖上下文）
type Fact map[string]interface{}

// RuleEngine 是参与资格规则评估的出站端口
// 活动可配置一条资格表达式，评估为 false 的用户不允许参与抽奖
type RuleEngine interface {
	Evaluate(ctx context.Context, expression string, fact Fact) (bool, error)
}
