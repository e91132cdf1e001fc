package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"lucky/internal/service/lottery/domain"
	"lucky/internal/service/lottery/domain/port"
)

// CELRuleAdapter 是 port.RuleEngine 接口的 cel-go 实现
// 活动的参与资格表达式形如 `user.level >= 3 && !user.blacklisted`，
// 编译结果按表达式缓存，热路径上只做求值
type CELRuleAdapter struct {
	env *cel.Env

	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewCELRuleAdapter 创建一个新的规则引擎适配器实例
func NewCELRuleAdapter() (*CELRuleAdapter, error) {
	env, err := cel.NewEnv(
		cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("campaign", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &CELRuleAdapter{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Evaluate 实现了 port.RuleEngine 接口
// 表达式语法错误或求值结果不是布尔值都按配置错误处理
func (a *CELRuleAdapter) Evaluate(ctx context.Context, expression string, fact port.Fact) (bool, error) {
	if expression == "" {
		return true, nil
	}

	prg, err := a.compile(expression)
	if err != nil {
		return false, fmt.Errorf("%w: eligibility rule: %v", domain.ErrInvalidConfiguration, err)
	}

	input := map[string]interface{}{
		"user":     map[string]interface{}{},
		"campaign": map[string]interface{}{},
	}
	for k, v := range fact {
		input[k] = v
	}

	out, _, err := prg.ContextEval(ctx, input)
	if err != nil {
		return false, fmt.Errorf("%w: eligibility rule evaluation: %v", domain.ErrInvalidConfiguration, err)
	}
	verdict, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: eligibility rule must evaluate to bool, got %T",
			domain.ErrInvalidConfiguration, out.Value())
	}
	return verdict, nil
}

func (a *CELRuleAdapter) compile(expression string) (cel.Program, error) {
	a.mu.RLock()
	prg, ok := a.programs[expression]
	a.mu.RUnlock()
	if ok {
		return prg, nil
	}

	ast, issues := a.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := a.env.Program(ast)
	if err != nil {
		return nil, err
	}

	a.mu.Lock()
	a.programs[expression] = prg
	a.mu.Unlock()
	return prg, nil
}
