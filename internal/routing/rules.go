package routing

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/verdantiq/ai-router/internal/types"
)

// RuleEnv is the read-only environment rule conditions are evaluated against.
// Field names are part of the rule language and must stay stable.
type RuleEnv struct {
	Query           string  `expr:"query"`
	QueryLength     int     `expr:"query_length"`
	TenantID        string  `expr:"tenant_id"`
	Priority        string  `expr:"priority"`
	Complexity      float64 `expr:"complexity"`
	EstimatedTokens int64   `expr:"estimated_tokens"`
	Category        string  `expr:"category"`
	MultiStep       bool    `expr:"multi_step"`
	Compliance      bool    `expr:"compliance"`
	DataAnalysis    bool    `expr:"data_analysis"`
	FunctionCalling bool    `expr:"function_calling"`
}

// RuleAction is the effect of a matched rule on the derived requirements.
// Actions are plain data so rules stay serializable and auditable.
type RuleAction struct {
	SetStrategy        types.RoutingStrategy `json:"set_strategy,omitempty" yaml:"set_strategy,omitempty"`
	RequireHighQuality bool                  `json:"require_high_quality,omitempty" yaml:"require_high_quality,omitempty"`
	MinQuality         float64               `json:"min_quality,omitempty" yaml:"min_quality,omitempty"`
	MaxCost            float64               `json:"max_cost,omitempty" yaml:"max_cost,omitempty"`
	ExcludeProviders   []string              `json:"exclude_providers,omitempty" yaml:"exclude_providers,omitempty"`
}

// RoutingRule is a named, data-only routing rule: a boolean condition
// expression over RuleEnv plus the action applied when it matches.
type RoutingRule struct {
	Name      string     `json:"name" yaml:"name"`
	Condition string     `json:"condition" yaml:"condition"`
	Action    RuleAction `json:"action" yaml:"action"`
	Enabled   bool       `json:"enabled" yaml:"enabled"`
}

// RuleSet compiles and evaluates routing rules. Programs are compiled once
// and cached.
type RuleSet struct {
	mu       sync.Mutex
	rules    []RoutingRule
	programs map[string]*vm.Program
}

// NewRuleSet creates a rule set, compiling every enabled rule eagerly so bad
// expressions fail at configuration time rather than per request.
func NewRuleSet(rules []RoutingRule) (*RuleSet, error) {
	rs := &RuleSet{
		rules:    rules,
		programs: make(map[string]*vm.Program),
	}

	for _, rule := range rules {
		if !rule.Enabled || rule.Condition == "" {
			continue
		}
		program, err := expr.Compile(rule.Condition, expr.Env(RuleEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("rule %q: failed to compile condition: %w", rule.Name, err)
		}
		rs.programs[rule.Name] = program
	}

	return rs, nil
}

// Rules returns the configured rules
func (rs *RuleSet) Rules() []RoutingRule {
	rules := make([]RoutingRule, len(rs.rules))
	copy(rules, rs.rules)
	return rules
}

// Matching evaluates every enabled rule against the environment and returns
// the matched rules in configuration order. Evaluation errors disable the
// offending rule for the request rather than failing routing.
func (rs *RuleSet) Matching(env RuleEnv) ([]RoutingRule, error) {
	var matched []RoutingRule

	rs.mu.Lock()
	defer rs.mu.Unlock()

	for _, rule := range rs.rules {
		if !rule.Enabled {
			continue
		}
		if rule.Condition == "" {
			matched = append(matched, rule)
			continue
		}

		program, exists := rs.programs[rule.Name]
		if !exists {
			continue
		}

		output, err := expr.Run(program, env)
		if err != nil {
			return matched, fmt.Errorf("rule %q: evaluation failed: %w", rule.Name, err)
		}

		if result, ok := output.(bool); ok && result {
			matched = append(matched, rule)
		}
	}

	return matched, nil
}
