package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/ai-router/internal/types"
)

func TestNewRuleSetRejectsBadConditions(t *testing.T) {
	_, err := NewRuleSet([]RoutingRule{
		{Name: "broken", Condition: "complexity >", Enabled: true},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestNewRuleSetRejectsNonBooleanConditions(t *testing.T) {
	_, err := NewRuleSet([]RoutingRule{
		{Name: "numeric", Condition: "complexity + 1", Enabled: true},
	})
	assert.Error(t, err)
}

func TestNewRuleSetRejectsUnknownVariables(t *testing.T) {
	_, err := NewRuleSet([]RoutingRule{
		{Name: "typo", Condition: "complexty > 10", Enabled: true},
	})
	assert.Error(t, err)
}

func TestDisabledRulesAreNotCompiledOrMatched(t *testing.T) {
	rs, err := NewRuleSet([]RoutingRule{
		{Name: "off", Condition: "complexity >", Enabled: false},
	})
	require.NoError(t, err)

	matched, err := rs.Matching(RuleEnv{Complexity: 99})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestMatchingEvaluatesAgainstEnvironment(t *testing.T) {
	rs, err := NewRuleSet([]RoutingRule{
		{
			Name:      "compliance-needs-quality",
			Condition: "compliance",
			Action:    RuleAction{RequireHighQuality: true},
			Enabled:   true,
		},
		{
			Name:      "cheap-for-simple",
			Condition: "complexity < 20 && !compliance",
			Action:    RuleAction{SetStrategy: types.StrategyCostOptimized},
			Enabled:   true,
		},
		{
			Name:      "tenant-pinned",
			Condition: `tenant_id == "acme" && priority == "critical"`,
			Action:    RuleAction{SetStrategy: types.StrategyQualityOptimized},
			Enabled:   true,
		},
	})
	require.NoError(t, err)

	matched, err := rs.Matching(RuleEnv{Complexity: 50, Compliance: true})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "compliance-needs-quality", matched[0].Name)
	assert.True(t, matched[0].Action.RequireHighQuality)

	matched, err = rs.Matching(RuleEnv{Complexity: 10})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "cheap-for-simple", matched[0].Name)

	matched, err = rs.Matching(RuleEnv{TenantID: "acme", Priority: "critical", Complexity: 10, Compliance: true})
	require.NoError(t, err)
	require.Len(t, matched, 2)
	assert.Equal(t, "compliance-needs-quality", matched[0].Name)
	assert.Equal(t, "tenant-pinned", matched[1].Name)
}

func TestEmptyConditionAlwaysMatches(t *testing.T) {
	rs, err := NewRuleSet([]RoutingRule{
		{Name: "always", Enabled: true, Action: RuleAction{MinQuality: 0.8}},
	})
	require.NoError(t, err)

	matched, err := rs.Matching(RuleEnv{})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, 0.8, matched[0].Action.MinQuality)
}

func TestRulesRoundTripAsData(t *testing.T) {
	rules := []RoutingRule{
		{
			Name:      "compliance-needs-quality",
			Condition: "compliance",
			Action: RuleAction{
				RequireHighQuality: true,
				SetStrategy:        types.StrategyQualityOptimized,
				ExcludeProviders:   []string{"econo"},
			},
			Enabled: true,
		},
	}

	rs, err := NewRuleSet(rules)
	require.NoError(t, err)

	got := rs.Rules()
	assert.Equal(t, rules, got)

	// Mutating the copy must not affect the rule set
	got[0].Enabled = false
	assert.True(t, rs.Rules()[0].Enabled)
}
