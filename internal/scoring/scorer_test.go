package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verdantiq/ai-router/internal/types"
)

func testCapabilities() map[string]types.ProviderCapability {
	return map[string]types.ProviderCapability{
		"premier": {
			ProviderID:      "premier",
			CostPer1KTokens: 0.005,
			TokensPerSecond: 60,
			QualityScore:    0.98,
			ComplexityRange: types.ComplexityRange{Min: 30, Max: 100},
			Specializations: []string{"compliance"},
		},
		"econo": {
			ProviderID:      "econo",
			CostPer1KTokens: 0.0002,
			TokensPerSecond: 40,
			QualityScore:    0.85,
			ComplexityRange: types.ComplexityRange{Min: 0, Max: 70},
		},
	}
}

func healthyStats(id string) types.ProviderHealthStats {
	return types.ProviderHealthStats{
		ProviderID:  id,
		Status:      types.HealthStateHealthy,
		SuccessRate: 100,
	}
}

func TestWeightsMustSumToOne(t *testing.T) {
	_, err := NewScorer(Weights{Health: 0.5, Complexity: 0.5, Cost: 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sum to 1.0")

	_, err = NewScorer(Weights{Health: 0.30, Complexity: 0.25, Cost: 0.20, Quality: 0.15, Specialization: 0.10})
	assert.NoError(t, err)
}

func TestZeroWeightsFallBackToDefaults(t *testing.T) {
	scorer, err := NewScorer(Weights{})
	require.NoError(t, err)
	assert.Equal(t, DefaultWeights(), scorer.Weights())
	assert.NoError(t, DefaultWeights().Validate())
}

func TestUnavailableProviderScoresZero(t *testing.T) {
	scorer, _ := NewScorer(Weights{})

	scores := scorer.Score(
		types.Requirements{MaxCost: 0.5},
		types.ComplexityAnalysis{Score: 40, EstimatedTokens: 100},
		testCapabilities(),
		map[string]types.ProviderHealthStats{
			"premier": {ProviderID: "premier", Status: types.HealthStateUnavailable},
			"econo":   healthyStats("econo"),
		},
	)

	premier := scores["premier"]
	assert.Equal(t, float64(0), premier.Score)
	assert.False(t, premier.Viable)
	assert.Equal(t, float64(0), premier.Confidence)

	assert.True(t, scores["econo"].Viable)
}

func TestMissingHealthRecordTreatedAsUnavailable(t *testing.T) {
	scorer, _ := NewScorer(Weights{})

	scores := scorer.Score(
		types.Requirements{MaxCost: 0.5},
		types.ComplexityAnalysis{Score: 40, EstimatedTokens: 100},
		testCapabilities(),
		map[string]types.ProviderHealthStats{},
	)

	assert.False(t, scores["premier"].Viable)
	assert.False(t, scores["econo"].Viable)
}

func TestUnhealthyProviderIsNeverViable(t *testing.T) {
	scorer, _ := NewScorer(Weights{})

	scores := scorer.Score(
		types.Requirements{MaxCost: 0.5},
		types.ComplexityAnalysis{Score: 40, EstimatedTokens: 100},
		testCapabilities(),
		map[string]types.ProviderHealthStats{
			"premier": {ProviderID: "premier", Status: types.HealthStateUnhealthy, ErrorRate: 15},
			"econo":   healthyStats("econo"),
		},
	)

	premier := scores["premier"]
	assert.False(t, premier.Viable)
	// Still scored for explainability, just not routable
	assert.Greater(t, premier.Score, float64(0))
}

func TestHealthScoreBands(t *testing.T) {
	assert.Equal(t, float64(100), HealthScore(healthyStats("x")))
	assert.Equal(t, float64(70), HealthScore(types.ProviderHealthStats{Status: types.HealthStateDegraded}))
	assert.Equal(t, float64(50), HealthScore(types.ProviderHealthStats{Status: types.HealthStateLimited}))
	assert.Equal(t, float64(20), HealthScore(types.ProviderHealthStats{Status: types.HealthStateUnhealthy}))
	assert.Equal(t, float64(0), HealthScore(types.ProviderHealthStats{Status: types.HealthStateUnavailable}))
}

func TestHealthScoreDiscountsErrorRateAndLatency(t *testing.T) {
	stats := healthyStats("x")
	stats.ErrorRate = 5
	assert.Equal(t, float64(95), HealthScore(stats))

	stats.ResponseTime = 2000
	// 100 - 5 errors - (2000-1000)/100 latency
	assert.Equal(t, float64(85), HealthScore(stats))

	stats.ResponseTime = 10000
	// Latency penalty is capped at 20
	assert.Equal(t, float64(75), HealthScore(stats))
}

func TestComplexityMatchScore(t *testing.T) {
	r := types.ComplexityRange{Min: 30, Max: 70}

	assert.Equal(t, float64(100), complexityMatchScore(30, r))
	assert.Equal(t, float64(100), complexityMatchScore(70, r))
	// Under range decays from 70
	assert.Equal(t, float64(60), complexityMatchScore(20, r))
	assert.Equal(t, float64(0), complexityMatchScore(-50, r))
	// Over range decays from 50
	assert.Equal(t, float64(40), complexityMatchScore(80, r))
	assert.Equal(t, float64(0), complexityMatchScore(130, r))
}

func TestCostScore(t *testing.T) {
	// No ceiling configured is neutral
	assert.Equal(t, float64(50), costScore(0.01, 0))
	// Over budget scores zero
	assert.Equal(t, float64(0), costScore(0.6, 0.5))
	// Cheaper is better
	assert.Equal(t, float64(100), costScore(0, 0.5))
	assert.Equal(t, float64(50), costScore(0.25, 0.5))
}

func TestSpecializationScore(t *testing.T) {
	capabilities := testCapabilities()

	complianceAnalysis := types.ComplexityAnalysis{RequiresCompliance: true}
	assert.Equal(t, float64(100), specializationScore(complianceAnalysis, capabilities["premier"]))
	assert.Equal(t, float64(0), specializationScore(complianceAnalysis, capabilities["econo"]))

	// Neutral when nothing is implied
	assert.Equal(t, float64(50), specializationScore(types.ComplexityAnalysis{}, capabilities["econo"]))
}

func TestConfidenceDiscounts(t *testing.T) {
	healthy := healthyStats("x")
	assert.Equal(t, float64(80), confidence(80, healthy))

	degraded := types.ProviderHealthStats{Status: types.HealthStateDegraded}
	assert.InDelta(t, 64, confidence(80, degraded), 1e-9)

	limited := types.ProviderHealthStats{Status: types.HealthStateLimited}
	assert.InDelta(t, 48, confidence(80, limited), 1e-9)

	withErrors := healthyStats("x")
	withErrors.ErrorRate = 10
	assert.InDelta(t, 72, confidence(80, withErrors), 1e-9)
}

func TestQualityBeatsCostForComplianceWork(t *testing.T) {
	scorer, _ := NewScorer(Weights{})

	analysis := types.ComplexityAnalysis{
		Score:              60,
		EstimatedTokens:    500,
		RequiresCompliance: true,
	}

	scores := scorer.Score(
		types.Requirements{MaxCost: 0.5, RequiresHighQuality: true},
		analysis,
		testCapabilities(),
		map[string]types.ProviderHealthStats{
			"premier": healthyStats("premier"),
			"econo":   healthyStats("econo"),
		},
	)

	assert.Greater(t, scores["premier"].Score, scores["econo"].Score)
}

func TestEstimateCost(t *testing.T) {
	capability := testCapabilities()["premier"]
	assert.InDelta(t, 0.005, EstimateCost(capability, 1000), 1e-9)
	assert.InDelta(t, 0.0025, EstimateCost(capability, 500), 1e-9)
	assert.Equal(t, float64(0), EstimateCost(capability, 0))
}

func TestRankedOrdersByScoreWithStableTiebreak(t *testing.T) {
	ranked := Ranked(map[string]ProviderScore{
		"b": {ProviderID: "b", Score: 80},
		"a": {ProviderID: "a", Score: 80},
		"c": {ProviderID: "c", Score: 90},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "c", ranked[0].ProviderID)
	assert.Equal(t, "a", ranked[1].ProviderID)
	assert.Equal(t, "b", ranked[2].ProviderID)
}
