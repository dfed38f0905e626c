package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/verdantiq/ai-router/internal/types"
)

// Weights are the factor weights of the composite suitability score. They
// must sum to exactly 1.0.
type Weights struct {
	Health         float64 `yaml:"health"`
	Complexity     float64 `yaml:"complexity"`
	Cost           float64 `yaml:"cost"`
	Quality        float64 `yaml:"quality"`
	Specialization float64 `yaml:"specialization"`
}

// DefaultWeights returns the tuned default factor weights
func DefaultWeights() Weights {
	return Weights{
		Health:         0.30,
		Complexity:     0.25,
		Cost:           0.20,
		Quality:        0.15,
		Specialization: 0.10,
	}
}

// Validate checks the weight-sum invariant
func (w Weights) Validate() error {
	sum := w.Health + w.Complexity + w.Cost + w.Quality + w.Specialization
	if math.Abs(sum-1.0) > 1e-9 {
		return fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum)
	}
	return nil
}

// FactorScores breaks the composite score down per factor for explainability.
type FactorScores struct {
	Health         float64 `json:"health"`
	Complexity     float64 `json:"complexity"`
	Cost           float64 `json:"cost"`
	Quality        float64 `json:"quality"`
	Specialization float64 `json:"specialization"`
}

// ProviderScore is the ranked suitability of one provider for one request.
type ProviderScore struct {
	ProviderID    string       `json:"provider_id"`
	Score         float64      `json:"score"`
	Factors       FactorScores `json:"factors"`
	Viable        bool         `json:"viable"`
	Confidence    float64      `json:"confidence"`
	EstimatedCost float64      `json:"estimated_cost"`
}

// viabilityFloor is the minimum composite score a provider must clear.
const viabilityFloor = 50

// Scorer ranks providers for a specific request by combining live health,
// complexity fit, cost, static quality, and specialization match.
type Scorer struct {
	weights Weights
}

// NewScorer creates a scorer; zero weights fall back to the defaults.
func NewScorer(weights Weights) (*Scorer, error) {
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Scorer{weights: weights}, nil
}

// Weights returns the configured factor weights
func (s *Scorer) Weights() Weights {
	return s.weights
}

// Score ranks all providers in the capability set against the request. The
// health snapshot is read-only; an unavailable provider scores 0 immediately.
func (s *Scorer) Score(
	requirements types.Requirements,
	analysis types.ComplexityAnalysis,
	capabilities map[string]types.ProviderCapability,
	healthSnapshot map[string]types.ProviderHealthStats,
) map[string]ProviderScore {
	scores := make(map[string]ProviderScore, len(capabilities))

	for id, capability := range capabilities {
		stats, known := healthSnapshot[id]
		if !known {
			stats = types.ProviderHealthStats{ProviderID: id, Status: types.HealthStateUnavailable}
		}

		scores[id] = s.scoreProvider(requirements, analysis, capability, stats)
	}

	return scores
}

func (s *Scorer) scoreProvider(
	requirements types.Requirements,
	analysis types.ComplexityAnalysis,
	capability types.ProviderCapability,
	stats types.ProviderHealthStats,
) ProviderScore {
	estimatedCost := EstimateCost(capability, analysis.EstimatedTokens)

	if stats.Status == types.HealthStateUnavailable {
		// Not worth scoring the remaining factors
		return ProviderScore{
			ProviderID:    capability.ProviderID,
			Score:         0,
			Viable:        false,
			Confidence:    0,
			EstimatedCost: estimatedCost,
		}
	}

	factors := FactorScores{
		Health:         healthScore(stats),
		Complexity:     complexityMatchScore(analysis.Score, capability.ComplexityRange),
		Cost:           costScore(estimatedCost, requirements.MaxCost),
		Quality:        capability.QualityScore * 100,
		Specialization: specializationScore(analysis, capability),
	}

	combined := factors.Health*s.weights.Health +
		factors.Complexity*s.weights.Complexity +
		factors.Cost*s.weights.Cost +
		factors.Quality*s.weights.Quality +
		factors.Specialization*s.weights.Specialization

	viable := combined > viabilityFloor && stats.Status != types.HealthStateUnhealthy

	return ProviderScore{
		ProviderID:    capability.ProviderID,
		Score:         combined,
		Factors:       factors,
		Viable:        viable,
		Confidence:    confidence(combined, stats),
		EstimatedCost: estimatedCost,
	}
}

// EstimateCost converts a token estimate into dollars for one provider
func EstimateCost(capability types.ProviderCapability, estimatedTokens int64) float64 {
	return float64(estimatedTokens) / 1000 * capability.CostPer1KTokens
}

// HealthScore maps live stats to a 0-100 sub-score. Exported because the
// routing engine reuses it for last-resort selection.
func HealthScore(stats types.ProviderHealthStats) float64 {
	return healthScore(stats)
}

func healthScore(stats types.ProviderHealthStats) float64 {
	var base float64
	switch stats.Status {
	case types.HealthStateHealthy:
		base = 100
	case types.HealthStateDegraded:
		base = 70
	case types.HealthStateLimited:
		base = 50
	case types.HealthStateUnhealthy:
		base = 20
	case types.HealthStateUnavailable:
		return 0
	}

	score := base - stats.ErrorRate

	if stats.ResponseTime > 1000 {
		score -= math.Min(20, (stats.ResponseTime-1000)/100)
	}

	return math.Max(0, score)
}

// complexityMatchScore is 100 inside the provider's range and decays
// linearly outside it.
func complexityMatchScore(complexity float64, r types.ComplexityRange) float64 {
	switch {
	case complexity >= r.Min && complexity <= r.Max:
		return 100
	case complexity < r.Min:
		return math.Max(0, 70-(r.Min-complexity))
	default:
		return math.Max(0, 50-(complexity-r.Max))
	}
}

func costScore(estimatedCost, maxCost float64) float64 {
	if maxCost <= 0 {
		// No ceiling configured; cost neither helps nor hurts much
		return 50
	}
	if estimatedCost > maxCost {
		return 0
	}
	return 100 * (1 - estimatedCost/maxCost)
}

func specializationScore(analysis types.ComplexityAnalysis, capability types.ProviderCapability) float64 {
	tag := analysis.Specialization()
	if tag == "" {
		return 50 // neutral when the request implies nothing
	}
	if capability.HasSpecialization(tag) {
		return 100
	}
	return 0
}

// confidence discounts the composite score by live health quality
func confidence(combined float64, stats types.ProviderHealthStats) float64 {
	c := combined

	switch stats.Status {
	case types.HealthStateHealthy:
	case types.HealthStateDegraded:
		c *= 0.8
	default:
		c *= 0.6
	}

	c *= (100 - stats.ErrorRate) / 100

	return math.Max(0, math.Min(100, c))
}

// Ranked returns provider scores ordered best-first with a stable tiebreak.
func Ranked(scores map[string]ProviderScore) []ProviderScore {
	ranked := make([]ProviderScore, 0, len(scores))
	for _, score := range scores {
		ranked = append(ranked, score)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].ProviderID < ranked[j].ProviderID
	})
	return ranked
}
