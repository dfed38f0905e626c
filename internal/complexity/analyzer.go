package complexity

import (
	"math"
	"strings"

	"github.com/verdantiq/ai-router/internal/types"
)

// Increments are the score contributions of each detected signal. The values
// are tuned constants carried over from the system's original calibration.
type Increments struct {
	LongQuery      float64 `yaml:"long_query"`       // >500 chars
	VeryLongQuery  float64 `yaml:"very_long_query"`  // >1000 chars
	TechnicalTerm  float64 `yaml:"technical_term"`   // per keyword
	MultiStep      float64 `yaml:"multi_step"`
	DataAnalysis   float64 `yaml:"data_analysis"`
	Compliance     float64 `yaml:"compliance"`
	FunctionAction float64 `yaml:"function_action"`
}

// DefaultIncrements returns the tuned default score increments
func DefaultIncrements() Increments {
	return Increments{
		LongQuery:      10,
		VeryLongQuery:  10,
		TechnicalTerm:  5,
		MultiStep:      20,
		DataAnalysis:   15,
		Compliance:     25,
		FunctionAction: 10,
	}
}

// Keywords are the detection vocabularies, matched case-insensitively.
type Keywords struct {
	Technical    []string `yaml:"technical"`
	MultiStep    []string `yaml:"multi_step"`
	DataAnalysis []string `yaml:"data_analysis"`
	Compliance   []string `yaml:"compliance"`
	Actions      []string `yaml:"actions"`
}

// DefaultKeywords returns the default detection vocabularies
func DefaultKeywords() Keywords {
	return Keywords{
		Technical: []string{
			"emissions", "carbon", "scope 1", "scope 2", "scope 3",
			"ghg", "kwh", "intensity", "baseline", "benchmark",
		},
		MultiStep: []string{
			"first", "then", "next", "after that", "finally", "step by step",
		},
		DataAnalysis: []string{
			"analyze", "compare", "trend", "forecast", "aggregate",
			"average", "breakdown", "correlation",
		},
		Compliance: []string{
			"csrd", "gri", "esrs", "tcfd", "sec", "regulation",
			"regulatory", "compliance", "audit", "disclosure",
		},
		Actions: []string{
			"create", "update", "delete", "generate", "schedule",
			"send", "export", "configure",
		},
	}
}

// Analyzer scores incoming queries for estimated difficulty. Analyze is a
// pure function of the input string: no I/O, deterministic, synchronous.
type Analyzer struct {
	increments Increments
	keywords   Keywords
}

// NewAnalyzer creates an analyzer with the given tuning; zero values fall
// back to the defaults.
func NewAnalyzer(increments Increments, keywords Keywords) *Analyzer {
	if increments == (Increments{}) {
		increments = DefaultIncrements()
	}
	if len(keywords.Technical) == 0 && len(keywords.MultiStep) == 0 &&
		len(keywords.DataAnalysis) == 0 && len(keywords.Compliance) == 0 &&
		len(keywords.Actions) == 0 {
		keywords = DefaultKeywords()
	}
	return &Analyzer{increments: increments, keywords: keywords}
}

// Analyze estimates how demanding a query is without calling any provider.
func (a *Analyzer) Analyze(query string) types.ComplexityAnalysis {
	lower := strings.ToLower(query)

	analysis := types.ComplexityAnalysis{Category: types.CategoryGeneral}
	score := 0.0

	if len(query) > 500 {
		score += a.increments.LongQuery
	}
	if len(query) > 1000 {
		score += a.increments.VeryLongQuery
	}

	technicalHits := 0
	for _, keyword := range a.keywords.Technical {
		if strings.Contains(lower, keyword) {
			score += a.increments.TechnicalTerm
			technicalHits++
		}
	}
	if technicalHits > 0 {
		analysis.Category = types.CategoryTechnical
	}

	if containsAny(lower, a.keywords.MultiStep) {
		score += a.increments.MultiStep
		analysis.RequiresMultiStep = true
	}

	if containsAny(lower, a.keywords.DataAnalysis) {
		score += a.increments.DataAnalysis
		analysis.RequiresDataAnalysis = true
		analysis.Category = types.CategoryDataAnalysis
	}

	if containsAny(lower, a.keywords.Compliance) {
		score += a.increments.Compliance
		analysis.RequiresCompliance = true
		analysis.Category = types.CategoryCompliance
	}

	if containsAny(lower, a.keywords.Actions) {
		score += a.increments.FunctionAction
		analysis.RequiresFunctionCalling = true
	}

	analysis.Score = math.Min(100, math.Max(0, score))
	analysis.EstimatedTokens = estimateTokens(query)

	return analysis
}

// estimateTokens is a deliberately crude heuristic, not a tokenizer: a token
// is roughly 4 characters and the response is assumed ~10x the prompt.
func estimateTokens(query string) int64 {
	return int64(math.Ceil(float64(len(query))/4)) * 10
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
