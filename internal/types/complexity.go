package types

// QueryCategory classifies the dominant nature of a request.
type QueryCategory string

const (
	CategoryGeneral      QueryCategory = "general"
	CategoryTechnical    QueryCategory = "technical"
	CategoryCompliance   QueryCategory = "compliance"
	CategoryDataAnalysis QueryCategory = "data_analysis"
)

// ComplexityAnalysis is the ephemeral per-request difficulty estimate. It is
// created fresh for every request and never persisted.
type ComplexityAnalysis struct {
	Score                   float64       `json:"score"` // 0-100
	EstimatedTokens         int64         `json:"estimated_tokens"`
	RequiresFunctionCalling bool          `json:"requires_function_calling"`
	RequiresMultiStep       bool          `json:"requires_multi_step"`
	RequiresDataAnalysis    bool          `json:"requires_data_analysis"`
	RequiresCompliance      bool          `json:"requires_compliance"`
	Category                QueryCategory `json:"category"`
}

// Specialization returns the capability tag implied by the analysis, or ""
// when the request has no detected specialization.
func (a ComplexityAnalysis) Specialization() string {
	switch {
	case a.RequiresCompliance:
		return "compliance"
	case a.RequiresDataAnalysis:
		return "data_analysis"
	case a.RequiresMultiStep:
		return "multi_step"
	case a.RequiresFunctionCalling:
		return "function_calling"
	}
	return ""
}
