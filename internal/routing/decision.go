package routing

import (
	"time"

	"github.com/verdantiq/ai-router/internal/scoring"
	"github.com/verdantiq/ai-router/internal/types"
)

// RoutingDecision is the actionable outcome of routing one request. It is
// immutable once created; a copy may be kept in the bounded history.
type RoutingDecision struct {
	// Decision identity
	ID        string    `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// The selected provider and the ordered alternates to try on failure.
	// The chain never contains the primary.
	PrimaryProvider string   `json:"primary_provider"`
	FallbackChain   []string `json:"fallback_chain"`

	// Cost and latency estimates for the primary provider
	EstimatedCost    float64       `json:"estimated_cost"`
	EstimatedLatency time.Duration `json:"estimated_latency"`

	// Confidence in the decision, 0-100. Best-effort decisions under total
	// degradation carry low confidence.
	Confidence float64 `json:"confidence"`

	// Human-readable reasoning built from the top-weighted factors
	Reasoning []string `json:"reasoning"`

	// Names of the routing rules that fired for this request
	AppliedRules []string `json:"applied_rules,omitempty"`

	// Tradeoff preference used for primary selection and chain ordering
	Strategy types.RoutingStrategy `json:"strategy"`

	// True when no provider was viable and the least-bad one was chosen
	BestEffort bool `json:"best_effort"`

	// Per-provider scores at decision time, for audit
	Scores map[string]scoring.ProviderScore `json:"scores,omitempty"`

	// Complexity analysis that drove the decision
	Complexity types.ComplexityAnalysis `json:"complexity"`
}
