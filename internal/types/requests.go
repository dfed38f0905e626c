package types

import (
	"time"
)

// Priority classifies how urgent a routed request is.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether the priority is a known value. Empty defaults to normal.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityNormal, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// RouteConstraints are optional caller-supplied ceilings for a single request.
type RouteConstraints struct {
	MaxCost          float64       `json:"max_cost,omitempty"`
	MaxLatency       time.Duration `json:"max_latency,omitempty"`
	MinQuality       float64       `json:"min_quality,omitempty"`
	ExcludeProviders []string      `json:"exclude_providers,omitempty"`
}

// RouteRequest is a single incoming routing request.
type RouteRequest struct {
	ID          string            `json:"id"`
	Query       string            `json:"query"`
	TenantID    string            `json:"tenant_id"`
	Priority    Priority          `json:"priority,omitempty"`
	Constraints *RouteConstraints `json:"constraints,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Requirements are derived per request before scoring.
type Requirements struct {
	MaxCost             float64 `json:"max_cost"`
	MaxLatencyMs        float64 `json:"max_latency_ms"`
	MinQuality          float64 `json:"min_quality"`
	RequiresHighQuality bool    `json:"requires_high_quality"`
	RequiresLowLatency  bool    `json:"requires_low_latency"`
}

// UsageRecord reports the outcome of an actual provider call back to the
// health monitor after the fact.
type UsageRecord struct {
	ProviderID   string        `json:"provider_id"`
	Success      bool          `json:"success"`
	ResponseTime time.Duration `json:"response_time"`
	TokensUsed   int64         `json:"tokens_used,omitempty"`
}
