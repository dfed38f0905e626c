package types

import (
	"time"
)

// HealthState describes the derived liveness classification of a provider.
type HealthState string

const (
	HealthStateHealthy     HealthState = "healthy"
	HealthStateDegraded    HealthState = "degraded"
	HealthStateLimited     HealthState = "limited"
	HealthStateUnhealthy   HealthState = "unhealthy"
	HealthStateUnavailable HealthState = "unavailable"
)

// CircuitState describes the circuit breaker state for a provider.
type CircuitState string

const (
	CircuitClosed   CircuitState = "closed"
	CircuitOpen     CircuitState = "open"
	CircuitHalfOpen CircuitState = "half-open"
)

// CircuitBreakerInfo tracks the failure-threshold state machine gating a provider.
type CircuitBreakerInfo struct {
	State       CircuitState `json:"state"`
	Failures    int          `json:"failures"`
	LastFailure time.Time    `json:"last_failure,omitempty"`
	NextCheck   time.Time    `json:"next_check,omitempty"`
}

// QuotaUsage tracks consumption against a provider-side quota.
type QuotaUsage struct {
	Used       int64     `json:"used"`
	Limit      int64     `json:"limit"`
	Percentage float64   `json:"percentage"`
	ResetTime  time.Time `json:"reset_time,omitempty"`
}

// ProviderHealthStats is the mutable per-provider health record. Status is
// always derived from the other fields, never set directly.
type ProviderHealthStats struct {
	ProviderID          string             `json:"provider_id"`
	Status              HealthState        `json:"status"`
	ResponseTime        float64            `json:"response_time_ms"`
	P95ResponseTime     float64            `json:"p95_response_time_ms"`
	ErrorRate           float64            `json:"error_rate"`
	SuccessRate         float64            `json:"success_rate"`
	TotalRequests       int64              `json:"total_requests"`
	FailedRequests      int64              `json:"failed_requests"`
	ConsecutiveFailures int                `json:"consecutive_failures"`
	QuotaUsage          QuotaUsage         `json:"quota_usage"`
	CircuitBreaker      CircuitBreakerInfo `json:"circuit_breaker"`
	LastChecked         time.Time          `json:"last_checked,omitempty"`
	LastError           string             `json:"last_error,omitempty"`
}

// HealthCheckResult is the outcome of a single probe of one provider.
type HealthCheckResult struct {
	ProviderID string        `json:"provider_id"`
	Success    bool          `json:"success"`
	Latency    time.Duration `json:"latency"`
	Status     HealthState   `json:"status"`
	Error      string        `json:"error,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// HealthSummary aggregates provider health for status reporting.
type HealthSummary struct {
	AllHealthy     bool   `json:"all_healthy"`
	HasIssues      bool   `json:"has_issues"`
	Recommendation string `json:"recommendation"`
}

// HealthStatus is the full health report returned to callers.
type HealthStatus struct {
	Providers []ProviderHealthStats `json:"providers"`
	Summary   HealthSummary         `json:"summary"`
	Timestamp time.Time             `json:"timestamp"`
}
