package persistence

import (
	"time"
)

// MetricsRecord is one durable health/usage observation.
type MetricsRecord struct {
	ProviderID   string    `json:"provider_id"`
	Success      bool      `json:"success"`
	ResponseTime float64   `json:"response_time_ms"`
	ErrorRate    float64   `json:"error_rate"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
}

// AlertRecord is one durable alert about a provider state transition.
type AlertRecord struct {
	ProviderID string    `json:"provider_id"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
}

// Store receives fire-and-forget writes of metrics and alerts. Implementations
// must never let a write failure propagate to the caller; routing correctness
// does not depend on durability.
type Store interface {
	PersistMetrics(record MetricsRecord)
	PersistAlert(record AlertRecord)
	Close()
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) PersistMetrics(MetricsRecord) {}
func (NopStore) PersistAlert(AlertRecord)     {}
func (NopStore) Close()                       {}
