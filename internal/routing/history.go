package routing

import (
	"sync"
)

// History is a fixed-capacity ring of recent routing decisions. Once full,
// each append evicts the oldest entry; memory use is bounded by capacity.
type History struct {
	mu    sync.Mutex
	ring  []RoutingDecision
	next  int
	count int
}

// NewHistory creates a history ring with the given capacity (minimum 1)
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{ring: make([]RoutingDecision, capacity)}
}

// Add appends a decision, evicting the oldest when full
func (h *History) Add(decision RoutingDecision) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.ring[h.next] = decision
	h.next = (h.next + 1) % len(h.ring)
	if h.count < len(h.ring) {
		h.count++
	}
}

// Len returns the number of stored decisions
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Recent returns up to n decisions, newest first
func (h *History) Recent(n int) []RoutingDecision {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > h.count {
		n = h.count
	}

	out := make([]RoutingDecision, 0, n)
	idx := h.next - 1
	for i := 0; i < n; i++ {
		if idx < 0 {
			idx += len(h.ring)
		}
		out = append(out, h.ring[idx])
		idx--
	}
	return out
}

// HistoryStats aggregates the stored decisions for reporting
type HistoryStats struct {
	Total          int            `json:"total"`
	ByProvider     map[string]int `json:"by_provider"`
	BestEffort     int            `json:"best_effort"`
	AvgConfidence  float64        `json:"avg_confidence"`
	RulesTriggered map[string]int `json:"rules_triggered,omitempty"`
}

// Stats computes aggregates over the stored decisions
func (h *History) Stats() HistoryStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := HistoryStats{
		ByProvider:     make(map[string]int),
		RulesTriggered: make(map[string]int),
	}

	var confidenceSum float64
	for i := 0; i < h.count; i++ {
		decision := h.ring[i]
		stats.Total++
		stats.ByProvider[decision.PrimaryProvider]++
		if decision.BestEffort {
			stats.BestEffort++
		}
		confidenceSum += decision.Confidence
		for _, rule := range decision.AppliedRules {
			stats.RulesTriggered[rule]++
		}
	}

	if stats.Total > 0 {
		stats.AvgConfidence = confidenceSum / float64(stats.Total)
	}

	return stats
}
