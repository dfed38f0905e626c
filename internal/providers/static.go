package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/verdantiq/ai-router/internal/types"
)

// StaticProber is a scriptable prober used for offline operation and tests.
// It answers probes from configured latency/failure settings instead of
// calling a real upstream.
type StaticProber struct {
	id string

	mu              sync.Mutex
	latency         time.Duration
	failing         bool
	failError       string
	tokensPerSecond float64
	quota           *types.QuotaUsage
	probeCount      int
}

// NewStaticProber creates a static prober that always succeeds with the given
// simulated latency.
func NewStaticProber(id string, latency time.Duration) *StaticProber {
	return &StaticProber{id: id, latency: latency}
}

// ProviderID returns the configured provider identifier
func (s *StaticProber) ProviderID() string {
	return s.id
}

// Probe answers from the scripted state after sleeping the configured latency.
func (s *StaticProber) Probe(ctx context.Context) (*ProbeResult, error) {
	s.mu.Lock()
	latency := s.latency
	failing := s.failing
	failError := s.failError
	result := &ProbeResult{TokensPerSecond: s.tokensPerSecond, Quota: s.quota}
	s.probeCount++
	s.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if failing {
		if failError == "" {
			failError = "provider unavailable"
		}
		return nil, fmt.Errorf("%s: %s", s.id, failError)
	}

	return result, nil
}

// SetFailing flips the prober into (or out of) a failing state.
func (s *StaticProber) SetFailing(failing bool, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
	s.failError = message
}

// SetLatency adjusts the simulated probe latency.
func (s *StaticProber) SetLatency(latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latency = latency
}

// SetQuota sets the quota usage the prober reports.
func (s *StaticProber) SetQuota(quota *types.QuotaUsage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quota = quota
}

// ProbeCount returns how many probes have been issued.
func (s *StaticProber) ProbeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probeCount
}
