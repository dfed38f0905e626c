package providers

import (
	"context"

	"github.com/verdantiq/ai-router/internal/types"
)

// ProbeResult is what a single liveness check of a provider reports. Latency
// is measured by the caller; the prober may additionally report throughput and
// quota consumption when the upstream exposes them.
type ProbeResult struct {
	TokensPerSecond float64
	Quota           *types.QuotaUsage
}

// Prober is the narrow liveness-check capability each upstream provider must
// supply. A probe should be cheap and carry its own deadline via ctx; a nil
// error means the provider answered.
type Prober interface {
	ProviderID() string
	Probe(ctx context.Context) (*ProbeResult, error)
}
