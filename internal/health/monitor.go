package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/persistence"
	"github.com/verdantiq/ai-router/internal/providers"
	"github.com/verdantiq/ai-router/internal/types"
)

// latencyWindow bounds the recent-latency samples kept per provider for
// percentile estimation.
const latencyWindow = 100

// Config holds health monitor configuration. Thresholds default to the
// values the system was tuned with; they are configurable, not re-derived.
type Config struct {
	CheckInterval     time.Duration `yaml:"check_interval"`
	ProbeTimeout      time.Duration `yaml:"probe_timeout"`
	FailureThreshold  int           `yaml:"failure_threshold"`
	CooldownPeriod    time.Duration `yaml:"cooldown_period"`
	MaxErrorRate      float64       `yaml:"max_error_rate"`
	DegradedLatencyMs float64       `yaml:"degraded_latency_ms"`
	QuotaLimitPercent float64       `yaml:"quota_limit_percent"`
}

// SetDefaults fills zero fields with the tuned defaults
func (c *Config) SetDefaults() {
	if c.CheckInterval == 0 {
		c.CheckInterval = 30 * time.Second
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 10 * time.Second
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = 5
	}
	if c.CooldownPeriod == 0 {
		c.CooldownPeriod = 60 * time.Second
	}
	if c.MaxErrorRate == 0 {
		c.MaxErrorRate = 10
	}
	if c.DegradedLatencyMs == 0 {
		c.DegradedLatencyMs = 5000
	}
	if c.QuotaLimitPercent == 0 {
		c.QuotaLimitPercent = 95
	}
}

// providerEntry pairs a prober with its mutable health record.
type providerEntry struct {
	prober    providers.Prober
	stats     *types.ProviderHealthStats
	latencies []float64 // recent samples, ms, bounded by latencyWindow
}

// Monitor maintains truth about provider liveness. It owns every
// ProviderHealthStats record exclusively; readers get copies.
type Monitor struct {
	config Config
	logger *logrus.Logger
	store  persistence.Store
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*providerEntry

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a health monitor. A nil store disables persistence.
func NewMonitor(config Config, store persistence.Store, logger *logrus.Logger) *Monitor {
	config.SetDefaults()
	if store == nil {
		store = persistence.NopStore{}
	}

	return &Monitor{
		config:  config,
		logger:  logger,
		store:   store,
		now:     time.Now,
		entries: make(map[string]*providerEntry),
	}
}

// RegisterProvider adds a provider to the monitored set with fresh stats
func (m *Monitor) RegisterProvider(prober providers.Prober) {
	id := prober.ProviderID()

	m.mu.Lock()
	m.entries[id] = &providerEntry{
		prober: prober,
		stats:  newStats(id),
	}
	m.mu.Unlock()

	m.logger.WithField("provider", id).Info("Provider registered for health monitoring")
}

func newStats(id string) *types.ProviderHealthStats {
	return &types.ProviderHealthStats{
		ProviderID:  id,
		Status:      types.HealthStateHealthy,
		SuccessRate: 100,
		CircuitBreaker: types.CircuitBreakerInfo{
			State: types.CircuitClosed,
		},
	}
}

// Providers returns the monitored provider IDs in stable order
func (m *Monitor) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// StartMonitoring launches the periodic probe loop. Calling it while a loop
// is already running is a no-op.
func (m *Monitor) StartMonitoring(interval time.Duration) {
	if interval <= 0 {
		interval = m.config.CheckInterval
	}

	m.loopMu.Lock()
	defer m.loopMu.Unlock()

	if m.cancel != nil {
		m.logger.Debug("Monitoring already running, ignoring start")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.runLoop(ctx, interval)

	m.logger.WithField("interval", interval.String()).Info("Health monitoring started")
}

// StopMonitoring stops the probe loop and waits for it to exit. Idempotent.
func (m *Monitor) StopMonitoring() {
	m.loopMu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.done = nil
	m.loopMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
	m.logger.Info("Health monitoring stopped")
}

func (m *Monitor) runLoop(ctx context.Context, interval time.Duration) {
	defer close(m.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Prime stats immediately rather than waiting a full interval
	m.CheckAllProviders(ctx)

	for {
		select {
		case <-ticker.C:
			m.CheckAllProviders(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// CheckAllProviders probes every provider concurrently and joins before
// returning, so a slow provider cannot block the others.
func (m *Monitor) CheckAllProviders(ctx context.Context) []types.HealthCheckResult {
	m.mu.RLock()
	ids := make([]string, 0, len(m.entries))
	for id := range m.entries {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)

	results := make([]types.HealthCheckResult, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			result, err := m.CheckProviderHealth(ctx, id)
			if err != nil {
				// Registration can race with the snapshot above; nothing to record
				m.logger.WithError(err).WithField("provider", id).Debug("Health check skipped")
				return
			}
			results[i] = *result
		}(i, id)
	}
	wg.Wait()

	return results
}

// CheckProviderHealth issues one probe against the provider and folds the
// outcome into its stats. A probe error is recorded, never propagated.
func (m *Monitor) CheckProviderHealth(ctx context.Context, providerID string) (*types.HealthCheckResult, error) {
	m.mu.RLock()
	entry, exists := m.entries[providerID]
	m.mu.RUnlock()
	if !exists {
		return nil, fmt.Errorf("unknown provider: %s", providerID)
	}

	now := m.now()

	m.mu.Lock()
	allowed := breakerAllowsProbe(&entry.stats.CircuitBreaker, now)
	if !allowed {
		// Breaker open and cooldown not elapsed: the provider stays
		// unavailable without being contacted.
		entry.stats.Status = types.HealthStateUnavailable
		entry.stats.LastChecked = now
		result := &types.HealthCheckResult{
			ProviderID: providerID,
			Success:    false,
			Status:     types.HealthStateUnavailable,
			Error:      "circuit breaker open",
			CheckedAt:  now,
		}
		m.mu.Unlock()
		return result, nil
	}
	m.mu.Unlock()

	probeCtx, cancelProbe := context.WithTimeout(ctx, m.config.ProbeTimeout)
	start := m.now()
	probe, err := m.probeSafely(probeCtx, entry.prober)
	latency := m.now().Sub(start)
	cancelProbe()

	if err != nil {
		m.recordFailure(providerID, err.Error())
		logFields := logrus.Fields{"provider": providerID, "latency_ms": latency.Milliseconds()}
		m.logger.WithError(err).WithFields(logFields).Warn("Provider probe failed")
	} else {
		m.recordSuccess(providerID, latency, probe)
		m.logger.WithFields(logrus.Fields{
			"provider":   providerID,
			"latency_ms": latency.Milliseconds(),
		}).Debug("Provider probe passed")
	}

	m.mu.RLock()
	status := entry.stats.Status
	errorRate := entry.stats.ErrorRate
	m.mu.RUnlock()

	result := &types.HealthCheckResult{
		ProviderID: providerID,
		Success:    err == nil,
		Latency:    latency,
		Status:     status,
		CheckedAt:  now,
	}
	if err != nil {
		result.Error = err.Error()
	}

	m.store.PersistMetrics(persistence.MetricsRecord{
		ProviderID:   providerID,
		Success:      err == nil,
		ResponseTime: float64(latency.Milliseconds()),
		ErrorRate:    errorRate,
		Status:       string(status),
		Timestamp:    now,
	})

	return result, nil
}

// probeSafely shields the monitor loop from a panicking prober
func (m *Monitor) probeSafely(ctx context.Context, prober providers.Prober) (result *providers.ProbeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("probe panicked: %v", r)
		}
	}()
	return prober.Probe(ctx)
}

// ForceHealthCheck performs an on-demand probe of one provider
func (m *Monitor) ForceHealthCheck(ctx context.Context, providerID string) (*types.HealthCheckResult, error) {
	return m.CheckProviderHealth(ctx, providerID)
}

// RecordUsage folds the outcome of an actual provider call into its stats.
// Called by request-executing callers after the fact.
func (m *Monitor) RecordUsage(record types.UsageRecord) {
	m.mu.RLock()
	entry, exists := m.entries[record.ProviderID]
	m.mu.RUnlock()
	if !exists {
		m.logger.WithField("provider", record.ProviderID).Warn("Usage recorded for unknown provider")
		return
	}

	if record.Success {
		m.recordSuccess(record.ProviderID, record.ResponseTime, nil)
	} else {
		m.recordFailure(record.ProviderID, "request failed")
	}

	if record.TokensUsed > 0 {
		m.mu.Lock()
		quota := &entry.stats.QuotaUsage
		quota.Used += record.TokensUsed
		if quota.Limit > 0 {
			quota.Percentage = float64(quota.Used) / float64(quota.Limit) * 100
		}
		entry.stats.Status = m.deriveStatus(entry.stats)
		m.mu.Unlock()
	}
}

// ResetProviderStats wipes a provider's record back to its initial state
func (m *Monitor) ResetProviderStats(providerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[providerID]
	if !exists {
		return
	}

	limit := entry.stats.QuotaUsage.Limit
	entry.stats = newStats(providerID)
	entry.stats.QuotaUsage.Limit = limit
	entry.latencies = nil

	m.logger.WithField("provider", providerID).Info("Provider stats reset")
}

// SetQuotaLimit configures the quota ceiling for a provider
func (m *Monitor) SetQuotaLimit(providerID string, limit int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, exists := m.entries[providerID]; exists {
		entry.stats.QuotaUsage.Limit = limit
	}
}

// Snapshot returns copies of all provider stats keyed by provider ID
func (m *Monitor) Snapshot() map[string]types.ProviderHealthStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := make(map[string]types.ProviderHealthStats, len(m.entries))
	for id, entry := range m.entries {
		snapshot[id] = *entry.stats
	}
	return snapshot
}

// StatsFor returns a copy of one provider's stats
func (m *Monitor) StatsFor(providerID string) (types.ProviderHealthStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[providerID]
	if !exists {
		return types.ProviderHealthStats{}, false
	}
	return *entry.stats, true
}

// GetHealthStatus returns the full health report with an aggregate summary
func (m *Monitor) GetHealthStatus() types.HealthStatus {
	m.mu.RLock()
	providerStats := make([]types.ProviderHealthStats, 0, len(m.entries))
	for _, entry := range m.entries {
		providerStats = append(providerStats, *entry.stats)
	}
	m.mu.RUnlock()

	sort.Slice(providerStats, func(i, j int) bool {
		return providerStats[i].ProviderID < providerStats[j].ProviderID
	})

	allHealthy := true
	unavailable := 0
	for _, stats := range providerStats {
		if stats.Status != types.HealthStateHealthy {
			allHealthy = false
		}
		if stats.Status == types.HealthStateUnavailable {
			unavailable++
		}
	}

	summary := types.HealthSummary{
		AllHealthy: allHealthy && len(providerStats) > 0,
		HasIssues:  !allHealthy,
	}

	switch {
	case len(providerStats) == 0:
		summary.AllHealthy = false
		summary.HasIssues = true
		summary.Recommendation = "No providers registered"
	case unavailable == len(providerStats):
		summary.Recommendation = "All providers unavailable; routing is best-effort only"
	case !allHealthy:
		summary.Recommendation = "Some providers degraded; expect fallback routing"
	default:
		summary.Recommendation = "All providers operating normally"
	}

	return types.HealthStatus{
		Providers: providerStats,
		Summary:   summary,
		Timestamp: m.now(),
	}
}

func (m *Monitor) recordSuccess(providerID string, latency time.Duration, probe *providers.ProbeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.entries[providerID]
	if !exists {
		return
	}
	stats := entry.stats

	latencyMs := float64(latency.Milliseconds())

	stats.TotalRequests++
	stats.ResponseTime = (stats.ResponseTime*float64(stats.TotalRequests-1) + latencyMs) / float64(stats.TotalRequests)
	stats.ConsecutiveFailures = 0
	stats.LastError = ""
	stats.LastChecked = m.now()

	entry.latencies = append(entry.latencies, latencyMs)
	if len(entry.latencies) > latencyWindow {
		entry.latencies = entry.latencies[len(entry.latencies)-latencyWindow:]
	}
	stats.P95ResponseTime = percentile(entry.latencies, 0.95)

	if probe != nil {
		if probe.Quota != nil {
			stats.QuotaUsage = *probe.Quota
		}
	}

	breakerRecordSuccess(&stats.CircuitBreaker)
	recomputeRates(stats)
	stats.Status = m.deriveStatusWithLatency(stats, latencyMs)
}

func (m *Monitor) recordFailure(providerID, errorMessage string) {
	m.mu.Lock()

	entry, exists := m.entries[providerID]
	if !exists {
		m.mu.Unlock()
		return
	}
	stats := entry.stats
	previousStatus := stats.Status
	now := m.now()

	stats.TotalRequests++
	stats.FailedRequests++
	stats.ConsecutiveFailures++
	stats.LastError = errorMessage
	stats.LastChecked = now

	breakerRecordFailure(&stats.CircuitBreaker, now, m.config.FailureThreshold, m.config.CooldownPeriod)
	recomputeRates(stats)
	stats.Status = m.deriveStatus(stats)

	newStatus := stats.Status
	errorRate := stats.ErrorRate
	m.mu.Unlock()

	if newStatus != previousStatus &&
		(newStatus == types.HealthStateUnavailable || newStatus == types.HealthStateUnhealthy) {
		severity := "warning"
		if newStatus == types.HealthStateUnavailable {
			severity = "critical"
		}
		m.store.PersistAlert(persistence.AlertRecord{
			ProviderID: providerID,
			Severity:   severity,
			Message:    fmt.Sprintf("Provider %s transitioned to %s (error rate %.1f%%)", providerID, newStatus, errorRate),
			Status:     string(newStatus),
			Timestamp:  now,
		})
	}
}

// recomputeRates keeps errorRate and successRate complementary
func recomputeRates(stats *types.ProviderHealthStats) {
	if stats.TotalRequests == 0 {
		stats.ErrorRate = 0
		stats.SuccessRate = 100
		return
	}
	stats.ErrorRate = float64(stats.FailedRequests) / float64(stats.TotalRequests) * 100
	stats.SuccessRate = 100 - stats.ErrorRate
}

// deriveStatus applies the status policy in priority order; first match wins.
func (m *Monitor) deriveStatus(stats *types.ProviderHealthStats) types.HealthState {
	return m.deriveStatusWithLatency(stats, stats.ResponseTime)
}

func (m *Monitor) deriveStatusWithLatency(stats *types.ProviderHealthStats, latencyMs float64) types.HealthState {
	switch {
	case stats.CircuitBreaker.State == types.CircuitOpen:
		return types.HealthStateUnavailable
	case stats.ErrorRate > m.config.MaxErrorRate:
		return types.HealthStateUnhealthy
	case latencyMs > m.config.DegradedLatencyMs:
		return types.HealthStateDegraded
	case stats.QuotaUsage.Percentage > m.config.QuotaLimitPercent:
		return types.HealthStateLimited
	case stats.ConsecutiveFailures > 0:
		return types.HealthStateDegraded
	}
	return types.HealthStateHealthy
}

// percentile estimates the pth percentile of the samples (p in 0-1)
func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)

	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
