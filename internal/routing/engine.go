package routing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/complexity"
	"github.com/verdantiq/ai-router/internal/cost"
	"github.com/verdantiq/ai-router/internal/health"
	"github.com/verdantiq/ai-router/internal/scoring"
	"github.com/verdantiq/ai-router/internal/types"
)

// highQualityFloor is the minimum static quality a provider must have when a
// request requires high quality.
const highQualityFloor = 0.9

// highComplexityThreshold is the complexity score above which a request
// requires high quality regardless of priority.
const highComplexityThreshold = 80

// EngineConfig holds routing engine configuration
type EngineConfig struct {
	DefaultMaxCost  float64               `yaml:"default_max_cost"`
	DefaultStrategy types.RoutingStrategy `yaml:"default_strategy"`
	HistorySize     int                   `yaml:"history_size"`
}

// SetDefaults fills zero fields
func (c *EngineConfig) SetDefaults() {
	if c.DefaultMaxCost == 0 {
		c.DefaultMaxCost = 0.50
	}
	if c.DefaultStrategy == "" {
		c.DefaultStrategy = types.StrategyBalanced
	}
	if c.HistorySize == 0 {
		c.HistorySize = 1000
	}
}

// Engine turns a scored provider set into actionable routing decisions with
// graceful degradation. Each RouteQuery call is stateless given the current
// health snapshot; only the bounded history persists across calls.
type Engine struct {
	config       EngineConfig
	analyzer     *complexity.Analyzer
	scorer       *scoring.Scorer
	monitor      *health.Monitor
	optimizer    *cost.Optimizer
	rules        *RuleSet
	capabilities map[string]types.ProviderCapability
	chains       map[types.RoutingStrategy][]string
	history      *History
	logger       *logrus.Logger
}

// NewEngine wires the routing engine from its collaborators. Capabilities
// must contain every routable provider.
func NewEngine(
	config EngineConfig,
	analyzer *complexity.Analyzer,
	scorer *scoring.Scorer,
	monitor *health.Monitor,
	optimizer *cost.Optimizer,
	rules *RuleSet,
	capabilities []types.ProviderCapability,
	chains []types.FailoverChain,
	logger *logrus.Logger,
) (*Engine, error) {
	config.SetDefaults()

	if len(capabilities) == 0 {
		return nil, fmt.Errorf("at least one provider capability is required")
	}
	if rules == nil {
		var err error
		rules, err = NewRuleSet(nil)
		if err != nil {
			return nil, err
		}
	}

	capabilityMap := make(map[string]types.ProviderCapability, len(capabilities))
	for _, capability := range capabilities {
		capabilityMap[capability.ProviderID] = capability
	}

	chainMap := make(map[types.RoutingStrategy][]string, len(chains))
	for _, chain := range chains {
		chainMap[chain.Strategy] = chain.Providers
	}

	return &Engine{
		config:       config,
		analyzer:     analyzer,
		scorer:       scorer,
		monitor:      monitor,
		optimizer:    optimizer,
		rules:        rules,
		capabilities: capabilityMap,
		chains:       chainMap,
		history:      NewHistory(config.HistorySize),
		logger:       logger,
	}, nil
}

// validateRequest rejects malformed requests before any scoring work begins.
// This is the only path that returns an error to the caller.
func (e *Engine) validateRequest(req *types.RouteRequest) error {
	if req == nil {
		return fmt.Errorf("request is nil")
	}
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.TenantID == "" {
		return fmt.Errorf("tenant ID is required")
	}
	if !req.Priority.Valid() {
		return fmt.Errorf("invalid priority: %s", req.Priority)
	}
	if req.Constraints != nil {
		if req.Constraints.MaxCost < 0 {
			return fmt.Errorf("max cost cannot be negative")
		}
		if req.Constraints.MinQuality < 0 || req.Constraints.MinQuality > 1 {
			return fmt.Errorf("min quality must be between 0 and 1")
		}
	}
	return nil
}

// RouteQuery selects the best viable provider and an ordered fallback chain
// for the request. It always returns a decision for a valid request, even
// when every provider is degraded.
func (e *Engine) RouteQuery(req *types.RouteRequest) (*RoutingDecision, error) {
	if err := e.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid routing request: %w", err)
	}

	analysis := e.analyzer.Analyze(req.Query)
	requirements, strategy, appliedRules := e.deriveRequirements(req, analysis)

	excluded := e.excludedProviders(req, analysis, requirements, appliedRules)

	snapshot := e.monitor.Snapshot()
	scores := e.scorer.Score(requirements, analysis, e.capabilities, snapshot)

	primary, bestEffort := e.selectPrimary(scores, requirements, excluded, snapshot, analysis.EstimatedTokens)
	chain := e.buildFallbackChain(primary, strategy, requirements, scores, snapshot, excluded, analysis.EstimatedTokens)

	capability := e.capabilities[primary]
	decision := &RoutingDecision{
		ID:               uuid.NewString(),
		RequestID:        req.ID,
		Timestamp:        time.Now(),
		PrimaryProvider:  primary,
		FallbackChain:    chain,
		EstimatedCost:    scoring.EstimateCost(capability, analysis.EstimatedTokens),
		EstimatedLatency: estimateLatency(capability, snapshot[primary], analysis.EstimatedTokens),
		Confidence:       e.decisionConfidence(scores[primary], bestEffort),
		Reasoning:        e.buildReasoning(primary, scores[primary], requirements, bestEffort),
		AppliedRules:     ruleNames(appliedRules),
		Strategy:         strategy,
		BestEffort:       bestEffort,
		Scores:           scores,
		Complexity:       analysis,
	}

	e.history.Add(*decision)

	e.logger.WithFields(logrus.Fields{
		"request_id":  req.ID,
		"tenant":      req.TenantID,
		"provider":    decision.PrimaryProvider,
		"fallbacks":   len(decision.FallbackChain),
		"complexity":  analysis.Score,
		"confidence":  decision.Confidence,
		"best_effort": decision.BestEffort,
		"strategy":    string(strategy),
	}).Info("Request routed")

	return decision, nil
}

// deriveRequirements folds caller constraints, complexity, and matched rules
// into the hard requirements used for scoring and filtering.
func (e *Engine) deriveRequirements(req *types.RouteRequest, analysis types.ComplexityAnalysis) (types.Requirements, types.RoutingStrategy, []RoutingRule) {
	requirements := types.Requirements{
		MaxCost:             e.config.DefaultMaxCost,
		RequiresHighQuality: analysis.Score > highComplexityThreshold || req.Priority == types.PriorityCritical,
		RequiresLowLatency:  req.Priority == types.PriorityCritical || req.Priority == types.PriorityHigh,
	}

	if req.Constraints != nil {
		if req.Constraints.MaxCost > 0 {
			requirements.MaxCost = req.Constraints.MaxCost
		}
		if req.Constraints.MinQuality > 0 {
			requirements.MinQuality = req.Constraints.MinQuality
		}
		if req.Constraints.MaxLatency > 0 {
			requirements.MaxLatencyMs = float64(req.Constraints.MaxLatency.Milliseconds())
		}
	}

	strategy := e.config.DefaultStrategy

	env := RuleEnv{
		Query:           req.Query,
		QueryLength:     len(req.Query),
		TenantID:        req.TenantID,
		Priority:        string(req.Priority),
		Complexity:      analysis.Score,
		EstimatedTokens: analysis.EstimatedTokens,
		Category:        string(analysis.Category),
		MultiStep:       analysis.RequiresMultiStep,
		Compliance:      analysis.RequiresCompliance,
		DataAnalysis:    analysis.RequiresDataAnalysis,
		FunctionCalling: analysis.RequiresFunctionCalling,
	}

	matched, err := e.rules.Matching(env)
	if err != nil {
		// A broken rule must not take routing down with it
		e.logger.WithError(err).Warn("Routing rule evaluation failed")
	}

	for _, rule := range matched {
		if rule.Action.SetStrategy != "" {
			strategy = rule.Action.SetStrategy
		}
		if rule.Action.RequireHighQuality {
			requirements.RequiresHighQuality = true
		}
		if rule.Action.MinQuality > requirements.MinQuality {
			requirements.MinQuality = rule.Action.MinQuality
		}
		if rule.Action.MaxCost > 0 && rule.Action.MaxCost < requirements.MaxCost {
			requirements.MaxCost = rule.Action.MaxCost
		}
	}

	if strategy == e.config.DefaultStrategy {
		switch {
		case requirements.RequiresHighQuality:
			strategy = types.StrategyQualityOptimized
		case requirements.RequiresLowLatency:
			strategy = types.StrategySpeedOptimized
		}
	}

	return requirements, strategy, matched
}

// excludedProviders collects every provider barred by caller constraints,
// rule actions, or the tenant's budget.
func (e *Engine) excludedProviders(req *types.RouteRequest, analysis types.ComplexityAnalysis, requirements types.Requirements, rules []RoutingRule) map[string]string {
	excluded := make(map[string]string)

	if req.Constraints != nil {
		for _, id := range req.Constraints.ExcludeProviders {
			excluded[id] = "excluded by caller"
		}
	}

	for _, rule := range rules {
		for _, id := range rule.Action.ExcludeProviders {
			excluded[id] = fmt.Sprintf("excluded by rule %s", rule.Name)
		}
	}

	for id, capability := range e.capabilities {
		estimated := scoring.EstimateCost(capability, analysis.EstimatedTokens)
		if !e.optimizer.IsWithinBudget(req.TenantID, estimated) {
			excluded[id] = "tenant budget exhausted"
		}
	}

	return excluded
}

// selectPrimary picks the highest-scoring viable provider that clears the
// hard requirement filters. When nothing is viable it degrades to the
// least-bad provider by composite health score; it never returns nothing.
func (e *Engine) selectPrimary(
	scores map[string]scoring.ProviderScore,
	requirements types.Requirements,
	excluded map[string]string,
	snapshot map[string]types.ProviderHealthStats,
	estimatedTokens int64,
) (string, bool) {
	ranked := scoring.Ranked(scores)

	for _, candidate := range ranked {
		if !candidate.Viable {
			continue
		}
		if _, barred := excluded[candidate.ProviderID]; barred {
			continue
		}
		if !e.meetsHardRequirements(candidate, requirements, snapshot[candidate.ProviderID], estimatedTokens) {
			continue
		}
		return candidate.ProviderID, false
	}

	// Best-effort: least-bad provider by last-known composite health
	best := ""
	bestHealth := -1.0
	for _, candidate := range ranked {
		h := scoring.HealthScore(snapshot[candidate.ProviderID])
		if h > bestHealth || (h == bestHealth && (best == "" || candidate.ProviderID < best)) {
			best = candidate.ProviderID
			bestHealth = h
		}
	}
	if best == "" {
		// Scores can only be empty if capabilities were empty, which the
		// constructor rejects; guard anyway
		for id := range e.capabilities {
			if best == "" || id < best {
				best = id
			}
		}
	}
	return best, true
}

func (e *Engine) meetsHardRequirements(candidate scoring.ProviderScore, requirements types.Requirements, stats types.ProviderHealthStats, estimatedTokens int64) bool {
	capability := e.capabilities[candidate.ProviderID]

	if requirements.RequiresHighQuality && capability.QualityScore < highQualityFloor {
		return false
	}
	if requirements.MinQuality > 0 && capability.QualityScore < requirements.MinQuality {
		return false
	}
	if requirements.MaxCost > 0 && requirements.MaxCost < capability.CostPer1KTokens {
		return false
	}
	if requirements.MaxLatencyMs > 0 {
		estimated := estimateLatency(capability, stats, estimatedTokens)
		if float64(estimated.Milliseconds()) > requirements.MaxLatencyMs {
			return false
		}
	}
	return true
}

// buildFallbackChain orders the remaining providers by the same tradeoff
// priority used for primary selection, dropping the primary and any provider
// whose live status is unavailable.
func (e *Engine) buildFallbackChain(
	primary string,
	strategy types.RoutingStrategy,
	requirements types.Requirements,
	scores map[string]scoring.ProviderScore,
	snapshot map[string]types.ProviderHealthStats,
	excluded map[string]string,
	estimatedTokens int64,
) []string {
	// Start from the configured chain for the strategy so operator
	// preference orders ties, then append anything it missed.
	seen := map[string]bool{primary: true}
	var candidates []string

	for _, id := range e.chains[strategy] {
		if _, known := e.capabilities[id]; known && !seen[id] {
			candidates = append(candidates, id)
			seen[id] = true
		}
	}
	for _, score := range scoring.Ranked(scores) {
		if !seen[score.ProviderID] {
			candidates = append(candidates, score.ProviderID)
			seen[score.ProviderID] = true
		}
	}

	var chain []string
	for _, id := range candidates {
		if _, barred := excluded[id]; barred {
			continue
		}
		// Providers the monitor has never tracked are scored as unavailable;
		// keep the chain consistent with that
		stats, tracked := snapshot[id]
		if !tracked || stats.Status == types.HealthStateUnavailable {
			continue
		}
		chain = append(chain, id)
	}

	// Quality-first when the request demands it, latency-first for speed
	// routing, cost-first otherwise. Stable sort preserves configured chain
	// order for ties.
	switch {
	case requirements.RequiresHighQuality || strategy == types.StrategyQualityOptimized:
		sort.SliceStable(chain, func(i, j int) bool {
			return e.capabilities[chain[i]].QualityScore > e.capabilities[chain[j]].QualityScore
		})
	case strategy == types.StrategySpeedOptimized:
		sort.SliceStable(chain, func(i, j int) bool {
			return estimateLatency(e.capabilities[chain[i]], snapshot[chain[i]], estimatedTokens) <
				estimateLatency(e.capabilities[chain[j]], snapshot[chain[j]], estimatedTokens)
		})
	default:
		sort.SliceStable(chain, func(i, j int) bool {
			return e.capabilities[chain[i]].CostPer1KTokens < e.capabilities[chain[j]].CostPer1KTokens
		})
	}

	return chain
}

func (e *Engine) decisionConfidence(score scoring.ProviderScore, bestEffort bool) float64 {
	if bestEffort {
		// Cap confidence well below the viability bar so callers can see
		// this was a degraded decision
		if score.Confidence > 30 {
			return 30
		}
		return score.Confidence
	}
	return score.Confidence
}

// buildReasoning explains the decision from its top-weighted factors
func (e *Engine) buildReasoning(primary string, score scoring.ProviderScore, requirements types.Requirements, bestEffort bool) []string {
	if bestEffort {
		return []string{
			fmt.Sprintf("No provider was viable; %s selected as best effort by health score", primary),
			"Expect elevated failure risk; retry along the fallback chain",
		}
	}

	reasoning := []string{
		fmt.Sprintf("%s scored %.1f (health %.0f, complexity fit %.0f, cost %.0f)",
			primary, score.Score, score.Factors.Health, score.Factors.Complexity, score.Factors.Cost),
	}

	if requirements.RequiresHighQuality {
		reasoning = append(reasoning,
			fmt.Sprintf("High quality required; %s quality %.2f clears the %.2f floor",
				primary, e.capabilities[primary].QualityScore, float64(highQualityFloor)))
	}
	if score.Factors.Specialization == 100 {
		reasoning = append(reasoning, fmt.Sprintf("%s matches the detected specialization", primary))
	}

	return reasoning
}

// estimateLatency combines observed request latency with generation time
// from the provider's static throughput.
func estimateLatency(capability types.ProviderCapability, stats types.ProviderHealthStats, estimatedTokens int64) time.Duration {
	baseMs := stats.ResponseTime
	if baseMs == 0 {
		baseMs = 500
	}

	generationMs := 0.0
	if capability.TokensPerSecond > 0 {
		generationMs = float64(estimatedTokens) / capability.TokensPerSecond * 1000
	}

	return time.Duration(baseMs+generationMs) * time.Millisecond
}

func ruleNames(rules []RoutingRule) []string {
	if len(rules) == 0 {
		return nil
	}
	names := make([]string, len(rules))
	for i, rule := range rules {
		names[i] = rule.Name
	}
	return names
}

// RecordUsage reports an actual provider call outcome back into health stats
// and tenant spend tracking.
func (e *Engine) RecordUsage(tenantID string, record types.UsageRecord) {
	e.monitor.RecordUsage(record)

	if record.Success && record.TokensUsed > 0 {
		if capability, known := e.capabilities[record.ProviderID]; known {
			e.optimizer.TrackCost(tenantID, float64(record.TokensUsed)/1000*capability.CostPer1KTokens)
		}
	}
}

// GetHealthStatus returns the monitor's current health report
func (e *Engine) GetHealthStatus() types.HealthStatus {
	return e.monitor.GetHealthStatus()
}

// ForceHealthCheck probes one provider on demand
func (e *Engine) ForceHealthCheck(ctx context.Context, providerID string) (*types.HealthCheckResult, error) {
	return e.monitor.ForceHealthCheck(ctx, providerID)
}

// StatsFor returns the current health stats for one provider
func (e *Engine) StatsFor(providerID string) (types.ProviderHealthStats, bool) {
	return e.monitor.StatsFor(providerID)
}

// ResetProviderStats wipes one provider's health record
func (e *Engine) ResetProviderStats(providerID string) {
	e.monitor.ResetProviderStats(providerID)
}

// StartMonitoring starts the periodic health probe loop (idempotent)
func (e *Engine) StartMonitoring(interval time.Duration) {
	e.monitor.StartMonitoring(interval)
}

// StopMonitoring stops the probe loop (idempotent)
func (e *Engine) StopMonitoring() {
	e.monitor.StopMonitoring()
}

// RemainingBudget returns the tenant's remaining monthly budget
func (e *Engine) RemainingBudget(tenantID string) float64 {
	return e.optimizer.GetRemainingBudget(tenantID)
}

// History returns the bounded decision history
func (e *Engine) History() *History {
	return e.history
}

// Capabilities returns the static capability profiles keyed by provider
func (e *Engine) Capabilities() map[string]types.ProviderCapability {
	capabilities := make(map[string]types.ProviderCapability, len(e.capabilities))
	for id, capability := range e.capabilities {
		capabilities[id] = capability
	}
	return capabilities
}
