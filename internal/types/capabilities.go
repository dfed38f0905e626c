package types

// ComplexityRange bounds the request complexity a provider is suited for.
type ComplexityRange struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// ProviderCapability is the static, immutable profile of one provider. It is
// configuration, never mutated at runtime.
type ProviderCapability struct {
	ProviderID       string          `json:"provider_id" yaml:"provider_id"`
	CostPer1KTokens  float64         `json:"cost_per_1k_tokens" yaml:"cost_per_1k_tokens"`
	MaxContextWindow int             `json:"max_context_window" yaml:"max_context_window"`
	TokensPerSecond  float64         `json:"tokens_per_second" yaml:"tokens_per_second"`
	QualityScore     float64         `json:"quality_score" yaml:"quality_score"` // 0-1
	ComplexityRange  ComplexityRange `json:"complexity_range" yaml:"complexity_range"`
	Specializations  []string        `json:"specializations" yaml:"specializations"`
}

// HasSpecialization reports whether the provider declares the given tag.
func (c ProviderCapability) HasSpecialization(tag string) bool {
	for _, s := range c.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// RoutingStrategy names a tradeoff preference for ordering providers.
type RoutingStrategy string

const (
	StrategyCostOptimized    RoutingStrategy = "cost_optimized"
	StrategyQualityOptimized RoutingStrategy = "quality_optimized"
	StrategySpeedOptimized   RoutingStrategy = "speed_optimized"
	StrategyBalanced         RoutingStrategy = "balanced"
)

// FailoverChain is a static, ordered provider preference for one strategy.
// Consulted during fallback ordering, never mutated by routing.
type FailoverChain struct {
	Strategy  RoutingStrategy `json:"strategy" yaml:"strategy"`
	Providers []string        `json:"providers" yaml:"providers"`
}
