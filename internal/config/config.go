package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdantiq/ai-router/internal/complexity"
	"github.com/verdantiq/ai-router/internal/health"
	"github.com/verdantiq/ai-router/internal/persistence"
	"github.com/verdantiq/ai-router/internal/providers/anthropic"
	"github.com/verdantiq/ai-router/internal/providers/openai"
	"github.com/verdantiq/ai-router/internal/routing"
	"github.com/verdantiq/ai-router/internal/scoring"
	"github.com/verdantiq/ai-router/internal/types"
)

// Config represents the complete application configuration
type Config struct {
	Server      ServerConfig               `yaml:"server"`
	Logging     LoggingConfig              `yaml:"logging"`
	Monitor     health.Config              `yaml:"monitor"`
	Engine      routing.EngineConfig       `yaml:"engine"`
	Scoring     scoring.Weights            `yaml:"scoring"`
	Analyzer    AnalyzerConfig             `yaml:"analyzer"`
	Persistence persistence.RecorderConfig `yaml:"persistence"`
	Providers   ProvidersConfig            `yaml:"providers"`
	Chains      []types.FailoverChain      `yaml:"failover_chains"`
	Rules       []routing.RoutingRule      `yaml:"rules"`
	Budgets     map[string]float64         `yaml:"budgets"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
	Auth           AuthConfig    `yaml:"auth"`
}

// AuthConfig holds bearer-token auth configuration for the admin surface
type AuthConfig struct {
	Enabled   bool   `yaml:"enabled"`
	JWTSecret string `yaml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// AnalyzerConfig holds complexity analyzer tuning
type AnalyzerConfig struct {
	Increments complexity.Increments `yaml:"increments"`
	Keywords   complexity.Keywords   `yaml:"keywords"`
}

// ProvidersConfig holds configuration for all providers
type ProvidersConfig struct {
	OpenAI    *OpenAIProviderConfig    `yaml:"openai"`
	Anthropic *AnthropicProviderConfig `yaml:"anthropic"`
	DeepSeek  *DeepSeekProviderConfig  `yaml:"deepseek"`
	Static    []StaticProviderConfig   `yaml:"static"`
}

// OpenAIProviderConfig pairs SDK settings with the static capability profile
type OpenAIProviderConfig struct {
	openai.Config `yaml:",inline"`
	Capability    types.ProviderCapability `yaml:"capability"`
}

// AnthropicProviderConfig pairs SDK settings with the static capability profile
type AnthropicProviderConfig struct {
	anthropic.Config `yaml:",inline"`
	Capability       types.ProviderCapability `yaml:"capability"`
}

// DeepSeekProviderConfig uses the OpenAI-compatible API surface
type DeepSeekProviderConfig struct {
	openai.Config `yaml:",inline"`
	Capability    types.ProviderCapability `yaml:"capability"`
}

// StaticProviderConfig declares a scripted offline provider
type StaticProviderConfig struct {
	ID         string                   `yaml:"id"`
	LatencyMs  int                      `yaml:"latency_ms"`
	Capability types.ProviderCapability `yaml:"capability"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Monitor.SetDefaults()
	c.Engine.SetDefaults()
	c.Scoring = scoring.DefaultWeights()
	c.Analyzer = AnalyzerConfig{
		Increments: complexity.DefaultIncrements(),
		Keywords:   complexity.DefaultKeywords(),
	}

	c.Providers = ProvidersConfig{
		OpenAI: &OpenAIProviderConfig{
			Config: openai.Config{Timeout: 10 * time.Second},
			Capability: types.ProviderCapability{
				ProviderID:       "openai",
				CostPer1KTokens:  0.005,
				MaxContextWindow: 128000,
				TokensPerSecond:  80,
				QualityScore:     0.95,
				ComplexityRange:  types.ComplexityRange{Min: 20, Max: 100},
				Specializations:  []string{"function_calling", "data_analysis", "multi_step"},
			},
		},
		Anthropic: &AnthropicProviderConfig{
			Config: anthropic.Config{Timeout: 10 * time.Second},
			Capability: types.ProviderCapability{
				ProviderID:       "anthropic",
				CostPer1KTokens:  0.003,
				MaxContextWindow: 200000,
				TokensPerSecond:  60,
				QualityScore:     0.98,
				ComplexityRange:  types.ComplexityRange{Min: 30, Max: 100},
				Specializations:  []string{"compliance", "multi_step", "data_analysis"},
			},
		},
		DeepSeek: &DeepSeekProviderConfig{
			Config: openai.Config{
				ID:      "deepseek",
				BaseURL: "https://api.deepseek.com/v1",
				Timeout: 10 * time.Second,
			},
			Capability: types.ProviderCapability{
				ProviderID:       "deepseek",
				CostPer1KTokens:  0.0002,
				MaxContextWindow: 64000,
				TokensPerSecond:  40,
				QualityScore:     0.85,
				ComplexityRange:  types.ComplexityRange{Min: 0, Max: 70},
				Specializations:  []string{"function_calling"},
			},
		},
	}

	c.Chains = []types.FailoverChain{
		{Strategy: types.StrategyCostOptimized, Providers: []string{"deepseek", "anthropic", "openai"}},
		{Strategy: types.StrategyQualityOptimized, Providers: []string{"anthropic", "openai", "deepseek"}},
		{Strategy: types.StrategySpeedOptimized, Providers: []string{"openai", "anthropic", "deepseek"}},
		{Strategy: types.StrategyBalanced, Providers: []string{"anthropic", "deepseek", "openai"}},
	}

	c.Rules = []routing.RoutingRule{
		{
			Name:      "compliance-needs-quality",
			Condition: "compliance",
			Action:    routing.RuleAction{RequireHighQuality: true, SetStrategy: types.StrategyQualityOptimized},
			Enabled:   true,
		},
		{
			Name:      "short-queries-go-cheap",
			Condition: "complexity < 20 && !compliance",
			Action:    routing.RuleAction{SetStrategy: types.StrategyCostOptimized},
			Enabled:   true,
		},
	}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func (c *Config) loadFromEnv() {
	if port := os.Getenv("AI_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}

	if openaiKey := os.Getenv("OPENAI_API_KEY"); openaiKey != "" {
		if c.Providers.OpenAI != nil {
			c.Providers.OpenAI.APIKey = openaiKey
		}
	}

	if anthropicKey := os.Getenv("ANTHROPIC_API_KEY"); anthropicKey != "" {
		if c.Providers.Anthropic != nil {
			c.Providers.Anthropic.APIKey = anthropicKey
		}
	}

	if deepseekKey := os.Getenv("DEEPSEEK_API_KEY"); deepseekKey != "" {
		if c.Providers.DeepSeek != nil {
			c.Providers.DeepSeek.APIKey = deepseekKey
		}
	}

	if level := os.Getenv("AI_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("AI_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}

	if secret := os.Getenv("AI_ROUTER_JWT_SECRET"); secret != "" {
		c.Server.Auth.JWTSecret = secret
		c.Server.Auth.Enabled = true
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if err := c.Scoring.Validate(); err != nil {
		return err
	}

	validStrategies := map[types.RoutingStrategy]bool{
		types.StrategyCostOptimized:    true,
		types.StrategyQualityOptimized: true,
		types.StrategySpeedOptimized:   true,
		types.StrategyBalanced:         true,
	}
	if !validStrategies[c.Engine.DefaultStrategy] && c.Engine.DefaultStrategy != "" {
		return fmt.Errorf("invalid default strategy: %s", c.Engine.DefaultStrategy)
	}
	for _, chain := range c.Chains {
		if !validStrategies[chain.Strategy] {
			return fmt.Errorf("invalid failover chain strategy: %s", chain.Strategy)
		}
	}

	if c.Server.Auth.Enabled && c.Server.Auth.JWTSecret == "" {
		return fmt.Errorf("auth is enabled but no JWT secret is configured")
	}

	// Provider presence is enforced at registration time, where the
	// message can point at missing API keys
	for _, capability := range c.EnabledCapabilities() {
		if capability.QualityScore < 0 || capability.QualityScore > 1 {
			return fmt.Errorf("provider %s: quality score must be between 0 and 1", capability.ProviderID)
		}
		if capability.ComplexityRange.Min > capability.ComplexityRange.Max {
			return fmt.Errorf("provider %s: complexity range min exceeds max", capability.ProviderID)
		}
	}

	return nil
}

// EnabledCapabilities returns the capability profiles of every enabled
// provider. SDK-backed providers require an API key; static ones do not.
func (c *Config) EnabledCapabilities() []types.ProviderCapability {
	var capabilities []types.ProviderCapability

	if c.Providers.OpenAI != nil && c.Providers.OpenAI.APIKey != "" {
		capabilities = append(capabilities, c.Providers.OpenAI.Capability)
	}
	if c.Providers.Anthropic != nil && c.Providers.Anthropic.APIKey != "" {
		capabilities = append(capabilities, c.Providers.Anthropic.Capability)
	}
	if c.Providers.DeepSeek != nil && c.Providers.DeepSeek.APIKey != "" {
		capabilities = append(capabilities, c.Providers.DeepSeek.Capability)
	}
	for _, static := range c.Providers.Static {
		capability := static.Capability
		if capability.ProviderID == "" {
			capability.ProviderID = static.ID
		}
		capabilities = append(capabilities, capability)
	}

	return capabilities
}

// SaveToFile saves the current configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
