package openai

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/providers"
)

// Config holds OpenAI-specific prober configuration. ID overrides the
// provider identifier for OpenAI-compatible APIs served elsewhere.
type Config struct {
	ID      string        `yaml:"id"`
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	OrgID   string        `yaml:"org_id"`
	Timeout time.Duration `yaml:"timeout"`
}

// Prober issues liveness checks against the OpenAI API
type Prober struct {
	client *openai.Client
	config *Config
	logger *logrus.Logger
}

// NewProber creates a new OpenAI prober instance
func NewProber(config *Config, logger *logrus.Logger) *Prober {
	clientConfig := openai.DefaultConfig(config.APIKey)

	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.OrgID != "" {
		clientConfig.OrgID = config.OrgID
	}

	return &Prober{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		logger: logger,
	}
}

// ProviderID returns the provider identifier
func (p *Prober) ProviderID() string {
	if p.config.ID != "" {
		return p.config.ID
	}
	return "openai"
}

// Probe performs a lightweight liveness check using the models endpoint
func (p *Prober) Probe(ctx context.Context) (*providers.ProbeResult, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	_, err := p.client.ListModels(ctx)
	if err != nil {
		p.logger.WithError(err).Debug("OpenAI probe failed")
		return nil, fmt.Errorf("openai probe failed: %w", err)
	}

	p.logger.Debug("OpenAI probe passed")
	return &providers.ProbeResult{}, nil
}
