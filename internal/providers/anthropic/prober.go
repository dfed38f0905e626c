package anthropic

import (
	"context"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/providers"
)

// Config holds Anthropic-specific prober configuration
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	ProbeModel string        `yaml:"probe_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Prober issues liveness checks against the Anthropic API
type Prober struct {
	client *anthropic.Client
	config *Config
	logger *logrus.Logger
}

// NewProber creates a new Anthropic prober instance
func NewProber(config *Config, logger *logrus.Logger) *Prober {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	client := anthropic.NewClient(opts...)

	return &Prober{
		client: &client,
		config: config,
		logger: logger,
	}
}

// ProviderID returns the provider identifier
func (p *Prober) ProviderID() string {
	return "anthropic"
}

// Probe performs a liveness check using a minimal one-token message
func (p *Prober) Probe(ctx context.Context) (*providers.ProbeResult, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	model := p.config.ProbeModel
	if model == "" {
		// Cheapest model keeps probe cost negligible
		model = "claude-3-haiku-20240307"
	}

	probeReq := anthropic.MessageNewParams{
		Model: anthropic.Model(model),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
		MaxTokens: 1,
	}

	_, err := p.client.Messages.New(ctx, probeReq)
	if err != nil {
		p.logger.WithError(err).Debug("Anthropic probe failed")
		return nil, fmt.Errorf("anthropic probe failed: %w", err)
	}

	p.logger.Debug("Anthropic probe passed")
	return &providers.ProbeResult{}, nil
}
