package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/complexity"
	"github.com/verdantiq/ai-router/internal/config"
	"github.com/verdantiq/ai-router/internal/cost"
	"github.com/verdantiq/ai-router/internal/health"
	"github.com/verdantiq/ai-router/internal/persistence"
	"github.com/verdantiq/ai-router/internal/providers"
	"github.com/verdantiq/ai-router/internal/providers/anthropic"
	"github.com/verdantiq/ai-router/internal/providers/openai"
	"github.com/verdantiq/ai-router/internal/routing"
	"github.com/verdantiq/ai-router/internal/scoring"
	"github.com/verdantiq/ai-router/internal/server"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	engine   *routing.Engine
	server   *server.Server
	recorder *persistence.Recorder
	logger   *logrus.Logger
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	recorder := persistence.NewRecorder(&cfg.Persistence, logger)

	monitor := health.NewMonitor(cfg.Monitor, recorder, logger)
	if err := registerProbers(monitor, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	analyzer := complexity.NewAnalyzer(cfg.Analyzer.Increments, cfg.Analyzer.Keywords)

	scorer, err := scoring.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("invalid scoring weights: %w", err)
	}

	optimizer := cost.NewOptimizer(cost.StaticBudgets(cfg.Budgets), logger)

	ruleSet, err := routing.NewRuleSet(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to compile routing rules: %w", err)
	}

	engine, err := routing.NewEngine(
		cfg.Engine,
		analyzer,
		scorer,
		monitor,
		optimizer,
		ruleSet,
		cfg.EnabledCapabilities(),
		cfg.Chains,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create routing engine: %w", err)
	}

	serverInstance, err := server.NewServer(&cfg.Server, engine, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config:   cfg,
		engine:   engine,
		server:   serverInstance,
		recorder: recorder,
		logger:   logger,
	}, nil
}

// Run starts monitoring and the HTTP server, then blocks until shutdown.
func (app *Application) Run() error {
	app.logger.Info("Starting AI provider router")

	app.engine.StartMonitoring(app.config.Monitor.CheckInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		app.shutdownBackground()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	app.logger.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		app.shutdownBackground()
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.shutdownBackground()
	app.logger.Info("Graceful shutdown completed")
	return nil
}

// shutdownBackground stops the probe loop and drains the persistence buffer.
func (app *Application) shutdownBackground() {
	app.engine.StopMonitoring()
	app.recorder.Close()
}

// setupLogger configures the logger based on configuration
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	switch config.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProbers registers a health prober for every enabled provider
func registerProbers(monitor *health.Monitor, cfg *config.Config, logger *logrus.Logger) error {
	registered := 0

	if cfg.Providers.OpenAI != nil && cfg.Providers.OpenAI.APIKey != "" {
		monitor.RegisterProvider(openai.NewProber(&cfg.Providers.OpenAI.Config, logger))
		logger.WithField("provider", "openai").Info("Provider registered")
		registered++
	}

	if cfg.Providers.Anthropic != nil && cfg.Providers.Anthropic.APIKey != "" {
		monitor.RegisterProvider(anthropic.NewProber(&cfg.Providers.Anthropic.Config, logger))
		logger.WithField("provider", "anthropic").Info("Provider registered")
		registered++
	}

	if cfg.Providers.DeepSeek != nil && cfg.Providers.DeepSeek.APIKey != "" {
		monitor.RegisterProvider(openai.NewProber(&cfg.Providers.DeepSeek.Config, logger))
		logger.WithField("provider", "deepseek").Info("Provider registered")
		registered++
	}

	for _, staticCfg := range cfg.Providers.Static {
		prober := providers.NewStaticProber(staticCfg.ID, time.Duration(staticCfg.LatencyMs)*time.Millisecond)
		monitor.RegisterProvider(prober)
		logger.WithField("provider", staticCfg.ID).Info("Static provider registered")
		registered++
	}

	if registered == 0 {
		return fmt.Errorf("no providers were registered - check your configuration and API keys")
	}

	logger.WithField("count", registered).Info("Provider registration completed")
	return nil
}

// printUsage prints application usage information
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY          OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY       Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  DEEPSEEK_API_KEY        DeepSeek API key\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_PORT          Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_LEVEL     Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_LOG_FORMAT    Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "  AI_ROUTER_JWT_SECRET    Enables bearer auth with this secret\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY=sk-xxx ANTHROPIC_API_KEY=sk-ant-xxx %s\n", os.Args[0])
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	if *version {
		fmt.Printf("AI Provider Router v1.0.0\n")
		os.Exit(0)
	}

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
