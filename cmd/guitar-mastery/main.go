package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/fretlab/guitar-mastery/internal/agents"
	"github.com/fretlab/guitar-mastery/internal/config"
	"github.com/fretlab/guitar-mastery/internal/llm"
	"github.com/fretlab/guitar-mastery/internal/orchestrator"
	"github.com/fretlab/guitar-mastery/internal/routing"
	"github.com/fretlab/guitar-mastery/internal/server"
	"github.com/fretlab/guitar-mastery/internal/store"
)

// Application bundles everything the process owns.
type Application struct {
	config *config.Config
	store  *store.Store
	server *server.Server
	logger *logrus.Logger
}

// NewApplication loads config and wires the full stack.
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	st, err := store.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := st.Seed(context.Background()); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to seed database: %w", err)
	}

	classifier := routing.NewClassifier(cfg.Classifier)
	sessions := orchestrator.NewSessionStore()

	clients := buildClients(cfg, logger)

	roster, err := buildAgents(cfg, st, clients, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to build agents: %w", err)
	}

	catalog := make([]server.CatalogAgent, 0, len(roster))
	for _, agent := range roster {
		catalog = append(catalog, agent)
	}

	// Without credentials the server still classifies, but no agent runs.
	var coordinator *orchestrator.Coordinator
	if cfg.HasLLMCredentials() {
		capabilities := make(map[string]orchestrator.Capability, len(roster))
		for _, agent := range roster {
			capabilities[agent.Name()] = agent
		}
		coordinator = orchestrator.NewCoordinator(capabilities, classifier, orchestrator.Config{
			MaxAgentsPerRequest: cfg.Orchestrator.MaxAgentsPerRequest,
			Timeout:             cfg.Orchestrator.AgentTimeout,
		}, logger)
	} else {
		logger.Warn("No LLM credentials configured, starting in routing-only mode")
	}

	srv := server.New(cfg, coordinator, sessions, classifier, catalog, st, logger)

	return &Application{
		config: cfg,
		store:  st,
		server: srv,
		logger: logger,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (app *Application) Run() error {
	app.logger.WithFields(logrus.Fields{
		"name":        app.config.App.Name,
		"version":     app.config.App.Version,
		"environment": app.config.App.Environment,
	}).Info("Starting application")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		if err := app.server.Start(); err != nil {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		app.store.Close()
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
	}
	if err := app.store.Close(); err != nil {
		app.logger.WithError(err).Error("Database close error")
	}

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// clientSet holds the configured LLM clients by provider name.
type clientSet map[string]llm.Client

func buildClients(cfg *config.Config, logger *logrus.Logger) clientSet {
	clients := clientSet{}

	if cfg.LLM.Anthropic != nil && cfg.LLM.Anthropic.APIKey != "" {
		clients["anthropic"] = llm.NewAnthropicClient(cfg.LLM.Anthropic, logger)
		logger.Info("Anthropic client configured")
	}
	if cfg.LLM.OpenAI != nil && cfg.LLM.OpenAI.APIKey != "" {
		clients["openai"] = llm.NewOpenAIClient(cfg.LLM.OpenAI, logger)
		logger.Info("OpenAI client configured")
	}

	return clients
}

// clientFor picks the client matching the agent's provider, falling back to
// any configured client when the preferred one has no credentials.
func (c clientSet) clientFor(provider string, logger *logrus.Logger) llm.Client {
	if client, ok := c[provider]; ok {
		return client
	}
	for name, client := range c {
		logger.WithFields(logrus.Fields{
			"wanted": provider,
			"using":  name,
		}).Warn("Preferred provider not configured, falling back")
		return client
	}
	return nil
}

func buildAgents(cfg *config.Config, st *store.Store, clients clientSet, logger *logrus.Logger) ([]*agents.BaseAgent, error) {
	luthierCfg := applyOverride(agents.DefaultLuthierConfig(), cfg.Agents.LuthierHistorian)
	jazzCfg := applyOverride(agents.DefaultJazzTeacherConfig(), cfg.Agents.JazzTeacher)
	sqlCfg := applyOverride(agents.DefaultSQLExpertConfig(), cfg.Agents.SQLExpert)
	devPMCfg := applyOverride(agents.DefaultDevPMConfig(), cfg.Agents.DevPM)

	luthier, err := agents.NewLuthierHistorian(luthierCfg, st, clients.clientFor(luthierCfg.Provider, logger), logger)
	if err != nil {
		return nil, err
	}
	jazz, err := agents.NewJazzTeacher(jazzCfg, st, clients.clientFor(jazzCfg.Provider, logger), logger)
	if err != nil {
		return nil, err
	}
	sqlExpert, err := agents.NewSQLExpert(sqlCfg, st, clients.clientFor(sqlCfg.Provider, logger), logger)
	if err != nil {
		return nil, err
	}

	names := []string{luthier.Name(), jazz.Name(), sqlExpert.Name(), devPMCfg.Name}
	devPM, err := agents.NewDevPM(devPMCfg, st, clients.clientFor(devPMCfg.Provider, logger), logger, names)
	if err != nil {
		return nil, err
	}

	return []*agents.BaseAgent{luthier, jazz, sqlExpert, devPM}, nil
}

func applyOverride(base agents.Config, override config.AgentOverride) agents.Config {
	if override.Provider != "" {
		base.Provider = override.Provider
	}
	if override.Model != "" {
		base.Model = override.Model
	}
	if override.Temperature != 0 {
		base.Temperature = override.Temperature
	}
	if override.MaxTokens != 0 {
		base.MaxTokens = override.MaxTokens
	}
	return base
}

func setupLogger(logger *logrus.Logger, cfg config.LoggingConfig) error {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", cfg.Format)
	}

	switch cfg.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", cfg.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY            Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY               OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  GUITAR_MASTERY_PORT          Server port (default: 8000)\n")
	fmt.Fprintf(os.Stderr, "  GUITAR_MASTERY_DB_PATH       SQLite database path\n")
	fmt.Fprintf(os.Stderr, "  GUITAR_MASTERY_LOG_LEVEL     Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  GUITAR_MASTERY_LOG_FORMAT    Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY=sk-ant-xxx %s\n", os.Args[0])
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
		fmt.Println("Guitar Mastery AI v0.1.0")
		os.Exit(0)
	}

	// Local development reads keys from a .env file when present.
	_ = godotenv.Load()

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
