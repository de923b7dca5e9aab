package agentgraph

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/agentgraph/pkg/alert"
	"github.com/soundprediction/agentgraph/pkg/builder"
	"github.com/soundprediction/agentgraph/pkg/config"
	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/invalidate"
	"github.com/soundprediction/agentgraph/pkg/journal"
	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/resolve"
	"github.com/soundprediction/agentgraph/pkg/server"
	"github.com/soundprediction/agentgraph/pkg/telemetry"
	"github.com/soundprediction/agentgraph/pkg/updater"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agentgraph HTTP server",
	Long: `Start the agentgraph HTTP server that keeps knowledge graphs current
as simulations run.

The server provides endpoints for:
- Managing graphs (create, build from documents, dump, delete)
- Managing per-simulation updaters and streaming activities into them
- Runtime LLM configuration, model routing, and usage reporting
- Health checks

Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServe,
}

var (
	serveHost   string
	servePort   int
	serveMode   string
	serveMemory bool
)

func init() {
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Server host")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Server port")
	serveCmd.Flags().StringVar(&serveMode, "mode", "debug", "Server mode (debug, release, test)")
	serveCmd.Flags().BoolVar(&serveMemory, "memory", false, "Use the in-memory graph store instead of Neo4j")

	// Database flags
	serveCmd.Flags().String("db-uri", "", "Neo4j URI (bolt://host:7687)")
	serveCmd.Flags().String("db-username", "", "Neo4j username")
	serveCmd.Flags().String("db-password", "", "Neo4j password")
	serveCmd.Flags().String("db-database", "", "Neo4j database name")

	// LLM flags
	serveCmd.Flags().String("llm-base-url", "", "OpenAI-compatible base URL")
	serveCmd.Flags().String("llm-api-key", "", "LLM API key")
	serveCmd.Flags().String("llm-model", "", "Default LLM model")
	serveCmd.Flags().String("data-dir", "", "Data root scanned for per-simulation usage logs")

	// Durability and telemetry flags
	serveCmd.Flags().String("journal-dir", "", "Enable the activity journal and write it to this directory")
	serveCmd.Flags().String("telemetry-dir", "", "Enable parquet usage telemetry and write it to this directory")
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideServeFlags(cmd, cfg)

	// Validate configuration
	if err := validateServeConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := newLogger(cfg)

	app, err := buildApplication(context.Background(), cfg, log)
	if err != nil {
		return err
	}
	defer app.close()

	// Create and setup server
	srv := server.New(cfg, app.deps, log)
	srv.Setup()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()
	log.Info("server listening", "host", cfg.Server.Host, "port", cfg.Server.Port, "mode", cfg.Server.Mode)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("shutting down", "signal", sig.String())

		// Stop accepting requests first; app.close flushes the updaters after.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		log.Info("server stopped")
		return nil
	}
}

func overrideServeFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serveMode
	}

	// Database flags
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	// LLM flags
	if cmd.Flags().Changed("llm-base-url") {
		cfg.NLP.BaseURL, _ = cmd.Flags().GetString("llm-base-url")
	}
	if cmd.Flags().Changed("llm-api-key") {
		cfg.NLP.APIKey, _ = cmd.Flags().GetString("llm-api-key")
	}
	if cmd.Flags().Changed("llm-model") {
		cfg.NLP.Model, _ = cmd.Flags().GetString("llm-model")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.NLP.DataDir, _ = cmd.Flags().GetString("data-dir")
	}

	// Durability and telemetry flags
	if cmd.Flags().Changed("journal-dir") {
		cfg.Journal.Dir, _ = cmd.Flags().GetString("journal-dir")
		cfg.Journal.Enabled = true
	}
	if cmd.Flags().Changed("telemetry-dir") {
		cfg.Telemetry.OutputDir, _ = cmd.Flags().GetString("telemetry-dir")
		cfg.Telemetry.Enabled = true
	}
}

func validateServeConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if !serveMemory && cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required (or pass --memory)")
	}
	if cfg.Journal.Enabled && cfg.Journal.Dir == "" {
		return fmt.Errorf("journal directory is required when the journal is enabled")
	}
	return nil
}

// application bundles the long-lived components behind the HTTP surface.
type application struct {
	deps     server.Deps
	registry *updater.Registry
	store    graph.Store
	llm      nlp.Client
	tracker  *telemetry.Tracker
	journal  *journal.Journal
	logger   *slog.Logger
}

// close tears the application down in dependency order: updaters flush
// through the language model and stores first, then the sinks close.
func (a *application) close() {
	a.registry.StopAll()
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("journal close failed", "error", err)
		}
	}
	if err := a.llm.Close(); err != nil {
		a.logger.Warn("llm client close failed", "error", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("store close failed", "error", err)
	}
}

func buildApplication(ctx context.Context, cfg *config.Config, log *slog.Logger) (*application, error) {
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	settings := nlp.NewSettingsStore(cfg.NLP)
	usageLog := nlp.NewUsageLog(cfg.NLP.DataDir, log)
	rotating := nlp.NewRotatingClient(settings, usageLog, log)

	var tracker *telemetry.Tracker
	if cfg.Telemetry.Enabled {
		tracker, err = telemetry.NewTracker(cfg.Telemetry.OutputDir, log)
		if err != nil {
			log.Warn("telemetry disabled", "error", err)
		} else {
			rotating.SetUsageSink(tracker)
			log.Info("usage telemetry enabled", "dir", cfg.Telemetry.OutputDir)
		}
	}

	var llm nlp.Client = rotating
	if cfg.CircuitBreaker.Enabled {
		var alerter alert.Alerter = &alert.NoOpAlerter{}
		if cfg.Alert.Enabled {
			alerter = alert.NewEmailAlerter(cfg.Alert)
		}
		llm = nlp.NewCircuitBreakerClient(llm, cfg.CircuitBreaker, alerter, log)
		log.Info("llm circuit breaker enabled")
	}

	var jnl *journal.Journal
	if cfg.Journal.Enabled {
		jnl, err = journal.Open(cfg.Journal.Dir, log)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to open activity journal: %w", err)
		}
		log.Info("activity journal enabled", "dir", cfg.Journal.Dir)
	}

	extractor := extraction.NewLLMExtractor(llm, log)

	updaterCfg := updater.DefaultConfig()
	updaterCfg.Detector = invalidate.NewHybridDetector(invalidate.NewLLMDetector(llm, log), true)
	updaterCfg.Disambiguator = resolve.NewLLMDisambiguator(llm)
	updaterCfg.Journal = jnl
	log.Info("updater tuning",
		"batch_size", updaterCfg.BatchSize,
		"process_interval", updaterCfg.ProcessInterval,
		"max_retries", updaterCfg.MaxRetries)

	// Stopping an updater closes its store, so Neo4j-backed updaters each
	// get their own connection. The shared in-memory store ignores Close.
	factory := func(ctx context.Context, simulationID, graphID string) (*updater.Updater, error) {
		ucfg := *updaterCfg
		ucfg.SimulationID = simulationID
		ustore := store
		if !serveMemory {
			ns, err := graph.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username,
				cfg.Database.Password, cfg.Database.Database, log)
			if err != nil {
				return nil, fmt.Errorf("failed to connect store for %s: %w", simulationID, err)
			}
			ustore = ns
		}
		return updater.NewUpdater(ctx, graphID, ustore, extractor, &ucfg, log)
	}
	registry := updater.NewRegistry(factory, log)

	return &application{
		deps: server.Deps{
			Settings:  settings,
			Models:    rotating,
			Store:     store,
			Builder:   builder.NewBuilder(store, extractor, log),
			Registry:  registry,
			UsagePath: usageLog.Path(),
			UsageRoot: cfg.NLP.DataDir,
		},
		registry: registry,
		store:    store,
		llm:      llm,
		tracker:  tracker,
		journal:  jnl,
		logger:   log,
	}, nil
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (graph.Store, error) {
	if serveMemory {
		log.Info("using in-memory graph store")
		return graph.NewMemoryStore(), nil
	}

	store, err := graph.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username,
		cfg.Database.Password, cfg.Database.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", cfg.Database.URI, err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		log.Warn("schema setup incomplete", "error", err)
	}
	log.Info("connected to neo4j", "uri", cfg.Database.URI, "database", cfg.Database.Database)
	return store, nil
}
