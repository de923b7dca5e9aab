package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/firebase/genkit/go/genkit"

	"github.com/soundprediction/agentgraph"
	"github.com/soundprediction/agentgraph/pkg/config"
	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	agentgraphLogger "github.com/soundprediction/agentgraph/pkg/logger"
	"github.com/soundprediction/agentgraph/pkg/nlp"
)

// Default configuration values
const (
	DefaultProjectID    = "default"
	DefaultGraphName    = "mcp memory"
	DefaultSimulationID = "mcp"
	DefaultDatabaseURI  = "bolt://localhost:7687"
)

// Config holds all configuration for the MCP server
type Config struct {
	// LLM configuration
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string

	// Database configuration
	DatabaseURI      string
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	MemoryStore      bool

	// Graph binding
	ProjectID    string
	GraphID      string
	GraphName    string
	OntologyPath string
	SimulationID string
	DestroyGraph bool

	// Runtime settings and usage-log locations
	ConfigDir string
	DataDir   string
}

// MCPServer exposes one graph's memory over genkit tools.
type MCPServer struct {
	config  *Config
	client  *agentgraph.Client
	graphID string
	logger  *slog.Logger
}

// NewConfig creates a new configuration from environment variables and command line flags
func NewConfig() *Config {
	return &Config{
		LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
		LLMAPIKey:        getEnv("LLM_API_KEY", ""),
		LLMModel:         getEnv("LLM_MODEL_NAME", ""),
		DatabaseURI:      getEnv("NEO4J_URI", DefaultDatabaseURI),
		DatabaseUser:     getEnv("NEO4J_USER", "neo4j"),
		DatabasePassword: getEnv("NEO4J_PASSWORD", ""),
		DatabaseName:     getEnv("NEO4J_DATABASE", "neo4j"),
		MemoryStore:      getEnvBool("MEMORY_STORE", false),
		ProjectID:        getEnv("PROJECT_ID", DefaultProjectID),
		GraphID:          getEnv("GRAPH_ID", ""),
		GraphName:        getEnv("GRAPH_NAME", DefaultGraphName),
		OntologyPath:     getEnv("ONTOLOGY_FILE", ""),
		SimulationID:     getEnv("SIMULATION_ID", DefaultSimulationID),
		DestroyGraph:     getEnvBool("DESTROY_GRAPH", false),
		ConfigDir:        getEnv("AGENTGRAPH_CONFIG_DIR", "./config"),
		DataDir:          getEnv("AGENTGRAPH_DATA_DIR", "./data"),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(cfg *Config) (*MCPServer, error) {
	// Stdout carries the protocol, so everything human-readable goes to
	// stderr.
	logger := slog.New(agentgraphLogger.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	var store graph.Store
	if cfg.MemoryStore {
		store = graph.NewMemoryStore()
	} else {
		s, err := graph.NewNeo4jStore(cfg.DatabaseURI, cfg.DatabaseUser, cfg.DatabasePassword, cfg.DatabaseName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		store = s
	}

	settings := nlp.NewSettingsStore(config.NLPConfig{
		BaseURL:   cfg.LLMBaseURL,
		APIKey:    cfg.LLMAPIKey,
		Model:     cfg.LLMModel,
		ConfigDir: cfg.ConfigDir,
		DataDir:   cfg.DataDir,
	})
	usage := nlp.NewUsageLog(cfg.DataDir, logger)
	llm := nlp.NewRotatingClient(settings, usage, logger)

	clientCfg := &agentgraph.Config{}
	if !cfg.MemoryStore {
		// Stopping an updater closes its store, so Neo4j-backed updaters
		// get their own connection.
		clientCfg.NewStore = func(ctx context.Context) (graph.Store, error) {
			return graph.NewNeo4jStore(cfg.DatabaseURI, cfg.DatabaseUser, cfg.DatabasePassword, cfg.DatabaseName, logger)
		}
	}

	client, err := agentgraph.NewClient(store, llm, clientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create agentgraph client: %w", err)
	}

	return &MCPServer{
		config: cfg,
		client: client,
		logger: logger,
	}, nil
}

// Initialize binds the server to its graph and starts the memory updater.
func (s *MCPServer) Initialize(ctx context.Context) error {
	s.logger.Info("Initializing agentgraph MCP server...")

	if err := s.client.GetStore().EnsureSchema(ctx); err != nil {
		s.logger.Warn("schema setup incomplete", "error", err)
	}

	if s.config.DestroyGraph && s.config.GraphID != "" {
		s.logger.Warn("Graph destruction requested", "graph_id", s.config.GraphID)
		if err := s.client.DeleteGraph(ctx, s.config.GraphID); err != nil {
			return fmt.Errorf("failed to destroy graph: %w", err)
		}
		s.config.GraphID = ""
	}

	if s.config.GraphID != "" {
		if _, err := s.client.GetGraph(ctx, s.config.GraphID); err != nil {
			return fmt.Errorf("graph %s is not usable: %w", s.config.GraphID, err)
		}
		s.graphID = s.config.GraphID
	} else {
		var ontology *extraction.Ontology
		if s.config.OntologyPath != "" {
			o, err := extraction.LoadOntologyFile(s.config.OntologyPath)
			if err != nil {
				return fmt.Errorf("failed to load ontology: %w", err)
			}
			ontology = o
		}
		graphID, err := s.client.CreateGraph(ctx, s.config.ProjectID, s.config.GraphName, ontology)
		if err != nil {
			return fmt.Errorf("failed to create graph: %w", err)
		}
		s.graphID = graphID
	}

	if _, err := s.client.StartUpdater(ctx, s.config.SimulationID, s.graphID); err != nil {
		return fmt.Errorf("failed to start updater: %w", err)
	}

	s.logger.Info("MCP server configuration",
		"graph_id", s.graphID,
		"project_id", s.config.ProjectID,
		"simulation_id", s.config.SimulationID,
		"memory_store", s.config.MemoryStore,
	)
	return nil
}

// RegisterTools registers all MCP tools with Genkit
func (s *MCPServer) RegisterTools(g *genkit.Genkit) {
	genkit.DefineTool(g, "add_activity",
		"Queue one agent activity into the graph's memory. Entities and relationships are extracted asynchronously.",
		s.AddActivityTool)

	genkit.DefineTool(g, "get_stats",
		"Get the memory updater's processing counters for the bound graph.",
		s.GetStatsTool)

	genkit.DefineTool(g, "search_entities",
		"Search the knowledge graph for entities by name.",
		s.SearchEntitiesTool)

	genkit.DefineTool(g, "get_entity_edges",
		"Get the relationship edges touching one entity.",
		s.GetEntityEdgesTool)

	genkit.DefineTool(g, "invalidate_edge",
		"Mark a relationship edge as no longer true, keeping it for history.",
		s.InvalidateEdgeTool)

	genkit.DefineTool(g, "delete_graph",
		"Delete a knowledge graph and everything stored under it.",
		s.DeleteGraphTool)
}

// Run starts the MCP server
func (s *MCPServer) Run(ctx context.Context) error {
	s.logger.Info("Starting Genkit MCP server", "transport", "stdio")

	// Initialize Genkit
	g := genkit.Init(ctx)

	// Register all tools
	s.RegisterTools(g)

	s.logger.Info("MCP server is ready to accept requests")

	// Keep the server running
	<-ctx.Done()
	return ctx.Err()
}

// Close flushes the updater and releases the store.
func (s *MCPServer) Close() {
	if err := s.client.Close(context.Background()); err != nil {
		s.logger.Warn("client close failed", "error", err)
	}
}

func main() {
	// Parse command line flags
	var (
		projectID    = flag.String("project-id", "", "Project the bound graph belongs to")
		graphID      = flag.String("graph-id", "", "Bind to an existing graph instead of creating one")
		graphName    = flag.String("graph-name", "", fmt.Sprintf("Name for a newly created graph (default: %q)", DefaultGraphName))
		ontology     = flag.String("ontology", "", "Ontology YAML file for a newly created graph")
		simulationID = flag.String("simulation-id", "", "Simulation id the activities are queued under")
		memoryStore  = flag.Bool("memory", false, "Use the in-memory store instead of Neo4j")
		destroyGraph = flag.Bool("destroy-graph", false, "Delete the bound graph before starting")
		dbURI        = flag.String("db-uri", "", "Neo4j URI")
		dbUser       = flag.String("db-username", "", "Neo4j username")
		dbPassword   = flag.String("db-password", "", "Neo4j password")
		dbName       = flag.String("db-database", "", "Neo4j database name")
		llmBaseURL   = flag.String("llm-base-url", "", "OpenAI-compatible base URL")
		llmModel     = flag.String("llm-model", "", "Default LLM model")
		dataDir      = flag.String("data-dir", "", "Data root for settings and usage logs")
	)
	flag.Parse()

	// Create configuration
	cfg := NewConfig()

	// Apply command line overrides
	if *projectID != "" {
		cfg.ProjectID = *projectID
	}
	if *graphID != "" {
		cfg.GraphID = *graphID
	}
	if *graphName != "" {
		cfg.GraphName = *graphName
	}
	if *ontology != "" {
		cfg.OntologyPath = *ontology
	}
	if *simulationID != "" {
		cfg.SimulationID = *simulationID
	}
	if *memoryStore {
		cfg.MemoryStore = true
	}
	if *destroyGraph {
		cfg.DestroyGraph = true
	}
	if *dbURI != "" {
		cfg.DatabaseURI = *dbURI
	}
	if *dbUser != "" {
		cfg.DatabaseUser = *dbUser
	}
	if *dbPassword != "" {
		cfg.DatabasePassword = *dbPassword
	}
	if *dbName != "" {
		cfg.DatabaseName = *dbName
	}
	if *llmBaseURL != "" {
		cfg.LLMBaseURL = *llmBaseURL
	}
	if *llmModel != "" {
		cfg.LLMModel = *llmModel
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	// Validate required configuration
	if !cfg.MemoryStore && cfg.DatabaseURI == "" {
		log.Fatal("Database URI must be set (or pass --memory)")
	}

	// Create and initialize server
	server, err := NewMCPServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create MCP server: %v", err)
	}
	defer server.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize MCP server: %v", err)
	}

	// Run the server until a shutdown signal arrives
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("MCP server error: %v", err)
	}
}
