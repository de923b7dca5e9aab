package agentgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/soundprediction/agentgraph/pkg/builder"
	"github.com/soundprediction/agentgraph/pkg/config"
	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/nlp"
)

var buildCmd = &cobra.Command{
	Use:   "build <text-file>",
	Short: "Build a knowledge graph from a document",
	Long: `Build a knowledge graph from a text document in one shot.

The document is split into chunks, entities and relationships are extracted
from each chunk with the configured language model, and the resulting graph
is written to the store. The graph id and a summary are printed on success.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

var (
	buildProjectID string
	buildGraphName string
	buildOntology  string
	buildChunkSize int
	buildOverlap   int
	buildMemory    bool
	buildDump      bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringVar(&buildProjectID, "project", "default", "Project id the graph belongs to")
	buildCmd.Flags().StringVar(&buildGraphName, "name", "", "Graph name (defaults to the file name)")
	buildCmd.Flags().StringVar(&buildOntology, "ontology", "", "Ontology YAML file steering extraction")
	buildCmd.Flags().IntVar(&buildChunkSize, "chunk-size", 0, "Chunk size in characters (0 uses the default)")
	buildCmd.Flags().IntVar(&buildOverlap, "chunk-overlap", 0, "Chunk overlap in characters (0 uses the default)")
	buildCmd.Flags().BoolVar(&buildMemory, "memory", false, "Build against the in-memory store (dry run)")
	buildCmd.Flags().BoolVar(&buildDump, "json", false, "Print the full graph dump as JSON")
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	text, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	var ontology *extraction.Ontology
	if buildOntology != "" {
		ontology, err = extraction.LoadOntologyFile(buildOntology)
		if err != nil {
			return fmt.Errorf("failed to load ontology: %w", err)
		}
	}

	name := buildGraphName
	if name == "" {
		name = args[0]
	}

	var store graph.Store
	if buildMemory {
		store = graph.NewMemoryStore()
	} else {
		if cfg.Database.URI == "" {
			return fmt.Errorf("database URI is required (or pass --memory)")
		}
		store, err = graph.NewNeo4jStore(cfg.Database.URI, cfg.Database.Username,
			cfg.Database.Password, cfg.Database.Database, log)
		if err != nil {
			return fmt.Errorf("failed to connect to neo4j: %w", err)
		}
	}
	defer store.Close()

	settings := nlp.NewSettingsStore(cfg.NLP)
	usageLog := nlp.NewUsageLog(cfg.NLP.DataDir, log)
	llm := nlp.NewRotatingClient(settings, usageLog, log)
	defer llm.Close()

	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Warn("schema setup incomplete", "error", err)
	}

	b := builder.NewBuilder(store, extraction.NewLLMExtractor(llm, log), log)
	opts := &builder.Options{
		GraphName:    name,
		Ontology:     ontology,
		ChunkSize:    buildChunkSize,
		ChunkOverlap: buildOverlap,
		Progress: func(message string, ratio float64) {
			log.Info("build progress", "step", message, "ratio", fmt.Sprintf("%.0f%%", ratio*100))
		},
	}

	graphID, data, err := b.BuildFromText(ctx, buildProjectID, string(text), opts)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	fmt.Printf("Graph built: %s\n", graphID)
	fmt.Printf("  nodes: %d\n", data.NodeCount)
	fmt.Printf("  edges: %d\n", data.EdgeCount)
	for _, w := range data.BuildWarnings {
		fmt.Printf("  warning: %s\n", w)
	}

	if buildDump {
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode graph: %w", err)
		}
		fmt.Println(string(out))
	}
	return nil
}
