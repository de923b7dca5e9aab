package agentgraph

import (
	"context"
	"errors"
	"log/slog"

	"github.com/soundprediction/agentgraph/pkg/builder"
	"github.com/soundprediction/agentgraph/pkg/extraction"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/types"
	"github.com/soundprediction/agentgraph/pkg/updater"
)

// MemoryGraph is the main interface for maintaining temporal knowledge
// graphs over simulation activity. It covers graph lifecycle, per-simulation
// updaters, document builds, and the temporal queries agents ask of their
// memory.
type MemoryGraph interface {
	// CreateGraph persists an empty graph with the given ontology and
	// returns its id. A nil ontology leaves extraction on the default one.
	CreateGraph(ctx context.Context, projectID, name string, ontology *extraction.Ontology) (string, error)

	// GetGraph returns the metadata of one graph.
	GetGraph(ctx context.Context, graphID string) (*types.GraphInfo, error)

	// GetGraphData dumps a whole graph, including invalidated edges with
	// their temporal fields.
	GetGraphData(ctx context.Context, graphID string) (*types.GraphData, error)

	// DeleteGraph removes a graph and everything under it.
	DeleteGraph(ctx context.Context, graphID string) error

	// BuildFromText builds a graph from a document in one shot: the text
	// is chunked, entities and relations are extracted per chunk, and the
	// result is persisted under a new graph id.
	BuildFromText(ctx context.Context, projectID, text string, opts *builder.Options) (string, *types.GraphData, error)

	// StartUpdater creates and starts the updater for one simulation. An
	// existing updater for the same simulation is stopped and replaced.
	StartUpdater(ctx context.Context, simulationID, graphID string) (*updater.Updater, error)

	// Updater returns a running updater by simulation id.
	Updater(simulationID string) (*updater.Updater, bool)

	// StopUpdater flushes and stops one updater. It reports whether the
	// simulation id was known.
	StopUpdater(simulationID string) bool

	// StopAll stops every running updater.
	StopAll()

	// UpdaterStats snapshots the counters of every running updater.
	UpdaterStats() map[string]updater.Stats

	// SearchEntities recalls entity candidates by name for one graph.
	SearchEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error)

	// EntityEdges returns the edges touching one entity with endpoint
	// names filled in. Invalidated edges are included only when asked for.
	EntityEdges(ctx context.Context, graphID, entityUUID string, includeInvalid bool) ([]*types.EdgeRecord, error)

	// InvalidateEdge marks an edge invalid as of now. It reports whether
	// the edge exists.
	InvalidateEdge(ctx context.Context, edgeUUID string) (bool, error)

	// Close stops all updaters and releases the store and language model.
	Close(ctx context.Context) error
}

// Client is the main implementation of the MemoryGraph interface.
type Client struct {
	store     graph.Store
	llm       nlp.Client
	extractor extraction.Extractor
	builder   *builder.Builder
	registry  *updater.Registry
	config    *Config
	logger    *slog.Logger
}

var _ MemoryGraph = (*Client)(nil)

// Config holds configuration for the Client.
type Config struct {
	// Updater tunes the per-simulation pipelines, including the optional
	// activity journal, contradiction detector, and disambiguator. Nil
	// takes the package defaults.
	Updater *updater.Config

	// NewStore mints a dedicated store for each updater, which owns and
	// closes it. Nil shares the client's store; that is only sound for
	// stores whose Close is a no-op, like the in-memory one.
	NewStore func(ctx context.Context) (graph.Store, error)

	// Extractor overrides the LLM-backed extractor, e.g. with a canned one
	// in tests.
	Extractor extraction.Extractor
}

// NewClient creates a new agentgraph client over the given store and
// language model.
func NewClient(store graph.Store, llm nlp.Client, config *Config, logger *slog.Logger) (*Client, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if config == nil {
		config = &Config{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	extractor := config.Extractor
	if extractor == nil {
		if llm == nil {
			return nil, errors.New("an llm client or an extractor is required")
		}
		extractor = extraction.NewLLMExtractor(llm, logger)
	}

	c := &Client{
		store:     store,
		llm:       llm,
		extractor: extractor,
		builder:   builder.NewBuilder(store, extractor, logger),
		config:    config,
		logger:    logger,
	}
	c.registry = updater.NewRegistry(c.newUpdater, logger)
	return c, nil
}

// newUpdater is the registry factory: one updater per simulation, each over
// its own store when the configuration can mint one.
func (c *Client) newUpdater(ctx context.Context, simulationID, graphID string) (*updater.Updater, error) {
	cfg := updater.Config{}
	if c.config.Updater != nil {
		cfg = *c.config.Updater
	}
	cfg.SimulationID = simulationID

	store := c.store
	if c.config.NewStore != nil {
		s, err := c.config.NewStore(ctx)
		if err != nil {
			return nil, err
		}
		store = s
	}
	return updater.NewUpdater(ctx, graphID, store, c.extractor, &cfg, c.logger)
}

// CreateGraph persists an empty graph with the given ontology and returns
// its id.
func (c *Client) CreateGraph(ctx context.Context, projectID, name string, ontology *extraction.Ontology) (string, error) {
	// An untyped nil keeps the stored ontology empty; a typed nil would
	// serialize as JSON null.
	var ont any
	if ontology != nil {
		if err := ontology.Validate(); err != nil {
			return "", err
		}
		ont = ontology
	}
	return c.store.CreateGraph(ctx, projectID, name, ont)
}

// GetGraph returns the metadata of one graph.
func (c *Client) GetGraph(ctx context.Context, graphID string) (*types.GraphInfo, error) {
	return c.store.GetGraph(ctx, graphID)
}

// GetGraphData dumps a whole graph.
func (c *Client) GetGraphData(ctx context.Context, graphID string) (*types.GraphData, error) {
	return c.store.GetGraphData(ctx, graphID)
}

// DeleteGraph removes a graph and everything under it.
func (c *Client) DeleteGraph(ctx context.Context, graphID string) error {
	return c.store.DeleteGraph(ctx, graphID)
}

// BuildFromText builds a graph from a document in one shot.
func (c *Client) BuildFromText(ctx context.Context, projectID, text string, opts *builder.Options) (string, *types.GraphData, error) {
	return c.builder.BuildFromText(ctx, projectID, text, opts)
}

// StartUpdater creates and starts the updater for one simulation.
func (c *Client) StartUpdater(ctx context.Context, simulationID, graphID string) (*updater.Updater, error) {
	return c.registry.Create(ctx, simulationID, graphID)
}

// Updater returns a running updater by simulation id.
func (c *Client) Updater(simulationID string) (*updater.Updater, bool) {
	return c.registry.Get(simulationID)
}

// StopUpdater flushes and stops one updater.
func (c *Client) StopUpdater(simulationID string) bool {
	return c.registry.Stop(simulationID)
}

// StopAll stops every running updater.
func (c *Client) StopAll() {
	c.registry.StopAll()
}

// UpdaterStats snapshots the counters of every running updater.
func (c *Client) UpdaterStats() map[string]updater.Stats {
	return c.registry.AllStats()
}

// SearchEntities recalls entity candidates by name for one graph.
func (c *Client) SearchEntities(ctx context.Context, graphID, name string, limit int) ([]*types.EntityCandidate, error) {
	return c.store.SearchSimilarEntities(ctx, graphID, name, limit)
}

// EntityEdges returns the edges touching one entity.
func (c *Client) EntityEdges(ctx context.Context, graphID, entityUUID string, includeInvalid bool) ([]*types.EdgeRecord, error) {
	return c.store.GetValidEdgesForEntity(ctx, graphID, entityUUID, includeInvalid)
}

// InvalidateEdge marks an edge invalid as of now.
func (c *Client) InvalidateEdge(ctx context.Context, edgeUUID string) (bool, error) {
	return c.store.InvalidateEdge(ctx, edgeUUID, types.NowISO())
}

// Close stops all updaters and releases the store and language model. The
// context bounds nothing today; it is accepted so callers can thread one
// through teardown paths.
func (c *Client) Close(ctx context.Context) error {
	c.registry.StopAll()
	var errs []error
	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetStore returns the underlying graph store.
func (c *Client) GetStore() graph.Store {
	return c.store
}

// GetLLM returns the language model client.
func (c *Client) GetLLM() nlp.Client {
	return c.llm
}

// GetRegistry returns the updater registry.
func (c *Client) GetRegistry() *updater.Registry {
	return c.registry
}

// GetBuilder returns the document builder.
func (c *Client) GetBuilder() *builder.Builder {
	return c.builder
}

var (
	// ErrGraphNotFound is returned when a graph is not found.
	ErrGraphNotFound = graph.ErrGraphNotFound
	// ErrEntityNotFound is returned when an entity is not found.
	ErrEntityNotFound = graph.ErrEntityNotFound
)
