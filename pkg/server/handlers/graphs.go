package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/builder"
	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/server/dto"
)

// GraphHandler manages graph lifecycle and one-shot document builds.
type GraphHandler struct {
	store   graph.Store
	builder *builder.Builder
	logger  *slog.Logger
}

// NewGraphHandler creates a new graph handler.
func NewGraphHandler(store graph.Store, b *builder.Builder, logger *slog.Logger) *GraphHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphHandler{store: store, builder: b, logger: logger}
}

// Create handles POST /api/graphs.
func (h *GraphHandler) Create(c *gin.Context) {
	var req dto.CreateGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	// An untyped nil keeps the stored ontology empty; a typed nil would
	// serialize as JSON null.
	var ontology any
	if req.Ontology != nil {
		ontology = req.Ontology
	}
	graphID, err := h.store.CreateGraph(c.Request.Context(), req.ProjectID, req.Name, ontology)
	if err != nil {
		h.logger.Error("graph creation failed", "project_id", req.ProjectID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to create graph")
		return
	}
	respond(c, http.StatusCreated, gin.H{"graph_id": graphID})
}

// Get handles GET /api/graphs/:graph_id.
func (h *GraphHandler) Get(c *gin.Context) {
	graphID := c.Param("graph_id")
	data, err := h.store.GetGraphData(c.Request.Context(), graphID)
	if err != nil {
		if errors.Is(err, graph.ErrGraphNotFound) {
			respondError(c, http.StatusNotFound, "graph not found")
			return
		}
		h.logger.Error("graph dump failed", "graph_id", graphID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to load graph")
		return
	}
	respond(c, http.StatusOK, data)
}

// Delete handles DELETE /api/graphs/:graph_id. Deleting a graph that does
// not exist succeeds.
func (h *GraphHandler) Delete(c *gin.Context) {
	graphID := c.Param("graph_id")
	if err := h.store.DeleteGraph(c.Request.Context(), graphID); err != nil {
		h.logger.Error("graph deletion failed", "graph_id", graphID, "error", err)
		respondError(c, http.StatusInternalServerError, "failed to delete graph")
		return
	}
	respond(c, http.StatusOK, gin.H{"graph_id": graphID, "deleted": true})
}

// Build handles POST /api/graphs/build. The build runs synchronously and
// responds with the full graph dump.
func (h *GraphHandler) Build(c *gin.Context) {
	if h.builder == nil {
		respondError(c, http.StatusServiceUnavailable, "document builds are not configured")
		return
	}
	var req dto.BuildGraphRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	opts := &builder.Options{
		GraphName:    req.GraphName,
		Ontology:     req.Ontology,
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	}
	graphID, data, err := h.builder.BuildFromText(c.Request.Context(), req.ProjectID, req.Text, opts)
	if err != nil {
		h.logger.Error("document build failed", "project_id", req.ProjectID, "error", err)
		respondError(c, http.StatusInternalServerError, "document build failed")
		return
	}
	respond(c, http.StatusCreated, gin.H{"graph_id": graphID, "graph": data})
}
