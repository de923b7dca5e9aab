package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/server/dto"
	"github.com/soundprediction/agentgraph/pkg/updater"
)

// UpdaterHandler manages per-simulation streaming updaters.
type UpdaterHandler struct {
	registry *updater.Registry
	logger   *slog.Logger
}

// NewUpdaterHandler creates a new updater handler.
func NewUpdaterHandler(registry *updater.Registry, logger *slog.Logger) *UpdaterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdaterHandler{registry: registry, logger: logger}
}

// Create handles POST /api/updaters.
func (h *UpdaterHandler) Create(c *gin.Context) {
	var req dto.CreateUpdaterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	u, err := h.registry.Create(c.Request.Context(), req.SimulationID, req.GraphID)
	if err != nil {
		h.logger.Error("updater creation failed", "simulation_id", req.SimulationID, "error", err)
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respond(c, http.StatusCreated, u.GetStats())
}

// List handles GET /api/updaters.
func (h *UpdaterHandler) List(c *gin.Context) {
	stats := h.registry.AllStats()
	respond(c, http.StatusOK, gin.H{"updaters": stats, "count": len(stats)})
}

// Stats handles GET /api/updaters/:id/stats.
func (h *UpdaterHandler) Stats(c *gin.Context) {
	u, ok := h.registry.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "updater not found")
		return
	}
	respond(c, http.StatusOK, u.GetStats())
}

// AddActivities handles POST /api/updaters/:id/activities. The body is a
// single activity record or {"activities": [...]}. Records are queued and
// processed asynchronously; meta events are dropped by the updater.
func (h *UpdaterHandler) AddActivities(c *gin.Context) {
	u, ok := h.registry.Get(c.Param("id"))
	if !ok {
		respondError(c, http.StatusNotFound, "updater not found")
		return
	}
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	records, err := dto.ParseActivities(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	for _, record := range records {
		platform, _ := record["platform"].(string)
		u.AddActivityFromDict(record, platform)
	}
	respond(c, http.StatusAccepted, gin.H{"received": len(records)})
}

// Stop handles DELETE /api/updaters/:id. The updater drains its queue
// before shutting down.
func (h *UpdaterHandler) Stop(c *gin.Context) {
	id := c.Param("id")
	if !h.registry.Stop(id) {
		respondError(c, http.StatusNotFound, "updater not found")
		return
	}
	respond(c, http.StatusOK, gin.H{"simulation_id": id, "stopped": true})
}

// StopAll handles POST /api/updaters/stop-all.
func (h *UpdaterHandler) StopAll(c *gin.Context) {
	h.registry.StopAll()
	respond(c, http.StatusOK, gin.H{"stopped": true})
}
