package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/graph"
	"github.com/soundprediction/agentgraph/pkg/server/dto"
)

// Build information, set at build time using ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler reports service health, including store connectivity.
type HealthHandler struct {
	store graph.Store
}

// NewHealthHandler creates a new health handler. A nil store skips the
// connectivity check.
func NewHealthHandler(store graph.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

// Health handles GET /api/health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := gin.H{}
	healthy := true

	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		// A lookup of a graph that cannot exist exercises the store
		// round trip; not-found is the healthy outcome.
		start := time.Now()
		_, err := h.store.GetGraph(ctx, "health_check_probe")
		check := gin.H{
			"status":      "healthy",
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil && !errors.Is(err, graph.ErrGraphNotFound) {
			check["status"] = "unhealthy"
			check["error"] = err.Error()
			healthy = false
		}
		checks["store"] = check
	}

	payload := gin.H{
		"status":    "healthy",
		"service":   "agentgraph",
		"version":   Version,
		"go":        GoVersion,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if !healthy {
		payload["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, dto.Result{Success: false, Data: payload, Error: "store unavailable"})
		return
	}
	respond(c, http.StatusOK, payload)
}
