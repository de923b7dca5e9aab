package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/nlp"
	"github.com/soundprediction/agentgraph/pkg/server/dto"
)

const (
	defaultUsageLimit = 5000
	maxUsageLimit     = 200000
)

// ModelLister lists the models the configured endpoint serves.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// LLMHandler exposes runtime LLM configuration and usage accounting.
type LLMHandler struct {
	settings  *nlp.SettingsStore
	models    ModelLister
	usagePath string
	usageRoot string
	logger    *slog.Logger
}

// NewLLMHandler creates a new LLM handler. usagePath is the server's own
// usage log, usageRoot is scanned for per-simulation logs; either may be
// empty.
func NewLLMHandler(settings *nlp.SettingsStore, models ModelLister, usagePath, usageRoot string, logger *slog.Logger) *LLMHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMHandler{
		settings:  settings,
		models:    models,
		usagePath: usagePath,
		usageRoot: usageRoot,
		logger:    logger,
	}
}

// GetConfig handles GET /api/llm/config. The API key is never returned,
// only whether one is set and its last four characters.
func (h *LLMHandler) GetConfig(c *gin.Context) {
	respond(c, http.StatusOK, h.settings.Public())
}

// UpdateConfig handles POST /api/llm/config. Absent fields keep their
// stored values.
func (h *LLMHandler) UpdateConfig(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	update, err := dto.ParseSettingsUpdate(body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.settings.Save(update); err != nil {
		h.logger.Error("failed to save llm settings", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to save settings")
		return
	}
	respond(c, http.StatusOK, h.settings.Public())
}

// ListModels handles GET /api/llm/models.
func (h *LLMHandler) ListModels(c *gin.Context) {
	if h.models == nil {
		respondError(c, http.StatusServiceUnavailable, "model listing is not configured")
		return
	}
	models, err := h.models.ListModels(c.Request.Context())
	if err != nil {
		h.logger.Warn("model listing failed", "error", err)
		respondError(c, http.StatusBadGateway, fmt.Sprintf("failed to list models: %v", err))
		return
	}
	respond(c, http.StatusOK, gin.H{"models": models})
}

// GetUsage handles GET /api/llm/usage. It aggregates the server's own
// usage log with any per-simulation logs found under the data directory.
func (h *LLMHandler) GetUsage(c *gin.Context) {
	limit := defaultUsageLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	if limit < 1 {
		limit = 1
	}
	if limit > maxUsageLimit {
		limit = maxUsageLimit
	}

	var paths []string
	seen := map[string]bool{}
	if h.usagePath != "" {
		if _, err := os.Stat(h.usagePath); err == nil {
			paths = append(paths, h.usagePath)
			seen[h.usagePath] = true
		}
	}
	if h.usageRoot != "" {
		discovered, err := nlp.DiscoverUsageLogs(h.usageRoot)
		if err != nil {
			h.logger.Warn("usage log discovery failed", "root", h.usageRoot, "error", err)
		}
		for _, path := range discovered {
			if !seen[path] {
				paths = append(paths, path)
				seen[path] = true
			}
		}
	}

	records := nlp.ReadUsageRecords(paths, limit)
	respond(c, http.StatusOK, nlp.AggregateUsage(records))
}

// GetStages handles GET /api/llm/stages.
func (h *LLMHandler) GetStages(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{"stages": nlp.StageDefinitions})
}

// GetPresets handles GET /api/llm/presets.
func (h *LLMHandler) GetPresets(c *gin.Context) {
	respond(c, http.StatusOK, gin.H{
		"presets": nlp.RoutingPresets,
		"names":   nlp.PresetNames(),
	})
}

// UpdateRouting handles POST /api/llm/routing. A preset replaces the
// whole routing table; an explicit routing map merges into it, with
// empty values deleting the stage.
func (h *LLMHandler) UpdateRouting(c *gin.Context) {
	var req dto.RoutingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var routing map[string]string
	if req.Preset != "" {
		preset, ok := nlp.RoutingPresets[req.Preset]
		if !ok {
			respondError(c, http.StatusBadRequest,
				fmt.Sprintf("unknown preset %q, valid presets: %s", req.Preset, strings.Join(nlp.PresetNames(), ", ")))
			return
		}
		// Replacement through the merge API: stages missing from the
		// preset are deleted via empty values.
		routing = make(map[string]string, len(preset.Routing))
		for stage := range h.settings.Current().ModelRouting {
			routing[stage] = ""
		}
		for stage, model := range preset.Routing {
			routing[stage] = model
		}
	} else {
		routing = req.Routing
	}

	if _, err := h.settings.Save(nlp.SettingsUpdate{ModelRouting: routing}); err != nil {
		h.logger.Error("failed to save model routing", "error", err)
		respondError(c, http.StatusInternalServerError, "failed to save settings")
		return
	}
	respond(c, http.StatusOK, h.settings.Public())
}
