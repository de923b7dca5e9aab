package main

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"

	"github.com/soundprediction/agentgraph/pkg/types"
)

// Tool request/response types

// AddActivityRequest is one agent action to remember.
type AddActivityRequest struct {
	Platform   string         `json:"platform,omitempty"`
	AgentID    int            `json:"agent_id,omitempty"`
	AgentName  string         `json:"agent_name"`
	ActionType string         `json:"action_type"`
	ActionArgs map[string]any `json:"action_args,omitempty"`
	Round      int            `json:"round,omitempty"`
	Timestamp  string         `json:"timestamp,omitempty"`
}

// GetStatsRequest has no parameters; the server is bound to one graph.
type GetStatsRequest struct{}

// SearchEntitiesRequest searches entities by name.
type SearchEntitiesRequest struct {
	Name  string `json:"name"`
	Limit int    `json:"limit,omitempty"`
}

// EntityEdgesRequest asks for the edges touching one entity.
type EntityEdgesRequest struct {
	EntityUUID     string `json:"entity_uuid"`
	IncludeInvalid bool   `json:"include_invalid,omitempty"`
}

// InvalidateEdgeRequest marks one edge invalid.
type InvalidateEdgeRequest struct {
	EdgeUUID string `json:"edge_uuid"`
}

// DeleteGraphRequest deletes a graph; an empty GraphID means the bound one.
type DeleteGraphRequest struct {
	GraphID string `json:"graph_id,omitempty"`
}

// ToolResponse is a generic response wrapper
type ToolResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func toolError(format string, args ...any) *ToolResponse {
	return &ToolResponse{Success: false, Error: fmt.Sprintf(format, args...)}
}

// AddActivityTool queues one activity into the bound graph's updater.
// It returns immediately; extraction happens in the background worker.
func (s *MCPServer) AddActivityTool(ctx *ai.ToolContext, input *AddActivityRequest) (*ToolResponse, error) {
	if input.ActionType == "" {
		return toolError("action_type is required"), nil
	}

	u, ok := s.client.Updater(s.config.SimulationID)
	if !ok {
		return toolError("memory updater is not running"), nil
	}

	u.AddActivity(&types.Activity{
		Platform:   input.Platform,
		AgentID:    input.AgentID,
		AgentName:  input.AgentName,
		ActionType: input.ActionType,
		ActionArgs: input.ActionArgs,
		Round:      input.Round,
		Timestamp:  input.Timestamp,
	})

	stats := u.GetStats()
	return &ToolResponse{
		Success: true,
		Message: fmt.Sprintf("Activity queued (%d pending)", stats.QueueSize),
	}, nil
}

// GetStatsTool reports the updater's processing counters.
func (s *MCPServer) GetStatsTool(ctx *ai.ToolContext, input *GetStatsRequest) (*ToolResponse, error) {
	u, ok := s.client.Updater(s.config.SimulationID)
	if !ok {
		return toolError("memory updater is not running"), nil
	}

	return &ToolResponse{
		Success: true,
		Message: "Stats retrieved successfully",
		Data: map[string]any{
			"graph_id": s.graphID,
			"stats":    u.GetStats(),
		},
	}, nil
}

// SearchEntitiesTool recalls entity candidates by name.
func (s *MCPServer) SearchEntitiesTool(ctx *ai.ToolContext, input *SearchEntitiesRequest) (*ToolResponse, error) {
	if input.Name == "" {
		return toolError("name is required"), nil
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	candidates, err := s.client.SearchEntities(context.Background(), s.graphID, input.Name, limit)
	if err != nil {
		s.logger.Error("entity search failed", "error", err)
		return toolError("Failed to search entities: %v", err), nil
	}

	if len(candidates) == 0 {
		return &ToolResponse{
			Success: true,
			Message: "No matching entities found",
			Data:    map[string]any{"entities": []any{}},
		}, nil
	}

	return &ToolResponse{
		Success: true,
		Message: "Entities retrieved successfully",
		Data:    map[string]any{"entities": candidates},
	}, nil
}

// GetEntityEdgesTool returns the edges touching one entity, newest first.
// Invalidated edges are included only when asked for; they carry their
// invalid_at and expired_at stamps.
func (s *MCPServer) GetEntityEdgesTool(ctx *ai.ToolContext, input *EntityEdgesRequest) (*ToolResponse, error) {
	if input.EntityUUID == "" {
		return toolError("entity_uuid is required"), nil
	}

	edges, err := s.client.EntityEdges(context.Background(), s.graphID, input.EntityUUID, input.IncludeInvalid)
	if err != nil {
		s.logger.Error("edge lookup failed", "error", err)
		return toolError("Failed to get entity edges: %v", err), nil
	}

	return &ToolResponse{
		Success: true,
		Message: fmt.Sprintf("%d edges retrieved", len(edges)),
		Data:    map[string]any{"edges": edges},
	}, nil
}

// InvalidateEdgeTool stamps one edge invalid as of now.
func (s *MCPServer) InvalidateEdgeTool(ctx *ai.ToolContext, input *InvalidateEdgeRequest) (*ToolResponse, error) {
	if input.EdgeUUID == "" {
		return toolError("edge_uuid is required"), nil
	}

	ok, err := s.client.InvalidateEdge(context.Background(), input.EdgeUUID)
	if err != nil {
		s.logger.Error("edge invalidation failed", "error", err)
		return toolError("Failed to invalidate edge: %v", err), nil
	}
	if !ok {
		return toolError("Edge %s not found", input.EdgeUUID), nil
	}

	return &ToolResponse{
		Success: true,
		Message: fmt.Sprintf("Edge %s invalidated", input.EdgeUUID),
	}, nil
}

// DeleteGraphTool removes a graph and everything under it.
func (s *MCPServer) DeleteGraphTool(ctx *ai.ToolContext, input *DeleteGraphRequest) (*ToolResponse, error) {
	graphID := input.GraphID
	if graphID == "" {
		graphID = s.graphID
	}

	if err := s.client.DeleteGraph(context.Background(), graphID); err != nil {
		s.logger.Error("graph deletion failed", "graph_id", graphID, "error", err)
		return toolError("Failed to delete graph: %v", err), nil
	}

	s.logger.Info("graph deleted", "graph_id", graphID)
	return &ToolResponse{
		Success: true,
		Message: fmt.Sprintf("Graph %s deleted", graphID),
	}, nil
}
