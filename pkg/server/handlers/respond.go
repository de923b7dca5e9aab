// Package handlers implements the HTTP API endpoints.
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/soundprediction/agentgraph/pkg/server/dto"
)

// respond writes a successful envelope with the given payload.
func respond(c *gin.Context, status int, data any) {
	c.JSON(status, dto.OK(data))
}

// respondError writes a failed envelope with the given message.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, dto.Err(message))
}
