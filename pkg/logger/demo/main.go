package main

import (
	"log/slog"

	"github.com/soundprediction/agentgraph/pkg/logger"
)

func main() {
	// Create a colored logger
	log := logger.NewDefaultLogger(slog.LevelDebug)

	log.Info("============================================")
	log.Info("    Agentgraph Colored Logger Demo")
	log.Info("============================================")
	log.Info("")

	log.Debug("Debug message - standard color")
	log.Info("Info message - standard color")
	log.Info("Persisting entities to database - green!")
	log.Info("Entities persisted successfully - also green!")
	log.Warn("Warning message - yellow!")
	log.Error("Error message - red!")

	log.Info("")
	log.Info("Store operations are highlighted in green:")
	log.Info("Persisting resolved entities early", "count", 42, "batch_size", 5)
	log.Info("Resolved entities persisted", "duration", "2.5s")
	log.Info("Persisting new relations early", "count", 156)
	log.Info("New relations persisted", "duration", "1.8s")

	log.Info("")
	log.Warn("Warnings appear in yellow for attention")
	log.Error("Errors appear in red for immediate visibility")

	log.Info("")
	log.Info("Demo complete!")
}
