package main

import (
	"os"

	"github.com/soundprediction/agentgraph/cmd/agentgraph"
)

func main() {
	if err := agentgraph.Execute(); err != nil {
		os.Exit(1)
	}
}
