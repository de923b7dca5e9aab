package agentgraph

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/soundprediction/agentgraph/pkg/server/handlers"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("agentgraph %s\n", handlers.Version)
		fmt.Printf("  commit: %s\n", handlers.GitCommit)
		fmt.Printf("  built:  %s\n", handlers.BuildTime)
		fmt.Printf("  go:     %s\n", runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
