// Package main provides the entry point for the lintsched CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-systems/lintsched/pkg/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "lintsched",
		Short: "Memory-aware, fault-tolerant batch lint scheduler",
		Long: `lintsched partitions a file corpus into batches, runs each batch in an
isolated worker process, samples memory usage to gate new worker
admission, and recovers from worker failures (including OOM) by
bisecting batches and retrying with a bounded depth.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose log output")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "suppress non-error log output")

	rootCmd.AddCommand(NewRunCommand())
	rootCmd.AddCommand(NewWorkerCommand())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "lintsched %s\n", version.String())
		},
	}
}
