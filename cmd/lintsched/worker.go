package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/corvid-systems/lintsched/internal/analyzer"
	"github.com/corvid-systems/lintsched/internal/config"
	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/internal/observability"
	"github.com/corvid-systems/lintsched/internal/scheduler"
	"github.com/corvid-systems/lintsched/internal/worker"
)

// exitCodeWorkerChannelFailure is returned when the worker could not
// exchange IPC frames with the orchestrator at all. Any other
// outcome, success or lint failure, is reported as a terminal IPC
// frame and exits cleanly: the orchestrator, not the process exit
// code, is the channel of record for a worker's result.
const exitCodeWorkerChannelFailure = 1

// NewWorkerCommand builds the hidden `worker` subcommand: the re-exec
// target spawned by internal/scheduler's process.spawn, reconstructing
// its IPC channel from the file descriptors inherited via ExtraFiles.
func NewWorkerCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:    "worker",
		Short:  "Internal worker entrypoint; not for direct use",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorker(cmd, configPath)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to the lintsched config file the orchestrator resolved")

	return cmd
}

func runWorker(cmd *cobra.Command, configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("worker: validate config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	logger := observability.NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}), observability.Config{
		ServiceName: "lintsched-worker",
	})

	driver := worker.Driver{
		Channel: scheduler.ReopenWorkerChannel(),
		Injector: worker.Injection{
			Inner:      analyzer.NewCommandAnalyzer(cfg.Analyzer),
			Scenario:   worker.Scenario(cfg.Test.Scenario),
			TargetFile: cfg.Test.TargetFile,
			OOMRetries: cfg.Test.OOMRetries,
		},
		Sampler: memsample.NewSampler(),
		Logger:  logger,
	}

	runErr := driver.Run(cmd.Context())
	if runErr != nil {
		logger.Debug("worker: run returned an error", slog.Any("error", runErr))

		if errors.Is(runErr, worker.ErrChannelFailure) {
			os.Exit(exitCodeWorkerChannelFailure)
		}
	}

	// Any lint failure was already reported to the orchestrator as a
	// terminal KindError frame; the process itself exits cleanly.
	return nil
}
