package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/config"
	"github.com/corvid-systems/lintsched/internal/discovery"
	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/internal/observability"
	"github.com/corvid-systems/lintsched/internal/report"
	"github.com/corvid-systems/lintsched/internal/scheduler"
	"github.com/corvid-systems/lintsched/pkg/version"
)

// ErrMissingTarget is returned when --target is not supplied.
var ErrMissingTarget = errors.New("--target is required")

// ErrTargetNotFound is returned when --target does not resolve to a
// readable directory.
var ErrTargetNotFound = errors.New("target directory not found")

// runExecutor drives one scheduler run to completion and returns its
// aggregated summary. Injected so tests can exercise flag parsing and
// config resolution without actually spawning worker processes.
type runExecutor func(ctx context.Context, cfg *config.Config, files []string, logger *slog.Logger, runID string) (report.Summary, error)

// RunCommand holds the flags and dependencies for the orchestrator
// entry point.
type RunCommand struct {
	target       string
	glob         string
	testScenario string
	testFile     string
	configPath   string
	reportDir    string
	reportFormat string
	compress     bool
	metricsAddr  string

	executor runExecutor
}

// NewRunCommand builds the real `run` command, backed by a Scheduler
// that self-re-execs this same binary's `worker` subcommand.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}
	rc.executor = rc.execute

	return rc.toCobra()
}

func newRunCommandWithDeps(executor runExecutor) *RunCommand {
	return &RunCommand{executor: executor}
}

func (rc *RunCommand) toCobra() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Partition a file corpus into batches and lint it under memory-aware scheduling",
		RunE:  rc.run,
	}

	cmd.Flags().StringVar(&rc.target, "target", "", "root directory to analyze (required)")
	cmd.Flags().StringVar(&rc.glob, "glob", "*.go", "file-selection pattern relative to --target")
	cmd.Flags().StringVar(&rc.testScenario, "test", "none", "failure-injection scenario: none, oom-single, oom-persistent, parse-error, rule-crash, random-oom, slow-worker, all")
	cmd.Flags().StringVar(&rc.testFile, "test-file", "", "substring match selecting which files trigger --test")
	cmd.Flags().StringVar(&rc.configPath, "config", "", "path to a lintsched config file")
	cmd.Flags().StringVar(&rc.reportDir, "report-dir", "", "directory to persist summary.json and memory timelines into")
	cmd.Flags().StringVar(&rc.reportFormat, "report-format", "", "human-readable report format: text or yaml")
	cmd.Flags().BoolVar(&rc.compress, "compress-results", false, "lz4-compress persisted per-batch analyzer output")
	cmd.Flags().StringVar(&rc.metricsAddr, "metrics-addr", "", "address to serve /metrics, /healthz, /readyz on (disabled if empty)")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	if rc.target == "" {
		return ErrMissingTarget
	}

	info, err := os.Stat(rc.target)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTargetNotFound, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrTargetNotFound, rc.target)
	}

	cfg, err := rc.resolveConfig(cmd)
	if err != nil {
		return err
	}

	runID := uuid.New().String()
	logger := observability.NewLogger(rc.logHandler(cmd), observability.Config{
		ServiceName:    "lintsched",
		ServiceVersion: version.Version,
		RunID:          runID,
	})

	logger.Info("lintsched starting", slog.String("target", rc.target), slog.String("glob", rc.glob), slog.String("run_id", runID))

	files, err := discovery.Files(rc.target, rc.glob)
	if err != nil {
		return fmt.Errorf("discover files: %w", err)
	}

	logger.Info("discovered files", slog.Int("count", len(files)))

	summary, err := rc.executor(cmd.Context(), cfg, files, logger, runID)
	if err != nil {
		return err
	}

	renderErr := report.Render(cmd.OutOrStdout(), summary, cfg.Report.Format)
	if renderErr != nil {
		return fmt.Errorf("render summary: %w", renderErr)
	}

	if len(summary.Failed) > 0 {
		logger.Warn("run completed with failures", slog.Int("failed_batches", len(summary.Failed)))
		os.Exit(exitCodeRunFailure)
	}

	return nil
}

// exitCodeRunFailure is returned when the run completes cleanly but one
// or more batches ended up permanently failed: not an argument error,
// so it bypasses cobra's error-printing path entirely.
const exitCodeRunFailure = 1

func (rc *RunCommand) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(rc.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if cmd.Flags().Changed("test") {
		cfg.Test.Scenario = rc.testScenario
	}

	if cmd.Flags().Changed("test-file") {
		cfg.Test.TargetFile = rc.testFile
	}

	if rc.reportDir != "" {
		cfg.Report.Dir = rc.reportDir
	}

	if cmd.Flags().Changed("report-format") {
		cfg.Report.Format = rc.reportFormat
	}

	if cmd.Flags().Changed("compress-results") {
		cfg.Report.CompressResults = rc.compress
	}

	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (rc *RunCommand) logHandler(cmd *cobra.Command) slog.Handler {
	verbose, _ := cmd.Flags().GetBool("verbose")
	quiet, _ := cmd.Flags().GetBool("quiet")

	level := slog.LevelInfo

	switch {
	case quiet:
		level = slog.LevelError
	case verbose:
		level = slog.LevelDebug
	}

	return slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

// execute builds and drives the scheduler to completion, persisting
// per-worker memory timelines and the aggregated summary as it goes.
func (rc *RunCommand) execute(ctx context.Context, cfg *config.Config, files []string, logger *slog.Logger, runID string) (report.Summary, error) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	selfExe, err := os.Executable()
	if err != nil {
		return report.Summary{}, fmt.Errorf("resolve self executable: %w", err)
	}

	workerArgs := []string{"worker"}
	if rc.configPath != "" {
		workerArgs = append(workerArgs, "--config", rc.configPath)
	}

	workerEnv := []string{
		"TEST_SCENARIO=" + cfg.Test.Scenario,
		"TEST_TARGET_FILE=" + cfg.Test.TargetFile,
		fmt.Sprintf("TEST_OOM_RETRIES=%d", cfg.Test.OOMRetries),
	}

	var sched *scheduler.Scheduler

	snapshot := func() (activeWorkers, pendingBatches int, observedRSS int64) {
		if sched == nil {
			return 0, 0, 0
		}

		return sched.Gauges()()
	}

	var diag *observability.DiagnosticsServer

	if rc.metricsAddr != "" {
		diag, err = observability.NewDiagnosticsServer(rc.metricsAddr, "lintsched", snapshot)
		if err != nil {
			return report.Summary{}, fmt.Errorf("start diagnostics server: %w", err)
		}
		defer diag.Close()

		logger.Info("diagnostics server listening", slog.String("addr", diag.Addr()))
	}

	sched = scheduler.NewScheduler(cfg.Scheduler, selfExe, workerArgs, workerEnv, logger,
		scheduler.WithWorkerDoneFunc(rc.persistWorkerTelemetry(cfg, logger)),
		scheduler.WithEventHooks(rc.diagnosticsHooks(ctx, diag)),
	)

	snap, runErr := sched.Run(ctx, files)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return report.Summary{}, fmt.Errorf("scheduler run: %w", runErr)
	}

	summary := report.Aggregate(snap)
	summary.RunID = runID

	persistErr := report.Persist(cfg.Report.Dir, summary, cfg.Report.CompressResults)
	if persistErr != nil {
		return report.Summary{}, fmt.Errorf("persist summary: %w", persistErr)
	}

	return summary, nil
}

// persistWorkerTelemetry adapts a finished worker's memory timeline into
// the on-disk layout report.PersistWorkerMemory expects.
func (rc *RunCommand) persistWorkerTelemetry(cfg *config.Config, logger *slog.Logger) scheduler.WorkerDoneFunc {
	return func(workerID int, _ batch.Batch, timeline []memsample.Sample) {
		err := report.PersistWorkerMemory(cfg.Report.Dir, workerID, timeline)
		if err != nil {
			logger.Warn("failed to persist worker memory timeline", slog.Int("worker_id", workerID), slog.Any("error", err))
		}
	}
}

func (rc *RunCommand) diagnosticsHooks(ctx context.Context, diag *observability.DiagnosticsServer) scheduler.EventHooks {
	if diag == nil {
		return scheduler.EventHooks{}
	}

	return scheduler.EventHooks{
		OnCompleted:        func() { diag.Counters.RecordCompleted(ctx) },
		OnFailed:           func() { diag.Counters.RecordFailed(ctx) },
		OnBisected:         func() { diag.Counters.RecordBisected(ctx) },
		OnAdmissionBlocked: func() { diag.Counters.RecordAdmissionBlocked(ctx) },
	}
}
