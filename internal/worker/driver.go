package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/corvid-systems/lintsched/internal/analyzer"
	"github.com/corvid-systems/lintsched/internal/ipc"
	"github.com/corvid-systems/lintsched/internal/memsample"
)

// memorySampleInterval is how often a worker self-reports its RSS while
// linting a batch.
const memorySampleInterval = 200 * time.Millisecond

// Driver runs the worker-side state machine for exactly one batch:
// START -> AWAIT_TASK -> LINTING -> REPORTING_OK|REPORTING_ERR -> EXIT.
// A Driver is used for a single batch only; it is never reused.
type Driver struct {
	Channel  *ipc.Channel
	Injector Injection
	Sampler  memsample.Sampler
	Logger   *slog.Logger
}

// Run blocks on AWAIT_TASK for the one KindLint message this worker
// will ever receive, executes it, and reports exactly one KindResult
// or KindError frame before returning. The returned error, if any, is
// the process's own diagnostic; the caller (cmd/lintsched's worker
// entrypoint) decides the process exit code.
func (d Driver) Run(ctx context.Context) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	task, err := d.awaitTask()
	if err != nil {
		return fmt.Errorf("%w: await task: %w", ErrChannelFailure, err)
	}

	stopSampling := d.startSampling(ctx, task.BatchID)
	defer stopSampling()

	result, lintErr := d.lint(ctx, task)
	if lintErr != nil {
		return d.reportError(task.BatchID, lintErr)
	}

	return d.reportResult(task.BatchID, result)
}

// awaitTask blocks for the single KindLint frame that constitutes this
// worker's entire task; it reads nothing else from the orchestrator.
func (d Driver) awaitTask() (ipc.LintPayload, error) {
	env, err := d.Channel.Recv()
	if err != nil {
		return ipc.LintPayload{}, fmt.Errorf("receive lint task: %w", err)
	}

	if env.Kind != ipc.KindLint {
		return ipc.LintPayload{}, fmt.Errorf("expected %s, got %s", ipc.KindLint, env.Kind)
	}

	return ipc.DecodeLint(env)
}

func (d Driver) lint(ctx context.Context, task ipc.LintPayload) (result analyzer.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrRuleCrash, r)
		}
	}()

	result, err = d.Injector.Lint(ctx, task.BatchID, task.Depth, task.Files)

	return result, err
}

// ErrRuleCrash marks a recovered panic inside the analyzer invocation,
// classified by internal/classify as ClassRuleCrash via its Reason
// string.
var ErrRuleCrash = errors.New("rule crash")

// ErrChannelFailure marks a failure to exchange IPC frames with the
// orchestrator at all (as opposed to a lint failure that was
// successfully reported as a terminal KindError frame). A caller
// deciding the process exit code should treat this as abnormal; any
// other non-nil Run error already reached the orchestrator as a
// terminal message and warrants a clean exit.
var ErrChannelFailure = errors.New("worker: ipc channel failure")

func (d Driver) startSampling(ctx context.Context, batchID int) (stop func()) {
	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(memorySampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.reportMemory(ctx, batchID)
			}
		}
	}()

	return func() { close(done) }
}

func (d Driver) reportMemory(ctx context.Context, batchID int) {
	sample, err := d.Sampler.Sample(ctx, os.Getpid())
	if err != nil {
		return
	}

	env, err := ipc.EncodeMemory(ipc.MemoryPayload{
		BatchID:  batchID,
		RSSBytes: sample.RSSBytes,
	})
	if err != nil {
		return
	}

	_ = d.Channel.Send(env)
}

func (d Driver) reportResult(batchID int, result analyzer.Result) error {
	env, err := ipc.EncodeResult(ipc.ResultPayload{
		BatchID:      batchID,
		ErrorCount:   result.ErrorCount,
		WarningCount: result.WarningCount,
		Details:      result.Details,
	})
	if err != nil {
		return fmt.Errorf("%w: encode result: %w", ErrChannelFailure, err)
	}

	sendErr := d.Channel.Send(env)
	if sendErr != nil {
		return fmt.Errorf("%w: send result frame: %w", ErrChannelFailure, sendErr)
	}

	return nil
}

func (d Driver) reportError(batchID int, lintErr error) error {
	env, encErr := ipc.EncodeError(ipc.ErrorPayload{
		BatchID: batchID,
		Reason:  classifyReason(lintErr),
		File:    parseErrorFile(lintErr),
		Fatal:   true,
	})
	if encErr != nil {
		return fmt.Errorf("%w: encode error: %w", ErrChannelFailure, encErr)
	}

	sendErr := d.Channel.Send(env)
	if sendErr != nil {
		return fmt.Errorf("%w: send error frame: %w", ErrChannelFailure, sendErr)
	}

	return lintErr
}

// classifyReason maps a lint error to the Reason string
// internal/classify's knownReasons table recognizes.
func classifyReason(err error) string {
	switch {
	case errors.Is(err, ErrRuleCrash):
		return "rule_crash"
	case errors.Is(err, ErrInjectedParseError):
		return "parse_error"
	default:
		return "unknown"
	}
}

// parseErrorFile extracts the attributed file from a *ParseErrorFile
// error, or "" if lintErr carries no file attribution.
func parseErrorFile(lintErr error) string {
	var pe *ParseErrorFile

	if errors.As(lintErr, &pe) {
		return pe.File
	}

	return ""
}
