package scheduler

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/corvid-systems/lintsched/internal/admission"
	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/classify"
	"github.com/corvid-systems/lintsched/internal/config"
	"github.com/corvid-systems/lintsched/internal/ipc"
	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/pkg/units"
)

// samplerTickInterval governs how often the reactor re-evaluates
// admission independent of any IPC-driven event, so capacity freed by a
// worker exiting is noticed promptly even under low message traffic.
const samplerTickInterval = 500 * time.Millisecond

// Scheduler is the single-threaded orchestrator: it owns a State, spawns
// worker processes under admission control, and drives the whole run to
// completion from one cooperative event loop. No two goroutines ever
// touch workers or issue IPC sends concurrently; everything funnels
// through the events channel consumed by Run.
type Scheduler struct {
	cfg       config.SchedulerConfig
	state     *State
	admission *admission.Controller
	watchdog  *Watchdog
	spawnArgs spawnArgs
	logger    *slog.Logger

	selfSampler memsample.Sampler
	selfPID     int

	onWorkerDone WorkerDoneFunc
	hooks        EventHooks

	workers map[int]*trackedWorker
	events  chan workerEvent
}

// WorkerDoneFunc is invoked once per worker exit (completed or failed)
// with that worker's ID, its terminal batch, and its full memory sample
// timeline, so a caller can persist per-worker memory telemetry without
// the Scheduler itself knowing anything about report formats or disk
// layout.
type WorkerDoneFunc func(workerID int, b batch.Batch, timeline []memsample.Sample)

// Option configures optional Scheduler behavior beyond the required
// constructor arguments, added this way so existing call sites built
// against the fixed five-argument NewScheduler keep compiling.
type Option func(*Scheduler)

// WithSelfSampler overrides how the Scheduler samples its own RSS for
// the master_rss term of the admission formula. Tests can inject a fake
// Sampler instead of reading real /proc state.
func WithSelfSampler(sampler memsample.Sampler) Option {
	return func(s *Scheduler) { s.selfSampler = sampler }
}

// WithWorkerDoneFunc registers a callback fired once per worker exit
// with that worker's memory sample timeline, letting a caller persist
// per-worker memory telemetry alongside the run's report.
func WithWorkerDoneFunc(fn WorkerDoneFunc) Option {
	return func(s *Scheduler) { s.onWorkerDone = fn }
}

// EventHooks lets a caller observe reactor lifecycle events without the
// Scheduler importing any particular metrics library. Every field is
// optional; nil hooks are simply not called.
type EventHooks struct {
	OnCompleted        func()
	OnFailed           func()
	OnBisected         func()
	OnAdmissionBlocked func()
}

// WithEventHooks registers EventHooks, typically adapting the package's
// counters to lintsched's own metric instruments.
func WithEventHooks(hooks EventHooks) Option {
	return func(s *Scheduler) { s.hooks = hooks }
}

// trackedWorker is reactor-private bookkeeping for one active process,
// supplementing the scheduling facts already held in State.
type trackedWorker struct {
	proc          *process
	completed     bool
	errFrame      *ipc.ErrorPayload
	unexpectedEOF bool
}

// NewScheduler builds a Scheduler ready to run one batch job. selfExe and
// workerArgs describe how to re-invoke this same binary as a worker
// (typically selfExe plus ["worker", "--config", path]).
func NewScheduler(cfg config.SchedulerConfig, selfExe string, workerArgs, workerEnv []string, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}

	limits := admission.Limits{
		MaxWorkers:          cfg.MaxWorkers,
		ContainerLimitBytes: cfg.ContainerLimitMB * units.MiB,
		ThresholdPercent:    cfg.MemThresholdPercent,
	}

	s := &Scheduler{
		cfg:         cfg,
		state:       NewState(),
		admission:   admission.NewController(limits, logger),
		watchdog:    NewWatchdog(cfg.WorkerTimeoutSec),
		spawnArgs:   spawnArgs{SelfExe: selfExe, Args: workerArgs, Env: workerEnv},
		logger:      logger,
		selfSampler: memsample.NewSampler(),
		selfPID:     os.Getpid(),
		workers:     make(map[int]*trackedWorker),
		events:      make(chan workerEvent, workerEventBuffer),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// workerEventBuffer keeps the event channel deep enough that a burst of
// memory-sample frames from several workers never blocks a reader
// goroutine behind a slow reactor tick.
const workerEventBuffer = 64

// workerEvent is the single event type multiplexed onto the reactor's
// select loop from every reader and waiter goroutine.
type workerEvent struct {
	workerID int
	frame    *ipc.Envelope
	recvErr  error
	exited   bool
	exitErr  error
}

// Run seeds files into batches and drives them to completion: every file
// ends up in exactly one of State's completed results or failed records
// by the time Run returns successfully. On context cancellation, Run
// stops admitting new work, kills any already-spawned workers, and
// returns once they have all been reaped.
func (s *Scheduler) Run(ctx context.Context, files []string) (Snapshot, error) {
	s.state.Seed(files, s.cfg.ResolveBatchSize(len(files)))
	var wg conc.WaitGroup
	defer wg.Wait()

	ticker := time.NewTicker(samplerTickInterval)
	defer ticker.Stop()

	draining := false

	for {
		s.trySpawn(&wg)

		if s.state.PendingCount() == 0 && s.state.ActiveCount() == 0 {
			return s.state.Snapshot(), nil
		}

		select {
		case <-ctx.Done():
			if !draining {
				draining = true
				s.logger.Warn("scheduler: context cancelled, killing active workers")
				s.Reap()
			}

			if s.state.ActiveCount() == 0 {
				return s.state.Snapshot(), ctx.Err()
			}
		case <-ticker.C:
			s.sampleSelf(ctx)
			s.killStalled()
		case ev := <-s.events:
			s.handleEvent(ev)
		}

		if draining {
			// Once draining, never admit new pending work; only let
			// in-flight workers finish or get reaped by the watchdog.
			s.state.mu.Lock()
			s.state.pending = nil
			s.state.mu.Unlock()
		}
	}
}

// sampleSelf reads the orchestrator's own RSS and folds it into State's
// master_rss term. A sampling failure (e.g. ErrUnsupportedPlatform on a
// non-Linux GOOS) is logged at debug level and otherwise ignored: the
// admission formula simply falls back to zero master RSS, which the
// independent MaxWorkers cap still bounds.
func (s *Scheduler) sampleSelf(ctx context.Context) {
	sample, err := s.selfSampler.Sample(ctx, s.selfPID)
	if err != nil {
		s.logger.Debug("scheduler: self RSS sample unavailable", slog.Any("error", err))

		return
	}

	s.state.SetMasterRSS(sample.RSSBytes)
}

// trySpawn admits and starts as many new workers as the admission
// controller currently allows, in FIFO pending order.
func (s *Scheduler) trySpawn(wg *conc.WaitGroup) {
	for {
		if !s.admission.Admit(s.state.ActiveCount(), s.state.TotalObservedRSS()) {
			if s.hooks.OnAdmissionBlocked != nil && s.state.PendingCount() > 0 {
				s.hooks.OnAdmissionBlocked()
			}

			return
		}

		b, ok := s.state.PopPending()
		if !ok {
			return
		}

		s.spawnWorker(wg, b)
	}
}

func (s *Scheduler) spawnWorker(wg *conc.WaitGroup, b batch.Batch) {
	workerID := s.state.NextWorkerID()

	proc, err := spawn(s.spawnArgs, b)
	if err != nil {
		s.logger.Error("scheduler: failed to spawn worker", slog.Int("batch_id", b.ID), slog.Any("error", err))
		s.state.RecordFailed(classify.Record{BatchID: b.ID, Files: b.Files, Class: classify.ClassUnknown, Reason: "spawn_failed", Depth: b.Depth})

		return
	}

	s.state.AddActive(workerID, b)
	s.workers[workerID] = &trackedWorker{proc: proc}

	env, err := ipc.EncodeLint(ipc.LintPayload{BatchID: b.ID, Files: b.Files, Depth: b.Depth})
	if err != nil {
		s.logger.Error("scheduler: failed to encode lint task", slog.Int("batch_id", b.ID), slog.Any("error", err))

		return
	}

	err = proc.channel.Send(env)
	if err != nil {
		s.logger.Error("scheduler: failed to send lint task", slog.Int("batch_id", b.ID), slog.Any("error", err))
	}

	s.watchdog.Track(workerID)

	wg.Go(func() { s.readLoop(workerID, proc) })
	wg.Go(func() { s.waitLoop(workerID, proc) })
}

// readLoop forwards every frame from one worker's channel onto events,
// terminating (without crashing the reactor) when the channel closes.
func (s *Scheduler) readLoop(workerID int, proc *process) {
	for {
		env, err := proc.channel.Recv()
		if err != nil {
			s.events <- workerEvent{workerID: workerID, recvErr: err}

			return
		}

		s.events <- workerEvent{workerID: workerID, frame: &env}
	}
}

// waitLoop reaps the worker's process and reports its exit.
func (s *Scheduler) waitLoop(workerID int, proc *process) {
	err := proc.cmd.Wait()
	s.events <- workerEvent{workerID: workerID, exited: true, exitErr: err}
}

func (s *Scheduler) handleEvent(ev workerEvent) {
	tw, ok := s.workers[ev.workerID]
	if !ok {
		return
	}

	switch {
	case ev.frame != nil:
		s.handleFrame(ev.workerID, tw, *ev.frame)
	case ev.recvErr != nil:
		tw.unexpectedEOF = !tw.completed
	case ev.exited:
		s.handleExit(ev.workerID, tw, ev.exitErr)
	}
}

func (s *Scheduler) handleFrame(workerID int, tw *trackedWorker, env ipc.Envelope) {
	switch env.Kind {
	case ipc.KindResult:
		s.handleResult(workerID, tw, env)
	case ipc.KindError:
		p, err := ipc.DecodeErrorPayload(env)
		if err == nil {
			tw.errFrame = &p
		}
	case ipc.KindMemory:
		p, err := ipc.DecodeMemory(env)
		if err == nil {
			s.state.ObserveMemory(workerID, memsample.Sample{RSSBytes: p.RSSBytes})
			s.watchdog.Touch(workerID)
		}
	case ipc.KindLint:
		// Orchestrator never receives a lint frame; ignore defensively.
	}
}

func (s *Scheduler) handleResult(workerID int, tw *trackedWorker, env ipc.Envelope) {
	p, err := ipc.DecodeResult(env)
	if err != nil {
		s.logger.Error("scheduler: malformed result frame", slog.Int("worker_id", workerID), slog.Any("error", err))

		return
	}

	b, peak, timeline, ok := s.state.RemoveActive(workerID)
	if !ok {
		return
	}

	tw.completed = true
	s.watchdog.Untrack(workerID)

	s.state.RecordCompleted(Result{
		BatchID:      b.ID,
		Files:        b.Files,
		ErrorCount:   p.ErrorCount,
		WarningCount: p.WarningCount,
		Details:      p.Details,
		PeakRSS:      peak,
	})

	if s.onWorkerDone != nil {
		s.onWorkerDone(workerID, b, timeline)
	}

	if s.hooks.OnCompleted != nil {
		s.hooks.OnCompleted()
	}
}

func (s *Scheduler) handleExit(workerID int, tw *trackedWorker, exitErr error) {
	delete(s.workers, workerID)
	s.watchdog.Untrack(workerID)

	if tw.completed {
		return
	}

	b, peakRSS, timeline, ok := s.state.RemoveActive(workerID)
	if !ok {
		return
	}

	if s.onWorkerDone != nil {
		s.onWorkerDone(workerID, b, timeline)
	}

	s.logger.Debug("scheduler: worker exited without completing",
		slog.Int("worker_id", workerID), slog.Int("batch_id", b.ID), slog.Any("exit_error", exitErr))

	outcome := classify.Outcome{
		ExitState:     tw.proc.cmd.ProcessState,
		ErrorFrame:    tw.errFrame,
		UnexpectedEOF: tw.unexpectedEOF,
	}

	class := classify.Classify(outcome)
	reason, file := "", ""

	if tw.errFrame != nil {
		reason = tw.errFrame.Reason
		file = tw.errFrame.File
	}

	decision := classify.Recover(class, file, b, s.cfg.MaxRetries, s.state)

	switch {
	case len(decision.Retry) > 0:
		s.logger.Warn("scheduler: bisecting failed batch",
			slog.Int("batch_id", b.ID), slog.String("class", string(class)), slog.Int("depth", b.Depth))
		s.state.PushPending(decision.Retry...)

		if s.hooks.OnBisected != nil {
			s.hooks.OnBisected()
		}
	case decision.Isolated != nil:
		s.logger.Warn("scheduler: isolating attributed file from batch",
			slog.Int("batch_id", b.ID), slog.String("file", decision.Isolated.File))
		s.state.RecordFailed(classify.Record{
			BatchID: b.ID, Files: []string{decision.Isolated.File}, Class: class, Reason: reason, Depth: b.Depth,
		})

		if s.hooks.OnFailed != nil {
			s.hooks.OnFailed()
		}

		if len(decision.Isolated.RemainingFiles) > 0 {
			s.state.RecordCompleted(Result{BatchID: b.ID, Files: decision.Isolated.RemainingFiles, PeakRSS: peakRSS})

			if s.hooks.OnCompleted != nil {
				s.hooks.OnCompleted()
			}
		}
	default:
		s.state.RecordFailed(classify.Record{BatchID: b.ID, Files: b.Files, Class: class, Reason: reason, Depth: b.Depth})

		if s.hooks.OnFailed != nil {
			s.hooks.OnFailed()
		}
	}
}

// killStalled terminates any worker the watchdog reports as stalled.
// Its exit is then handled through the ordinary exit path like any
// other worker failure: classified, then bisected, isolated to a
// single attributed file, or given up on entirely.
func (s *Scheduler) killStalled() {
	for _, workerID := range s.watchdog.Check() {
		tw, ok := s.workers[workerID]
		if !ok || tw.proc.cmd.Process == nil {
			continue
		}

		s.logger.Warn("scheduler: killing stalled worker", slog.Int("worker_id", workerID))
		_ = tw.proc.cmd.Process.Kill()
	}
}

// Gauges returns the (activeWorkers, pendingBatches, observedRSS) triple
// that observability.SchedulerGauges samples on each metrics scrape. The
// returned closure reads State under lock and is safe to call
// concurrently with the reactor loop.
func (s *Scheduler) Gauges() func() (activeWorkers, pendingBatches int, observedRSS int64) {
	return func() (int, int, int64) {
		return s.state.ActiveCount(), s.state.PendingCount(), s.state.TotalObservedRSS()
	}
}

// Reap kills every remaining active worker process; used when Run's
// context is cancelled with work still in flight.
func (s *Scheduler) Reap() {
	for _, tw := range s.workers {
		if tw.proc.cmd.Process != nil {
			_ = tw.proc.cmd.Process.Kill()
		}
	}
}
