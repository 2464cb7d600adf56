// Package scheduler implements the single-threaded orchestrator event
// loop: it owns all scheduling state, spawns worker processes, routes
// their IPC messages, runs admission control, and drives failure
// recovery.
package scheduler

import (
	"time"

	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/classify"
	"github.com/corvid-systems/lintsched/internal/memsample"
)

// Result records a successfully completed batch.
type Result struct {
	BatchID      int
	Files        []string
	ErrorCount   int
	WarningCount int
	Details      []byte
	PeakRSS      int64
	Started, Ended time.Time
}

// workerHandle tracks everything the reactor needs about one active
// worker process.
type workerHandle struct {
	WorkerID int
	Batch    batch.Batch
	Tracker  memsample.Tracker
	Started  time.Time
}

// State is owned exclusively by the Scheduler that constructs it; there
// is no package-level mutable state anywhere in this package. mu is a
// plain sync.Mutex in production builds and a deadlock-detecting mutex
// under the debug build tag, guarding against any accidental
// concurrent mutation from outside the single-threaded reactor loop.
type State struct {
	mu mutex

	pending   []batch.Batch
	active    map[int]*workerHandle
	completed []Result
	failed    []classify.Record

	masterRSS int64

	batchIDs, workerIDs *counter
}

// counter is a tiny monotonic, never-reused ID source shared by both
// batch IDs and worker IDs, each with their own instance.
type counter struct {
	next int
}

func newCounter(start int) *counter {
	return &counter{next: start}
}

func (c *counter) Next() int {
	id := c.next
	c.next++

	return id
}

// NewState builds an empty, run-scoped State.
func NewState() *State {
	return &State{
		active:    make(map[int]*workerHandle),
		batchIDs:  newCounter(1),
		workerIDs: newCounter(1),
	}
}

// Seed populates pending from an initial file partition, sharing this
// State's batch ID counter so later bisections never reuse an ID.
func (s *State) Seed(files []string, batchSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = batch.InitialPartition(files, batchSize, s.batchIDs)
}

// PendingCount and ActiveCount report State sizes under lock, used by the admission check and by tests asserting
// the conservation invariant.
func (s *State) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

func (s *State) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.active)
}

// SetMasterRSS records the orchestrator process's own most recently
// sampled RSS, folded into TotalObservedRSS so admission control
// accounts for the memory the reactor itself holds, not only its
// workers.
func (s *State) SetMasterRSS(rss int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.masterRSS = rss
}

// MasterRSS returns the most recently recorded master RSS.
func (s *State) MasterRSS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.masterRSS
}

// TotalObservedRSS sums the master's own RSS with the last observed RSS
// of every active worker, per the admission formula: a worker's current
// footprint, not its historical peak, is what's still held against the
// container's memory budget right now.
func (s *State) TotalObservedRSS() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.masterRSS
	for _, h := range s.active {
		total += h.Tracker.Last()
	}

	return total
}

// PopPending removes and returns the lowest-ID pending batch (FIFO
// dispatch order), and whether one was available.
func (s *State) PopPending() (batch.Batch, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 {
		return batch.Batch{}, false
	}

	b := s.pending[0]
	s.pending = s.pending[1:]

	return b, true
}

// PushPending appends new batches (e.g. bisection results) to the back
// of the pending queue.
func (s *State) PushPending(batches ...batch.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, batches...)
}

// NextWorkerID issues a fresh, never-reused worker ID.
func (s *State) NextWorkerID() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.workerIDs.Next()
}

// AddActive registers a newly spawned worker.
func (s *State) AddActive(workerID int, b batch.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[workerID] = &workerHandle{WorkerID: workerID, Batch: b, Started: time.Now()}
}

// ObserveMemory folds a memory sample into the named worker's tracker.
func (s *State) ObserveMemory(workerID int, sample memsample.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.active[workerID]
	if !ok {
		return
	}

	h.Tracker.Observe(sample)
}

// RemoveActive detaches the handle for workerID, if any, and returns its
// batch, peak RSS, full memory sample timeline (for persistence), and
// whether a handle was found.
func (s *State) RemoveActive(workerID int) (b batch.Batch, peakRSS int64, timeline []memsample.Sample, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.active[workerID]
	if !ok {
		return batch.Batch{}, 0, nil, false
	}

	delete(s.active, workerID)

	return h.Batch, h.Tracker.Peak(), h.Tracker.Timeline(), true
}

// RecordCompleted appends a successful Result.
func (s *State) RecordCompleted(r Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.completed = append(s.completed, r)
}

// RecordFailed appends a permanent failure record.
func (s *State) RecordFailed(r classify.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failed = append(s.failed, r)
}

// Next issues a fresh, never-reused batch ID, satisfying batch.IDSource
// so classify.Recover can bisect directly against this State's shared
// counter without exposing the counter type itself.
func (s *State) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.batchIDs.Next()
}

// BisectBatch splits b into two retriable halves using this State's
// shared batch ID counter, so bisected IDs never collide with IDs
// issued at initial partition time.
func (s *State) BisectBatch(b batch.Batch) (front, back batch.Batch, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return batch.Bisect(b, s.batchIDs)
}

// Snapshot is a consistent, point-in-time read of terminal state, used
// by the aggregator and by conservation-invariant tests.
type Snapshot struct {
	Completed []Result
	Failed    []classify.Record
}

func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Completed: append([]Result{}, s.completed...),
		Failed:    append([]classify.Record{}, s.failed...),
	}
}

