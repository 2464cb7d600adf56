package scheduler

import (
	"sync"
	"time"
)

// Watchdog detects workers that have gone quiet for longer than the
// configured timeout — no result, error, or memory-sample frame — and
// reports them for termination so the reactor's ordinary exit-handling
// path can reclassify and bisect-or-retry the batch, the same way any
// other worker failure is handled.
//
// Unlike the CGO worker pool this is adapted from, a stalled OS process
// here cannot be silently abandoned in place of a fresh one: killing it
// is the only way to reclaim its slot, so Watchdog only detects and
// reports, leaving the kill itself to the caller.
type Watchdog struct {
	mu sync.Mutex

	timeout      time.Duration
	lastActivity map[int]time.Time
	stalledCount int
}

// NewWatchdog returns a Watchdog enforcing timeout, or nil if timeoutSec
// is zero or negative (the documented "disabled" convention).
func NewWatchdog(timeoutSec int) *Watchdog {
	if timeoutSec <= 0 {
		return nil
	}

	return &Watchdog{
		timeout:      time.Duration(timeoutSec) * time.Second,
		lastActivity: make(map[int]time.Time),
	}
}

// Track begins monitoring a newly spawned worker. A nil Watchdog is a
// valid no-op receiver so callers never need a separate nil check when
// the watchdog is disabled.
func (wd *Watchdog) Track(workerID int) {
	if wd == nil {
		return
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	wd.lastActivity[workerID] = time.Now()
}

// Touch records activity from workerID, resetting its stall clock.
func (wd *Watchdog) Touch(workerID int) {
	if wd == nil {
		return
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	if _, ok := wd.lastActivity[workerID]; ok {
		wd.lastActivity[workerID] = time.Now()
	}
}

// Untrack stops monitoring a worker that has exited or completed.
func (wd *Watchdog) Untrack(workerID int) {
	if wd == nil {
		return
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	delete(wd.lastActivity, workerID)
}

// Check returns the IDs of workers that have exceeded timeout without
// any activity, and stops tracking them (each stall is reported once;
// the caller kills the process, which re-enters Track only if respawned
// under a fresh worker ID).
func (wd *Watchdog) Check() []int {
	if wd == nil {
		return nil
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	now := time.Now()

	var stalled []int

	for id, last := range wd.lastActivity {
		if now.Sub(last) > wd.timeout {
			stalled = append(stalled, id)
		}
	}

	for _, id := range stalled {
		delete(wd.lastActivity, id)
	}

	wd.stalledCount += len(stalled)

	return stalled
}

// StalledCount returns the total number of stalls observed so far.
func (wd *Watchdog) StalledCount() int {
	if wd == nil {
		return 0
	}

	wd.mu.Lock()
	defer wd.mu.Unlock()

	return wd.stalledCount
}
