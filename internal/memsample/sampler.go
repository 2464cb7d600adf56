// Package memsample samples resident-set-size memory usage of OS
// processes, used by the orchestrator for admission control and by
// workers for self-reported memory telemetry.
package memsample

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sample is one point-in-time memory reading for a process.
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	PID       int       `json:"pid"`
	RSSBytes  int64     `json:"rss_bytes"`
	HeapBytes int64     `json:"heap_bytes"`
}

// ErrUnsupportedPlatform is returned by samplers that have no
// platform-specific implementation for the current GOOS.
var ErrUnsupportedPlatform = errors.New("memsample: unsupported platform")

// ErrProcessGone is returned when the target process exited between the
// sample request and the read.
var ErrProcessGone = errors.New("memsample: process no longer exists")

// Sampler reads the current memory usage of a process.
type Sampler interface {
	Sample(ctx context.Context, pid int) (Sample, error)
}

type unsupportedSampler struct{}

func (unsupportedSampler) Sample(_ context.Context, pid int) (Sample, error) {
	return Sample{}, fmt.Errorf("sample pid %d: %w", pid, ErrUnsupportedPlatform)
}

// Tracker maintains a monotonically non-decreasing peak RSS alongside the
// full sample timeline for a single worker, fed by successive samples
// (self-reported via IPC or polled by the orchestrator as a fallback).
type Tracker struct {
	peak     int64
	last     int64
	timeline []Sample
}

// Observe folds in a new sample, raising the tracked peak if it exceeds
// the prior peak. It never lowers the peak, and always records the
// sample in the timeline for later persistence.
func (t *Tracker) Observe(s Sample) {
	if s.RSSBytes > t.peak {
		t.peak = s.RSSBytes
	}

	t.last = s.RSSBytes
	t.timeline = append(t.timeline, s)
}

// Peak returns the highest RSS observed so far.
func (t *Tracker) Peak() int64 {
	return t.peak
}

// Last returns the most recently observed RSS, or zero if no sample has
// been observed yet. Admission control uses this rather than Peak: a
// worker's current footprint, not its historical high-water mark, is
// what determines whether the container has room for another worker.
func (t *Tracker) Last() int64 {
	return t.last
}

// Timeline returns every sample observed so far, in observation order.
// The returned slice is owned by the caller; the Tracker does not retain
// a reference to it.
func (t *Tracker) Timeline() []Sample {
	out := make([]Sample, len(t.timeline))
	copy(out, t.timeline)

	return out
}
