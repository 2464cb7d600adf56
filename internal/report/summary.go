// Package report aggregates a finished scheduler run into a Summary,
// persists it to disk, and renders it for human consumption.
package report

import (
	"time"

	"github.com/corvid-systems/lintsched/internal/classify"
	"github.com/corvid-systems/lintsched/internal/scheduler"
)

// BatchResult is the persisted form of one completed batch.
type BatchResult struct {
	BatchID      int           `json:"batch_id" yaml:"batch_id"`
	Files        []string      `json:"files" yaml:"files"`
	ErrorCount   int           `json:"error_count" yaml:"error_count"`
	WarningCount int           `json:"warning_count" yaml:"warning_count"`
	PeakRSSBytes int64         `json:"peak_rss_bytes" yaml:"peak_rss_bytes"`
	Duration     time.Duration `json:"duration_ns" yaml:"duration_ns"`

	// Details carries the analyzer's opaque per-batch output, optionally
	// lz4-compressed in place by Persist when report.compress_results is
	// set. DetailsCompressed records which form this field is in so
	// DecompressDetails and other readers decode it correctly.
	Details           []byte `json:"details,omitempty" yaml:"details,omitempty"`
	DetailsCompressed bool   `json:"details_compressed,omitempty" yaml:"details_compressed,omitempty"`
}

// FailureRecord is the persisted form of one permanently failed batch.
type FailureRecord struct {
	BatchID int            `json:"batch_id" yaml:"batch_id"`
	Files   []string       `json:"files" yaml:"files"`
	Class   classify.Class `json:"class" yaml:"class"`
	Reason  string         `json:"reason" yaml:"reason"`
	Depth   int            `json:"depth" yaml:"depth"`
}

// Summary is the terminal outcome of one scheduler run: every input file
// appears in exactly one of Completed or Failed.
type Summary struct {
	// RunID is a collision-proof identifier for this invocation,
	// stamped in by the caller after Aggregate so that log lines and
	// the persisted summary correlate across a multi-run history.
	RunID          string          `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	TotalFiles     int             `json:"total_files" yaml:"total_files"`
	TotalErrors    int             `json:"total_errors" yaml:"total_errors"`
	TotalWarnings  int             `json:"total_warnings" yaml:"total_warnings"`
	PeakRSSBytes   int64           `json:"peak_rss_bytes" yaml:"peak_rss_bytes"`
	Completed      []BatchResult   `json:"completed" yaml:"completed"`
	Failed         []FailureRecord `json:"failed" yaml:"failed"`
}

// Aggregate turns a scheduler.Snapshot into a Summary, computing the
// totals a Render or downstream consumer needs without re-walking the
// raw per-batch slices.
func Aggregate(snap scheduler.Snapshot) Summary {
	summary := Summary{
		Completed: make([]BatchResult, 0, len(snap.Completed)),
		Failed:    make([]FailureRecord, 0, len(snap.Failed)),
	}

	for _, r := range snap.Completed {
		summary.TotalFiles += len(r.Files)
		summary.TotalErrors += r.ErrorCount
		summary.TotalWarnings += r.WarningCount

		if r.PeakRSS > summary.PeakRSSBytes {
			summary.PeakRSSBytes = r.PeakRSS
		}

		duration := time.Duration(0)
		if !r.Started.IsZero() && !r.Ended.IsZero() {
			duration = r.Ended.Sub(r.Started)
		}

		summary.Completed = append(summary.Completed, BatchResult{
			BatchID:      r.BatchID,
			Files:        r.Files,
			ErrorCount:   r.ErrorCount,
			WarningCount: r.WarningCount,
			PeakRSSBytes: r.PeakRSS,
			Duration:     duration,
			Details:      r.Details,
		})
	}

	for _, f := range snap.Failed {
		summary.TotalFiles += len(f.Files)

		summary.Failed = append(summary.Failed, FailureRecord{
			BatchID: f.BatchID,
			Files:   f.Files,
			Class:   f.Class,
			Reason:  f.Reason,
			Depth:   f.Depth,
		})
	}

	return summary
}
