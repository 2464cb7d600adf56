// Package analyzer defines the black-box contract workers use to lint a
// batch of files. Results are opaque beyond two documented counts; the
// scheduler never interprets anything else an analyzer returns.
package analyzer

import (
	"context"
	"encoding/json"
)

// Result is what a worker learns from linting one batch. Details is
// carried opaquely through to the persisted worker results file and
// never inspected by the orchestrator.
type Result struct {
	ErrorCount   int
	WarningCount int
	Details      json.RawMessage
}

// Analyzer lints a batch of files and returns an opaque Result.
type Analyzer interface {
	Lint(ctx context.Context, files []string) (Result, error)
}
