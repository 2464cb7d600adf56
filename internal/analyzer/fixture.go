package analyzer

import "context"

// FixtureAnalyzer returns a fixed Result regardless of input, used by
// tests that need a deterministic Analyzer without an external binary.
type FixtureAnalyzer struct {
	Result Result
	Err    error
}

// Lint returns f.Result or f.Err, ignoring files.
func (f FixtureAnalyzer) Lint(_ context.Context, _ []string) (Result, error) {
	return f.Result, f.Err
}
