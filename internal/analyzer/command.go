package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/corvid-systems/lintsched/internal/config"
)

// resultSchema constrains the shape of the external analyzer's stdout
// JSON before the worker trusts error_count / warning_count out of it.
// This is the only validation performed; "details" is left wide open.
const resultSchema = `{
	"type": "object",
	"required": ["error_count", "warning_count"],
	"properties": {
		"error_count": {"type": "integer", "minimum": 0},
		"warning_count": {"type": "integer", "minimum": 0},
		"details": {}
	}
}`

var compiledResultSchema = gojsonschema.NewStringLoader(resultSchema)

// CommandAnalyzer shells out to an external linter/analyzer binary,
// passing the batch's file paths as trailing arguments and parsing its
// stdout as one JSON object matching resultSchema.
type CommandAnalyzer struct {
	cfg config.AnalyzerConfig
}

// NewCommandAnalyzer builds a CommandAnalyzer from AnalyzerConfig.
func NewCommandAnalyzer(cfg config.AnalyzerConfig) *CommandAnalyzer {
	return &CommandAnalyzer{cfg: cfg}
}

// Lint runs the configured command against files and validates its
// output before returning a Result.
func (a *CommandAnalyzer) Lint(ctx context.Context, files []string) (Result, error) {
	timeout := time.Duration(a.cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = defaultCommandTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, a.cfg.Args...), files...)

	cmd := exec.CommandContext(runCtx, a.cfg.Command, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	err := cmd.Run()
	if err != nil {
		return Result{}, fmt.Errorf("run analyzer %s: %w", a.cfg.Command, err)
	}

	return parseResult(stdout.Bytes())
}

const defaultCommandTimeout = 120 * time.Second

func parseResult(raw []byte) (Result, error) {
	documentLoader := gojsonschema.NewBytesLoader(raw)

	validation, err := gojsonschema.Validate(compiledResultSchema, documentLoader)
	if err != nil {
		return Result{}, fmt.Errorf("validate analyzer output: %w", err)
	}

	if !validation.Valid() {
		return Result{}, fmt.Errorf("analyzer output failed schema validation: %v", validation.Errors())
	}

	var decoded struct {
		ErrorCount   int             `json:"error_count"`
		WarningCount int             `json:"warning_count"`
		Details      json.RawMessage `json:"details,omitempty"`
	}

	err = json.Unmarshal(raw, &decoded)
	if err != nil {
		return Result{}, fmt.Errorf("decode analyzer output: %w", err)
	}

	return Result{
		ErrorCount:   decoded.ErrorCount,
		WarningCount: decoded.WarningCount,
		Details:      decoded.Details,
	}, nil
}
