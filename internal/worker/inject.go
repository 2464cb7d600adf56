package worker

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/corvid-systems/lintsched/internal/analyzer"
)

// Injection wraps a real Analyzer with failure-injection behavior. It
// is only ever reachable when Scenario.active() is true; with the
// default ScenarioNone, Lint delegates straight through to the
// wrapped Analyzer and none of the branches below execute.
type Injection struct {
	Inner      analyzer.Analyzer
	Scenario   Scenario
	TargetFile string
	OOMRetries int
}

// targets reports whether some file in files contains the configured
// target as a substring, returning the first such file, or whether no
// target was configured (meaning "every batch", with no file matched).
func (inj Injection) targets(files []string) (string, bool) {
	if inj.TargetFile == "" {
		return "", true
	}

	for _, f := range files {
		if strings.Contains(f, inj.TargetFile) {
			return f, true
		}
	}

	return "", false
}

// Lint runs the configured injection behavior for batchID/depth, or
// delegates to Inner when the scenario is inactive or does not target
// this batch.
func (inj Injection) Lint(ctx context.Context, batchID, depth int, files []string) (analyzer.Result, error) {
	matched, targeted := inj.targets(files)
	if !inj.Scenario.active() || !targeted {
		return inj.Inner.Lint(ctx, files)
	}

	switch inj.Scenario.resolve(batchID) {
	case ScenarioOOMSingle:
		if depth == 0 {
			selfOOM()
		}
	case ScenarioOOMPersistent:
		if depth < inj.OOMRetries {
			selfOOM()
		}
	case ScenarioRandomOOM:
		if deterministicChance(batchID) {
			selfOOM()
		}
	case ScenarioParseError:
		if matched != "" {
			return analyzer.Result{}, &ParseErrorFile{File: matched}
		}

		return analyzer.Result{}, fmt.Errorf("%w: injected parse failure for batch %d", ErrInjectedParseError, batchID)
	case ScenarioRuleCrash:
		panic(fmt.Sprintf("injected rule crash for batch %d", batchID))
	case ScenarioSlowWorker:
		time.Sleep(slowWorkerDelay)
	}

	return inj.Inner.Lint(ctx, files)
}

// slowWorkerDelay is long enough to exercise a configured watchdog
// timeout without making test runs impractically slow.
const slowWorkerDelay = 5 * time.Second

// ErrInjectedParseError marks a deliberately injected parse failure,
// classified by internal/classify as ClassParseError via its Reason
// string.
var ErrInjectedParseError = fmt.Errorf("injected parse error")

// ParseErrorFile wraps ErrInjectedParseError with the one file the
// injection targeted via --test-file, letting the worker attribute a
// parse_error to exactly that file instead of the whole batch. An
// untargeted injection (no --test-file, meaning "every batch") carries
// no file attribution since there is no single file to blame.
type ParseErrorFile struct {
	File string
}

func (e *ParseErrorFile) Error() string {
	return fmt.Sprintf("%v: file %s", ErrInjectedParseError, e.File)
}

func (e *ParseErrorFile) Unwrap() error {
	return ErrInjectedParseError
}

// selfOOM terminates the current process with SIGKILL, reproducing the
// OS OOM killer's signature: an unexplained kill with no cooperative
// shutdown frame sent beforehand.
func selfOOM() {
	_ = syscall.Kill(os.Getpid(), syscall.SIGKILL)
}

// deterministicChance reproduces a fixed low-probability OOM for a
// given batch ID without any runtime randomness, so repeated runs over
// the same corpus inject failures on the same batches.
func deterministicChance(batchID int) bool {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d", batchID)

	const oomChanceDenominator = 5

	return h.Sum32()%oomChanceDenominator == 0
}
