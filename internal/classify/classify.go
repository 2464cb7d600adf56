// Package classify determines why a worker failed and decides whether
// its batch should be bisected and retried or given up on permanently.
package classify

import (
	"os"

	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/ipc"
)

// Class names a worker failure's likely cause.
type Class string

// Failure classes.
const (
	ClassOOM        Class = "oom"
	ClassParseError Class = "parse_error"
	ClassRuleCrash  Class = "rule_crash"
	ClassUnknown    Class = "unknown"
)

// known reasons a worker's own ErrorPayload.Reason may report, mapped to
// a Class. A reason absent from this table classifies as ClassUnknown.
var knownReasons = map[string]Class{
	"parse_error": ClassParseError,
	"rule_crash":  ClassRuleCrash,
}

// Outcome is everything known about how a worker ended, used as input
// to Classify.
type Outcome struct {
	// ExitState is the worker's process exit state, nil if it could not
	// be obtained (e.g. the process was never successfully started).
	ExitState *os.ProcessState

	// ErrorFrame is the worker's self-reported error, if one was
	// received before the process ended.
	ErrorFrame *ipc.ErrorPayload

	// UnexpectedEOF records whether the channel died mid-read with no
	// frame at all.
	UnexpectedEOF bool
}

// Classify determines the failure Class for a worker outcome.
//
// A process killed by a signal with no cooperative ErrorPayload received
// beforehand is the OOM killer's signature: an unexplained kill with no
// graceful shutdown. A cooperative ErrorPayload is trusted verbatim via
// knownReasons. Anything else (nonzero exit with no frame, unexpected
// EOF with no signal) classifies as ClassUnknown rather than guessing.
func Classify(o Outcome) Class {
	if o.ErrorFrame != nil {
		if class, ok := knownReasons[o.ErrorFrame.Reason]; ok {
			return class
		}
	}

	if wasSignalKilled(o.ExitState) && o.ErrorFrame == nil {
		return ClassOOM
	}

	return ClassUnknown
}

func wasSignalKilled(state *os.ProcessState) bool {
	if state == nil {
		return false
	}

	sys, ok := state.Sys().(interface{ Signaled() bool })

	return ok && sys.Signaled()
}

// Record captures a batch's terminal failure, classified and attributed.
type Record struct {
	BatchID int
	Files   []string
	Class   Class
	Reason  string
	Depth   int
}

// IsolatedFailure describes a single file attributed as the cause of a
// parse_error, with the rest of the batch deemed complete rather than
// retried: the file that failed is known, so there is nothing to gain
// from re-running its siblings.
type IsolatedFailure struct {
	File           string
	RemainingFiles []string
}

// Decision is the outcome of Recover: exactly one of Retry, Isolated,
// or GiveUp applies.
type Decision struct {
	// Retry holds the two bisected children to re-enqueue, set only for
	// a retryable ClassOOM failure.
	Retry []batch.Batch

	// Isolated is set when a single file was attributed as the cause
	// (ClassParseError with a known file): that file fails, and
	// RemainingFiles is deemed complete.
	Isolated *IsolatedFailure

	// GiveUp marks the entire batch as permanently failed with no
	// retry.
	GiveUp bool
}

// Recover decides what happens to a classified batch failure, per the
// documented recovery table:
//
//   - ClassOOM within maxRetries depth, on a batch of at least two
//     files, bisects and retries both halves. OOM correlates with
//     working-set size, so halving the input reliably reduces peak RSS;
//     no other class gets this treatment. ClassOOM at max depth, or on
//     an unbisectable single-file batch, gives up on the whole batch.
//   - ClassParseError with a known file isolates that one file as
//     failed and deems the rest of the batch complete, since the
//     failure is already attributed to exactly one file and nothing is
//     gained by re-running or failing its siblings.
//   - Everything else — ClassParseError without a known file,
//     ClassRuleCrash, ClassUnknown — gives up on the whole batch
//     immediately, with no retry: none of these correlate with batch
//     size the way OOM does, so bisecting would only burn extra worker
//     spawns for no better odds of success. There is no special-cased
//     escalation for repeated ClassUnknown outcomes of the same
//     lineage either; the policy is purely a function of the current
//     classification.
func Recover(class Class, file string, b batch.Batch, maxRetries int, ids batch.IDSource) Decision {
	if class == ClassOOM {
		if b.Depth < maxRetries && len(b.Files) >= 2 {
			front, back, err := batch.Bisect(b, ids)
			if err == nil {
				return Decision{Retry: []batch.Batch{front, back}}
			}
		}

		return Decision{GiveUp: true}
	}

	if class == ClassParseError && file != "" {
		return Decision{Isolated: &IsolatedFailure{File: file, RemainingFiles: removeFile(b.Files, file)}}
	}

	return Decision{GiveUp: true}
}

// removeFile returns files with target removed, preserving order.
func removeFile(files []string, target string) []string {
	out := make([]string, 0, len(files))

	for _, f := range files {
		if f != target {
			out = append(out, f)
		}
	}

	return out
}
