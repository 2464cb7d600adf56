// Package ipc implements the length-delimited JSON framing protocol used
// between the orchestrator and each worker process.
package ipc

import (
	"encoding/json"
	"fmt"
)

// Kind identifies the payload type carried by an Envelope.
type Kind string

// Message kinds exchanged between orchestrator and worker.
const (
	KindLint   Kind = "lint"
	KindResult Kind = "result"
	KindError  Kind = "error"
	KindMemory Kind = "memory"
)

// Envelope is the outer frame payload: a tagged union over the four
// message kinds. Payload is left as raw JSON so decoding can be deferred
// to a typed Decode* call once Kind is known.
type Envelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// LintPayload assigns a batch of files to a worker. It is the only
// message a worker ever receives and carries the batch to lint. The
// analyzer command and failure-injection settings are not in it: the
// worker reads them from the config file named by its --config argument
// and from its TEST_* environment variables.
type LintPayload struct {
	BatchID int      `json:"batch_id"`
	Files   []string `json:"files"`
	Depth   int      `json:"depth"`
}

// ResultPayload reports a successfully linted batch.
type ResultPayload struct {
	BatchID      int             `json:"batch_id"`
	ErrorCount   int             `json:"error_count"`
	WarningCount int             `json:"warning_count"`
	Details      json.RawMessage `json:"details,omitempty"`
}

// ErrorPayload reports a batch the worker could not complete. File, when
// non-empty, attributes the failure to exactly one file within the
// batch (e.g. a cooperatively detected parse error), letting the
// orchestrator isolate that file instead of failing or bisecting the
// whole batch.
type ErrorPayload struct {
	BatchID int    `json:"batch_id"`
	Reason  string `json:"reason"`
	File    string `json:"file,omitempty"`
	Fatal   bool   `json:"fatal"`
}

// MemoryPayload is a periodic self-reported memory sample from a worker.
type MemoryPayload struct {
	BatchID   int   `json:"batch_id"`
	RSSBytes  int64 `json:"rss_bytes"`
	HeapBytes int64 `json:"heap_bytes,omitempty"`
}

// EncodeLint builds an Envelope carrying a LintPayload.
func EncodeLint(p LintPayload) (Envelope, error) {
	return encode(KindLint, p)
}

// EncodeResult builds an Envelope carrying a ResultPayload.
func EncodeResult(p ResultPayload) (Envelope, error) {
	return encode(KindResult, p)
}

// EncodeError builds an Envelope carrying an ErrorPayload.
func EncodeError(p ErrorPayload) (Envelope, error) {
	return encode(KindError, p)
}

// EncodeMemory builds an Envelope carrying a MemoryPayload.
func EncodeMemory(p MemoryPayload) (Envelope, error) {
	return encode(KindMemory, p)
}

func encode(kind Kind, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}

	return Envelope{Kind: kind, Payload: raw}, nil
}

func wrapDecode(kind Kind, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("decode %s payload: %w", kind, err)
}

// DecodeLint decodes e's payload as a LintPayload. Callers must check
// e.Kind == KindLint first.
func DecodeLint(e Envelope) (LintPayload, error) {
	var p LintPayload

	err := json.Unmarshal(e.Payload, &p)

	return p, wrapDecode(KindLint, err)
}

// DecodeResult decodes e's payload as a ResultPayload.
func DecodeResult(e Envelope) (ResultPayload, error) {
	var p ResultPayload

	err := json.Unmarshal(e.Payload, &p)

	return p, wrapDecode(KindResult, err)
}

// DecodeErrorPayload decodes e's payload as an ErrorPayload.
func DecodeErrorPayload(e Envelope) (ErrorPayload, error) {
	var p ErrorPayload

	err := json.Unmarshal(e.Payload, &p)

	return p, wrapDecode(KindError, err)
}

// DecodeMemory decodes e's payload as a MemoryPayload.
func DecodeMemory(e Envelope) (MemoryPayload, error) {
	var p MemoryPayload

	err := json.Unmarshal(e.Payload, &p)

	return p, wrapDecode(KindMemory, err)
}
