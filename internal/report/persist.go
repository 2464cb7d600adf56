package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/pkg/persist"
)

// summaryBasename is the filename (minus extension) Persist and Load
// agree on for the aggregated run summary.
const summaryBasename = "summary"

// masterMemoryBasename names the orchestrator's own persisted memory
// timeline, one file per run regardless of worker count.
const masterMemoryBasename = "master-memory"

// Persist writes s to dir as summary.json, using pkg/persist's JSON
// codec. When compress is true, each completed batch's Details blob is
// lz4-compressed in place first; large analyzer output (e.g. full AST
// diagnostics) otherwise dominates the file size for no benefit to a
// reader that only looks at the counts.
func Persist(dir string, s Summary, compress bool) error {
	if compress {
		s = compressDetails(s)
	}

	err := persist.SaveState(dir, summaryBasename, persist.NewJSONCodec(), s)
	if err != nil {
		return fmt.Errorf("persist summary: %w", err)
	}

	return nil
}

// Load reads a Summary previously written by Persist.
func Load(dir string) (Summary, error) {
	var s Summary

	err := persist.LoadState(dir, summaryBasename, persist.NewJSONCodec(), &s)
	if err != nil {
		return Summary{}, fmt.Errorf("load summary: %w", err)
	}

	return s, nil
}

// workerMemoryBasename names one worker's persisted memory timeline.
func workerMemoryBasename(workerID int) string {
	return fmt.Sprintf("worker-%d-memory", workerID)
}

// workerResultsBasename names one worker's persisted opaque lint results.
func workerResultsBasename(workerID int) string {
	return fmt.Sprintf("worker-%d-results", workerID)
}

// PersistWorkerMemory writes one worker's full memory sample timeline to
// dir as worker-<id>-memory.json, per the persisted state layout.
func PersistWorkerMemory(dir string, workerID int, timeline []memsample.Sample) error {
	if timeline == nil {
		timeline = []memsample.Sample{}
	}

	err := persist.SaveState(dir, workerMemoryBasename(workerID), persist.NewJSONCodec(), timeline)
	if err != nil {
		return fmt.Errorf("persist worker %d memory timeline: %w", workerID, err)
	}

	return nil
}

// PersistWorkerResults writes the opaque LintResult JSON produced by one
// successful worker to dir as worker-<id>-results.json. details is
// written verbatim as json.RawMessage rather than re-encoded, since it
// is already the analyzer's raw JSON output and the core never parses
// its shape.
func PersistWorkerResults(dir string, workerID int, details []byte) error {
	raw := json.RawMessage(details)
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	err := persist.SaveState(dir, workerResultsBasename(workerID), persist.NewJSONCodec(), raw)
	if err != nil {
		return fmt.Errorf("persist worker %d results: %w", workerID, err)
	}

	return nil
}

// PersistMasterMemory writes the orchestrator's own memory sample
// timeline to dir as master-memory.json.
func PersistMasterMemory(dir string, timeline []memsample.Sample) error {
	if timeline == nil {
		timeline = []memsample.Sample{}
	}

	err := persist.SaveState(dir, masterMemoryBasename, persist.NewJSONCodec(), timeline)
	if err != nil {
		return fmt.Errorf("persist master memory timeline: %w", err)
	}

	return nil
}

// compressDetails returns a copy of s with every completed batch's
// Details field lz4-compressed, leaving empty Details untouched.
func compressDetails(s Summary) Summary {
	out := s
	out.Completed = make([]BatchResult, len(s.Completed))

	for i, r := range s.Completed {
		if len(r.Details) == 0 || r.DetailsCompressed {
			out.Completed[i] = r

			continue
		}

		compressed, err := lz4Compress(r.Details)
		if err != nil {
			out.Completed[i] = r

			continue
		}

		r.Details = compressed
		r.DetailsCompressed = true
		out.Completed[i] = r
	}

	return out
}

// DecompressDetails reverses compressDetails for one batch's Details
// field, returning the original bytes unchanged if it was never
// compressed.
func DecompressDetails(r BatchResult) ([]byte, error) {
	if !r.DetailsCompressed || len(r.Details) == 0 {
		return r.Details, nil
	}

	var buf bytes.Buffer

	zr := lz4.NewReader(bytes.NewReader(r.Details))

	_, err := io.Copy(&buf, zr)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress details: %w", err)
	}

	return buf.Bytes(), nil
}

func lz4Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	zw := lz4.NewWriter(&buf)

	_, err := zw.Write(data)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	err = zw.Close()
	if err != nil {
		return nil, fmt.Errorf("lz4 close: %w", err)
	}

	return buf.Bytes(), nil
}
