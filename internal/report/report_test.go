package report_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/classify"
	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/internal/report"
	"github.com/corvid-systems/lintsched/internal/scheduler"
)

func sampleSnapshot() scheduler.Snapshot {
	started := time.Now()

	return scheduler.Snapshot{
		Completed: []scheduler.Result{
			{BatchID: 1, Files: []string{"a.go", "b.go"}, ErrorCount: 2, WarningCount: 1, PeakRSS: 1024, Started: started, Ended: started.Add(time.Second)},
		},
		Failed: []classify.Record{
			{BatchID: 2, Files: []string{"c.go"}, Class: classify.ClassOOM, Reason: "", Depth: 2},
		},
	}
}

func TestAggregate_SumsCountsAndConservesFiles(t *testing.T) {
	t.Parallel()

	s := report.Aggregate(sampleSnapshot())

	assert.Equal(t, 3, s.TotalFiles)
	assert.Equal(t, 2, s.TotalErrors)
	assert.Equal(t, 1, s.TotalWarnings)
	assert.Equal(t, int64(1024), s.PeakRSSBytes)
	require.Len(t, s.Completed, 1)
	require.Len(t, s.Failed, 1)
	assert.Equal(t, time.Second, s.Completed[0].Duration)
}

func TestPersistAndLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := report.Aggregate(sampleSnapshot())

	require.NoError(t, report.Persist(dir, s, false))

	loaded, err := report.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, s.TotalFiles, loaded.TotalFiles)
	assert.Equal(t, s.TotalErrors, loaded.TotalErrors)
}

func TestPersist_CompressDetailsRoundTrips(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := report.Aggregate(sampleSnapshot())
	s.Completed[0].Details = []byte(`{"issues":[1,2,3]}`)

	require.NoError(t, report.Persist(dir, s, true))

	loaded, err := report.Load(dir)
	require.NoError(t, err)
	require.True(t, loaded.Completed[0].DetailsCompressed)

	raw, err := report.DecompressDetails(loaded.Completed[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[1,2,3]}`, string(raw))
}

func TestRender_TextIncludesTotalsAndBatches(t *testing.T) {
	t.Parallel()

	s := report.Aggregate(sampleSnapshot())

	var buf bytes.Buffer

	require.NoError(t, report.Render(&buf, s, "text"))

	out := buf.String()
	assert.Contains(t, out, "files: 3")
	assert.Contains(t, out, "completed batches")
	assert.Contains(t, out, "failed batches")
}

func TestRender_YAML(t *testing.T) {
	t.Parallel()

	s := report.Aggregate(sampleSnapshot())

	var buf bytes.Buffer

	require.NoError(t, report.Render(&buf, s, "yaml"))
	assert.Contains(t, buf.String(), "total_files: 3")
}

func TestPersistWorkerMemory_WritesTimelineJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ts := time.Now()
	timeline := []memsample.Sample{
		{Timestamp: ts, PID: 123, RSSBytes: 1000},
		{Timestamp: ts.Add(time.Second), PID: 123, RSSBytes: 2000},
	}

	require.NoError(t, report.PersistWorkerMemory(dir, 7, timeline))

	data, err := os.ReadFile(filepath.Join(dir, "worker-7-memory.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"rss_bytes": 2000`)
}

func TestPersistWorkerMemory_NilTimelineWritesEmptyArray(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, report.PersistWorkerMemory(dir, 1, nil))

	data, err := os.ReadFile(filepath.Join(dir, "worker-1-memory.json"))
	require.NoError(t, err)
	assert.JSONEq(t, "[]", string(data))
}

func TestPersistWorkerResults_WritesOpaqueJSONVerbatim(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	require.NoError(t, report.PersistWorkerResults(dir, 3, []byte(`{"issues":[1,2]}`)))

	data, err := os.ReadFile(filepath.Join(dir, "worker-3-results.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"issues":[1,2]}`, string(data))
}

func TestPersistMasterMemory_WritesTimelineJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	timeline := []memsample.Sample{{RSSBytes: 4096}}

	require.NoError(t, report.PersistMasterMemory(dir, timeline))

	data, err := os.ReadFile(filepath.Join(dir, "master-memory.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "4096")
}

func TestRender_UnknownFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := report.Render(&buf, report.Summary{}, "xml")
	require.Error(t, err)
}
