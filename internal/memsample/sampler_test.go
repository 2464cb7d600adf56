package memsample_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/memsample"
)

func TestTracker_PeakNeverDecreases(t *testing.T) {
	t.Parallel()

	var tr memsample.Tracker

	tr.Observe(memsample.Sample{RSSBytes: 100})
	assert.Equal(t, int64(100), tr.Peak())

	tr.Observe(memsample.Sample{RSSBytes: 50})
	assert.Equal(t, int64(100), tr.Peak(), "peak must not decrease on a lower sample")

	tr.Observe(memsample.Sample{RSSBytes: 200})
	assert.Equal(t, int64(200), tr.Peak())
}

func TestTracker_ZeroValueUsable(t *testing.T) {
	t.Parallel()

	var tr memsample.Tracker
	assert.Equal(t, int64(0), tr.Peak())
	assert.Equal(t, int64(0), tr.Last())
	assert.Empty(t, tr.Timeline())
}

func TestTracker_LastTracksMostRecentSampleNotPeak(t *testing.T) {
	t.Parallel()

	var tr memsample.Tracker

	tr.Observe(memsample.Sample{RSSBytes: 100})
	tr.Observe(memsample.Sample{RSSBytes: 300})
	tr.Observe(memsample.Sample{RSSBytes: 50})

	assert.Equal(t, int64(300), tr.Peak())
	assert.Equal(t, int64(50), tr.Last())
}

func TestTracker_TimelineRecordsEverySampleInOrder(t *testing.T) {
	t.Parallel()

	var tr memsample.Tracker

	tr.Observe(memsample.Sample{RSSBytes: 100})
	tr.Observe(memsample.Sample{RSSBytes: 200})

	timeline := tr.Timeline()
	require.Len(t, timeline, 2)
	assert.Equal(t, int64(100), timeline[0].RSSBytes)
	assert.Equal(t, int64(200), timeline[1].RSSBytes)

	timeline[0].RSSBytes = 999
	assert.Equal(t, int64(100), tr.Timeline()[0].RSSBytes, "Timeline must return a copy, not internal state")
}
