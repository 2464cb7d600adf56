package batch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/batch"
)

func TestInitialPartition_ConservesFiles(t *testing.T) {
	t.Parallel()

	files := []string{"a.go", "b.go", "c.go", "d.go", "e.go"}
	ids := batch.NewIDCounter()

	batches := batch.InitialPartition(files, 2, ids)

	require.Len(t, batches, 3)
	assert.Equal(t, len(files), batch.TotalFiles(batches))
	assert.Equal(t, []string{"a.go", "b.go"}, batches[0].Files)
	assert.Equal(t, []string{"e.go"}, batches[2].Files)
}

func TestInitialPartition_MonotonicIDs(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	batches := batch.InitialPartition([]string{"a", "b", "c"}, 1, ids)

	require.Len(t, batches, 3)
	assert.Equal(t, 1, batches[0].ID)
	assert.Equal(t, 2, batches[1].ID)
	assert.Equal(t, 3, batches[2].ID)
}

func TestBisect_SplitsWithoutLosingFiles(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	parent := batch.Batch{ID: ids.Next(), Files: []string{"a", "b", "c"}, Depth: 1}

	front, back, err := batch.Bisect(parent, ids)
	require.NoError(t, err)

	assert.Equal(t, parent.ID, front.ParentID)
	assert.Equal(t, parent.ID, back.ParentID)
	assert.Equal(t, 2, front.Depth)
	assert.Equal(t, 2, back.Depth)
	assert.NotEqual(t, front.ID, back.ID)

	combined := append(append([]string{}, front.Files...), back.Files...)
	assert.ElementsMatch(t, parent.Files, combined)
	assert.NotEmpty(t, front.Files)
	assert.NotEmpty(t, back.Files)
}

func TestBisect_RejectsSingleFileBatch(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	single := batch.Batch{ID: ids.Next(), Files: []string{"only.go"}}

	_, _, err := batch.Bisect(single, ids)
	assert.ErrorIs(t, err, batch.ErrBatchNotBisectable)
}

func TestBisect_RejectsEmptyBatch(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()

	_, _, err := batch.Bisect(batch.Batch{ID: ids.Next()}, ids)
	assert.ErrorIs(t, err, batch.ErrBatchNotBisectable)
}

func TestComputeBatchSize_DividesAndRoundsUp(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 25, batch.ComputeBatchSize(100, 4))
	assert.Equal(t, 1, batch.ComputeBatchSize(3, 4))
	assert.Equal(t, 4, batch.ComputeBatchSize(10, 3))
}

func TestComputeBatchSize_ZeroFilesIsStillOneBatchSize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, batch.ComputeBatchSize(0, 4))
}

func TestComputeBatchSize_NonPositiveDivisorTreatedAsOne(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 7, batch.ComputeBatchSize(7, 0))
	assert.Equal(t, 7, batch.ComputeBatchSize(7, -3))
}
