package classify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/classify"
	"github.com/corvid-systems/lintsched/internal/ipc"
)

func TestClassify_CooperativeParseError(t *testing.T) {
	t.Parallel()

	class := classify.Classify(classify.Outcome{
		ErrorFrame: &ipc.ErrorPayload{Reason: "parse_error"},
	})

	assert.Equal(t, classify.ClassParseError, class)
}

func TestClassify_CooperativeRuleCrash(t *testing.T) {
	t.Parallel()

	class := classify.Classify(classify.Outcome{
		ErrorFrame: &ipc.ErrorPayload{Reason: "rule_crash"},
	})

	assert.Equal(t, classify.ClassRuleCrash, class)
}

func TestClassify_UnrecognizedReasonIsUnknown(t *testing.T) {
	t.Parallel()

	class := classify.Classify(classify.Outcome{
		ErrorFrame: &ipc.ErrorPayload{Reason: "something else entirely"},
	})

	assert.Equal(t, classify.ClassUnknown, class)
}

func TestClassify_NoFrameNoExitStateIsUnknown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, classify.ClassUnknown, classify.Classify(classify.Outcome{}))
}

func TestRecover_OOMBisectsWithinRetryBudget(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"a.go", "b.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassOOM, "", b, 2, ids)
	require.False(t, decision.GiveUp)
	require.Nil(t, decision.Isolated)
	require.Len(t, decision.Retry, 2)
	assert.Equal(t, 1, decision.Retry[0].Depth)
}

func TestRecover_OOMGivesUpAtMaxDepth(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"a.go", "b.go"}, Depth: 2}

	decision := classify.Recover(classify.ClassOOM, "", b, 2, ids)
	assert.True(t, decision.GiveUp)
	assert.Nil(t, decision.Retry)
}

func TestRecover_OOMGivesUpOnSingleFileBatch(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"only.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassOOM, "", b, 2, ids)
	assert.True(t, decision.GiveUp)
	assert.Nil(t, decision.Retry)
}

func TestRecover_ParseErrorWithFileIsolatesThatFileOnly(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"good.go", "bad.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassParseError, "bad.go", b, 2, ids)
	require.False(t, decision.GiveUp)
	require.Nil(t, decision.Retry)
	require.NotNil(t, decision.Isolated)
	assert.Equal(t, "bad.go", decision.Isolated.File)
	assert.Equal(t, []string{"good.go"}, decision.Isolated.RemainingFiles)
}

func TestRecover_ParseErrorWithoutFileFailsWholeBatchNoRetry(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"a.go", "b.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassParseError, "", b, 2, ids)
	assert.True(t, decision.GiveUp)
	assert.Nil(t, decision.Retry)
	assert.Nil(t, decision.Isolated)
}

func TestRecover_RuleCrashFailsWholeBatchNoRetry(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"a.go", "b.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassRuleCrash, "", b, 2, ids)
	assert.True(t, decision.GiveUp)
	assert.Nil(t, decision.Retry)
}

func TestRecover_UnknownFailsWholeBatchNoRetry(t *testing.T) {
	t.Parallel()

	ids := batch.NewIDCounter()
	b := batch.Batch{ID: ids.Next(), Files: []string{"a.go", "b.go"}, Depth: 0}

	decision := classify.Recover(classify.ClassUnknown, "", b, 2, ids)
	assert.True(t, decision.GiveUp)
	assert.Nil(t, decision.Retry)
}
