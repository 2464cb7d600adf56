package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/analyzer"
	"github.com/corvid-systems/lintsched/internal/ipc"
	"github.com/corvid-systems/lintsched/internal/memsample"
	"github.com/corvid-systems/lintsched/internal/worker"
)

// fakeSampler avoids depending on /proc in unit tests.
type fakeSampler struct{}

func (fakeSampler) Sample(_ context.Context, pid int) (memsample.Sample, error) {
	return memsample.Sample{PID: pid, RSSBytes: 1024}, nil
}

func TestDriver_Run_ReportsResultOnSuccess(t *testing.T) {
	t.Parallel()

	pipes, err := ipc.NewPipes()
	require.NoError(t, err)

	orchestrator := pipes.OrchestratorChannel()
	workerSide := pipes.WorkerChannel()

	d := worker.Driver{
		Channel: workerSide,
		Injector: worker.Injection{
			Inner:    analyzer.FixtureAnalyzer{Result: analyzer.Result{ErrorCount: 3, WarningCount: 1}},
			Scenario: worker.ScenarioNone,
		},
		Sampler: fakeSampler{},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(context.Background()) }()

	env, err := ipc.EncodeLint(ipc.LintPayload{BatchID: 5, Files: []string{"a.go"}})
	require.NoError(t, err)
	require.NoError(t, orchestrator.Send(env))

	var resultEnv ipc.Envelope

	for {
		resultEnv, err = orchestrator.Recv()
		require.NoError(t, err)

		if resultEnv.Kind == ipc.KindResult {
			break
		}
	}

	result, err := ipc.DecodeResult(resultEnv)
	require.NoError(t, err)
	assert.Equal(t, 3, result.ErrorCount)
	assert.Equal(t, 1, result.WarningCount)

	select {
	case runErr := <-errCh:
		assert.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not return")
	}
}

func TestDriver_Run_ReportsErrorOnInjectedParseError(t *testing.T) {
	t.Parallel()

	pipes, err := ipc.NewPipes()
	require.NoError(t, err)

	orchestrator := pipes.OrchestratorChannel()
	workerSide := pipes.WorkerChannel()

	d := worker.Driver{
		Channel: workerSide,
		Injector: worker.Injection{
			Inner:    analyzer.FixtureAnalyzer{},
			Scenario: worker.ScenarioParseError,
		},
		Sampler: fakeSampler{},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(context.Background()) }()

	env, err := ipc.EncodeLint(ipc.LintPayload{BatchID: 8, Files: []string{"bad.go"}})
	require.NoError(t, err)
	require.NoError(t, orchestrator.Send(env))

	var errorEnv ipc.Envelope

	for {
		errorEnv, err = orchestrator.Recv()
		require.NoError(t, err)

		if errorEnv.Kind == ipc.KindError {
			break
		}
	}

	payload, err := ipc.DecodeErrorPayload(errorEnv)
	require.NoError(t, err)
	assert.Equal(t, "parse_error", payload.Reason)
	assert.True(t, payload.Fatal)

	select {
	case runErr := <-errCh:
		assert.Error(t, runErr)
		assert.NotErrorIs(t, runErr, worker.ErrChannelFailure, "a successfully delivered error frame is not a channel failure")
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not return")
	}
}

func TestDriver_Run_ReportsAttributedFileOnTargetedParseError(t *testing.T) {
	t.Parallel()

	pipes, err := ipc.NewPipes()
	require.NoError(t, err)

	orchestrator := pipes.OrchestratorChannel()
	workerSide := pipes.WorkerChannel()

	d := worker.Driver{
		Channel: workerSide,
		Injector: worker.Injection{
			Inner:      analyzer.FixtureAnalyzer{},
			Scenario:   worker.ScenarioParseError,
			TargetFile: "bad.go",
		},
		Sampler: fakeSampler{},
	}

	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(context.Background()) }()

	env, err := ipc.EncodeLint(ipc.LintPayload{BatchID: 9, Files: []string{"good.go", "bad.go"}})
	require.NoError(t, err)
	require.NoError(t, orchestrator.Send(env))

	var errorEnv ipc.Envelope

	for {
		errorEnv, err = orchestrator.Recv()
		require.NoError(t, err)

		if errorEnv.Kind == ipc.KindError {
			break
		}
	}

	payload, err := ipc.DecodeErrorPayload(errorEnv)
	require.NoError(t, err)
	assert.Equal(t, "parse_error", payload.Reason)
	assert.Equal(t, "bad.go", payload.File)

	select {
	case runErr := <-errCh:
		assert.Error(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("driver did not return")
	}
}

func TestDriver_Run_ClosedChannelIsAChannelFailure(t *testing.T) {
	t.Parallel()

	pipes, err := ipc.NewPipes()
	require.NoError(t, err)

	workerSide := pipes.WorkerChannel()

	d := worker.Driver{
		Channel: workerSide,
		Injector: worker.Injection{
			Inner:    analyzer.FixtureAnalyzer{},
			Scenario: worker.ScenarioNone,
		},
		Sampler: fakeSampler{},
	}

	// Close the orchestrator's write end without ever sending a task, so
	// the worker's awaitTask blocks on a pipe that will only ever report
	// EOF, never a KindLint frame.
	require.NoError(t, pipes.ToWorkerWrite.Close())

	err = d.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, worker.ErrChannelFailure)
}
