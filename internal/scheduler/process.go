package scheduler

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/corvid-systems/lintsched/internal/batch"
	"github.com/corvid-systems/lintsched/internal/ipc"
)

// workerFD3, workerFD4 are the file descriptor numbers the worker
// entrypoint expects its IPC pipe ends to be inherited at, per
// os/exec.Cmd.ExtraFiles ordering (fd 3 is the first extra file).
const (
	workerFD3 = 3
	workerFD4 = 4
)

// process wraps one spawned worker's os/exec handle and its
// orchestrator-side IPC channel.
type process struct {
	cmd     *exec.Cmd
	channel *ipc.Channel
	batch   batch.Batch
}

// spawnArgs configures how a worker child process is launched.
type spawnArgs struct {
	SelfExe    string
	Args       []string // e.g. ["worker", "--config=..."]
	Env        []string // additional env vars (e.g. TEST_SCENARIO passthrough)
}

// spawn starts one worker process for b, wiring a dedicated IPC pipe
// pair via ExtraFiles. The worker's inherited stdout/stderr remain free
// for the external analyzer's own diagnostics; the orchestrator never
// parses them.
func spawn(args spawnArgs, b batch.Batch) (*process, error) {
	pipes, err := ipc.NewPipes()
	if err != nil {
		return nil, fmt.Errorf("allocate ipc pipes for batch %d: %w", b.ID, err)
	}

	cmd := exec.Command(args.SelfExe, args.Args...) //nolint:gosec // self-exec with fixed subcommand
	cmd.ExtraFiles = []*os.File{pipes.ToWorkerRead, pipes.FromWorkerWrite}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = append(os.Environ(), args.Env...)

	err = cmd.Start()
	if err != nil {
		closeAll(pipes.ToWorkerRead, pipes.ToWorkerWrite, pipes.FromWorkerRead, pipes.FromWorkerWrite)

		return nil, fmt.Errorf("start worker for batch %d: %w", b.ID, err)
	}

	// The child has its own copies of the inherited ends; the parent's
	// copies of the child-side ends are no longer needed.
	pipes.ToWorkerRead.Close()
	pipes.FromWorkerWrite.Close()

	return &process{
		cmd:     cmd,
		channel: pipes.OrchestratorChannel(),
		batch:   b,
	}, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// reopenWorkerChannel is called from the worker entrypoint to reconstruct
// an ipc.Channel from the inherited extra file descriptors.
func reopenWorkerChannel() *ipc.Channel {
	readEnd := os.NewFile(workerFD3, "lintsched-ipc-in")
	writeEnd := os.NewFile(workerFD4, "lintsched-ipc-out")

	return ipc.NewChannel(readEnd, writeEnd)
}

// ReopenWorkerChannel is the exported entrypoint a worker subcommand
// calls after self-re-exec to reconstruct its IPC channel from the
// file descriptors spawn's ExtraFiles wired in at fd 3 and fd 4.
func ReopenWorkerChannel() *ipc.Channel {
	return reopenWorkerChannel()
}
