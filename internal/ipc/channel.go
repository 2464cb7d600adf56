package ipc

import (
	"bufio"
	"fmt"
	"os"
)

// Channel wraps one end of a dedicated bidirectional IPC pipe pair,
// distinct from the worker's inherited stdout/stderr (which remain free
// for the external analyzer's own diagnostic output).
type Channel struct {
	r *bufio.Reader
	w *os.File
}

// NewChannel wraps an already-open read and write file pair.
func NewChannel(readEnd, writeEnd *os.File) *Channel {
	return &Channel{r: bufio.NewReader(readEnd), w: writeEnd}
}

// Send writes env as one frame.
func (c *Channel) Send(env Envelope) error {
	err := WriteFrame(c.w, env)
	if err != nil {
		return fmt.Errorf("ipc channel send: %w", err)
	}

	return nil
}

// Recv blocks for the next frame.
func (c *Channel) Recv() (Envelope, error) {
	return ReadFrame(c.r)
}

// Pipes holds both ends of the two pipes needed for a full-duplex channel:
// one for orchestrator -> worker, one for worker -> orchestrator.
type Pipes struct {
	ToWorkerRead, ToWorkerWrite   *os.File
	FromWorkerRead, FromWorkerWrite *os.File
}

// NewPipes allocates both pipe pairs for one worker.
func NewPipes() (Pipes, error) {
	toR, toW, err := os.Pipe()
	if err != nil {
		return Pipes{}, fmt.Errorf("create orchestrator->worker pipe: %w", err)
	}

	fromR, fromW, err := os.Pipe()
	if err != nil {
		toR.Close()
		toW.Close()

		return Pipes{}, fmt.Errorf("create worker->orchestrator pipe: %w", err)
	}

	return Pipes{
		ToWorkerRead:    toR,
		ToWorkerWrite:   toW,
		FromWorkerRead:  fromR,
		FromWorkerWrite: fromW,
	}, nil
}

// OrchestratorChannel returns the Channel the orchestrator uses to talk to
// the worker these pipes were created for. The child's ends
// (ToWorkerRead, FromWorkerWrite) are not part of it; the caller passes
// them to the child process via os/exec.Cmd.ExtraFiles.
func (p Pipes) OrchestratorChannel() *Channel {
	return NewChannel(p.FromWorkerRead, p.ToWorkerWrite)
}

// WorkerChannel returns the Channel a worker process uses once it has
// re-opened its inherited extra file descriptors.
func (p Pipes) WorkerChannel() *Channel {
	return NewChannel(p.ToWorkerRead, p.FromWorkerWrite)
}
