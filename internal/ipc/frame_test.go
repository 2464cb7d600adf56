package ipc_test

import (
	"bufio"
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvid-systems/lintsched/internal/ipc"
)

func TestWriteReadFrame_RoundTrip(t *testing.T) {
	t.Parallel()

	payload, err := ipc.EncodeLint(ipc.LintPayload{BatchID: 3, Files: []string{"a.go", "b.go"}})
	require.NoError(t, err)

	var buf bytes.Buffer

	require.NoError(t, ipc.WriteFrame(&buf, payload))

	got, err := ipc.ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, ipc.KindLint, got.Kind)

	decoded, err := ipc.DecodeLint(got)
	require.NoError(t, err)
	assert.Equal(t, 3, decoded.BatchID)
	assert.Equal(t, []string{"a.go", "b.go"}, decoded.Files)
}

func TestReadFrame_PartialAtEOF(t *testing.T) {
	t.Parallel()

	env, err := ipc.EncodeResult(ipc.ResultPayload{BatchID: 1, ErrorCount: 2})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, ipc.WriteFrame(&buf, env))

	truncated := buf.Bytes()[:buf.Len()-1]

	_, err = ipc.ReadFrame(bufio.NewReader(bytes.NewReader(truncated)))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestReadFrame_RejectsOversizedHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := ipc.ReadFrame(bufio.NewReader(&buf))
	assert.ErrorIs(t, err, ipc.ErrFrameTooLarge)
}

func TestEnvelopeRoundTrip_AllKinds(t *testing.T) {
	t.Parallel()

	memEnv, err := ipc.EncodeMemory(ipc.MemoryPayload{BatchID: 4, RSSBytes: 1024})
	require.NoError(t, err)

	decodedMem, err := ipc.DecodeMemory(memEnv)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), decodedMem.RSSBytes)

	errEnv, err := ipc.EncodeError(ipc.ErrorPayload{BatchID: 5, Reason: "oom", Fatal: true})
	require.NoError(t, err)

	decodedErr, err := ipc.DecodeErrorPayload(errEnv)
	require.NoError(t, err)
	assert.True(t, decodedErr.Fatal)
	assert.Equal(t, "oom", decodedErr.Reason)
}
