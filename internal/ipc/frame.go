package ipc

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/corvid-systems/lintsched/pkg/units"
)

// MaxFrameBytes bounds a single frame's JSON payload length, guarding
// against an unbounded read if a frame header is corrupted.
const MaxFrameBytes = 64 * units.MiB

// frameHeaderSize is the width of the length prefix, in bytes.
const frameHeaderSize = 4

// ErrFrameTooLarge is returned when a frame's declared length exceeds MaxFrameBytes.
var ErrFrameTooLarge = errors.New("ipc: frame exceeds maximum size")

// WriteFrame writes env to w as a 4-byte big-endian length prefix followed
// by its JSON encoding.
func WriteFrame(w io.Writer, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	if len(body) > MaxFrameBytes {
		return ErrFrameTooLarge
	}

	var header [frameHeaderSize]byte

	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	_, err = w.Write(header[:])
	if err != nil {
		return fmt.Errorf("write frame header: %w", err)
	}

	_, err = w.Write(body)
	if err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}

	return nil
}

// ReadFrame reads one length-delimited frame from r and decodes it as an
// Envelope. A partial frame at EOF surfaces as io.ErrUnexpectedEOF, which
// callers should treat as the peer having died mid-write rather than a
// codec defect.
func ReadFrame(r *bufio.Reader) (Envelope, error) {
	var header [frameHeaderSize]byte

	_, err := io.ReadFull(r, header[:])
	if err != nil {
		return Envelope{}, wrapReadErr(err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameBytes {
		return Envelope{}, ErrFrameTooLarge
	}

	body := make([]byte, length)

	_, err = io.ReadFull(r, body)
	if err != nil {
		return Envelope{}, wrapReadErr(err)
	}

	var env Envelope

	err = json.Unmarshal(body, &env)
	if err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}

	return env, nil
}

func wrapReadErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return io.ErrUnexpectedEOF
	}

	return fmt.Errorf("read frame: %w", err)
}
