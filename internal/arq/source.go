package arq

import (
	"bytes"
	"errors"
	"io"

	"github.com/swarq-dev/swarq/internal/protocol"
)

// ChunkSource supplies the ordered chunks of one transfer. Next returns
// io.EOF after the final chunk; every chunk must be at most
// protocol.MaxPayloadSize bytes. Reset rewinds to the start so a source
// can feed a fresh transfer.
type ChunkSource interface {
	Next() ([]byte, error)
	Reset() error
}

// OutputSink receives the reconstructed byte stream, in order. It is owned
// exclusively by one Receiver for the duration of a transfer.
type OutputSink interface {
	Append(p []byte) error
	Finalize() error
}

// ---------------------------------------------------------------------------
// In-memory implementations
// ---------------------------------------------------------------------------

// BytesSource splits a byte slice into fixed-size chunks.
type BytesSource struct {
	data      []byte
	chunkSize int
	off       int
}

// NewBytesSource creates a source over data. A chunkSize outside
// (0, protocol.MaxPayloadSize] is clamped to the maximum.
func NewBytesSource(data []byte, chunkSize int) *BytesSource {
	if chunkSize <= 0 || chunkSize > protocol.MaxPayloadSize {
		chunkSize = protocol.MaxPayloadSize
	}
	return &BytesSource{data: data, chunkSize: chunkSize}
}

func (s *BytesSource) Next() ([]byte, error) {
	if s.off >= len(s.data) {
		return nil, io.EOF
	}
	end := min(s.off+s.chunkSize, len(s.data))
	chunk := s.data[s.off:end]
	s.off = end
	return chunk, nil
}

func (s *BytesSource) Reset() error {
	s.off = 0
	return nil
}

// BufferSink collects delivered bytes in memory.
type BufferSink struct {
	buf       bytes.Buffer
	finalized bool
}

func (b *BufferSink) Append(p []byte) error {
	if b.finalized {
		return errors.New("sink already finalized")
	}
	_, err := b.buf.Write(p)
	return err
}

func (b *BufferSink) Finalize() error {
	b.finalized = true
	return nil
}

// Bytes returns everything appended so far.
func (b *BufferSink) Bytes() []byte { return b.buf.Bytes() }

// Finalized reports whether Finalize has been called.
func (b *BufferSink) Finalized() bool { return b.finalized }
