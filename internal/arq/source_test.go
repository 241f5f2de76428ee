package arq

import (
	"bytes"
	"io"
	"testing"

	"github.com/swarq-dev/swarq/internal/protocol"
)

// TestBytesSourceChunking verifies chunk sizes and ordering for inputs
// around the chunk boundary.
func TestBytesSourceChunking(t *testing.T) {
	testCases := []struct {
		name      string
		size      int
		chunkSize int
		wantLens  []int
	}{
		{"empty input", 0, 10, nil},
		{"single partial chunk", 7, 10, []int{7}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder", 25, 10, []int{10, 10, 5}},
		{"default chunk size", protocol.MaxPayloadSize + 1, 0, []int{protocol.MaxPayloadSize, 1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data := make([]byte, tc.size)
			for i := range data {
				data[i] = byte(i)
			}
			src := NewBytesSource(data, tc.chunkSize)

			var got []byte
			var lens []int
			for {
				chunk, err := src.Next()
				if err == io.EOF {
					break
				}
				if err != nil {
					t.Fatalf("Next failed: %v", err)
				}
				lens = append(lens, len(chunk))
				got = append(got, chunk...)
			}

			if len(lens) != len(tc.wantLens) {
				t.Fatalf("chunk count = %d, want %d", len(lens), len(tc.wantLens))
			}
			for i := range lens {
				if lens[i] != tc.wantLens[i] {
					t.Errorf("chunk %d length = %d, want %d", i, lens[i], tc.wantLens[i])
				}
			}
			if !bytes.Equal(got, data) {
				t.Error("concatenated chunks differ from the input")
			}
		})
	}
}

// TestBytesSourceReset verifies a source restarts from the beginning.
func TestBytesSourceReset(t *testing.T) {
	src := NewBytesSource([]byte("abcdef"), 4)

	first, _ := src.Next()
	if err := src.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	again, _ := src.Next()

	if !bytes.Equal(first, again) {
		t.Errorf("after Reset got %q, want %q", again, first)
	}
}

// TestBufferSinkRejectsAppendAfterFinalize pins the sink's append-only
// lifecycle.
func TestBufferSinkRejectsAppendAfterFinalize(t *testing.T) {
	sink := &BufferSink{}

	if err := sink.Append([]byte("ok")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := sink.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if !sink.Finalized() {
		t.Error("Finalized() = false after Finalize")
	}
	if err := sink.Append([]byte("late")); err == nil {
		t.Error("Append after Finalize should fail")
	}
	if !bytes.Equal(sink.Bytes(), []byte("ok")) {
		t.Errorf("sink content = %q, want %q", sink.Bytes(), "ok")
	}
}
