package link

import (
	"context"
	"sync"
)

// pipeBufferSize is the per-direction datagram buffer. Stop-and-wait never
// has more than one packet in flight per direction, so a small buffer only
// exists to decouple the two goroutines.
const pipeBufferSize = 8

// PipeEnd is one side of an in-memory datagram pair.
type PipeEnd struct {
	out       chan []byte
	in        chan []byte
	done      chan struct{}
	peerDone  chan struct{}
	closeOnce *sync.Once
}

// Pipe creates a linked pair of in-memory link ends. A datagram sent on one
// end is received on the other. Closing either end unblocks both sides.
func Pipe() (a, b *PipeEnd) {
	ab := make(chan []byte, pipeBufferSize)
	ba := make(chan []byte, pipeBufferSize)
	aDone := make(chan struct{})
	bDone := make(chan struct{})
	a = &PipeEnd{out: ab, in: ba, done: aDone, peerDone: bDone, closeOnce: &sync.Once{}}
	b = &PipeEnd{out: ba, in: ab, done: bDone, peerDone: aDone, closeOnce: &sync.Once{}}
	return a, b
}

// Send delivers one datagram to the peer end. The payload is copied so the
// caller may reuse its buffer immediately.
func (p *PipeEnd) Send(ctx context.Context, data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return ErrClosed
	default:
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	select {
	case p.out <- buf:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks until a datagram arrives, the link closes, or ctx is done.
func (p *PipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, ErrClosed
	case <-p.peerDone:
		// Drain anything the peer sent before closing.
		select {
		case data := <-p.in:
			return data, nil
		default:
			return nil, ErrClosed
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close shuts down this end. Safe to call multiple times.
func (p *PipeEnd) Close() error {
	p.closeOnce.Do(func() { close(p.done) })
	return nil
}
