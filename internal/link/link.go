// Package link abstracts the datagram carrier underneath the channel:
// an in-memory pipe for in-process transfers and tests, or a WebRTC
// DataChannel for transfers between two processes.
package link

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send and Recv once a link has been closed.
var ErrClosed = errors.New("link closed")

// Link is a bidirectional, unreliable, message-oriented carrier.
// Send hands one datagram to the other side; Recv blocks for the next
// inbound datagram. Neither delivery nor ordering is guaranteed —
// reliability is the job of the layer above.
type Link interface {
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}
