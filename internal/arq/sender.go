package arq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/swarq-dev/swarq/internal/channel"
	"github.com/swarq-dev/swarq/internal/protocol"
	"github.com/swarq-dev/swarq/internal/util"
)

// Default sender tuning.
const (
	DefaultAckTimeout = 2000 * time.Millisecond
	DefaultMaxRetries = 5
)

// ErrRetryExhausted is returned by Sender.Run when one chunk used up its
// whole retry budget. The transfer is not resumable; later chunks are
// never attempted.
var ErrRetryExhausted = errors.New("retry budget exhausted")

// SenderConfig tunes a sender. Zero values fall back to the defaults.
type SenderConfig struct {
	AckTimeout time.Duration // wait per transmission attempt
	MaxRetries int           // total attempts per chunk before aborting
}

// Sender drives a chunk source through the channel, one unacknowledged
// packet at a time. It owns the source exclusively for the duration of
// the transfer.
type Sender struct {
	cfg   SenderConfig
	ep    *channel.Endpoint
	src   ChunkSource
	clock channel.Clock

	fsm     senderFSM
	Metrics SenderMetrics
}

// NewSender creates a sender over the given endpoint and chunk source.
// A nil clock means the system clock.
func NewSender(ep *channel.Endpoint, src ChunkSource, clock channel.Clock, cfg SenderConfig) *Sender {
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = DefaultAckTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if clock == nil {
		clock = channel.SystemClock{}
	}
	return &Sender{
		cfg:   cfg,
		ep:    ep,
		src:   src,
		clock: clock,
		fsm:   senderFSM{maxRetries: cfg.MaxRetries},
	}
}

// Run transfers the whole stream. It returns nil once every chunk has been
// acknowledged, ErrRetryExhausted (wrapped) when one chunk failed, or the
// underlying error on a transport fault or cancellation. Per-packet faults
// never surface — they are absorbed by the retry loop.
func (s *Sender) Run(ctx context.Context) error {
	// A stream whose final chunk fills the maximum payload is followed by
	// an explicit empty packet, otherwise the receiver could not tell that
	// the stream ended. A short final chunk already carries that signal.
	needMarker := true

	for {
		chunk, err := s.src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("chunk source: %w", err)
		}
		if len(chunk) > protocol.MaxPayloadSize {
			return fmt.Errorf("chunk of %d bytes exceeds maximum payload %d", len(chunk), protocol.MaxPayloadSize)
		}

		if err := s.sendChunk(ctx, chunk); err != nil {
			return err
		}
		needMarker = len(chunk) == protocol.MaxPayloadSize
	}

	if needMarker {
		if err := s.sendChunk(ctx, nil); err != nil {
			return err
		}
	}

	util.LogDebug("sender done: %d chunks accepted, %d retransmissions", s.Metrics.Accepted, s.Metrics.Retransmitted)
	return nil
}

// sendChunk resolves one chunk completely: transmit, await the ack, and
// either advance, retransmit the identical packet, or abort. There is
// never more than one outstanding packet.
func (s *Sender) sendChunk(ctx context.Context, chunk []byte) error {
	pkt := protocol.NewPacket(s.fsm.seq, chunk)

	for {
		if err := s.ep.Transmit(ctx, pkt); err != nil {
			return err
		}
		s.Metrics.Sent++

		outcome, err := s.awaitAck(ctx)
		if err != nil {
			return err
		}

		switch outcome {
		case outcomeAccept:
			s.Metrics.Accepted++
			return nil
		case outcomeFail:
			return fmt.Errorf("chunk seq=%d after %d attempts: %w", pkt.Seq, s.fsm.retries, ErrRetryExhausted)
		case outcomeRetry:
			s.Metrics.Retransmitted++
			util.Stats.AddRetransmit()
			util.LogDebug("retransmitting seq=%d (attempt %d)", pkt.Seq, s.fsm.retries+1)
		}
	}
}

// awaitAck blocks until a response arrives or the ack timeout fires, and
// feeds the result to the state machine. A response that is invalid or
// carries the wrong sequence number resolves this wait immediately — it is
// classified exactly like a timeout.
func (s *Sender) awaitAck(ctx context.Context) (sendOutcome, error) {
	timeout := s.clock.After(s.cfg.AckTimeout)

	select {
	case pkt := <-s.ep.Inbox():
		return s.fsm.onResponse(pkt), nil
	case <-timeout:
		s.Metrics.Timeouts++
		return s.fsm.onTimeout(), nil
	case <-ctx.Done():
		return outcomeFail, ctx.Err()
	}
}
