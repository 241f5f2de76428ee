package arq

import (
	"context"
	"fmt"
	"time"

	"github.com/swarq-dev/swarq/internal/channel"
	"github.com/swarq-dev/swarq/internal/protocol"
	"github.com/swarq-dev/swarq/internal/util"
)

// Default receiver tuning.
const (
	// DefaultIdleTimeout is how long the receiver waits without any inbound
	// packet before closing itself. A safety net against a sender that never
	// starts or dies mid-transfer.
	DefaultIdleTimeout = 30000 * time.Millisecond

	// DefaultDrainTimeout is the quiet window after the final chunk during
	// which the receiver keeps re-acking retransmissions. Without it, a
	// lost final ack would strand the sender against a closed peer.
	DefaultDrainTimeout = 2000 * time.Millisecond
)

// ReceiverState is the receiver's coarse lifecycle state.
type ReceiverState int

const (
	ReceiverListening ReceiverState = iota
	ReceiverDraining
	ReceiverClosed
)

// ReceiverConfig tunes a receiver. Zero values fall back to the defaults.
type ReceiverConfig struct {
	IdleTimeout  time.Duration
	DrainTimeout time.Duration
}

// Receiver consumes packets from the channel, reconstructs the ordered
// byte stream into its sink, and drives acknowledgment traffic. Packets
// are processed strictly one at a time against the receiver's state.
type Receiver struct {
	cfg   ReceiverConfig
	ep    *channel.Endpoint
	sink  OutputSink
	clock channel.Clock

	fsm     receiverFSM
	state   ReceiverState
	Metrics ReceiverMetrics
}

// NewReceiver creates a receiver writing to sink. The sink is owned
// exclusively by the receiver until Run returns. A nil clock means the
// system clock.
func NewReceiver(ep *channel.Endpoint, sink OutputSink, clock channel.Clock, cfg ReceiverConfig) *Receiver {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if clock == nil {
		clock = channel.SystemClock{}
	}
	return &Receiver{cfg: cfg, ep: ep, sink: sink, clock: clock}
}

// State returns the receiver's current lifecycle state.
func (r *Receiver) State() ReceiverState { return r.state }

// Run listens until the stream ends, the idle window expires, or ctx is
// cancelled. Datagrams that failed to decode never reach this loop — the
// endpoint drops them silently and the sender's timeout covers recovery.
// Only sink and transport faults surface as errors.
func (r *Receiver) Run(ctx context.Context) error {
	defer func() { r.state = ReceiverClosed }()

	for {
		idle := r.clock.After(r.cfg.IdleTimeout)

		select {
		case pkt := <-r.ep.Inbox():
			done, err := r.handle(ctx, pkt)
			if err != nil {
				return err
			}
			if done {
				if err := r.drain(ctx); err != nil {
					return err
				}
				util.LogDebug("receiver done: %d packets received, %d duplicates, %d corrupted",
					r.Metrics.Received, r.Metrics.Duplicates, r.Metrics.Corrupted)
				return nil
			}

		case <-idle:
			util.LogWarning("no packets for %v, closing receiver", r.cfg.IdleTimeout)
			return r.sink.Finalize()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// handle runs one packet through the state machine and performs the
// resulting I/O: sink append, ack transmission, finalization.
func (r *Receiver) handle(ctx context.Context, pkt *protocol.Packet) (bool, error) {
	r.Metrics.Received++

	act := r.fsm.onPacket(pkt)
	switch act.kind {
	case rxCorrupted:
		r.Metrics.Corrupted++
		util.LogDebug("checksum mismatch on seq=%d, re-acking expected=%d", pkt.Seq, act.ackSeq)
	case rxDuplicate:
		r.Metrics.Duplicates++
		util.LogDebug("duplicate seq=%d, re-acking %d", pkt.Seq, act.ackSeq)
	case rxAccepted:
		if len(act.deliver) > 0 {
			if err := r.sink.Append(act.deliver); err != nil {
				return false, fmt.Errorf("output sink: %w", err)
			}
		}
		if act.final {
			r.state = ReceiverDraining
		}
	}

	// Every decodable packet is answered, including corrupted and duplicate
	// ones. The ack passes through the same fault trial as data traffic.
	if err := r.ep.Transmit(ctx, protocol.NewAck(act.ackSeq)); err != nil {
		return false, err
	}
	r.Metrics.Acked++

	if act.kind == rxAccepted && act.final {
		if err := r.sink.Finalize(); err != nil {
			return false, fmt.Errorf("output sink: %w", err)
		}
		return true, nil
	}
	return false, nil
}

// drain keeps re-acking retransmissions for a quiet window after the
// stream ended. The sink is finalized by now and is never touched again;
// this only exists so a sender whose final ack was lost can still finish.
func (r *Receiver) drain(ctx context.Context) error {
	for {
		quiet := r.clock.After(r.cfg.DrainTimeout)

		select {
		case pkt := <-r.ep.Inbox():
			r.Metrics.Received++

			act := r.fsm.onPacket(pkt)
			switch act.kind {
			case rxCorrupted:
				r.Metrics.Corrupted++
			case rxDuplicate:
				r.Metrics.Duplicates++
			case rxAccepted:
				// The stream is over — nothing new is accepted, but the ack
				// still goes out so the peer is not left hanging.
				util.LogDebug("post-stream packet seq=%d while draining", pkt.Seq)
			}

			if err := r.ep.Transmit(ctx, protocol.NewAck(act.ackSeq)); err != nil {
				return err
			}
			r.Metrics.Acked++

		case <-quiet:
			return nil

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
