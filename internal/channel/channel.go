// Package channel implements the fault-injecting transport between the two
// protocol state machines. Each transmission is an independent random
// trial: the packet may be delayed, dropped, or delivered with a corrupted
// checksum according to the channel's Config.
package channel

import (
	"context"
	"fmt"

	"github.com/swarq-dev/swarq/internal/link"
	"github.com/swarq-dev/swarq/internal/protocol"
	"github.com/swarq-dev/swarq/internal/util"
)

// inboxBufferSize is the capacity of an endpoint's inbound packet channel.
// Stop-and-wait keeps at most one packet in flight per direction, so this
// only decouples the reader goroutine from the consumer.
const inboxBufferSize = 8

// Channel applies fault injection to packets. It holds no state besides its
// configuration and seams, so one Channel may serve any number of
// concurrent transfers.
type Channel struct {
	cfg   Config
	clock Clock
	rng   Rand
}

// New creates a Channel with the given configuration. A nil clock or rng
// falls back to the system clock and the process-wide random source.
func New(cfg Config, clock Clock, rng Rand) *Channel {
	if clock == nil {
		clock = SystemClock{}
	}
	if rng == nil {
		rng = DefaultRand
	}
	return &Channel{cfg: cfg, clock: clock, rng: rng}
}

// Config returns the channel's (immutable) configuration.
func (c *Channel) Config() Config { return c.cfg }

// Transmit runs one fault trial for the given packet. It returns the
// delivered packet, or nil when the packet was lost — loss is silent by
// design, since on a real datagram network it is indistinguishable from
// the peer never sending. The error is non-nil only when ctx is cancelled
// during the simulated delay.
//
// Corruption delivers a copy whose checksum field is damaged by a random
// nonzero offset, so the copy never verifies; the sequence number and
// payload are left intact, and the caller's packet is never mutated.
func (c *Channel) Transmit(ctx context.Context, pkt *protocol.Packet) (*protocol.Packet, error) {
	if c.cfg.Delay > 0 {
		if err := c.clock.Sleep(ctx, c.cfg.Delay); err != nil {
			return nil, err
		}
	}

	if c.rng.Float64() < c.cfg.Loss {
		return nil, nil
	}

	if c.rng.Float64() < c.cfg.Corruption {
		corrupted := pkt.Clone()
		// Offset in [1, 255]: the damaged checksum must differ from the
		// real one, or the "corrupted" packet would pass verification.
		corrupted.Checksum = uint16(byte(pkt.Checksum) + 1 + c.rng.Byte()%255)
		return corrupted, nil
	}

	return pkt, nil
}

// IsValid reports whether a delivered packet passes checksum verification.
// A nil (lost) packet is always invalid.
func IsValid(pkt *protocol.Packet) bool {
	return protocol.Verify(pkt)
}

// ---------------------------------------------------------------------------
// Endpoint
// ---------------------------------------------------------------------------

// Endpoint binds a Channel to one end of a link. Outbound packets pass
// through the fault trial before hitting the wire; inbound datagrams are
// decoded by a reader goroutine into the inbox. Datagrams that fail to
// decode are dropped without acknowledgment — the peer's timeout handles
// them.
type Endpoint struct {
	ch    *Channel
	ln    link.Link
	inbox chan *protocol.Packet
}

// NewEndpoint creates an Endpoint and starts its reader goroutine. The
// reader exits when ctx is cancelled or the link closes.
func NewEndpoint(ctx context.Context, ch *Channel, ln link.Link) *Endpoint {
	e := &Endpoint{
		ch:    ch,
		ln:    ln,
		inbox: make(chan *protocol.Packet, inboxBufferSize),
	}
	go e.readLoop(ctx)
	return e
}

// Transmit runs the fault trial and, when the packet survives, encodes and
// sends it over the link. A lost packet returns nil — the caller observes
// it only as a missing response. A link send failure is a real transport
// fault and is returned as an error.
func (e *Endpoint) Transmit(ctx context.Context, pkt *protocol.Packet) error {
	delivered, err := e.ch.Transmit(ctx, pkt)
	if err != nil {
		return err
	}
	if delivered == nil {
		util.Stats.AddLost()
		util.LogDebug("channel dropped packet (seq=%d, len=%d)", pkt.Seq, pkt.TotalLength)
		return nil
	}

	data := protocol.Encode(delivered)
	if err := e.ln.Send(ctx, data); err != nil {
		return fmt.Errorf("link send failed: %w", err)
	}
	util.Stats.AddSent(len(data))
	return nil
}

// Inbox returns the channel of decoded inbound packets.
func (e *Endpoint) Inbox() <-chan *protocol.Packet { return e.inbox }

// Close closes the underlying link, which also stops the reader goroutine.
func (e *Endpoint) Close() error { return e.ln.Close() }

// readLoop receives datagrams, decodes them, and feeds the inbox.
func (e *Endpoint) readLoop(ctx context.Context) {
	for {
		data, err := e.ln.Recv(ctx)
		if err != nil {
			return
		}
		util.Stats.AddRecv(len(data))

		pkt, err := protocol.Decode(data)
		if err != nil {
			util.LogDebug("dropping undecodable datagram: %v", err)
			continue
		}

		select {
		case e.inbox <- pkt:
		case <-ctx.Done():
			return
		}
	}
}
