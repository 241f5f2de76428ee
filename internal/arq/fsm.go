// Package arq implements the stop-and-wait sender and receiver state
// machines. The transition logic lives in pure, I/O-free cores
// (senderFSM, receiverFSM) so it can be tested without a channel; the
// Sender and Receiver drivers wire those cores to an endpoint, a chunk
// source, and an output sink.
package arq

import "github.com/swarq-dev/swarq/internal/protocol"

// ---------------------------------------------------------------------------
// Sender core
// ---------------------------------------------------------------------------

// sendOutcome classifies the sender's reaction to one response (or the
// absence of one).
type sendOutcome int

const (
	outcomeAccept sendOutcome = iota // ack accepted, advance to next chunk
	outcomeRetry                     // retransmit the identical packet
	outcomeFail                      // retry budget exhausted, abort transfer
)

// senderFSM is the pure transition core of the sender. It tracks the
// current sequence number and the retry count for the in-flight chunk.
// The sequence space is {0,1} — a structural property of stop-and-wait,
// since only one packet is ever unresolved.
type senderFSM struct {
	seq        uint32
	retries    int
	maxRetries int
}

// onResponse classifies a response packet. Acceptance requires a valid
// checksum AND a sequence number equal to the in-flight one; anything else
// is a retry, exactly as if the response had never arrived.
func (m *senderFSM) onResponse(pkt *protocol.Packet) sendOutcome {
	if !protocol.Verify(pkt) || pkt.Seq != m.seq {
		return m.retry()
	}
	m.retries = 0
	m.seq = 1 - m.seq
	return outcomeAccept
}

// onTimeout handles an expired ack wait.
func (m *senderFSM) onTimeout() sendOutcome {
	return m.retry()
}

func (m *senderFSM) retry() sendOutcome {
	m.retries++
	if m.retries >= m.maxRetries {
		return outcomeFail
	}
	return outcomeRetry
}

// ---------------------------------------------------------------------------
// Receiver core
// ---------------------------------------------------------------------------

// rxKind classifies an inbound packet from the receiver's point of view.
type rxKind int

const (
	rxAccepted  rxKind = iota // expected sequence number, payload deliverable
	rxCorrupted               // checksum mismatch
	rxDuplicate               // unexpected sequence number (retransmitted packet)
)

// rxAction is the receiver core's instruction set for one inbound packet:
// which ack to send, what to deliver, and whether the stream ended. The
// driver performs the actual I/O.
type rxAction struct {
	kind    rxKind
	ackSeq  uint32
	deliver []byte // payload to append to the sink, nil when nothing lands
	final   bool   // finalize the sink and close after acking
}

// receiverFSM is the pure transition core of the receiver.
type receiverFSM struct {
	expected uint32
}

// onPacket computes the action for one decoded inbound packet.
//
// A corrupted packet is answered with an ack for the still-expected
// sequence number and no state change — the ack doubles as a NAK because
// it never advances the counter. A duplicate (wrong sequence number) never
// touches the sink but is re-acked with the other sequence value, so a
// sender whose previous ack was lost gets unstuck. A match delivers the
// payload, acks it, and flips the expectation; a payload shorter than the
// maximum chunk size marks the end of the stream.
func (m *receiverFSM) onPacket(pkt *protocol.Packet) rxAction {
	if !protocol.Verify(pkt) {
		return rxAction{kind: rxCorrupted, ackSeq: m.expected}
	}

	if pkt.Seq != m.expected {
		return rxAction{kind: rxDuplicate, ackSeq: 1 - m.expected}
	}

	act := rxAction{
		kind:    rxAccepted,
		ackSeq:  m.expected,
		deliver: pkt.Payload,
		final:   len(pkt.Payload) < protocol.MaxPayloadSize,
	}
	m.expected = 1 - m.expected
	return act
}
