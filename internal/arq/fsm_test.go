package arq

import (
	"bytes"
	"testing"

	"github.com/swarq-dev/swarq/internal/protocol"
)

// corruptedAck builds an ack whose stored checksum is wrong.
func corruptedAck(seq uint32) *protocol.Packet {
	ack := protocol.NewAck(seq)
	ack.Checksum ^= 0xFF
	return ack
}

// TestSenderFSMAcceptance walks the sender core through the acceptance
// rule: only a valid ack carrying the in-flight sequence number advances.
func TestSenderFSMAcceptance(t *testing.T) {
	testCases := []struct {
		name string
		resp *protocol.Packet
		want sendOutcome
	}{
		{"matching valid ack", protocol.NewAck(0), outcomeAccept},
		{"mismatched sequence", protocol.NewAck(1), outcomeRetry},
		{"corrupted ack", corruptedAck(0), outcomeRetry},
		{"lost response", nil, outcomeRetry},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := senderFSM{maxRetries: 5}
			if got := m.onResponse(tc.resp); got != tc.want {
				t.Errorf("onResponse = %v, want %v", got, tc.want)
			}
		})
	}
}

// TestSenderFSMSequenceFlips verifies the alternating-bit behavior across
// consecutive acceptances.
func TestSenderFSMSequenceFlips(t *testing.T) {
	m := senderFSM{maxRetries: 5}

	for i, wantSeq := range []uint32{0, 1, 0, 1} {
		if m.seq != wantSeq {
			t.Fatalf("round %d: seq = %d, want %d", i, m.seq, wantSeq)
		}
		if got := m.onResponse(protocol.NewAck(wantSeq)); got != outcomeAccept {
			t.Fatalf("round %d: onResponse = %v, want accept", i, got)
		}
	}
}

// TestSenderFSMRetryExhaustion verifies the retry budget: with a bound of
// 5, the fourth failure still asks for a retry and the fifth is terminal.
func TestSenderFSMRetryExhaustion(t *testing.T) {
	m := senderFSM{maxRetries: 5}

	for i := 0; i < 4; i++ {
		if got := m.onTimeout(); got != outcomeRetry {
			t.Fatalf("failure %d: got %v, want retry", i+1, got)
		}
	}
	if got := m.onTimeout(); got != outcomeFail {
		t.Fatalf("final failure: got %v, want fail", got)
	}
}

// TestSenderFSMRetryCountResets verifies acceptance clears the retry count
// for the next chunk.
func TestSenderFSMRetryCountResets(t *testing.T) {
	m := senderFSM{maxRetries: 2}

	if got := m.onTimeout(); got != outcomeRetry {
		t.Fatalf("first timeout: got %v, want retry", got)
	}
	if got := m.onResponse(protocol.NewAck(0)); got != outcomeAccept {
		t.Fatal("valid ack not accepted")
	}
	// A fresh chunk gets the full budget again.
	if got := m.onTimeout(); got != outcomeRetry {
		t.Fatalf("timeout after acceptance: got %v, want retry", got)
	}
}

// TestReceiverFSMInOrderDelivery verifies the expected-sequence path:
// deliver, ack, flip.
func TestReceiverFSMInOrderDelivery(t *testing.T) {
	m := receiverFSM{}

	act := m.onPacket(protocol.NewPacket(0, []byte("abc")))
	if act.kind != rxAccepted {
		t.Fatalf("kind = %v, want accepted", act.kind)
	}
	if act.ackSeq != 0 {
		t.Errorf("ackSeq = %d, want 0", act.ackSeq)
	}
	if !bytes.Equal(act.deliver, []byte("abc")) {
		t.Errorf("deliver = %q, want %q", act.deliver, "abc")
	}
	if m.expected != 1 {
		t.Errorf("expected = %d after delivery, want 1", m.expected)
	}
}

// TestReceiverFSMCorruption verifies a checksum mismatch acks the
// still-expected sequence number without any state change.
func TestReceiverFSMCorruption(t *testing.T) {
	m := receiverFSM{expected: 1}

	pkt := protocol.NewPacket(1, []byte("abc"))
	pkt.Checksum ^= 0x01

	act := m.onPacket(pkt)
	if act.kind != rxCorrupted {
		t.Fatalf("kind = %v, want corrupted", act.kind)
	}
	if act.ackSeq != 1 {
		t.Errorf("ackSeq = %d, want still-expected 1", act.ackSeq)
	}
	if act.deliver != nil {
		t.Error("corrupted packet must not deliver a payload")
	}
	if m.expected != 1 {
		t.Errorf("expected changed to %d, want unchanged 1", m.expected)
	}
}

// TestReceiverFSMDuplicate verifies a retransmitted packet is re-acked
// with the other sequence value and never reaches the sink.
func TestReceiverFSMDuplicate(t *testing.T) {
	m := receiverFSM{expected: 1}

	act := m.onPacket(protocol.NewPacket(0, []byte("dup")))
	if act.kind != rxDuplicate {
		t.Fatalf("kind = %v, want duplicate", act.kind)
	}
	if act.ackSeq != 0 {
		t.Errorf("ackSeq = %d, want 0 (the other sequence value)", act.ackSeq)
	}
	if act.deliver != nil {
		t.Error("duplicate must not deliver a payload")
	}
	if m.expected != 1 {
		t.Errorf("expected changed to %d, want unchanged 1", m.expected)
	}
}

// TestReceiverFSMEndOfStream verifies the final-chunk rule: any payload
// shorter than the maximum, the explicit empty marker included, ends the
// stream; a full payload does not.
func TestReceiverFSMEndOfStream(t *testing.T) {
	testCases := []struct {
		name      string
		payload   []byte
		wantFinal bool
	}{
		{"short payload", []byte("tail"), true},
		{"empty marker", nil, true},
		{"full payload", make([]byte, protocol.MaxPayloadSize), false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m := receiverFSM{}
			act := m.onPacket(protocol.NewPacket(0, tc.payload))
			if act.kind != rxAccepted {
				t.Fatalf("kind = %v, want accepted", act.kind)
			}
			if act.final != tc.wantFinal {
				t.Errorf("final = %v, want %v", act.final, tc.wantFinal)
			}
		})
	}
}
