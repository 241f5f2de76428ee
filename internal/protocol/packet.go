// Package protocol defines the packet format shared by data and
// acknowledgment traffic.
package protocol

// HeaderSize is the fixed header size: Checksum(2) + TotalLength(2) + Seq(4).
const HeaderSize = 8

// MaxPayloadSize is the largest payload a single data packet may carry.
// A payload strictly shorter than this marks the final chunk of a stream.
const MaxPayloadSize = 500

// Packet is the wire unit. An acknowledgment is a Packet with no payload
// whose Seq field is read as the acknowledgment number.
type Packet struct {
	Seq         uint32 // sequence/ack number; the protocol uses only {0,1}
	Checksum    uint16 // meaningful range 0–255; stored in a wider field
	TotalLength uint16 // HeaderSize + len(Payload)
	Payload     []byte // absent for acknowledgments
}

// NewPacket builds a data packet for the given sequence number and payload,
// filling in TotalLength and Checksum. The payload slice is not copied; the
// caller must not mutate it while the packet is in flight.
func NewPacket(seq uint32, payload []byte) *Packet {
	return &Packet{
		Seq:         seq,
		Checksum:    uint16(Checksum(seq, payload)),
		TotalLength: uint16(HeaderSize + len(payload)),
		Payload:     payload,
	}
}

// NewAck builds an acknowledgment packet for the given sequence number.
func NewAck(seq uint32) *Packet {
	return NewPacket(seq, nil)
}

// IsAck reports whether the packet carries no payload.
func (p *Packet) IsAck() bool {
	return len(p.Payload) == 0
}

// Clone returns a deep copy of the packet. The channel uses it so that
// injected corruption never mutates the sender's in-flight copy.
func (p *Packet) Clone() *Packet {
	c := *p
	if p.Payload != nil {
		c.Payload = make([]byte, len(p.Payload))
		copy(c.Payload, p.Payload)
	}
	return &c
}
