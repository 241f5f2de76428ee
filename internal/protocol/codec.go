package protocol

import (
	"encoding/binary"
	"fmt"
)

// Encode serializes a Packet into a byte slice for transmission.
// Header layout (big-endian): checksum(2) | total length(2) | seq(4).
func Encode(pkt *Packet) []byte {
	size := HeaderSize + len(pkt.Payload)
	buf := make([]byte, size)
	binary.BigEndian.PutUint16(buf[0:2], pkt.Checksum)
	binary.BigEndian.PutUint16(buf[2:4], pkt.TotalLength)
	binary.BigEndian.PutUint32(buf[4:8], pkt.Seq)
	if len(pkt.Payload) > 0 {
		copy(buf[HeaderSize:], pkt.Payload)
	}
	return buf
}

// Decode deserializes a byte slice into a Packet. It fails when the input
// is shorter than the header or when the declared total length disagrees
// with the actual byte count. The payload is copied, never aliased.
func Decode(data []byte) (*Packet, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("packet too short: %d bytes (need at least %d)", len(data), HeaderSize)
	}
	pkt := &Packet{
		Checksum:    binary.BigEndian.Uint16(data[0:2]),
		TotalLength: binary.BigEndian.Uint16(data[2:4]),
		Seq:         binary.BigEndian.Uint32(data[4:8]),
	}
	if int(pkt.TotalLength) != len(data) {
		return nil, fmt.Errorf("length mismatch: header declares %d bytes, got %d", pkt.TotalLength, len(data))
	}
	if len(data) > HeaderSize {
		pkt.Payload = make([]byte, len(data)-HeaderSize)
		copy(pkt.Payload, data[HeaderSize:])
	}
	return pkt, nil
}
