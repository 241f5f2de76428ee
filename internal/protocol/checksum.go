package protocol

// Checksum computes the 8-bit additive checksum over a sequence number and
// payload: the four raw bytes of seq plus every payload byte, each taken
// mod 256, summed mod 256.
//
// This is a deliberately weak sum inherited from the wire format — it
// detects any isolated single-byte error but can miss compensating
// multi-byte errors. It is not a CRC and must not be treated as one.
func Checksum(seq uint32, payload []byte) uint8 {
	sum := uint32(seq>>24&0xFF) + uint32(seq>>16&0xFF) + uint32(seq>>8&0xFF) + uint32(seq&0xFF)
	for _, b := range payload {
		sum += uint32(b)
	}
	return uint8(sum % 256)
}

// Verify recomputes the checksum over the packet's own sequence number and
// payload and compares it to the embedded checksum field.
func Verify(pkt *Packet) bool {
	if pkt == nil {
		return false
	}
	return uint16(Checksum(pkt.Seq, pkt.Payload)) == pkt.Checksum
}
