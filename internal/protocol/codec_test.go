package protocol

import (
	"bytes"
	"fmt"
	"testing"
)

// TestEncodeDecodeRoundTrip verifies that encoding and decoding are inverse
// operations for data and acknowledgment packets with various payload sizes.
func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		pkt  *Packet
	}{
		{
			name: "ack with no payload",
			pkt:  NewAck(0),
		},
		{
			name: "ack for sequence 1",
			pkt:  NewAck(1),
		},
		{
			name: "data with small payload",
			pkt:  NewPacket(0, []byte("hello world")),
		},
		{
			name: "data with single byte",
			pkt:  NewPacket(1, []byte{0xFF}),
		},
		{
			name: "data with maximum payload",
			pkt:  NewPacket(1, make([]byte, MaxPayloadSize)),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := Encode(tc.pkt)
			if len(encoded) != int(tc.pkt.TotalLength) {
				t.Fatalf("encoded size %d, want TotalLength %d", len(encoded), tc.pkt.TotalLength)
			}

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}

			if decoded.Seq != tc.pkt.Seq {
				t.Errorf("Seq mismatch: got %d, want %d", decoded.Seq, tc.pkt.Seq)
			}
			if decoded.TotalLength != tc.pkt.TotalLength {
				t.Errorf("TotalLength mismatch: got %d, want %d", decoded.TotalLength, tc.pkt.TotalLength)
			}
			if decoded.Checksum != tc.pkt.Checksum {
				t.Errorf("Checksum mismatch: got %d, want %d", decoded.Checksum, tc.pkt.Checksum)
			}
			if !bytes.Equal(decoded.Payload, tc.pkt.Payload) {
				t.Errorf("Payload mismatch: got %v, want %v", decoded.Payload, tc.pkt.Payload)
			}
			if !Verify(decoded) {
				t.Error("decoded packet failed verification")
			}
		})
	}
}

// TestDecodeTooShort verifies that Decode returns an error when the input
// is shorter than HeaderSize.
func TestDecodeTooShort(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"1 byte", []byte{0x01}},
		{"7 bytes (one less than HeaderSize)", make([]byte, 7)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.data)
			if err == nil {
				t.Fatal("Expected error for short packet, got nil")
			}
		})
	}
}

// TestDecodeLengthMismatch verifies that a header whose declared total
// length disagrees with the actual byte count is rejected.
func TestDecodeLengthMismatch(t *testing.T) {
	encoded := Encode(NewPacket(0, []byte("abc")))

	t.Run("truncated payload", func(t *testing.T) {
		if _, err := Decode(encoded[:len(encoded)-1]); err == nil {
			t.Fatal("Expected error for truncated packet, got nil")
		}
	})

	t.Run("trailing garbage", func(t *testing.T) {
		if _, err := Decode(append(append([]byte{}, encoded...), 0x00)); err == nil {
			t.Fatal("Expected error for oversized packet, got nil")
		}
	})
}

// TestChecksumWorkedExample pins the checksum to the wire contract: the
// payload "AB" under sequence number 0 sums to (0+0+0+0 + 65 + 66) mod 256.
func TestChecksumWorkedExample(t *testing.T) {
	if got := Checksum(0, []byte("AB")); got != 131 {
		t.Fatalf("Checksum(0, \"AB\") = %d, want 131", got)
	}

	pkt := NewPacket(0, []byte("AB"))
	if pkt.TotalLength != 10 {
		t.Errorf("TotalLength = %d, want 10", pkt.TotalLength)
	}
	if pkt.Checksum != 131 {
		t.Errorf("Checksum = %d, want 131", pkt.Checksum)
	}
}

// TestChecksumSeqBytes verifies every raw byte of the sequence number
// participates in the sum.
func TestChecksumSeqBytes(t *testing.T) {
	testCases := []struct {
		seq  uint32
		want uint8
	}{
		{0, 0},
		{1, 1},
		{0x01020304, 10},
		{0xFF000000, 255},
		{0xFFFFFFFF, uint8(4 * 255 % 256)},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("seq=0x%08X", tc.seq), func(t *testing.T) {
			if got := Checksum(tc.seq, nil); got != tc.want {
				t.Errorf("Checksum(0x%08X, nil) = %d, want %d", tc.seq, got, tc.want)
			}
		})
	}
}

// TestVerifyDetectsChecksumBitFlips flips every bit of the encoded checksum
// field and checks that verification fails for each.
func TestVerifyDetectsChecksumBitFlips(t *testing.T) {
	encoded := Encode(NewPacket(1, []byte("payload")))

	for bit := 0; bit < 16; bit++ {
		flipped := append([]byte{}, encoded...)
		flipped[bit/8] ^= 1 << (bit % 8)

		pkt, err := Decode(flipped)
		if err != nil {
			t.Fatalf("bit %d: Decode failed: %v", bit, err)
		}
		if Verify(pkt) {
			t.Errorf("bit %d: corrupted checksum passed verification", bit)
		}
	}
}

// TestVerifyNilPacket ensures a lost (nil) packet never verifies.
func TestVerifyNilPacket(t *testing.T) {
	if Verify(nil) {
		t.Fatal("nil packet passed verification")
	}
}

// TestDecodePreservesPayload verifies that the payload is correctly copied
// and not aliased to the input buffer.
func TestDecodePreservesPayload(t *testing.T) {
	encoded := Encode(NewPacket(0, []byte("original")))
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	// Modify the original encoded buffer
	encoded[HeaderSize] = 0xFF

	if !bytes.Equal(decoded.Payload, []byte("original")) {
		t.Errorf("Payload was incorrectly aliased: got %v", decoded.Payload)
	}
}

// TestCloneIsDeep verifies that mutating a clone's payload leaves the
// original untouched.
func TestCloneIsDeep(t *testing.T) {
	orig := NewPacket(0, []byte("abc"))
	clone := orig.Clone()
	clone.Payload[0] = 'X'
	clone.Checksum = 0

	if orig.Payload[0] != 'a' {
		t.Error("clone shares payload storage with the original")
	}
	if orig.Checksum != uint16(Checksum(0, []byte("abc"))) {
		t.Error("clone shares checksum with the original")
	}
}
