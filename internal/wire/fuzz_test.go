package wire

import "testing"

// FuzzDecode checks that Decode never panics on arbitrary byte sequences,
// and that any packet it accepts round-trips through Encode back to an
// packet of the same length.
func FuzzDecode(f *testing.F) {
	buf := make([]byte, MaxPacketSize)
	seed, err := Encode(buf, 1, []Entry{{DestID: 2, Metric: 1}, {DestID: 3, Metric: 16}})
	if err != nil {
		f.Fatalf("Encode() error = %v", err)
	}
	f.Add(seed)
	f.Add([]byte{})
	f.Add([]byte{CommandResponse, Version})
	f.Add([]byte{CommandResponse, Version, 0x00, 0x01, 0x00, 0x00, 0x00}) // misaligned entry region
	f.Add([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	f.Fuzz(func(t *testing.T, packet []byte) {
		senderID, entries, err := Decode(packet)
		if err != nil {
			return
		}

		scratch := make([]byte, MaxPacketSize)
		re, err := Encode(scratch, senderID, entries)
		if err != nil {
			t.Fatalf("Encode() of a successfully decoded packet failed: %v", err)
		}
		if len(re) != len(packet) {
			t.Fatalf("round-trip length mismatch: got %d, want %d", len(re), len(packet))
		}
	})
}
