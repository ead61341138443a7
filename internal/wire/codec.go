package wire

import (
	"encoding/binary"

	rerr "github.com/kelshaw/ripd/internal/errors"
)

// Encode writes a response packet for senderID and entries into buf, returning
// the slice of buf actually used. buf must be at least HeaderSize+len(entries)*EntrySize
// bytes; callers typically pass a reusable MaxPacketSize scratch buffer.
//
// Encode refuses (returns a *errors.WireFormatError, emits nothing) any packet
// that would exceed MaxPacketSize.
func Encode(buf []byte, senderID uint32, entries []Entry) ([]byte, error) {
	size := HeaderSize + len(entries)*EntrySize
	if size > MaxPacketSize {
		return nil, &rerr.WireFormatError{
			Operation:  "encode packet",
			PacketLen:  size,
			EntryCount: len(entries),
			Message:    "would exceed 512-byte maximum",
		}
	}
	if len(buf) < size {
		return nil, &rerr.WireFormatError{
			Operation:  "encode packet",
			PacketLen:  size,
			EntryCount: len(entries),
			Message:    "destination buffer too small",
		}
	}

	buf[0] = CommandResponse
	buf[1] = Version
	binary.BigEndian.PutUint16(buf[2:4], uint16(senderID))

	off := HeaderSize
	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[off:off+4], e.DestID)
		binary.BigEndian.PutUint32(buf[off+4:off+8], e.Metric)
		off += EntrySize
	}

	return buf[:size], nil
}

// Decode parses a response packet, returning the sender router id and the
// entries it carries. Decode rejects packets shorter than HeaderSize, longer
// than MaxPacketSize, or whose entry region length is not a multiple of
// EntrySize; it does not
// validate entry field ranges (destId/metric bounds) — that is the caller's
// job, since rejection there is per-entry and transient, not per-packet.
func Decode(packet []byte) (senderID uint32, entries []Entry, err error) {
	if len(packet) < HeaderSize {
		return 0, nil, &rerr.WireFormatError{
			Operation:  "decode header",
			PacketLen:  len(packet),
			EntryCount: -1,
			Message:    "packet shorter than 4 bytes",
		}
	}
	if len(packet) > MaxPacketSize {
		return 0, nil, &rerr.WireFormatError{
			Operation:  "decode header",
			PacketLen:  len(packet),
			EntryCount: -1,
			Message:    "packet longer than 512 bytes",
		}
	}

	command := packet[0]
	version := packet[1]
	if command != CommandResponse {
		return 0, nil, &rerr.WireFormatError{
			Operation:  "decode header",
			PacketLen:  len(packet),
			EntryCount: -1,
			Message:    "unsupported command byte",
		}
	}
	if version != Version {
		return 0, nil, &rerr.WireFormatError{
			Operation:  "decode header",
			PacketLen:  len(packet),
			EntryCount: -1,
			Message:    "unsupported version byte",
		}
	}

	senderID = uint32(binary.BigEndian.Uint16(packet[2:4]))

	body := packet[HeaderSize:]
	if len(body)%EntrySize != 0 {
		return 0, nil, &rerr.WireFormatError{
			Operation:  "decode entries",
			PacketLen:  len(packet),
			EntryCount: len(body) / EntrySize,
			Message:    "entry region length is not a multiple of 8",
		}
	}

	count := len(body) / EntrySize
	entries = make([]Entry, count)
	for i := 0; i < count; i++ {
		off := i * EntrySize
		entries[i] = Entry{
			DestID: binary.BigEndian.Uint32(body[off : off+4]),
			Metric: binary.BigEndian.Uint32(body[off+4 : off+8]),
		}
	}

	return senderID, entries, nil
}
