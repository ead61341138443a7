// Package errors defines the typed error values used across the daemon.
//
// Every fatal or transient condition named by the error handling design is
// carried as one of these types rather than a bare fmt.Errorf string, so
// callers can use errors.As/errors.Is to branch on failure class (config vs
// network vs wire format vs validation) instead of parsing messages.
package errors

import (
	"fmt"
)

// NetworkError represents a socket-level failure: binding an input or
// output port, registering a descriptor with the readiness multiplexer, or
// closing a socket down. Port and FD are mutually exclusive — a bind/close
// failure names the UDP port involved, a multiplexer registration failure
// names the raw descriptor, since the multiplexer has no notion of ports.
type NetworkError struct {
	// Operation describes what network operation failed (e.g., "bind input socket").
	Operation string

	// Port is the UDP port the operation was acting on, or 0 if not applicable.
	Port int

	// FD is the raw file descriptor the operation was acting on, or 0 if not applicable.
	FD int64

	// Err is the underlying error from the network stack.
	Err error
}

func (e *NetworkError) Error() string {
	switch {
	case e.Port != 0:
		return fmt.Sprintf("network error during %s on port %d: %v", e.Operation, e.Port, e.Err)
	case e.FD != 0:
		return fmt.Sprintf("network error during %s on fd %d: %v", e.Operation, e.FD, e.Err)
	default:
		return fmt.Sprintf("network error during %s: %v", e.Operation, e.Err)
	}
}

// Unwrap returns the underlying error, enabling error chain inspection with errors.Is/As.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ValidationError represents a rejected datagram: an entry whose destId or
// metric falls outside its valid range, or a packet whose sender isn't one
// of the configured neighbours. These are always per-packet or per-entry
// and transient — the receiver logs them and moves on to the next entry or
// socket.
type ValidationError struct {
	// SenderID is the router id the rejected packet or entry claims to be from.
	SenderID uint32

	// DestID is the destination named by the rejected entry, or nil if the
	// rejection is packet-level (e.g. an unrecognized sender) rather than
	// per-entry. A pointer rather than a bare uint32, since 0 is itself a
	// valid (if out-of-range) destId a rejected entry can carry.
	DestID *uint32

	// Reason describes why the packet or entry was rejected.
	Reason string
}

func (e *ValidationError) Error() string {
	if e.DestID != nil {
		return fmt.Sprintf("rejected entry for dest %d from sender %d: %s", *e.DestID, e.SenderID, e.Reason)
	}
	return fmt.Sprintf("rejected packet from sender %d: %s", e.SenderID, e.Reason)
}

// WireFormatError represents errors encoding or decoding a response packet:
// a truncated header, an entry region whose length isn't a multiple of
// EntrySize, or an encode that would exceed MaxPacketSize.
type WireFormatError struct {
	// Operation describes what codec operation failed (e.g., "decode entries").
	Operation string

	// PacketLen is the length in bytes of the packet or buffer being processed.
	PacketLen int

	// EntryCount is the number of (destId, metric) entries involved, or -1
	// if the failure occurred before entries could be counted (e.g. a
	// truncated header).
	EntryCount int

	// Message describes why the wire format is invalid.
	Message string

	// Err is the underlying error, if any.
	Err error
}

func (e *WireFormatError) Error() string {
	var detail string
	switch {
	case e.EntryCount >= 0:
		detail = fmt.Sprintf(" (packet length %d, %d entries)", e.PacketLen, e.EntryCount)
	default:
		detail = fmt.Sprintf(" (packet length %d)", e.PacketLen)
	}

	if e.Err != nil {
		return fmt.Sprintf("wire format error during %s: %s%s (underlying: %v)", e.Operation, e.Message, detail, e.Err)
	}
	return fmt.Sprintf("wire format error during %s: %s%s", e.Operation, e.Message, detail)
}

// Unwrap returns the underlying error, enabling error chain inspection with errors.Is/As.
func (e *WireFormatError) Unwrap() error {
	return e.Err
}

// ConfigError represents a fatal configuration-file problem: a missing or
// duplicated directive, a value out of range, or a cross-parameter conflict
// (overlapping ports, a neighbour id equal to our own).
type ConfigError struct {
	// Directive names the offending directive ("router-id", "outputs", ...), or
	// "" if the problem spans directives (e.g. a port conflict).
	Directive string

	// Line is the 1-indexed source line, or 0 if not applicable.
	Line int

	// Message describes the problem.
	Message string
}

func (e *ConfigError) Error() string {
	switch {
	case e.Directive != "" && e.Line > 0:
		return fmt.Sprintf("config error at line %d (%s): %s", e.Line, e.Directive, e.Message)
	case e.Directive != "":
		return fmt.Sprintf("config error (%s): %s", e.Directive, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("config error at line %d: %s", e.Line, e.Message)
	default:
		return fmt.Sprintf("config error: %s", e.Message)
	}
}
