// Package sender assembles and transmits one advertisement packet per
// neighbour, applying split horizon with poison reverse.
package sender

import (
	"log/slog"
	"net"

	rerr "github.com/kelshaw/ripd/internal/errors"
	"github.com/kelshaw/ripd/internal/table"
	"github.com/kelshaw/ripd/internal/wire"
)

// Sender owns the output socket and the neighbour list to advertise to.
type Sender struct {
	table      *table.Table
	neighbours []table.Neighbour
	outputPort int
	conn       *net.UDPConn
	buf        [wire.MaxPacketSize]byte
	log        *slog.Logger
}

// New binds the output socket on loopback and returns a ready-to-use
// Sender. neighbours is advertised to in the given insertion order.
func New(rt *table.Table, neighbours []table.Neighbour, outputPort int, log *slog.Logger) (*Sender, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: outputPort})
	if err != nil {
		return nil, &rerr.NetworkError{Operation: "bind output socket", Port: outputPort, Err: err}
	}
	return &Sender{table: rt, neighbours: neighbours, outputPort: outputPort, conn: conn, log: log}, nil
}

// SendUpdates builds and transmits one packet per neighbour. A per-packet
// encode or transmit failure is logged and skipped; never fatal.
func (s *Sender) SendUpdates() {
	routes := s.table.Snapshot()

	for _, n := range s.neighbours {
		entries := make([]wire.Entry, 0, len(routes))
		for _, r := range routes {
			metric := r.Metric
			if r.NextHop == n.ID {
				metric = wire.Infinity // poison reverse
			}
			entries = append(entries, wire.Entry{DestID: r.DestID, Metric: metric})
		}

		packet, err := wire.Encode(s.buf[:], s.table.RouterID(), entries)
		if err != nil {
			s.log.Error("packet refused", "component", "sender", "op", "encode", "neighbour_id", n.ID, "err", err)
			continue
		}

		dest := &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: n.InputPort}
		if _, err := s.conn.WriteToUDP(packet, dest); err != nil {
			s.log.Error("send failed", "component", "sender", "op", "transmit", "neighbour_id", n.ID, "err", err)
		}
	}
}

// Close releases the output socket.
func (s *Sender) Close() error {
	if err := s.conn.Close(); err != nil {
		return &rerr.NetworkError{Operation: "close output socket", Port: s.outputPort, Err: err}
	}
	return nil
}
