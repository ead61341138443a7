// Package receiver binds the daemon's input sockets, multiplexes them with
// a bounded-wait readiness primitive, and applies the distance-vector
// update rule to every accepted packet.
package receiver

import (
	"log/slog"
	"net"
	"time"

	rerr "github.com/kelshaw/ripd/internal/errors"
	"github.com/kelshaw/ripd/internal/multiplex"
	"github.com/kelshaw/ripd/internal/table"
	"github.com/kelshaw/ripd/internal/wire"
)

// Trigger lets the receiver tell the daemon a triggered update is pending,
// mirroring the capability table.Trigger already accepts — the receiver
// itself never calls it directly (table.StartDeletion does), but it shares
// the narrow-interface shape described for the table/daemon boundary.
type Trigger interface {
	TriggerUpdate()
}

// socket pairs a bound, non-blocking input connection with the poller key
// it was registered under.
type socket struct {
	port int
	conn *net.UDPConn
}

// Receiver owns every input socket and the shared routing table reference.
type Receiver struct {
	table   *table.Table
	poller  multiplex.Poller
	sockets map[int]*socket // keyed by poller key == input port
	buf     [wire.MaxPacketSize]byte
	log     *slog.Logger
}

// New binds one UDP socket per input port on loopback, registers each with
// poller, and returns a ready-to-run Receiver. Bind failures are fatal and
// reported as *errors.NetworkError.
func New(rt *table.Table, poller multiplex.Poller, inputPorts []int, log *slog.Logger) (*Receiver, error) {
	r := &Receiver{
		table:   rt,
		poller:  poller,
		sockets: make(map[int]*socket, len(inputPorts)),
		log:     log,
	}

	for _, port := range inputPorts {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
		if err != nil {
			return nil, &rerr.NetworkError{Operation: "bind input socket", Port: port, Err: err}
		}

		var registerErr error
		rawConn, err := conn.SyscallConn()
		if err != nil {
			_ = conn.Close()
			return nil, &rerr.NetworkError{Operation: "bind input socket", Port: port, Err: err}
		}
		if err := rawConn.Control(func(fd uintptr) {
			registerErr = poller.Register(fd, port)
		}); err != nil {
			_ = conn.Close()
			return nil, &rerr.NetworkError{Operation: "register input socket", Port: port, Err: err}
		}
		if registerErr != nil {
			_ = conn.Close()
			return nil, registerErr
		}

		r.sockets[port] = &socket{port: port, conn: conn}
	}

	return r, nil
}

// WaitForMessages blocks up to timeout for any input socket to become
// readable, then drains and processes every packet each ready socket has
// available. Never returns an error for per-packet problems; only a
// multiplexer failure is surfaced, and even that is logged rather than
// fatal — the caller proceeds straight to the timer/update phase regardless.
func (r *Receiver) WaitForMessages(timeout time.Duration) {
	ready, err := r.poller.Wait(timeout)
	if err != nil {
		r.log.Error("readiness wait failed", "component", "receiver", "op", "wait_ready", "err", err)
		return
	}

	for _, port := range ready {
		sock, ok := r.sockets[port]
		if !ok {
			continue
		}
		r.drain(sock)
	}
}

// drain reads every datagram currently available on sock without blocking
// the event loop on a socket that has nothing left.
func (r *Receiver) drain(sock *socket) {
	for {
		if err := sock.conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			r.log.Error("set read deadline failed", "component", "receiver", "op", "receive", "port", sock.port, "err", err)
			return
		}

		n, _, err := sock.conn.ReadFromUDP(r.buf[:])
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return // nothing more buffered right now
			}
			r.log.Error("receive failed", "component", "receiver", "op", "receive", "port", sock.port, "err", err)
			return
		}

		r.handlePacket(r.buf[:n])
	}
}

func (r *Receiver) handlePacket(packet []byte) {
	senderID, entries, err := wire.Decode(packet)
	if err != nil {
		r.log.Error("malformed packet discarded", "component", "receiver", "op", "decode", "err", err)
		return
	}

	if !r.table.IsNeighbour(senderID) {
		verr := &rerr.ValidationError{SenderID: senderID, Reason: "sender is not a configured neighbour"}
		r.log.Error(verr.Error(), "component", "receiver", "op", "validate_sender", "err", verr)
		return
	}

	// The link itself proves reachability: always reinstate the direct
	// route to the sender before applying advertised entries.
	r.applyUpdate(senderID, senderID, 0)

	for _, e := range entries {
		if e.DestID < wire.MinRouterID || e.DestID > wire.MaxRouterID {
			verr := &rerr.ValidationError{SenderID: senderID, DestID: &e.DestID, Reason: "destId out of range [1, 64000]"}
			r.log.Error(verr.Error(), "component", "receiver", "op", "validate_entry", "err", verr)
			continue
		}
		if e.Metric < 1 || e.Metric > wire.Infinity {
			verr := &rerr.ValidationError{SenderID: senderID, DestID: &e.DestID, Reason: "metric out of range [1, 16]"}
			r.log.Error(verr.Error(), "component", "receiver", "op", "validate_entry", "err", verr)
			continue
		}
		r.applyUpdate(senderID, e.DestID, e.Metric)
	}
}

// applyUpdate is the distance-vector update rule: accept, replace, poison,
// or ignore the advertised (destId, metricSent) pair from senderId.
func (r *Receiver) applyUpdate(senderID, destID, metricSent uint32) {
	if destID == r.table.RouterID() {
		return
	}

	metric := metricSent + r.table.MetricToNeighbour(senderID)
	if metric > wire.Infinity {
		metric = wire.Infinity
	}

	if !r.table.HasRoute(destID) {
		if metric != wire.Infinity {
			r.table.AddEntry(destID, metric, senderID)
		}
		return
	}

	curMetric := r.table.Metric(destID)
	curNextHop := r.table.NextHop(destID)

	if senderID == curNextHop {
		r.table.ResetTimeout(destID)
	}

	if (senderID == curNextHop && metric != curMetric) || metric < curMetric {
		r.table.SetNextHop(destID, senderID)
		r.table.SetMetric(destID, metric)
		if metric == wire.Infinity {
			r.table.StartDeletion(destID)
		} else {
			r.table.ResetTimeout(destID)
		}
	}
}

// Close releases every bound input socket.
func (r *Receiver) Close() error {
	var first error
	for _, sock := range r.sockets {
		if err := sock.conn.Close(); err != nil && first == nil {
			first = &rerr.NetworkError{Operation: "close input socket", Port: sock.port, Err: err}
		}
	}
	return first
}
