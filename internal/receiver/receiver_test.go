package receiver

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/kelshaw/ripd/internal/multiplex"
	"github.com/kelshaw/ripd/internal/table"
	"github.com/kelshaw/ripd/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// newBoundReceiver binds one real loopback socket (ephemeral port) and
// returns it alongside the port the OS actually assigned, so tests can
// address it directly.
func newBoundReceiver(t *testing.T, tb *table.Table) (*Receiver, int, *multiplex.FakePoller) {
	t.Helper()
	poller := multiplex.NewFakePoller()
	r, err := New(tb, poller, []int{0}, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })

	var assigned int
	for port, sock := range r.sockets {
		assigned = sock.conn.LocalAddr().(*net.UDPAddr).Port
		delete(r.sockets, port)
		r.sockets[assigned] = sock
		break
	}
	return r, assigned, poller
}

func sendPacket(t *testing.T, port int, senderID uint32, entries []wire.Entry) {
	t.Helper()
	buf := make([]byte, wire.MaxPacketSize)
	packet, err := wire.Encode(buf, senderID, entries)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	conn, err := net.DialUDP("udp4", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	if err != nil {
		t.Fatalf("DialUDP() error = %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write(packet); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

func TestWaitForMessages_KeepsDirectRouteFromCurrentNextHop(t *testing.T) {
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, nil)
	r, port, poller := newBoundReceiver(t, tb)

	sendPacket(t, port, 2, nil)
	poller.Batches = [][]int{{port}}

	waitForDelivery(r, port)

	if got := tb.Metric(2); got != 1 {
		t.Errorf("Metric(2) = %d, want 1 (direct link unchanged)", got)
	}
}

func TestWaitForMessages_LearnsNewDestination(t *testing.T) {
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, nil)
	r, port, poller := newBoundReceiver(t, tb)

	sendPacket(t, port, 2, []wire.Entry{{DestID: 7, Metric: 3}})
	poller.Batches = [][]int{{port}}

	waitForDelivery(r, port)

	if !tb.HasRoute(7) {
		t.Fatal("expected a learned route to destination 7")
	}
	if got := tb.Metric(7); got != 4 {
		t.Errorf("Metric(7) = %d, want 4 (3 + link metric 1)", got)
	}
	if got := tb.NextHop(7); got != 2 {
		t.Errorf("NextHop(7) = %d, want 2", got)
	}
}

func TestWaitForMessages_WorseMetricFromOtherNeighbourDoesNotReplace(t *testing.T) {
	tb := table.New(1, []table.Neighbour{
		{ID: 2, LinkCost: 1, InputPort: 5002},
		{ID: 3, LinkCost: 5, InputPort: 5003},
	}, time.Hour, nil)
	tb.AddEntry(7, 4, 2) // learned via neighbour 2

	r, port, poller := newBoundReceiver(t, tb)

	// Router 3 advertises (7,6): via 3 that's 6+5=11, worse than 4 — no change.
	sendPacket(t, port, 3, []wire.Entry{{DestID: 7, Metric: 6}})
	poller.Batches = [][]int{{port}}
	waitForDelivery(r, port)

	if got := tb.NextHop(7); got != 2 {
		t.Errorf("NextHop(7) = %d, want 2 (unchanged)", got)
	}
	if got := tb.Metric(7); got != 4 {
		t.Errorf("Metric(7) = %d, want 4 (unchanged)", got)
	}
}

func TestWaitForMessages_OutOfRangeMetricRejected(t *testing.T) {
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, nil)
	tb.AddEntry(7, 4, 2)

	r, port, poller := newBoundReceiver(t, tb)

	// metricSent = 0 is out of [1,16] and must be discarded before the
	// update rule ever sees it (a direct reinstatement uses an implicit 0
	// only for the sender's own id, never for an advertised entry).
	sendPacket(t, port, 2, []wire.Entry{{DestID: 7, Metric: 0}})
	poller.Batches = [][]int{{port}}
	waitForDelivery(r, port)

	if got := tb.Metric(7); got != 4 {
		t.Errorf("Metric(7) = %d, want 4 (out-of-range entry discarded)", got)
	}
}

func TestWaitForMessages_NextHopPoisonsRoute(t *testing.T) {
	trigger := &countingTrigger{}
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, trigger)
	tb.AddEntry(7, 4, 2)

	r, port, poller := newBoundReceiver(t, tb)

	sendPacket(t, port, 2, []wire.Entry{{DestID: 7, Metric: wire.Infinity}})
	poller.Batches = [][]int{{port}}
	waitForDelivery(r, port)

	if got := tb.Metric(7); got != wire.Infinity {
		t.Errorf("Metric(7) = %d, want %d (poisoned)", got, wire.Infinity)
	}
	if trigger.count == 0 {
		t.Error("expected StartDeletion to have invoked the trigger")
	}
}

func TestWaitForMessages_RejectsPacketFromNonNeighbour(t *testing.T) {
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, nil)

	r, port, poller := newBoundReceiver(t, tb)

	sendPacket(t, port, 99, []wire.Entry{{DestID: 7, Metric: 2}})
	poller.Batches = [][]int{{port}}
	waitForDelivery(r, port)

	if tb.HasRoute(7) {
		t.Error("packet from a non-neighbour must never populate the table")
	}
}

func TestWaitForMessages_IgnoresAdvertisementOfOwnID(t *testing.T) {
	tb := table.New(1, []table.Neighbour{{ID: 2, LinkCost: 1, InputPort: 5002}}, time.Hour, nil)

	r, port, poller := newBoundReceiver(t, tb)

	sendPacket(t, port, 2, []wire.Entry{{DestID: 1, Metric: 2}})
	poller.Batches = [][]int{{port}}
	waitForDelivery(r, port)

	if tb.HasRoute(1) {
		t.Error("an advertisement of this router's own id must never create an entry")
	}
}

// waitForDelivery gives the loopback UDP datagram a short window to land in
// the kernel socket buffer before WaitForMessages drains it; real traffic on
// loopback is effectively synchronous but not instantaneous.
func waitForDelivery(r *Receiver, port int) {
	time.Sleep(5 * time.Millisecond)
	r.WaitForMessages(50 * time.Millisecond)
}

type countingTrigger struct{ count int }

func (c *countingTrigger) TriggerUpdate() { c.count++ }
