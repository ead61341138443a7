package sender

import (
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/kelshaw/ripd/internal/table"
	"github.com/kelshaw/ripd/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// TestSendUpdates_PoisonsReverseRoutesPerNeighbour checks a cold start with
// two neighbours of different costs, verifying the exact advertised entries.
func TestSendUpdates_PoisonsReverseRoutesPerNeighbour(t *testing.T) {
	neighbours := []table.Neighbour{
		{ID: 2, LinkCost: 1, InputPort: 0},
		{ID: 3, LinkCost: 5, InputPort: 0},
	}
	tb := table.New(1, neighbours, time.Hour, nil)

	listener2, port2 := listenAndRewritePort(t, &neighbours[0])
	listener3, port3 := listenAndRewritePort(t, &neighbours[1])
	defer listener2.Close()
	defer listener3.Close()

	s, err := New(tb, neighbours, 0, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer s.Close()

	s.SendUpdates()

	entries2 := readEntries(t, listener2)
	wantMetric(t, entries2, 2, wire.Infinity) // poison reverse: learned via 2
	wantMetric(t, entries2, 3, 5)

	entries3 := readEntries(t, listener3)
	wantMetric(t, entries3, 2, 1)
	wantMetric(t, entries3, 3, wire.Infinity) // poison reverse: learned via 3

	_ = port2
	_ = port3
}

func listenAndRewritePort(t *testing.T, n *table.Neighbour) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		t.Fatalf("ListenUDP() error = %v", err)
	}
	port := conn.LocalAddr().(*net.UDPAddr).Port
	n.InputPort = port
	return conn, port
}

func readEntries(t *testing.T, conn *net.UDPConn) []wire.Entry {
	t.Helper()
	buf := make([]byte, wire.MaxPacketSize)
	if err := conn.SetReadDeadline(time.Now().Add(time.Second)); err != nil {
		t.Fatalf("SetReadDeadline() error = %v", err)
	}
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP() error = %v", err)
	}
	_, entries, err := wire.Decode(buf[:n])
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return entries
}

func wantMetric(t *testing.T, entries []wire.Entry, destID, want uint32) {
	t.Helper()
	for _, e := range entries {
		if e.DestID == destID {
			if e.Metric != want {
				t.Errorf("destId %d: metric = %d, want %d", destID, e.Metric, want)
			}
			return
		}
	}
	t.Errorf("destId %d not present in %v", destID, entries)
}
