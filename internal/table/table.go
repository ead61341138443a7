// Package table implements the routing table state machine: per-destination
// metric/next-hop storage, the timeout → garbage-collection → removal timer
// lifecycle, and the immutable neighbour view the update rule consults.
//
// The table never blocks and never starts goroutines or timers of its own;
// CheckTimers is driven once per daemon tick, and all mutation happens on
// that same caller's goroutine. This mirrors the single-threaded event loop
// the rest of the daemon runs on.
package table

import (
	"time"

	"github.com/kelshaw/ripd/internal/wire"
)

// Trigger is the narrow capability the table uses to ask its owner for an
// out-of-band advertisement when a route is poisoned. It is injected rather
// than the table holding an owning reference back to the daemon, so the
// table stays constructible and testable without a running event loop.
type Trigger interface {
	TriggerUpdate()
}

// noopTrigger discards triggers; used when a caller doesn't care (e.g. tests
// that only inspect table state).
type noopTrigger struct{}

func (noopTrigger) TriggerUpdate() {}

// Neighbour is an immutable, pre-configured direct link.
type Neighbour struct {
	ID        uint32
	LinkCost  uint32
	InputPort int
}

// Route is a point-in-time copy of one routing table entry, safe to retain
// after the call that produced it; the table never hands out live entry
// pointers.
type Route struct {
	DestID  uint32
	Metric  uint32
	NextHop uint32
}

type entry struct {
	destID          uint32
	metric          uint32
	nextHop         uint32
	timeoutDeadline time.Time
	gcStarted       bool
	gcDeadline      time.Time
}

// Table holds the routing entries for one router instance.
type Table struct {
	routerID      uint32
	neighbours    map[uint32]Neighbour // never mutated after New
	entries       map[uint32]*entry
	timeoutPeriod time.Duration
	gcPeriod      time.Duration
	trigger       Trigger
}

// New creates a table seeded with one directly-attached entry per neighbour,
// each with its timeout armed. neighbours is copied into an immutable map;
// the caller's slice may be reused or discarded afterward.
func New(routerID uint32, neighbours []Neighbour, updatePeriod time.Duration, trigger Trigger) *Table {
	if trigger == nil {
		trigger = noopTrigger{}
	}

	nmap := make(map[uint32]Neighbour, len(neighbours))
	for _, n := range neighbours {
		nmap[n.ID] = n
	}

	t := &Table{
		routerID:      routerID,
		neighbours:    nmap,
		entries:       make(map[uint32]*entry, len(neighbours)),
		timeoutPeriod: updatePeriod * 6,
		gcPeriod:      updatePeriod * 4,
		trigger:       trigger,
	}

	now := time.Now()
	for _, n := range neighbours {
		t.entries[n.ID] = &entry{
			destID:          n.ID,
			metric:          clampMetric(n.LinkCost),
			nextHop:         n.ID,
			timeoutDeadline: now.Add(t.timeoutPeriod),
		}
	}

	return t
}

// RouterID returns this router's own id, never a valid destId in the table.
func (t *Table) RouterID() uint32 { return t.routerID }

// IsNeighbour reports whether id names a pre-configured direct link.
func (t *Table) IsNeighbour(id uint32) bool {
	_, ok := t.neighbours[id]
	return ok
}

// MetricToNeighbour returns the link cost to a configured neighbour. It
// panics if id is not a neighbour — callers must check IsNeighbour first;
// this is a programming-error precondition, not an operational one.
func (t *Table) MetricToNeighbour(id uint32) uint32 {
	n, ok := t.neighbours[id]
	if !ok {
		panic("table: MetricToNeighbour called with a non-neighbour id")
	}
	return n.LinkCost
}

// HasRoute reports whether an entry for destID currently exists.
func (t *Table) HasRoute(destID uint32) bool {
	_, ok := t.entries[destID]
	return ok
}

// Metric returns the current metric for destID. Panics if absent.
func (t *Table) Metric(destID uint32) uint32 {
	return t.mustEntry(destID).metric
}

// SetMetric updates the metric for destID, saturating at wire.Infinity.
// Panics if absent.
func (t *Table) SetMetric(destID, metric uint32) {
	t.mustEntry(destID).metric = clampMetric(metric)
}

// NextHop returns the current next hop for destID. Panics if absent.
func (t *Table) NextHop(destID uint32) uint32 {
	return t.mustEntry(destID).nextHop
}

// SetNextHop updates the next hop for destID. Panics if absent.
func (t *Table) SetNextHop(destID, nextHop uint32) {
	t.mustEntry(destID).nextHop = nextHop
}

// AddEntry inserts a brand-new entry and arms its timeout. Panics if an
// entry for destID already exists — callers must check HasRoute first.
func (t *Table) AddEntry(destID, metric, nextHop uint32) {
	if _, ok := t.entries[destID]; ok {
		panic("table: AddEntry called for a destId that already exists")
	}
	t.entries[destID] = &entry{
		destID:          destID,
		metric:          clampMetric(metric),
		nextHop:         nextHop,
		timeoutDeadline: time.Now().Add(t.timeoutPeriod),
	}
}

// ResetTimeout rearms destID's timeout and clears any in-progress GC,
// effectively resurrecting a poisoned entry once its metric has been set to
// something finite by the caller. Panics if absent.
func (t *Table) ResetTimeout(destID uint32) {
	e := t.mustEntry(destID)
	e.timeoutDeadline = time.Now().Add(t.timeoutPeriod)
	e.gcStarted = false
}

// StartDeletion pins destID's metric at infinity, arms its GC deadline, and
// notifies the trigger that an out-of-band update is needed. Idempotent:
// calling it again while GC is already running leaves the GC deadline
// untouched. Panics if absent.
func (t *Table) StartDeletion(destID uint32) {
	e := t.mustEntry(destID)
	e.metric = wire.Infinity
	if e.gcStarted {
		t.trigger.TriggerUpdate()
		return
	}
	e.gcStarted = true
	e.gcDeadline = time.Now().Add(t.gcPeriod)
	t.trigger.TriggerUpdate()
}

// CheckTimers sweeps every entry: timed-out entries are poisoned into GC,
// and entries whose GC deadline has passed are removed. Safe to call only
// from the single-threaded event loop — it both reads and mutates the
// entries map in place.
func (t *Table) CheckTimers() {
	now := time.Now()

	var toRemove []uint32
	for destID, e := range t.entries {
		switch {
		case !e.gcStarted && now.After(e.timeoutDeadline):
			t.StartDeletion(destID)
		case e.gcStarted && now.After(e.gcDeadline):
			toRemove = append(toRemove, destID)
		}
	}

	for _, destID := range toRemove {
		delete(t.entries, destID)
	}
}

// Snapshot returns a stable, destId-ordered copy of every current route.
// Used by diagnostics/rendering and by the sender; never exposes live entry
// handles.
func (t *Table) Snapshot() []Route {
	routes := make([]Route, 0, len(t.entries))
	for _, e := range t.entries {
		routes = append(routes, Route{DestID: e.destID, Metric: e.metric, NextHop: e.nextHop})
	}
	sortRoutes(routes)
	return routes
}

func (t *Table) mustEntry(destID uint32) *entry {
	e, ok := t.entries[destID]
	if !ok {
		panic("table: accessor called for a destId with no entry")
	}
	return e
}

func clampMetric(m uint32) uint32 {
	if m > wire.Infinity {
		return wire.Infinity
	}
	return m
}

// sortRoutes orders routes by destId so Snapshot output is deterministic.
func sortRoutes(routes []Route) {
	// Insertion sort: route counts are small in practice (a packet carries at
	// most MaxEntries, though the table itself sets no bound) and this
	// keeps Snapshot free of an extra import for a handful of elements.
	for i := 1; i < len(routes); i++ {
		for j := i; j > 0 && routes[j-1].DestID > routes[j].DestID; j-- {
			routes[j-1], routes[j] = routes[j], routes[j-1]
		}
	}
}
