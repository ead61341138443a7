// Package daemon owns the routing table, receiver, and sender, and runs the
// single-threaded event loop that schedules periodic and triggered updates.
package daemon

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/kelshaw/ripd/internal/table"
)

// messageWaiter is the narrow view of *receiver.Receiver the daemon needs:
// block up to timeout draining ready sockets into the table.
type messageWaiter interface {
	WaitForMessages(timeout time.Duration)
	Close() error
}

// updateSender is the narrow view of *sender.Sender the daemon needs: build
// and transmit one advertisement per neighbour from the table's current state.
type updateSender interface {
	SendUpdates()
	Close() error
}

const (
	waitTimeout = time.Second

	periodicJitterLow  = 0.8
	periodicJitterHigh = 1.2

	triggeredBackoffLowSeconds  = 1.0
	triggeredBackoffHighSeconds = 5.0
)

// clock abstracts time.Now for the scheduling decisions below.
// The production Daemon always uses time.Now; tests in this package can
// substitute a fake to drive the periodic/triggered scheduling logic
// without real sleeps.
type clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// TriggerFlag implements table.Trigger with a single bool the daemon reads
// on each tick. It is constructed before the table (which requires a
// Trigger) and before the Daemon (which requires an already-built table),
// breaking that construction cycle without an owning back-reference.
type TriggerFlag struct {
	pending bool
}

// TriggerUpdate implements table.Trigger.
func (f *TriggerFlag) TriggerUpdate() { f.pending = true }

// Daemon runs the event loop: each tick waits for inbound messages, then
// decides whether a periodic or triggered update is due, then sweeps timers.
type Daemon struct {
	table    *table.Table
	receiver messageWaiter
	sender   updateSender
	trigger  *TriggerFlag
	log      *slog.Logger
	clock    clock
	rng      *rand.Rand

	updatePeriod time.Duration

	nextPeriodicAt        time.Time
	triggeredTimerRunning bool
	nextTriggeredAt       time.Time
}

// New creates a Daemon. rt must have been constructed with trigger as its
// table.Trigger, and recv/snd must already be wired to the same
// table.Table instance.
func New(rt *table.Table, recv messageWaiter, snd updateSender, trigger *TriggerFlag, updatePeriod time.Duration, log *slog.Logger) *Daemon {
	d := &Daemon{
		table:        rt,
		receiver:     recv,
		sender:       snd,
		trigger:      trigger,
		log:          log,
		clock:        realClock{},
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		updatePeriod: updatePeriod,
	}
	d.nextPeriodicAt = d.clock.Now().Add(d.jitteredPeriod())
	return d
}

// Run executes the event loop until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			d.log.Info("daemon stopping", "component", "daemon", "op", "run")
			return
		default:
		}

		d.receiver.WaitForMessages(waitTimeout)
		d.tick()
	}
}

// tick decides, once per loop iteration, whether a periodic or triggered
// update is due, then sweeps route timers.
func (d *Daemon) tick() {
	now := d.clock.Now()

	if !d.triggeredTimerRunning || now.After(d.nextTriggeredAt) {
		switch {
		case now.After(d.nextPeriodicAt):
			d.sender.SendUpdates()
			d.nextPeriodicAt = now.Add(d.jitteredPeriod())
			d.trigger.pending = false
			d.triggeredTimerRunning = false

		case d.trigger.pending:
			d.sender.SendUpdates()
			d.trigger.pending = false
			d.triggeredTimerRunning = true
			d.nextTriggeredAt = now.Add(d.jitteredBackoff())
		}
	}

	d.table.CheckTimers()
}

func (d *Daemon) jitteredPeriod() time.Duration {
	factor := periodicJitterLow + d.rng.Float64()*(periodicJitterHigh-periodicJitterLow)
	return time.Duration(float64(d.updatePeriod) * factor)
}

func (d *Daemon) jitteredBackoff() time.Duration {
	seconds := triggeredBackoffLowSeconds + d.rng.Float64()*(triggeredBackoffHighSeconds-triggeredBackoffLowSeconds)
	return time.Duration(seconds * float64(time.Second))
}

// Close releases the receiver and sender sockets.
func (d *Daemon) Close() error {
	if err := d.receiver.Close(); err != nil {
		return err
	}
	return d.sender.Close()
}
