//go:build darwin

package multiplex

import (
	"time"

	"golang.org/x/sys/unix"

	rerr "github.com/kelshaw/ripd/internal/errors"
)

// kqueuePoller is the BSD/Darwin Poller, backed by a single kqueue instance.
type kqueuePoller struct {
	kq   int
	keys map[int64]int // registered fd -> caller key
}

// New creates the platform Poller. On Darwin this is kqueue-backed.
func New() (Poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, &rerr.NetworkError{Operation: "create kqueue instance", Err: err}
	}
	return &kqueuePoller{kq: kq, keys: make(map[int64]int)}, nil
}

func (p *kqueuePoller) Register(fd uintptr, key int) error {
	changes := []unix.Kevent_t{{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_READ,
		Flags:  unix.EV_ADD | unix.EV_ENABLE,
	}}
	if _, err := unix.Kevent(p.kq, changes, nil, nil); err != nil {
		return &rerr.NetworkError{Operation: "register fd with kqueue", FD: int64(fd), Err: err}
	}
	p.keys[int64(fd)] = key
	return nil
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]int, error) {
	events := make([]unix.Kevent_t, len(p.keys))
	if len(events) == 0 {
		events = make([]unix.Kevent_t, 1)
	}
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(p.kq, nil, events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &rerr.NetworkError{Operation: "kqueue wait", Err: err}
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if key, ok := p.keys[int64(events[i].Ident)]; ok {
			ready = append(ready, key)
		}
	}
	return ready, nil
}

func (p *kqueuePoller) Close() error {
	if err := unix.Close(p.kq); err != nil {
		return &rerr.NetworkError{Operation: "close kqueue instance", Err: err}
	}
	return nil
}
