//go:build linux

package multiplex

import (
	"time"

	"golang.org/x/sys/unix"

	rerr "github.com/kelshaw/ripd/internal/errors"
)

// epollPoller is the Linux Poller, backed by a single epoll instance.
type epollPoller struct {
	epfd int
	keys map[int32]int // epoll-registered fd -> caller key
}

// New creates the platform Poller. On Linux this is epoll_create1-backed.
func New() (Poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, &rerr.NetworkError{Operation: "create epoll instance", Err: err}
	}
	return &epollPoller{epfd: epfd, keys: make(map[int32]int)}, nil
}

func (p *epollPoller) Register(fd uintptr, key int) error {
	event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, int(fd), &event); err != nil {
		return &rerr.NetworkError{Operation: "register fd with epoll", FD: int64(fd), Err: err}
	}
	p.keys[int32(fd)] = key
	return nil
}

func (p *epollPoller) Wait(timeout time.Duration) ([]int, error) {
	events := make([]unix.EpollEvent, len(p.keys))
	if len(events) == 0 {
		events = make([]unix.EpollEvent, 1)
	}

	n, err := unix.EpollWait(p.epfd, events, int(timeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, &rerr.NetworkError{Operation: "epoll wait", Err: err}
	}

	ready := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if key, ok := p.keys[events[i].Fd]; ok {
			ready = append(ready, key)
		}
	}
	return ready, nil
}

func (p *epollPoller) Close() error {
	if err := unix.Close(p.epfd); err != nil {
		return &rerr.NetworkError{Operation: "close epoll instance", Err: err}
	}
	return nil
}
