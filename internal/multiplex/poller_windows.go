//go:build windows

package multiplex

import (
	"time"

	"golang.org/x/sys/windows"

	rerr "github.com/kelshaw/ripd/internal/errors"
)

// selectPoller is the Windows Poller. x/sys/windows has no epoll/kqueue
// equivalent reachable without IOCP, so this falls back to WSAPoll, which
// covers the same "one syscall, many sockets" shape the other platforms get
// from epoll/kqueue.
type selectPoller struct {
	keys map[windows.Handle]int
}

// New creates the platform Poller. On Windows this is WSAPoll-backed.
func New() (Poller, error) {
	return &selectPoller{keys: make(map[windows.Handle]int)}, nil
}

func (p *selectPoller) Register(fd uintptr, key int) error {
	p.keys[windows.Handle(fd)] = key
	return nil
}

func (p *selectPoller) Wait(timeout time.Duration) ([]int, error) {
	if len(p.keys) == 0 {
		time.Sleep(timeout)
		return nil, nil
	}

	fds := make([]windows.WSAPollFd, 0, len(p.keys))
	handles := make([]windows.Handle, 0, len(p.keys))
	for h := range p.keys {
		fds = append(fds, windows.WSAPollFd{Fd: h, Events: windows.POLLIN})
		handles = append(handles, h)
	}

	n, err := windows.WSAPoll(fds, int32(timeout/time.Millisecond))
	if err != nil {
		return nil, &rerr.NetworkError{Operation: "WSAPoll wait", Err: err}
	}

	ready := make([]int, 0, n)
	for i, f := range fds {
		if f.REvents&windows.POLLIN != 0 {
			ready = append(ready, p.keys[handles[i]])
		}
	}
	return ready, nil
}

func (p *selectPoller) Close() error { return nil }
