package multiplex

import "time"

// FakePoller is a test double for Poller: Register just records the key,
// and each Wait call returns (and consumes) the next pre-programmed batch
// of ready keys. It never blocks, matching the single-threaded daemon's
// tests which never want a real 1s wait.
type FakePoller struct {
	Registered []int
	Batches    [][]int // consumed front-to-back by successive Wait calls
	closed     bool
}

// NewFakePoller creates a FakePoller that returns batches, in order, one
// per Wait call; once exhausted, Wait returns an empty, nil-error result.
func NewFakePoller(batches ...[]int) *FakePoller {
	return &FakePoller{Batches: batches}
}

func (f *FakePoller) Register(_ uintptr, key int) error {
	f.Registered = append(f.Registered, key)
	return nil
}

func (f *FakePoller) Wait(time.Duration) ([]int, error) {
	if len(f.Batches) == 0 {
		return nil, nil
	}
	next := f.Batches[0]
	f.Batches = f.Batches[1:]
	return next, nil
}

func (f *FakePoller) Close() error {
	f.closed = true
	return nil
}
