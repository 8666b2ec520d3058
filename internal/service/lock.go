package service

import "context"

// ProcessingLock serializes every operation that mutates stored state:
// inbound messages, worker cycles and timer-driven reconciliation.
// Unlike sync.Mutex, waiting can be abandoned through the context.
type ProcessingLock struct {
	ch chan struct{}
}

func NewProcessingLock() *ProcessingLock {
	return &ProcessingLock{ch: make(chan struct{}, 1)}
}

// Acquire blocks until the lock is held or ctx is done.
func (l *ProcessingLock) Acquire(ctx context.Context) error {
	select {
	case l.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *ProcessingLock) Release() {
	select {
	case <-l.ch:
	default:
		panic("service: release of unlocked ProcessingLock")
	}
}
