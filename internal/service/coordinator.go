package service

import (
	"context"
	"fmt"

	"taskledger/internal/repository"
)

// Coordinator owns the call sites that must hold the processing lock.
type Coordinator struct {
	lock      *ProcessingLock
	store     *repository.Store
	scheduler *ReconciliationScheduler
	worker    *WorkerAgent
}

func NewCoordinator(lock *ProcessingLock, store *repository.Store, scheduler *ReconciliationScheduler, worker *WorkerAgent) *Coordinator {
	return &Coordinator{lock: lock, store: store, scheduler: scheduler, worker: worker}
}

// Startup catches up on anything that fell due while the process was down.
func (c *Coordinator) Startup(ctx context.Context) error {
	if err := c.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer c.lock.Release()

	c.store.InvalidateCache()
	c.scheduler.Trigger(ctx)
	return nil
}

// HandleMessage runs fn as one inbound message and reconciles afterwards.
func (c *Coordinator) HandleMessage(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := c.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer c.lock.Release()

	c.store.InvalidateCache()
	err := fn(ctx)
	c.scheduler.Trigger(ctx)
	return err
}

// RunWorkerCycle runs one maintenance cycle. The cycle triggers the
// scheduler itself when it finishes.
func (c *Coordinator) RunWorkerCycle(ctx context.Context) error {
	if err := c.lock.Acquire(ctx); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer c.lock.Release()

	c.store.InvalidateCache()
	return c.worker.RunCycle(ctx)
}
