package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"taskledger/internal/model"
)

// DeliveryFunc sends text to a recipient over a channel. A nil error means
// the message left the process.
type DeliveryFunc func(ctx context.Context, channel, recipient, text string) error

type DeliveryOptions struct {
	Channel   string
	Recipient string
	// MarkAttempts bounds retries of MarkDelivered after a successful send.
	MarkAttempts int
	MarkBackoff  time.Duration
	// MinDelay is the floor for the wake-up timer.
	MinDelay time.Duration
	// RetryDelay arms a wake-up after a failed reconcile when no timer is armed.
	RetryDelay time.Duration
	Now        func() time.Time
}

// ReconciliationScheduler delivers due notifications and keeps exactly one
// wake-up timer armed for the next one.
type ReconciliationScheduler struct {
	reconciler *NotificationReconciler
	deliver    DeliveryFunc
	lock       *ProcessingLock

	channel      string
	recipient    string
	markAttempts int
	markBackoff  time.Duration
	minDelay     time.Duration
	retryDelay   time.Duration
	now          func() time.Time

	// fireCtx is used by timer fires, which have no caller context.
	fireCtx    context.Context
	cancelFire context.CancelFunc

	running atomic.Bool

	// sent maps ids delivered but not yet marked to the scheduled_at that was sent.
	sentMu sync.Mutex
	sent   map[string]time.Time

	timerMu    sync.Mutex
	timer      *time.Timer
	generation uint64
	armedAt    *time.Time
}

func NewReconciliationScheduler(reconciler *NotificationReconciler, deliver DeliveryFunc, lock *ProcessingLock, opts DeliveryOptions) *ReconciliationScheduler {
	if opts.MarkAttempts <= 0 {
		opts.MarkAttempts = 3
	}
	if opts.MarkBackoff <= 0 {
		opts.MarkBackoff = 500 * time.Millisecond
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = 100 * time.Millisecond
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ReconciliationScheduler{
		reconciler:   reconciler,
		deliver:      deliver,
		lock:         lock,
		channel:      opts.Channel,
		recipient:    opts.Recipient,
		markAttempts: opts.MarkAttempts,
		markBackoff:  opts.MarkBackoff,
		minDelay:     opts.MinDelay,
		retryDelay:   opts.RetryDelay,
		now:          opts.Now,
		fireCtx:      ctx,
		cancelFire:   cancel,
		sent:         make(map[string]time.Time),
	}
}

// Trigger reconciles, delivers everything due and re-arms the timer.
// The caller must hold the processing lock. Overlapping calls are no-ops.
func (s *ReconciliationScheduler) Trigger(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Println("[info] reconcile already running, trigger skipped")
		return
	}
	defer s.running.Store(false)

	result, err := s.reconciler.Reconcile(ctx)
	if err != nil {
		log.Printf("[warn] reconcile: %v", err)
	}

	for _, n := range result.Due {
		if ctx.Err() != nil {
			return
		}
		s.deliverOne(ctx, n)
	}

	if err != nil && result.NextDueAt == nil {
		// The ledger may not have been read; an armed timer is still valid.
		s.keepOrRetry()
		return
	}
	s.arm(result.NextDueAt)
}

// keepOrRetry leaves an armed timer alone, or arms one retryDelay from now.
func (s *ReconciliationScheduler) keepOrRetry() {
	if _, armed := s.ArmedAt(); armed {
		return
	}
	retryAt := s.now().Add(s.retryDelay)
	s.arm(&retryAt)
}

func (s *ReconciliationScheduler) deliverOne(ctx context.Context, n model.Notification) {
	if s.recipient == "" {
		log.Printf("[warn] no recipient configured, notification %s stays pending", n.ID)
		return
	}

	if !s.wasSent(n) {
		if err := s.deliver(ctx, s.channel, s.recipient, formatReminder(n)); err != nil {
			log.Printf("[warn] deliver %s: %v", n.ID, err)
			return
		}
		s.setSent(n, true)
		log.Printf("[info] delivered notification %s", n.ID)
	}

	for attempt := 0; attempt < s.markAttempts; attempt++ {
		ok, err := s.reconciler.MarkDelivered(ctx, n.ID)
		if err == nil {
			if !ok {
				log.Printf("[info] notification %s was no longer pending", n.ID)
			}
			s.setSent(n, false)
			return
		}
		log.Printf("[warn] mark %s delivered (attempt %d/%d): %v", n.ID, attempt+1, s.markAttempts, err)
		if attempt+1 < s.markAttempts && !sleepCtx(ctx, s.markBackoff*time.Duration(attempt+1)) {
			return
		}
	}
	// Stays in the sent set so the next trigger only retries the mark.
	log.Printf("[error] notification %s sent but not marked, will retry mark", n.ID)
}

// wasSent reports whether n was already sent for its current scheduled_at.
// A record rescheduled since the send is due for a fresh send.
func (s *ReconciliationScheduler) wasSent(n model.Notification) bool {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	at, ok := s.sent[n.ID]
	if ok && !at.Equal(n.ScheduledAt) {
		delete(s.sent, n.ID)
		return false
	}
	return ok
}

func (s *ReconciliationScheduler) setSent(n model.Notification, sent bool) {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	if sent {
		s.sent[n.ID] = n.ScheduledAt
	} else {
		delete(s.sent, n.ID)
	}
}

// arm replaces the wake-up timer. A nil next leaves no timer armed.
func (s *ReconciliationScheduler) arm(next *time.Time) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.generation++
	s.armedAt = nil
	if next == nil || s.fireCtx.Err() != nil {
		return
	}

	delay := next.Sub(s.now())
	if delay < s.minDelay {
		delay = s.minDelay
	}
	gen := s.generation
	at := *next
	s.armedAt = &at
	s.timer = time.AfterFunc(delay, func() { s.fire(gen) })
}

func (s *ReconciliationScheduler) fire(gen uint64) {
	s.timerMu.Lock()
	if gen != s.generation {
		s.timerMu.Unlock()
		return
	}
	s.timer = nil
	s.armedAt = nil
	s.timerMu.Unlock()

	if err := s.lock.Acquire(s.fireCtx); err != nil {
		return
	}
	defer s.lock.Release()
	s.reconciler.store.InvalidateCache()
	s.Trigger(s.fireCtx)
}

// ArmedAt reports when the wake-up timer will fire, if one is armed.
func (s *ReconciliationScheduler) ArmedAt() (time.Time, bool) {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.armedAt == nil {
		return time.Time{}, false
	}
	return *s.armedAt, true
}

// Stop cancels the wake-up timer and any fire waiting on the lock.
func (s *ReconciliationScheduler) Stop() {
	s.cancelFire()
	s.arm(nil)
}

func formatReminder(n model.Notification) string {
	icon := "🔔"
	switch n.Type {
	case model.NotificationDeadlineAlert:
		icon = "⏰"
	case model.NotificationBlockerFollowup:
		icon = "🚧"
	case model.NotificationProgressCheck:
		icon = "📈"
	case model.NotificationQuestionReminder:
		icon = "❓"
	}
	return fmt.Sprintf("%s %s", icon, n.Message)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
