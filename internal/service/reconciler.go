package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

const defaultEventDuration = 30 * time.Minute

// CalendarEvent is what gets mirrored to the external calendar.
type CalendarEvent struct {
	Summary     string
	Description string
	Start       time.Time
	Duration    time.Duration
	TimeZone    string
}

// CalendarClient mirrors pending notifications into an external calendar.
// DeleteEvent must treat an already missing event as success.
type CalendarClient interface {
	CreateEvent(ctx context.Context, event CalendarEvent) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// ReconcileResult is the outcome of one pass over the ledger.
type ReconcileResult struct {
	Due       []model.Notification
	NextDueAt *time.Time
	Changed   bool
}

type ReconcilerOptions struct {
	TimeZone      string
	EventDuration time.Duration
	Now           func() time.Time
}

// NotificationReconciler compares the ledger with the calendar and reports
// what is due. It never delivers anything itself.
type NotificationReconciler struct {
	store         *repository.Store
	calendar      CalendarClient
	timeZone      string
	eventDuration time.Duration
	now           func() time.Time
}

// NewNotificationReconciler builds a reconciler. calendar may be nil, in
// which case calendar sync is skipped entirely.
func NewNotificationReconciler(store *repository.Store, calendar CalendarClient, opts ReconcilerOptions) *NotificationReconciler {
	if opts.EventDuration <= 0 {
		opts.EventDuration = defaultEventDuration
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &NotificationReconciler{
		store:         store,
		calendar:      calendar,
		timeZone:      opts.TimeZone,
		eventDuration: opts.EventDuration,
		now:           opts.Now,
	}
}

// Reconcile syncs calendar mirrors and collects due notifications. The ledger
// is saved once at the end, and only if a calendar reference changed. The
// due list is valid even when the final save fails.
func (r *NotificationReconciler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult

	ledger, err := r.store.LoadNotifications(ctx)
	if err != nil {
		return result, err
	}
	now := r.now()
	var created []string

	for i := range ledger.Notifications {
		n := &ledger.Notifications[i]

		if r.dropSupersededEvents(ctx, n) {
			result.Changed = true
		}

		switch n.Status {
		case model.NotificationPending:
			if !n.ScheduledAt.After(now) {
				result.Due = append(result.Due, *n)
				continue
			}
			if r.ensureEvent(ctx, n) {
				created = append(created, n.CalendarEventID)
				result.Changed = true
			}
			if result.NextDueAt == nil || n.ScheduledAt.Before(*result.NextDueAt) {
				at := n.ScheduledAt
				result.NextDueAt = &at
			}
		case model.NotificationDelivered, model.NotificationCancelled:
			if r.removeEvent(ctx, n) {
				result.Changed = true
			}
		}
	}

	if result.Changed {
		if err := r.store.SaveNotifications(ctx, ledger); err != nil {
			// The new references were not persisted, so the next pass creates
			// these events again.
			r.dropEvents(ctx, created)
			return result, fmt.Errorf("save ledger: %w", err)
		}
	}
	return result, nil
}

func (r *NotificationReconciler) dropEvents(ctx context.Context, eventIDs []string) {
	for _, id := range eventIDs {
		if err := r.calendar.DeleteEvent(ctx, id); err != nil {
			log.Printf("[warn] calendar delete unsaved event %s: %v", id, err)
		}
	}
}

// MarkDelivered moves a pending notification to delivered. It must only be
// called after the message was actually sent.
func (r *NotificationReconciler) MarkDelivered(ctx context.Context, id string) (bool, error) {
	ledger, err := r.store.LoadNotifications(ctx)
	if err != nil {
		return false, err
	}
	n := ledger.FindNotification(id)
	if n == nil || !n.MarkDelivered(r.now()) {
		return false, nil
	}
	// Best effort; a failure here is picked up by the next Reconcile.
	r.removeEvent(ctx, n)

	if err := r.store.SaveNotifications(ctx, ledger); err != nil {
		return false, fmt.Errorf("mark %s delivered: %w", id, err)
	}
	return true, nil
}

func (r *NotificationReconciler) ensureEvent(ctx context.Context, n *model.Notification) bool {
	if r.calendar == nil || n.CalendarEventID != "" {
		return false
	}
	eventID, err := r.calendar.CreateEvent(ctx, CalendarEvent{
		Summary:     n.Message,
		Description: calendarDescription(n),
		Start:       n.ScheduledAt,
		Duration:    r.eventDuration,
		TimeZone:    r.timeZone,
	})
	if err != nil {
		log.Printf("[warn] calendar create for %s: %v", n.ID, err)
		return false
	}
	n.CalendarEventID = eventID
	return true
}

func (r *NotificationReconciler) removeEvent(ctx context.Context, n *model.Notification) bool {
	if r.calendar == nil || n.CalendarEventID == "" {
		return false
	}
	if err := r.calendar.DeleteEvent(ctx, n.CalendarEventID); err != nil {
		log.Printf("[warn] calendar delete for %s: %v", n.ID, err)
		return false
	}
	n.CalendarEventID = ""
	return true
}

func (r *NotificationReconciler) dropSupersededEvents(ctx context.Context, n *model.Notification) bool {
	if r.calendar == nil || len(n.SupersededCalendarEventIDs) == 0 {
		return false
	}
	var remaining []string
	for _, eventID := range n.SupersededCalendarEventIDs {
		if err := r.calendar.DeleteEvent(ctx, eventID); err != nil {
			log.Printf("[warn] calendar delete superseded %s for %s: %v", eventID, n.ID, err)
			remaining = append(remaining, eventID)
		}
	}
	changed := len(remaining) != len(n.SupersededCalendarEventIDs)
	n.SupersededCalendarEventIDs = remaining
	return changed
}

func calendarDescription(n *model.Notification) string {
	desc := fmt.Sprintf("Reminder %s (%s, %s priority)", n.ID, n.Type, n.Priority)
	if n.Context != "" {
		desc += "\n\n" + n.Context
	}
	return desc
}
