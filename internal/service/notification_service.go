package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

type NotificationInput struct {
	Message           string
	When              string
	Type              model.NotificationType
	Priority          model.Priority
	RelatedTaskID     string
	RelatedQuestionID string
	Context           string
	CreatedBy         model.Creator
}

type NotificationUpdate struct {
	Message  *string
	When     *string
	Priority *model.Priority
	Context  *string
}

// NotificationService edits the reminder ledger. It never talks to the
// calendar or delivers anything; the reconciler picks changes up.
type NotificationService struct {
	store *repository.Store
	now   func() time.Time
}

func NewNotificationService(store *repository.Store, now func() time.Time) *NotificationService {
	if now == nil {
		now = time.Now
	}
	return &NotificationService{store: store, now: now}
}

func (s *NotificationService) Schedule(ctx context.Context, input NotificationInput) (*model.Notification, error) {
	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, fmt.Errorf("message is required")
	}
	now := s.now()
	at, err := parseWhen(input.When, now)
	if err != nil {
		return nil, err
	}

	n := model.Notification{
		ID:                model.NewID(model.NotificationIDPrefix),
		Message:           message,
		ScheduledAt:       at,
		Type:              input.Type,
		Priority:          input.Priority,
		RelatedTaskID:     input.RelatedTaskID,
		RelatedQuestionID: input.RelatedQuestionID,
		Status:            model.NotificationPending,
		CreatedAt:         now,
		Context:           input.Context,
		CreatedBy:         input.CreatedBy,
	}
	if !isAbsoluteWhen(input.When) {
		n.ScheduledAtText = strings.TrimSpace(input.When)
	}
	if n.Type == "" {
		n.Type = model.NotificationReminder
	}
	if n.Priority == "" {
		n.Priority = model.PriorityMedium
	}
	if n.CreatedBy == "" {
		n.CreatedBy = model.CreatedByUser
	}

	ledger, err := s.store.LoadNotifications(ctx)
	if err != nil {
		return nil, err
	}
	ledger.Notifications = append(ledger.Notifications, n)
	if err := s.store.SaveNotifications(ctx, ledger); err != nil {
		return nil, fmt.Errorf("schedule notification: %w", err)
	}
	return &n, nil
}

// Update edits a pending notification. A new time drops the current
// calendar mirror so the next reconcile creates a fresh one.
func (s *NotificationService) Update(ctx context.Context, id string, upd NotificationUpdate) (*model.Notification, error) {
	ledger, err := s.store.LoadNotifications(ctx)
	if err != nil {
		return nil, err
	}
	n := ledger.FindNotification(id)
	if n == nil {
		return nil, fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	if n.Status != model.NotificationPending {
		return nil, fmt.Errorf("notification %s is %s and cannot be changed", id, n.Status)
	}

	if upd.Message != nil {
		n.Message = strings.TrimSpace(*upd.Message)
	}
	if upd.Priority != nil {
		n.Priority = *upd.Priority
	}
	if upd.Context != nil {
		n.Context = *upd.Context
	}
	if upd.When != nil {
		at, err := parseWhen(*upd.When, s.now())
		if err != nil {
			return nil, err
		}
		text := ""
		if !isAbsoluteWhen(*upd.When) {
			text = strings.TrimSpace(*upd.When)
		}
		n.Reschedule(at, text)
	}

	if err := s.store.SaveNotifications(ctx, ledger); err != nil {
		return nil, fmt.Errorf("update notification: %w", err)
	}
	out := *n
	return &out, nil
}

// Cancel cancels a pending notification. Cancelling twice is not an error.
func (s *NotificationService) Cancel(ctx context.Context, id, reason string) (string, error) {
	ledger, err := s.store.LoadNotifications(ctx)
	if err != nil {
		return "", err
	}
	n := ledger.FindNotification(id)
	if n == nil {
		return "", fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	switch n.Status {
	case model.NotificationCancelled:
		return fmt.Sprintf("Notification %s is already cancelled", id), nil
	case model.NotificationDelivered:
		return "", fmt.Errorf("notification %s was already delivered", id)
	}

	n.Cancel(s.now(), reason)
	if err := s.store.SaveNotifications(ctx, ledger); err != nil {
		return "", fmt.Errorf("cancel notification: %w", err)
	}
	return fmt.Sprintf("Notification %s cancelled", id), nil
}

// List returns notifications with the given status (all when empty),
// ordered by scheduled time.
func (s *NotificationService) List(ctx context.Context, status model.NotificationStatus) ([]model.Notification, error) {
	ledger, err := s.store.LoadNotifications(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Notification
	for _, n := range ledger.Notifications {
		if status == "" || n.Status == status {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}
