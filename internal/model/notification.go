package model

import (
	"strings"
	"time"
)

type NotificationStatus string

const (
	NotificationPending   NotificationStatus = "pending"
	NotificationDelivered NotificationStatus = "delivered"
	NotificationCancelled NotificationStatus = "cancelled"
)

// CanBecome reports whether moving from s to next is a forward (or no-op) transition.
func (s NotificationStatus) CanBecome(next NotificationStatus) bool {
	if s == next {
		return true
	}
	return s == NotificationPending && (next == NotificationDelivered || next == NotificationCancelled)
}

type NotificationType string

const (
	NotificationReminder         NotificationType = "reminder"
	NotificationDeadlineAlert    NotificationType = "deadline_alert"
	NotificationProgressCheck    NotificationType = "progress_check"
	NotificationBlockerFollowup  NotificationType = "blocker_followup"
	NotificationQuestionReminder NotificationType = "question_reminder"
)

// Creator tags who scheduled a notification.
type Creator string

const (
	CreatedByWorker Creator = "worker"
	CreatedByUser   Creator = "user"
	CreatedByAgent  Creator = "agent"
)

// Notification is one entry in the reminder ledger.
type Notification struct {
	ID                         string             `json:"id"`
	Message                    string             `json:"message"`
	ScheduledAt                time.Time          `json:"scheduled_at"`
	ScheduledAtText            string             `json:"scheduled_at_text,omitempty"`
	Type                       NotificationType   `json:"type"`
	Priority                   Priority           `json:"priority"`
	RelatedTaskID              string             `json:"related_task_id,omitempty"`
	RelatedQuestionID          string             `json:"related_question_id,omitempty"`
	Status                     NotificationStatus `json:"status"`
	CalendarEventID            string             `json:"calendar_event_id,omitempty"`
	SupersededCalendarEventIDs []string           `json:"superseded_calendar_event_ids,omitempty"`
	FollowUpQuestionID         string             `json:"follow_up_question_id,omitempty"`
	CreatedAt                  time.Time          `json:"created_at"`
	DeliveredAt                *time.Time         `json:"delivered_at,omitempty"`
	CancelledAt                *time.Time         `json:"cancelled_at,omitempty"`
	Context                    string             `json:"context,omitempty"`
	CreatedBy                  Creator            `json:"created_by"`
}

// MarkDelivered moves a pending notification to delivered.
func (n *Notification) MarkDelivered(at time.Time) bool {
	if n.Status != NotificationPending {
		return false
	}
	n.Status = NotificationDelivered
	n.DeliveredAt = &at
	return true
}

// Cancel moves a pending notification to cancelled, appending reason to the context.
func (n *Notification) Cancel(at time.Time, reason string) bool {
	if n.Status != NotificationPending {
		return false
	}
	n.Status = NotificationCancelled
	n.CancelledAt = &at
	if reason = strings.TrimSpace(reason); reason != "" {
		if n.Context != "" {
			n.Context += "\n"
		}
		n.Context += "Cancelled: " + reason
	}
	return true
}

// Reschedule changes the fire time of a pending notification. The current
// calendar mirror no longer matches, so it is queued for removal.
func (n *Notification) Reschedule(at time.Time, text string) {
	if n.CalendarEventID != "" {
		n.SupersededCalendarEventIDs = append(n.SupersededCalendarEventIDs, n.CalendarEventID)
		n.CalendarEventID = ""
	}
	n.ScheduledAt = at
	n.ScheduledAtText = text
}

// NotificationFile is the persisted ledger.
type NotificationFile struct {
	Version       string         `json:"version"`
	Notifications []Notification `json:"notifications"`
}

func (f *NotificationFile) FindNotification(id string) *Notification {
	for i := range f.Notifications {
		if f.Notifications[i].ID == id {
			return &f.Notifications[i]
		}
	}
	return nil
}
