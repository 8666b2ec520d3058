package service

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

// ReminderService builds human-readable summaries of the dashboard. The
// output is Telegram HTML and doubles as context for the worker model.
type ReminderService struct {
	store *repository.Store
}

func NewReminderService(store *repository.Store) *ReminderService {
	return &ReminderService{store: store}
}

func (s *ReminderService) DailySummary(ctx context.Context, now time.Time) (string, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return "", err
	}
	questions, err := s.store.LoadQuestions(ctx)
	if err != nil {
		return "", err
	}

	var active, someday, recurring []model.Task
	for _, task := range tasks.Tasks {
		switch {
		case task.IsRecurring() && task.IsOpen():
			recurring = append(recurring, task)
		case task.Status == model.TaskActive:
			active = append(active, task)
		case task.Status == model.TaskSomeday:
			someday = append(someday, task)
		}
	}
	sortByDeadline(active)
	sortByDeadline(someday)

	openQuestions := 0
	for _, q := range questions.Questions {
		if !q.IsAnswered() {
			openQuestions++
		}
	}

	var builder strings.Builder
	builder.WriteString("📋 <b>Dashboard</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("Mon 02.01.2006 15:04")))

	builder.WriteString("🔥 <b>Active</b>\n")
	if len(active) == 0 {
		builder.WriteString("— nothing active\n")
	}
	for _, task := range active {
		builder.WriteString(formatTask(task, now))
	}

	builder.WriteString("\n♻️ <b>Recurring</b>\n")
	if len(recurring) == 0 {
		builder.WriteString("— no habits yet\n")
	}
	for _, task := range recurring {
		builder.WriteString(formatRecurring(task, now))
	}

	if len(someday) > 0 {
		builder.WriteString("\n💤 <b>Someday</b>\n")
		for _, task := range someday {
			builder.WriteString(formatTask(task, now))
		}
	}

	builder.WriteString(fmt.Sprintf("\n❓ Open questions: %d\n", openQuestions))
	return strings.TrimSpace(builder.String()), nil
}

// PendingSummary lists upcoming notifications, soonest first.
func (s *ReminderService) PendingSummary(ctx context.Context, now time.Time) (string, error) {
	ledger, err := s.store.LoadNotifications(ctx)
	if err != nil {
		return "", err
	}
	var pending []model.Notification
	for _, n := range ledger.Notifications {
		if n.Status == model.NotificationPending {
			pending = append(pending, n)
		}
	}
	if len(pending) == 0 {
		return "🔕 No pending notifications", nil
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].ScheduledAt.Before(pending[j].ScheduledAt) })

	var sb strings.Builder
	sb.WriteString("🔔 <b>Pending notifications</b>\n")
	for _, n := range pending {
		at := n.ScheduledAt.In(now.Location())
		sb.WriteString(fmt.Sprintf("• <code>%s</code> %s — %s", n.ID, at.Format("2006-01-02 15:04"), html.EscapeString(n.Message)))
		if n.RelatedTaskID != "" {
			sb.WriteString(fmt.Sprintf(" (task %s)", n.RelatedTaskID))
		}
		sb.WriteByte('\n')
	}
	return strings.TrimSpace(sb.String()), nil
}

func sortByDeadline(tasks []model.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		switch {
		case tasks[i].Deadline == nil && tasks[j].Deadline == nil:
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		case tasks[i].Deadline == nil:
			return false
		case tasks[j].Deadline == nil:
			return true
		default:
			return tasks[i].Deadline.Before(*tasks[j].Deadline)
		}
	})
}

func formatTask(task model.Task, now time.Time) string {
	var sb strings.Builder

	icon := "🟢"
	if task.Progress.Blocked {
		icon = "🚧"
	}
	if task.Deadline != nil {
		d := task.Deadline.In(now.Location())
		switch {
		case now.After(d):
			icon = "⚠️"
		case d.Sub(now) <= 48*time.Hour:
			icon = "⏳"
		}
	}

	sb.WriteString(fmt.Sprintf("%s <code>%s</code> %s", icon, task.ID, html.EscapeString(strings.TrimSpace(task.Title))))
	if task.Priority == model.PriorityHigh {
		sb.WriteString(" ❗")
	}
	if task.Progress.Percentage > 0 {
		sb.WriteString(fmt.Sprintf(" · %d%%", task.Progress.Percentage))
	}

	switch {
	case task.Deadline != nil:
		d := task.Deadline.In(now.Location())
		if now.After(d) {
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s — <b>overdue</b>", d.Format("2006-01-02")))
		} else {
			daysLeft := int(d.Sub(now).Hours()/24) + 1
			sb.WriteString(fmt.Sprintf("\n   ⏰ due %s · ≈%d d left", d.Format("2006-01-02"), daysLeft))
		}
	case task.DeadlineText != "":
		sb.WriteString(fmt.Sprintf("\n   ⏰ %s", html.EscapeString(task.DeadlineText)))
	}

	if task.Progress.Blocked && task.Progress.BlockerNote != "" {
		sb.WriteString(fmt.Sprintf("\n   🚧 %s", html.EscapeString(task.Progress.BlockerNote)))
	} else if task.Progress.Note != "" {
		sb.WriteString(fmt.Sprintf("\n   📝 %s", html.EscapeString(task.Progress.Note)))
	}

	sb.WriteByte('\n')
	return sb.String()
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func formatRecurring(task model.Task, now time.Time) string {
	var sb strings.Builder
	rec := task.Recurring

	sb.WriteString(fmt.Sprintf("♻️ <code>%s</code> %s", task.ID, html.EscapeString(strings.TrimSpace(task.Title))))

	days := make([]string, 0, len(rec.DaysOfWeek))
	for _, d := range rec.DaysOfWeek {
		if d >= 0 && d < len(weekdayNames) {
			days = append(days, weekdayNames[d])
		}
	}
	sb.WriteString(fmt.Sprintf("\n   📆 %s", strings.Join(days, ", ")))
	if rec.CheckTime != "" {
		sb.WriteString(" at " + rec.CheckTime)
	}
	sb.WriteString(fmt.Sprintf(" · 🔥 %d (best %d)", rec.StreakCurrent, rec.StreakBest))
	if rec.LastCompletedDate == now.Format(dateLayout) {
		sb.WriteString("\n   ✅ done today")
	} else if rec.LastCompletedDate != "" {
		sb.WriteString("\n   ✅ last done " + rec.LastCompletedDate)
	} else {
		sb.WriteString("\n   ✅ not done yet")
	}

	sb.WriteByte('\n')
	return sb.String()
}
