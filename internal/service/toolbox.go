package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskledger/internal/llm"
	"taskledger/internal/model"
)

// ToolHandler runs a tool with JSON arguments and returns text for the caller.
type ToolHandler func(ctx context.Context, args json.RawMessage) (string, error)

type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	Handler     ToolHandler
}

// WorkerTools is the subset of tools the maintenance worker may call.
var WorkerTools = []string{
	"create_question", "update_question", "remove_question",
	"schedule_notification", "update_notification", "cancel_notification", "list_notifications",
	"update_task", "archive_task", "save_insight",
}

// Toolbox exposes the entity services as named tools. Every write goes
// through the store's validation.
type Toolbox struct {
	tasks         *TaskService
	questions     *QuestionService
	notifications *NotificationService
	insights      *InsightService
	reminders     *ReminderService
	now           func() time.Time

	tools map[string]Tool
}

func NewToolbox(tasks *TaskService, questions *QuestionService, notifications *NotificationService, insights *InsightService, reminders *ReminderService, now func() time.Time) *Toolbox {
	if now == nil {
		now = time.Now
	}
	tb := &Toolbox{
		tasks:         tasks,
		questions:     questions,
		notifications: notifications,
		insights:      insights,
		reminders:     reminders,
		now:           now,
		tools:         make(map[string]Tool),
	}
	tb.register()
	return tb
}

// Tools returns the named tools, or every tool sorted by name.
func (tb *Toolbox) Tools(names ...string) []Tool {
	if len(names) == 0 {
		for name := range tb.tools {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := tb.tools[name]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Specs converts tools for the chat runtime.
func Specs(tools []Tool) []llm.ToolSpec {
	out := make([]llm.ToolSpec, 0, len(tools))
	for _, t := range tools {
		out = append(out, llm.ToolSpec{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	return out
}

func (tb *Toolbox) Call(ctx context.Context, name string, args json.RawMessage) (string, error) {
	t, ok := tb.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return t.Handler(ctx, args)
}

func (tb *Toolbox) add(name, description, params string, h ToolHandler) {
	tb.tools[name] = Tool{Name: name, Description: description, Parameters: json.RawMessage(params), Handler: h}
}

func decodeArgs(args json.RawMessage, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func asJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func (tb *Toolbox) register() {
	tb.add("create_task", "Create a new task on the dashboard.", `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"raw_input": {"type": "string"},
			"deadline": {"type": "string", "description": "ISO date/time, 'tomorrow 9am', 'in 3 days' or free text"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"context": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["title"]
	}`, tb.createTask)

	tb.add("update_task", "Update fields of a task. Setting status=completed also sets progress to 100.", `{
		"type": "object",
		"properties": {
			"task_id": {"type": "string"},
			"title": {"type": "string"},
			"status": {"type": "string", "enum": ["active", "someday", "completed", "cancelled"]},
			"progress": {"type": "integer", "minimum": 0, "maximum": 100},
			"progress_note": {"type": "string"},
			"blocked": {"type": "boolean"},
			"blocker_note": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"deadline": {"type": "string"},
			"context": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["task_id"]
	}`, tb.updateTask)

	tb.add("archive_task", "Archive a finished or abandoned non-recurring task.", `{
		"type": "object",
		"properties": {"task_id": {"type": "string"}, "reason": {"type": "string"}},
		"required": ["task_id"]
	}`, tb.archiveTask)

	tb.add("set_recurring", "Turn a task into a recurring habit or change its schedule. Days use 0=Monday..6=Sunday. Streak stats are kept.", `{
		"type": "object",
		"properties": {
			"task_id": {"type": "string"},
			"enabled": {"type": "boolean"},
			"days_of_week": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 6}},
			"check_time": {"type": "string", "description": "HH:MM"}
		},
		"required": ["task_id", "enabled"]
	}`, tb.setRecurring)

	tb.add("list_tasks", "List tasks, optionally filtered by status.", `{
		"type": "object",
		"properties": {"status": {"type": "string", "enum": ["active", "someday", "completed", "cancelled", "archived"]}}
	}`, tb.listTasks)

	tb.add("create_question", "Queue a question to ask the user later.", `{
		"type": "object",
		"properties": {
			"question": {"type": "string"},
			"context": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"type": {"type": "string", "enum": ["info_gather", "progress_check", "deadline_check", "start_check", "blocker_check", "status_check", "completion_check", "routine_check"]},
			"related_task_id": {"type": "string"},
			"cooldown_hours": {"type": "integer", "minimum": 1}
		},
		"required": ["question"]
	}`, tb.createQuestion)

	tb.add("update_question", "Change a queued question.", `{
		"type": "object",
		"properties": {
			"question_id": {"type": "string"},
			"question": {"type": "string"},
			"context": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"cooldown_hours": {"type": "integer", "minimum": 1}
		},
		"required": ["question_id"]
	}`, tb.updateQuestion)

	tb.add("remove_question", "Remove a question from the queue.", `{
		"type": "object",
		"properties": {"question_id": {"type": "string"}},
		"required": ["question_id"]
	}`, tb.removeQuestion)

	tb.add("answer_question", "Record the user's answer to a question.", `{
		"type": "object",
		"properties": {"question_id": {"type": "string"}, "answer": {"type": "string"}},
		"required": ["question_id", "answer"]
	}`, tb.answerQuestion)

	tb.add("next_question", "Pick the next question to ask the user, respecting cooldowns.", `{
		"type": "object", "properties": {}
	}`, tb.nextQuestion)

	tb.add("list_questions", "List queued questions.", `{
		"type": "object",
		"properties": {"include_answered": {"type": "boolean"}}
	}`, tb.listQuestions)

	tb.add("schedule_notification", "Schedule a reminder message.", `{
		"type": "object",
		"properties": {
			"message": {"type": "string"},
			"scheduled_at": {"type": "string", "description": "ISO time, 'in 2 hours', 'in 30 minutes' or 'tomorrow 9am'"},
			"type": {"type": "string", "enum": ["reminder", "deadline_alert", "progress_check", "blocker_followup", "question_reminder"]},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"related_task_id": {"type": "string"},
			"related_question_id": {"type": "string"},
			"context": {"type": "string"}
		},
		"required": ["message", "scheduled_at"]
	}`, tb.scheduleNotification)

	tb.add("update_notification", "Change a pending reminder. A new time replaces its calendar event.", `{
		"type": "object",
		"properties": {
			"notification_id": {"type": "string"},
			"message": {"type": "string"},
			"scheduled_at": {"type": "string"},
			"priority": {"type": "string", "enum": ["low", "medium", "high"]},
			"context": {"type": "string"}
		},
		"required": ["notification_id"]
	}`, tb.updateNotification)

	tb.add("cancel_notification", "Cancel a pending reminder.", `{
		"type": "object",
		"properties": {"notification_id": {"type": "string"}, "reason": {"type": "string"}},
		"required": ["notification_id"]
	}`, tb.cancelNotification)

	tb.add("list_notifications", "List reminders, optionally filtered by status.", `{
		"type": "object",
		"properties": {"status": {"type": "string", "enum": ["pending", "delivered", "cancelled"]}}
	}`, tb.listNotifications)

	tb.add("save_insight", "Save an insight worth remembering.", `{
		"type": "object",
		"properties": {
			"title": {"type": "string"},
			"content": {"type": "string"},
			"category": {"type": "string", "enum": ["tech", "life", "work", "learning"]},
			"source": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["title", "content"]
	}`, tb.saveInsight)

	tb.add("list_insights", "List saved insights.", `{
		"type": "object",
		"properties": {"category": {"type": "string", "enum": ["tech", "life", "work", "learning"]}}
	}`, tb.listInsights)

	tb.add("get_dashboard", "Show the dashboard summary and pending reminders.", `{
		"type": "object", "properties": {}
	}`, tb.dashboard)
}

func (tb *Toolbox) createTask(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Title    string         `json:"title"`
		RawInput string         `json:"raw_input"`
		Deadline string         `json:"deadline"`
		Priority model.Priority `json:"priority"`
		Context  string         `json:"context"`
		Tags     []string       `json:"tags"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	task, err := tb.tasks.CreateTask(ctx, TaskInput{
		Title: in.Title, RawInput: in.RawInput, Deadline: in.Deadline,
		Priority: in.Priority, Context: in.Context, Tags: in.Tags,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created task %s: %s", task.ID, task.Title), nil
}

func (tb *Toolbox) updateTask(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TaskID       string            `json:"task_id"`
		Title        *string           `json:"title"`
		Status       *model.TaskStatus `json:"status"`
		Progress     *int              `json:"progress"`
		ProgressNote *string           `json:"progress_note"`
		Blocked      *bool             `json:"blocked"`
		BlockerNote  *string           `json:"blocker_note"`
		Priority     *model.Priority   `json:"priority"`
		Deadline     *string           `json:"deadline"`
		Context      *string           `json:"context"`
		Tags         []string          `json:"tags"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Status != nil && *in.Status == model.TaskArchived {
		return "", fmt.Errorf("use archive_task to archive")
	}
	task, err := tb.tasks.UpdateTask(ctx, in.TaskID, TaskUpdate{
		Title: in.Title, Status: in.Status, Progress: in.Progress, ProgressNote: in.ProgressNote,
		Blocked: in.Blocked, BlockerNote: in.BlockerNote, Priority: in.Priority,
		Deadline: in.Deadline, Context: in.Context, Tags: in.Tags,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated task %s (status %s, progress %d%%)", task.ID, task.Status, task.Progress.Percentage), nil
}

func (tb *Toolbox) archiveTask(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TaskID string `json:"task_id"`
		Reason string `json:"reason"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	task, err := tb.tasks.ArchiveTask(ctx, in.TaskID, in.Reason)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Archived task %s", task.ID), nil
}

func (tb *Toolbox) setRecurring(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		TaskID     string `json:"task_id"`
		Enabled    bool   `json:"enabled"`
		DaysOfWeek []int  `json:"days_of_week"`
		CheckTime  string `json:"check_time"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	task, err := tb.tasks.SetRecurring(ctx, in.TaskID, RecurringInput{Enabled: in.Enabled, DaysOfWeek: in.DaysOfWeek, CheckTime: in.CheckTime})
	if err != nil {
		return "", err
	}
	if !task.IsRecurring() {
		return fmt.Sprintf("Recurring disabled for task %s", task.ID), nil
	}
	return fmt.Sprintf("Task %s recurs on %v (streak %d)", task.ID, task.Recurring.DaysOfWeek, task.Recurring.StreakCurrent), nil
}

func (tb *Toolbox) listTasks(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	var statuses []model.TaskStatus
	if in.Status != "" {
		statuses = append(statuses, in.Status)
	}
	tasks, err := tb.tasks.ListTasks(ctx, statuses...)
	if err != nil {
		return "", err
	}
	if len(tasks) == 0 {
		return "No tasks", nil
	}
	return asJSON(tasks), nil
}

func (tb *Toolbox) createQuestion(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Question      string             `json:"question"`
		Context       string             `json:"context"`
		Priority      model.Priority     `json:"priority"`
		Type          model.QuestionType `json:"type"`
		RelatedTaskID string             `json:"related_task_id"`
		CooldownHours int                `json:"cooldown_hours"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	q, err := tb.questions.CreateQuestion(ctx, QuestionInput{
		Question: in.Question, Context: in.Context, Priority: in.Priority, Type: in.Type,
		RelatedTaskID: in.RelatedTaskID, CooldownHours: in.CooldownHours,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created question %s", q.ID), nil
}

func (tb *Toolbox) updateQuestion(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		QuestionID    string          `json:"question_id"`
		Question      *string         `json:"question"`
		Context       *string         `json:"context"`
		Priority      *model.Priority `json:"priority"`
		CooldownHours *int            `json:"cooldown_hours"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	q, err := tb.questions.UpdateQuestion(ctx, in.QuestionID, QuestionUpdate{
		Question: in.Question, Context: in.Context, Priority: in.Priority, CooldownHours: in.CooldownHours,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated question %s", q.ID), nil
}

func (tb *Toolbox) removeQuestion(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		QuestionID string `json:"question_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if err := tb.questions.RemoveQuestion(ctx, in.QuestionID); err != nil {
		return "", err
	}
	return fmt.Sprintf("Removed question %s", in.QuestionID), nil
}

func (tb *Toolbox) answerQuestion(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		QuestionID string `json:"question_id"`
		Answer     string `json:"answer"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	q, err := tb.questions.AnswerQuestion(ctx, in.QuestionID, in.Answer)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Recorded answer for %s", q.ID), nil
}

func (tb *Toolbox) nextQuestion(ctx context.Context, _ json.RawMessage) (string, error) {
	q, err := tb.questions.NextQuestion(ctx)
	if err != nil {
		return "", err
	}
	if q == nil {
		return "No question is due right now", nil
	}
	return fmt.Sprintf("[%s] %s", q.ID, q.Question), nil
}

func (tb *Toolbox) listQuestions(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		IncludeAnswered bool `json:"include_answered"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	qs, err := tb.questions.ListQuestions(ctx, in.IncludeAnswered)
	if err != nil {
		return "", err
	}
	if len(qs) == 0 {
		return "No questions", nil
	}
	return asJSON(qs), nil
}

func (tb *Toolbox) scheduleNotification(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Message           string                 `json:"message"`
		ScheduledAt       string                 `json:"scheduled_at"`
		Type              model.NotificationType `json:"type"`
		Priority          model.Priority         `json:"priority"`
		RelatedTaskID     string                 `json:"related_task_id"`
		RelatedQuestionID string                 `json:"related_question_id"`
		Context           string                 `json:"context"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	n, err := tb.notifications.Schedule(ctx, NotificationInput{
		Message: in.Message, When: in.ScheduledAt, Type: in.Type, Priority: in.Priority,
		RelatedTaskID: in.RelatedTaskID, RelatedQuestionID: in.RelatedQuestionID,
		Context: in.Context, CreatedBy: creatorFrom(ctx),
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Scheduled notification %s for %s", n.ID, n.ScheduledAt.Format(time.RFC3339)), nil
}

func (tb *Toolbox) updateNotification(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		NotificationID string          `json:"notification_id"`
		Message        *string         `json:"message"`
		ScheduledAt    *string         `json:"scheduled_at"`
		Priority       *model.Priority `json:"priority"`
		Context        *string         `json:"context"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	n, err := tb.notifications.Update(ctx, in.NotificationID, NotificationUpdate{
		Message: in.Message, When: in.ScheduledAt, Priority: in.Priority, Context: in.Context,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated notification %s (scheduled %s)", n.ID, n.ScheduledAt.Format(time.RFC3339)), nil
}

func (tb *Toolbox) cancelNotification(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		NotificationID string `json:"notification_id"`
		Reason         string `json:"reason"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	return tb.notifications.Cancel(ctx, in.NotificationID, in.Reason)
}

func (tb *Toolbox) listNotifications(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Status model.NotificationStatus `json:"status"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	ns, err := tb.notifications.List(ctx, in.Status)
	if err != nil {
		return "", err
	}
	if len(ns) == 0 {
		return "No notifications", nil
	}
	return asJSON(ns), nil
}

func (tb *Toolbox) saveInsight(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Title    string                `json:"title"`
		Content  string                `json:"content"`
		Category model.InsightCategory `json:"category"`
		Source   string                `json:"source"`
		Tags     []string              `json:"tags"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	insight, err := tb.insights.SaveInsight(ctx, InsightInput{
		Title: in.Title, Content: in.Content, Category: in.Category, Source: in.Source, Tags: in.Tags,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved insight %s", insight.ID), nil
}

func (tb *Toolbox) listInsights(ctx context.Context, args json.RawMessage) (string, error) {
	var in struct {
		Category model.InsightCategory `json:"category"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	list, err := tb.insights.ListInsights(ctx, in.Category)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "No insights", nil
	}
	return asJSON(list), nil
}

func (tb *Toolbox) dashboard(ctx context.Context, _ json.RawMessage) (string, error) {
	now := tb.now()
	summary, err := tb.reminders.DailySummary(ctx, now)
	if err != nil {
		return "", err
	}
	pending, err := tb.reminders.PendingSummary(ctx, now)
	if err != nil {
		return "", err
	}
	return strings.Join([]string{summary, pending}, "\n\n"), nil
}

type creatorKey struct{}

// WithCreator tags writes made through ctx with the given creator.
func WithCreator(ctx context.Context, c model.Creator) context.Context {
	return context.WithValue(ctx, creatorKey{}, c)
}

func creatorFrom(ctx context.Context) model.Creator {
	if c, ok := ctx.Value(creatorKey{}).(model.Creator); ok {
		return c
	}
	return model.CreatedByUser
}
