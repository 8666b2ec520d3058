package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

var ErrNotFound = errors.New("not found")

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title     string
	RawInput  string
	Deadline  string
	Priority  model.Priority
	Context   string
	Tags      []string
	Status    model.TaskStatus
	Recurring *RecurringInput
}

// TaskUpdate carries optional changes; nil fields are left alone.
type TaskUpdate struct {
	Title        *string
	Status       *model.TaskStatus
	Progress     *int
	ProgressNote *string
	Blocked      *bool
	BlockerNote  *string
	Priority     *model.Priority
	Deadline     *string
	Context      *string
	Tags         []string
}

type RecurringInput struct {
	Enabled    bool
	DaysOfWeek []int
	CheckTime  string
}

// TaskService wraps task-related business logic.
type TaskService struct {
	store *repository.Store
	now   func() time.Time
}

func NewTaskService(store *repository.Store, now func() time.Time) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{store: store, now: now}
}

func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}
	now := s.now()

	task := model.Task{
		ID:        model.NewID(model.TaskIDPrefix),
		Title:     title,
		RawInput:  input.RawInput,
		Status:    input.Status,
		Priority:  input.Priority,
		Context:   input.Context,
		Tags:      input.Tags,
		CreatedAt: now,
		UpdatedAt: &now,
	}
	if task.Status == "" {
		task.Status = model.TaskActive
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	setDeadline(&task, input.Deadline, now)
	if input.Recurring != nil {
		applyRecurringInput(&task, *input.Recurring)
	}

	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	tasks.Tasks = append(tasks.Tasks, task)
	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return &task, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, id string, upd TaskUpdate) (*model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	task := tasks.FindTask(id)
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	now := s.now()

	if upd.Title != nil {
		task.Title = strings.TrimSpace(*upd.Title)
	}
	if upd.Priority != nil {
		task.Priority = *upd.Priority
	}
	if upd.Context != nil {
		task.Context = *upd.Context
	}
	if upd.Tags != nil {
		task.Tags = upd.Tags
	}
	if upd.Deadline != nil {
		setDeadline(task, *upd.Deadline, now)
	}

	progressTouched := false
	if upd.Progress != nil {
		task.Progress.Percentage = *upd.Progress
		progressTouched = true
	}
	if upd.ProgressNote != nil {
		task.Progress.Note = *upd.ProgressNote
		progressTouched = true
	}
	if upd.Blocked != nil {
		task.Progress.Blocked = *upd.Blocked
		if !*upd.Blocked {
			task.Progress.BlockerNote = ""
		}
		progressTouched = true
	}
	if upd.BlockerNote != nil {
		task.Progress.BlockerNote = *upd.BlockerNote
		progressTouched = true
	}
	if progressTouched {
		task.Progress.LastUpdate = &now
	}

	if upd.Status != nil {
		task.Status = *upd.Status
		switch task.Status {
		case model.TaskCompleted:
			task.Progress.Percentage = 100
			if task.CompletedAt == nil {
				task.CompletedAt = &now
			}
		case model.TaskActive, model.TaskSomeday:
			task.CompletedAt = nil
		}
	}
	task.UpdatedAt = &now

	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	out := *task
	return &out, nil
}

// CompleteTask marks a task as done. Recurring tasks are reset by the next
// worker cycle, which also records the streak.
func (s *TaskService) CompleteTask(ctx context.Context, id string) (*model.Task, error) {
	status := model.TaskCompleted
	return s.UpdateTask(ctx, id, TaskUpdate{Status: &status})
}

// ArchiveTask archives a task directly. Recurring tasks must have recurring
// disabled first.
func (s *TaskService) ArchiveTask(ctx context.Context, id, reason string) (*model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	task := tasks.FindTask(id)
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if task.IsRecurring() {
		return nil, fmt.Errorf("task %s is recurring; disable recurring before archiving", id)
	}
	now := s.now()
	archiveTask(task, now)
	if reason = strings.TrimSpace(reason); reason != "" {
		task.Context = appendLine(task.Context, "Archived: "+reason)
	}
	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("archive task: %w", err)
	}
	out := *task
	return &out, nil
}

// SetRecurring replaces the schedule of a task and keeps its stats.
func (s *TaskService) SetRecurring(ctx context.Context, id string, input RecurringInput) (*model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	task := tasks.FindTask(id)
	if task == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
	}
	if task.Status == model.TaskArchived {
		return nil, fmt.Errorf("task %s is archived", id)
	}
	applyRecurringInput(task, input)
	if task.IsRecurring() {
		task.Status = model.TaskActive
	}
	now := s.now()
	task.UpdatedAt = &now

	if err := s.store.SaveTasks(ctx, tasks); err != nil {
		return nil, fmt.Errorf("set recurring: %w", err)
	}
	out := *task
	return &out, nil
}

// ListTasks returns tasks with one of the given statuses, or every
// non-archived task when none are given.
func (s *TaskService) ListTasks(ctx context.Context, statuses ...model.TaskStatus) ([]model.Task, error) {
	tasks, err := s.store.LoadTasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Task
	for _, t := range tasks.Tasks {
		if len(statuses) == 0 {
			if t.Status != model.TaskArchived {
				out = append(out, t)
			}
			continue
		}
		for _, st := range statuses {
			if t.Status == st {
				out = append(out, t)
				break
			}
		}
	}
	return out, nil
}

func applyRecurringInput(task *model.Task, input RecurringInput) {
	if task.Recurring == nil {
		task.Recurring = &model.Recurring{}
	}
	task.Recurring.Enabled = input.Enabled
	if input.DaysOfWeek != nil {
		task.Recurring.DaysOfWeek = input.DaysOfWeek
	}
	if input.CheckTime != "" {
		task.Recurring.CheckTime = input.CheckTime
	}
}

// setDeadline keeps the raw text and parses it when possible. Free-text
// deadlines ("end of spring") stay text only.
func setDeadline(task *model.Task, raw string, now time.Time) {
	raw = strings.TrimSpace(raw)
	task.DeadlineText = raw
	task.Deadline = nil
	if raw == "" {
		return
	}
	if at, err := parseWhen(raw, now); err == nil {
		task.Deadline = &at
	}
}

func archiveTask(task *model.Task, now time.Time) {
	if task.Status == model.TaskCompleted {
		task.Progress.Percentage = 100
	}
	if task.CompletedAt == nil {
		task.CompletedAt = &now
	}
	task.Status = model.TaskArchived
	task.UpdatedAt = &now
}

func appendLine(text, line string) string {
	if text == "" {
		return line
	}
	return text + "\n" + line
}
