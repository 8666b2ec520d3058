package service

import (
	"context"
	"log"
	"strings"
	"time"

	"taskledger/internal/model"
)

// bootstrap fills in metadata for items that were added without the tools,
// for example by editing a document by hand. Each collection is handled on
// its own so one broken collection does not block the others.
func (w *WorkerAgent) bootstrap(ctx context.Context, now time.Time) error {
	steps := []struct {
		name string
		fn   func(context.Context, time.Time) (int, error)
	}{
		{"tasks", w.bootstrapTasks},
		{"questions", w.bootstrapQuestions},
		{"notifications", w.bootstrapNotifications},
		{"insights", w.bootstrapInsights},
	}
	var firstErr error
	for _, step := range steps {
		err := safeStep("bootstrap "+step.name, func() error {
			n, err := step.fn(ctx, now)
			if n > 0 && err == nil {
				log.Printf("[worker] bootstrapped %d %s", n, step.name)
			}
			return err
		})
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *WorkerAgent) bootstrapTasks(ctx context.Context, now time.Time) (int, error) {
	f, err := w.store.LoadTasks(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for i := range f.Tasks {
		t := &f.Tasks[i]
		changed := false
		if strings.TrimSpace(t.ID) == "" {
			t.ID = model.NewID(model.TaskIDPrefix)
			changed = true
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
			changed = true
		}
		if t.Status == "" {
			t.Status = model.TaskActive
			changed = true
		}
		if t.Priority == "" {
			t.Priority = model.PriorityMedium
			changed = true
		}
		if changed {
			fixed++
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	return fixed, w.store.SaveTasks(ctx, f)
}

func (w *WorkerAgent) bootstrapQuestions(ctx context.Context, now time.Time) (int, error) {
	f, err := w.store.LoadQuestions(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for i := range f.Questions {
		q := &f.Questions[i]
		changed := false
		if strings.TrimSpace(q.ID) == "" {
			q.ID = model.NewID(model.QuestionIDPrefix)
			changed = true
		}
		if q.CreatedAt.IsZero() {
			q.CreatedAt = now
			changed = true
		}
		if q.Priority == "" {
			q.Priority = model.PriorityMedium
			changed = true
		}
		if q.Type == "" {
			q.Type = model.QuestionInfoGather
			changed = true
		}
		if q.CooldownHours <= 0 {
			q.CooldownHours = model.DefaultCooldownHours
			changed = true
		}
		if q.IsAnswered() && !q.Answered {
			q.Answered = true
			changed = true
		}
		if q.Answered && q.AnsweredAt == nil {
			q.AnsweredAt = &now
			changed = true
		}
		if changed {
			fixed++
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	return fixed, w.store.SaveQuestions(ctx, f)
}

func (w *WorkerAgent) bootstrapNotifications(ctx context.Context, now time.Time) (int, error) {
	f, err := w.store.LoadNotifications(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for i := range f.Notifications {
		n := &f.Notifications[i]
		changed := false
		if strings.TrimSpace(n.ID) == "" {
			n.ID = model.NewID(model.NotificationIDPrefix)
			changed = true
		}
		if n.CreatedAt.IsZero() {
			n.CreatedAt = now
			changed = true
		}
		if n.Status == "" {
			n.Status = model.NotificationPending
			changed = true
		}
		if n.Type == "" {
			n.Type = model.NotificationReminder
			changed = true
		}
		if n.Priority == "" {
			n.Priority = model.PriorityMedium
			changed = true
		}
		if n.CreatedBy == "" {
			n.CreatedBy = model.CreatedByUser
			changed = true
		}
		if changed {
			fixed++
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	return fixed, w.store.SaveNotifications(ctx, f)
}

func (w *WorkerAgent) bootstrapInsights(ctx context.Context, now time.Time) (int, error) {
	f, err := w.store.LoadInsights(ctx)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for i := range f.Insights {
		in := &f.Insights[i]
		changed := false
		if strings.TrimSpace(in.ID) == "" {
			in.ID = model.NewID(model.InsightIDPrefix)
			changed = true
		}
		if in.CreatedAt.IsZero() {
			in.CreatedAt = now
			changed = true
		}
		if in.Category == "" {
			in.Category = model.InsightLife
			changed = true
		}
		if changed {
			fixed++
		}
	}
	if fixed == 0 {
		return 0, nil
	}
	return fixed, w.store.SaveInsights(ctx, f)
}
