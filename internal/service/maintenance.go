package service

import (
	"strings"
	"time"

	"taskledger/internal/model"
)

const (
	deadlineApproachingDays = 7
	recentActivityDays      = 7
	staleQuestionDays       = 14
	maxAnsweredInContext    = 20
)

// enforceConsistency repairs contradictory task fields.
func enforceConsistency(task *model.Task, now time.Time) bool {
	changed := false
	switch {
	case task.IsOpen() && task.Progress.Percentage >= 100:
		task.Status = model.TaskCompleted
		if task.CompletedAt == nil {
			task.CompletedAt = &now
		}
		changed = true
	case task.Status == model.TaskCompleted && task.Progress.Percentage < 100:
		task.Progress.Percentage = 100
		changed = true
	}
	if task.Status == model.TaskCompleted && task.CompletedAt == nil {
		task.CompletedAt = &now
		changed = true
	}
	if task.IsOpen() && task.CompletedAt != nil {
		task.CompletedAt = nil
		changed = true
	}
	return changed
}

// archiveIfTerminal archives completed and cancelled tasks in place.
// Cancelling a recurring task stops the recurrence.
func archiveIfTerminal(task *model.Task, now time.Time) bool {
	if task.Status != model.TaskCompleted && task.Status != model.TaskCancelled {
		return false
	}
	if task.IsRecurring() {
		if task.Status != model.TaskCancelled {
			return false
		}
		task.Recurring.Enabled = false
	}
	archiveTask(task, now)
	return true
}

// desiredStatus picks active or someday for an open task.
func desiredStatus(task *model.Task, now time.Time) model.TaskStatus {
	if task.IsRecurring() {
		return model.TaskActive
	}
	if task.Deadline != nil && task.Deadline.Sub(now) <= deadlineApproachingDays*24*time.Hour {
		return model.TaskActive
	}
	if task.Priority == model.PriorityHigh || task.Progress.Percentage > 0 {
		return model.TaskActive
	}
	last := task.CreatedAt
	if task.Progress.LastUpdate != nil {
		last = *task.Progress.LastUpdate
	}
	if now.Sub(last) <= recentActivityDays*24*time.Hour {
		return model.TaskActive
	}
	return model.TaskSomeday
}

func reevaluate(task *model.Task, now time.Time) bool {
	if !task.IsOpen() {
		return false
	}
	want := desiredStatus(task, now)
	if task.Status == want {
		return false
	}
	task.Status = want
	return true
}

// questionKey identifies duplicate questions about the same task.
func questionKey(q model.Question) string {
	return q.RelatedTaskID + "|" + strings.Join(strings.Fields(strings.ToLower(q.Question)), " ")
}

// cleanupQuestions drops stale, orphaned and duplicate unanswered questions,
// and answered ones that were consumed. liveTasks holds non-archived task ids.
func cleanupQuestions(questions []model.Question, liveTasks map[string]bool, consumed map[string]bool, now time.Time) ([]model.Question, int) {
	staleBefore := now.AddDate(0, 0, -staleQuestionDays)
	seen := make(map[string]bool)
	kept := make([]model.Question, 0, len(questions))

	for _, q := range questions {
		if q.IsAnswered() {
			if consumed[q.ID] {
				continue
			}
			kept = append(kept, q)
			continue
		}
		if q.CreatedAt.Before(staleBefore) {
			continue
		}
		if q.RelatedTaskID != "" && !liveTasks[q.RelatedTaskID] {
			continue
		}
		key := questionKey(q)
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, q)
	}
	return kept, len(questions) - len(kept)
}

// answeredSnapshot copies up to maxAnsweredInContext answered questions.
// Overflow stays queued for a later cycle.
func answeredSnapshot(questions []model.Question) []model.Question {
	var out []model.Question
	for _, q := range questions {
		if !q.IsAnswered() {
			continue
		}
		if len(out) == maxAnsweredInContext {
			break
		}
		out = append(out, q)
	}
	return out
}
