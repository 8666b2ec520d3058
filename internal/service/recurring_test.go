package service

import (
	"testing"
	"time"

	"taskledger/internal/model"
)

func TestWeekdayIndexStartsOnMonday(t *testing.T) {
	monday := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := weekdayIndex(monday.AddDate(0, 0, i)); got != i {
			t.Fatalf("weekdayIndex(%s) = %d, want %d", monday.AddDate(0, 0, i).Weekday(), got, i)
		}
	}
}

func TestPreviousScheduledDay(t *testing.T) {
	wednesday := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		days []int
		want string
		ok   bool
	}{
		{"daily", []int{0, 1, 2, 3, 4, 5, 6}, "2026-03-03", true},
		{"mon-fri skips to monday", []int{0, 4}, "2026-03-02", true},
		{"same weekday last week", []int{2}, "2026-02-25", true},
		{"weekend only", []int{5, 6}, "2026-03-01", true},
		{"no days", nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := previousScheduledDay(wednesday, tt.days)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Format(dateLayout) != tt.want {
				t.Fatalf("got %s, want %s", got.Format(dateLayout), tt.want)
			}
		})
	}
}

func TestRecordCompletionStreakBreaksAfterGap(t *testing.T) {
	now := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	task := model.Task{
		Status:    model.TaskCompleted,
		Progress:  model.Progress{Percentage: 100},
		Recurring: &model.Recurring{Enabled: true, DaysOfWeek: []int{0, 2, 4}, StreakCurrent: 6, StreakBest: 6, LastCompletedDate: "2026-02-27"},
	}
	if !recordCompletion(&task, now) {
		t.Fatalf("completion not recorded")
	}
	if task.Recurring.StreakCurrent != 1 || task.Recurring.StreakBest != 6 {
		t.Fatalf("streak = %d best %d, want 1 and 6", task.Recurring.StreakCurrent, task.Recurring.StreakBest)
	}

	// Monday was the previous scheduled day, so Wednesday extends from it.
	task.Status = model.TaskCompleted
	task.Recurring.LastCompletedDate = "2026-03-02"
	task.Recurring.StreakCurrent = 2
	recordCompletion(&task, now)
	if task.Recurring.StreakCurrent != 3 {
		t.Fatalf("streak = %d, want 3", task.Recurring.StreakCurrent)
	}
}

func TestRecordCompletionIgnoresUnfinishedAndDisabled(t *testing.T) {
	now := time.Date(2026, 3, 4, 20, 0, 0, 0, time.UTC)
	open := model.Task{Status: model.TaskActive, Progress: model.Progress{Percentage: 50},
		Recurring: &model.Recurring{Enabled: true, DaysOfWeek: []int{2}}}
	if recordCompletion(&open, now) {
		t.Fatalf("half-done task recorded as complete")
	}
	disabled := model.Task{Status: model.TaskCompleted, Recurring: &model.Recurring{Enabled: false, DaysOfWeek: []int{2}}}
	if recordCompletion(&disabled, now) {
		t.Fatalf("disabled recurrence recorded")
	}
}

func TestRecordMissSkipsCompletedDay(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	task := model.Task{
		Status:    model.TaskActive,
		CreatedAt: now.AddDate(0, -1, 0),
		Recurring: &model.Recurring{Enabled: true, DaysOfWeek: []int{0}, LastCompletedDate: "2026-03-02", StreakCurrent: 4},
	}
	if recordMiss(&task, now) {
		t.Fatalf("completed Monday counted as a miss")
	}
	if task.Recurring.StreakCurrent != 4 {
		t.Fatalf("streak changed to %d", task.Recurring.StreakCurrent)
	}
}

func TestDesiredStatus(t *testing.T) {
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC)
	old := now.AddDate(0, 0, -30)
	recent := now.AddDate(0, 0, -2)
	far := now.AddDate(0, 2, 0)
	tests := []struct {
		name string
		task model.Task
		want model.TaskStatus
	}{
		{"idle", model.Task{Status: model.TaskActive, Priority: model.PriorityMedium, CreatedAt: old}, model.TaskSomeday},
		{"high priority", model.Task{Status: model.TaskSomeday, Priority: model.PriorityHigh, CreatedAt: old}, model.TaskActive},
		{"in progress", model.Task{Status: model.TaskSomeday, CreatedAt: old, Progress: model.Progress{Percentage: 10}}, model.TaskActive},
		{"recent update", model.Task{Status: model.TaskSomeday, CreatedAt: old, Progress: model.Progress{LastUpdate: &recent}}, model.TaskActive},
		{"distant deadline", model.Task{Status: model.TaskActive, CreatedAt: old, Deadline: &far}, model.TaskSomeday},
		{"recurring", model.Task{Status: model.TaskSomeday, CreatedAt: old, Recurring: &model.Recurring{Enabled: true, DaysOfWeek: []int{1}}}, model.TaskActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := desiredStatus(&tt.task, now); got != tt.want {
				t.Fatalf("desiredStatus = %s, want %s", got, tt.want)
			}
		})
	}
}
