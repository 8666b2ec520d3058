package service

import (
	"time"

	"taskledger/internal/model"
)

const dateLayout = "2006-01-02"

// weekdayIndex maps time.Weekday onto 0=Monday .. 6=Sunday.
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// previousScheduledDay finds the closest day strictly before today that is
// one of days, looking back at most a week.
func previousScheduledDay(today time.Time, days []int) (time.Time, bool) {
	for i := 1; i <= 7; i++ {
		d := today.AddDate(0, 0, -i)
		for _, wd := range days {
			if weekdayIndex(d) == wd {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// recordCompletion updates stats for a finished recurring task and puts it
// back on the board. Completing twice on the same day counts once.
func recordCompletion(task *model.Task, now time.Time) bool {
	rec := task.Recurring
	if rec == nil || !rec.Enabled {
		return false
	}
	done := task.Status == model.TaskCompleted || (task.IsOpen() && task.Progress.Percentage >= 100)
	if !done {
		return false
	}

	today := now.Format(dateLayout)
	if rec.LastCompletedDate != today {
		rec.TotalCompleted++
		prev, ok := previousScheduledDay(now, rec.DaysOfWeek)
		if ok && rec.LastCompletedDate != "" && rec.LastCompletedDate == prev.Format(dateLayout) {
			rec.StreakCurrent++
		} else {
			rec.StreakCurrent = 1
		}
		if rec.StreakCurrent > rec.StreakBest {
			rec.StreakBest = rec.StreakCurrent
		}
		rec.LastCompletedDate = today
	}

	task.Status = model.TaskActive
	task.Progress.Percentage = 0
	task.CompletedAt = nil
	task.UpdatedAt = &now
	return true
}

// recordMiss counts the previous scheduled day as missed when it was neither
// completed nor already counted. Tasks created on or after that day are not
// penalised.
func recordMiss(task *model.Task, now time.Time) bool {
	rec := task.Recurring
	if rec == nil || !rec.Enabled || !task.IsOpen() {
		return false
	}
	prev, ok := previousScheduledDay(now, rec.DaysOfWeek)
	if !ok {
		return false
	}
	prevDate := prev.Format(dateLayout)

	if rec.LastCompletedDate == "" && rec.LastMissDate == "" {
		if task.CreatedAt.IsZero() || task.CreatedAt.In(now.Location()).Format(dateLayout) >= prevDate {
			return false
		}
	}
	if rec.LastCompletedDate >= prevDate || rec.LastMissDate >= prevDate {
		return false
	}

	rec.StreakCurrent = 0
	rec.TotalMissed++
	rec.LastMissDate = prevDate
	return true
}
