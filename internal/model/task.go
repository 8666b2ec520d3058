package model

import "time"

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskActive    TaskStatus = "active"
	TaskSomeday   TaskStatus = "someday"
	TaskCompleted TaskStatus = "completed"
	TaskCancelled TaskStatus = "cancelled"
	TaskArchived  TaskStatus = "archived"
)

// Priority is shared by tasks, questions and notifications.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Progress tracks how far along a task is.
type Progress struct {
	Percentage  int        `json:"percentage"`
	LastUpdate  *time.Time `json:"last_update,omitempty"`
	Note        string     `json:"note,omitempty"`
	Blocked     bool       `json:"blocked"`
	BlockerNote string     `json:"blocker_note,omitempty"`
}

// Recurring describes a habit-style task that resets after every completion.
// DaysOfWeek uses 0 for Monday through 6 for Sunday; dates are YYYY-MM-DD.
type Recurring struct {
	Enabled           bool   `json:"enabled"`
	DaysOfWeek        []int  `json:"days_of_week"`
	CheckTime         string `json:"check_time,omitempty"`
	StreakCurrent     int    `json:"streak_current"`
	StreakBest        int    `json:"streak_best"`
	TotalCompleted    int    `json:"total_completed"`
	TotalMissed       int    `json:"total_missed"`
	LastCompletedDate string `json:"last_completed_date,omitempty"`
	LastMissDate      string `json:"last_miss_date,omitempty"`
}

// Task represents a single tracked item on the dashboard.
type Task struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	RawInput     string     `json:"raw_input,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	DeadlineText string     `json:"deadline_text,omitempty"`
	Progress     Progress   `json:"progress"`
	Status       TaskStatus `json:"status"`
	Priority     Priority   `json:"priority"`
	Context      string     `json:"context,omitempty"`
	Tags         []string   `json:"tags,omitempty"`
	Recurring    *Recurring `json:"recurring,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// IsRecurring reports whether the task carries an enabled recurring config.
func (t Task) IsRecurring() bool {
	return t.Recurring != nil && t.Recurring.Enabled
}

// IsOpen is true for tasks still on the board (active or someday).
func (t Task) IsOpen() bool {
	return t.Status == TaskActive || t.Status == TaskSomeday
}

// TaskFile is the persisted tasks collection.
type TaskFile struct {
	Version string `json:"version"`
	Tasks   []Task `json:"tasks"`
}

// FindTask returns a pointer into the collection or nil.
func (f *TaskFile) FindTask(id string) *Task {
	for i := range f.Tasks {
		if f.Tasks[i].ID == id {
			return &f.Tasks[i]
		}
	}
	return nil
}
