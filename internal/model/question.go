package model

import (
	"strings"
	"time"
)

type QuestionType string

const (
	QuestionInfoGather      QuestionType = "info_gather"
	QuestionProgressCheck   QuestionType = "progress_check"
	QuestionDeadlineCheck   QuestionType = "deadline_check"
	QuestionStartCheck      QuestionType = "start_check"
	QuestionBlockerCheck    QuestionType = "blocker_check"
	QuestionStatusCheck     QuestionType = "status_check"
	QuestionCompletionCheck QuestionType = "completion_check"
	QuestionRoutineCheck    QuestionType = "routine_check"
)

// DefaultCooldownHours applies when a question is created without a cooldown.
const DefaultCooldownHours = 24

// Question is something the assistant wants to ask the user.
type Question struct {
	ID            string       `json:"id"`
	Question      string       `json:"question"`
	Context       string       `json:"context,omitempty"`
	Priority      Priority     `json:"priority"`
	Type          QuestionType `json:"type"`
	RelatedTaskID string       `json:"related_task_id,omitempty"`
	AskedCount    int          `json:"asked_count"`
	LastAskedAt   *time.Time   `json:"last_asked_at,omitempty"`
	CooldownHours int          `json:"cooldown_hours"`
	Answered      bool         `json:"answered"`
	Answer        string       `json:"answer,omitempty"`
	AnsweredAt    *time.Time   `json:"answered_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IsAnswered treats a non-blank answer as answered even if the flag was never set.
func (q Question) IsAnswered() bool {
	return q.Answered || strings.TrimSpace(q.Answer) != ""
}

// CanAsk reports whether the cooldown since the last ask has elapsed.
func (q Question) CanAsk(now time.Time) bool {
	if q.LastAskedAt == nil {
		return true
	}
	cooldown := q.CooldownHours
	if cooldown <= 0 {
		cooldown = DefaultCooldownHours
	}
	return !now.Before(q.LastAskedAt.Add(time.Duration(cooldown) * time.Hour))
}

// QuestionFile is the persisted questions collection.
type QuestionFile struct {
	Version   string     `json:"version"`
	Questions []Question `json:"questions"`
}

func (f *QuestionFile) FindQuestion(id string) *Question {
	for i := range f.Questions {
		if f.Questions[i].ID == id {
			return &f.Questions[i]
		}
	}
	return nil
}
