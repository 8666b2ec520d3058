package model

import (
	"strings"
	"testing"
	"time"
)

func TestQuestionIsAnswered(t *testing.T) {
	if (Question{Answer: "   "}).IsAnswered() {
		t.Fatalf("blank answer counted")
	}
	if !(Question{Answer: "yes"}).IsAnswered() {
		t.Fatalf("answer text without flag not counted")
	}
	if !(Question{Answered: true}).IsAnswered() {
		t.Fatalf("flag not counted")
	}
}

func TestQuestionCanAskRespectsCooldown(t *testing.T) {
	asked := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	q := Question{CooldownHours: 6, LastAskedAt: &asked}
	if q.CanAsk(asked.Add(5 * time.Hour)) {
		t.Fatalf("asked inside cooldown")
	}
	if !q.CanAsk(asked.Add(6 * time.Hour)) {
		t.Fatalf("not askable once cooldown elapsed")
	}

	q.CooldownHours = 0
	if q.CanAsk(asked.Add(23 * time.Hour)) {
		t.Fatalf("zero cooldown should fall back to %dh", DefaultCooldownHours)
	}
	if !(Question{}).CanAsk(asked) {
		t.Fatalf("never-asked question not askable")
	}
}

func TestNewIDHasPrefix(t *testing.T) {
	a, b := NewID(TaskIDPrefix), NewID(TaskIDPrefix)
	if !strings.HasPrefix(a, TaskIDPrefix) || len(a) != len(TaskIDPrefix)+8 {
		t.Fatalf("NewID = %q", a)
	}
	if a == b {
		t.Fatalf("NewID repeated %q", a)
	}
}
