package model

import (
	"strings"

	"github.com/google/uuid"
)

// FileVersion is written into every persisted collection.
const FileVersion = "1.0"

// Id prefixes per entity.
const (
	TaskIDPrefix         = "task_"
	QuestionIDPrefix     = "q_"
	NotificationIDPrefix = "n_"
	InsightIDPrefix      = "ins_"
)

// NewID returns prefix followed by 8 random hex characters.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + raw[:8]
}
