package model

import "time"

type InsightCategory string

const (
	InsightTech     InsightCategory = "tech"
	InsightLife     InsightCategory = "life"
	InsightWork     InsightCategory = "work"
	InsightLearning InsightCategory = "learning"
)

// Insight is a note worth keeping that came out of a conversation.
type Insight struct {
	ID        string          `json:"id"`
	Title     string          `json:"title"`
	Content   string          `json:"content"`
	Category  InsightCategory `json:"category"`
	Source    string          `json:"source,omitempty"`
	Tags      []string        `json:"tags,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type InsightFile struct {
	Version  string    `json:"version"`
	Insights []Insight `json:"insights"`
}
