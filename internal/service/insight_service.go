package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskledger/internal/model"
	"taskledger/internal/repository"
)

type InsightInput struct {
	Title    string
	Content  string
	Category model.InsightCategory
	Source   string
	Tags     []string
}

type InsightService struct {
	store *repository.Store
	now   func() time.Time
}

func NewInsightService(store *repository.Store, now func() time.Time) *InsightService {
	if now == nil {
		now = time.Now
	}
	return &InsightService{store: store, now: now}
}

func (s *InsightService) SaveInsight(ctx context.Context, input InsightInput) (*model.Insight, error) {
	in := model.Insight{
		ID:        model.NewID(model.InsightIDPrefix),
		Title:     strings.TrimSpace(input.Title),
		Content:   strings.TrimSpace(input.Content),
		Category:  input.Category,
		Source:    input.Source,
		Tags:      input.Tags,
		CreatedAt: s.now(),
	}
	if in.Category == "" {
		in.Category = model.InsightLife
	}

	insights, err := s.store.LoadInsights(ctx)
	if err != nil {
		return nil, err
	}
	insights.Insights = append(insights.Insights, in)
	if err := s.store.SaveInsights(ctx, insights); err != nil {
		return nil, fmt.Errorf("save insight: %w", err)
	}
	return &in, nil
}

func (s *InsightService) ListInsights(ctx context.Context, category model.InsightCategory) ([]model.Insight, error) {
	insights, err := s.store.LoadInsights(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Insight
	for _, in := range insights.Insights {
		if category == "" || in.Category == category {
			out = append(out, in)
		}
	}
	return out, nil
}
