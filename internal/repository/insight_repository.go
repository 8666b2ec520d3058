package repository

import (
	"context"
	"fmt"

	"taskledger/internal/model"
)

func (s *Store) LoadInsights(ctx context.Context) (*model.InsightFile, error) {
	f := &model.InsightFile{Version: model.FileVersion}
	if err := s.load(ctx, CollectionInsights, f); err != nil {
		return nil, fmt.Errorf("load insights: %w", err)
	}
	if f.Insights == nil {
		f.Insights = []model.Insight{}
	}
	return f, nil
}

func (s *Store) SaveInsights(ctx context.Context, f *model.InsightFile) error {
	if f.Version == "" {
		f.Version = model.FileVersion
	}
	if f.Insights == nil {
		f.Insights = []model.Insight{}
	}
	ids := make([]string, 0, len(f.Insights))
	for _, in := range f.Insights {
		ids = append(ids, in.ID)
	}
	return s.save(ctx, CollectionInsights, f, ids)
}
