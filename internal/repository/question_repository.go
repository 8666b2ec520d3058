package repository

import (
	"context"
	"fmt"

	"taskledger/internal/model"
)

func (s *Store) LoadQuestions(ctx context.Context) (*model.QuestionFile, error) {
	f := &model.QuestionFile{Version: model.FileVersion}
	if err := s.load(ctx, CollectionQuestions, f); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if f.Questions == nil {
		f.Questions = []model.Question{}
	}
	return f, nil
}

func (s *Store) SaveQuestions(ctx context.Context, f *model.QuestionFile) error {
	if f.Version == "" {
		f.Version = model.FileVersion
	}
	if f.Questions == nil {
		f.Questions = []model.Question{}
	}
	ids := make([]string, 0, len(f.Questions))
	for _, q := range f.Questions {
		ids = append(ids, q.ID)
	}
	return s.save(ctx, CollectionQuestions, f, ids)
}
