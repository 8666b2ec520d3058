package repository

import (
	"context"
	"fmt"

	"taskledger/internal/model"
)

// LoadTasks returns the tasks collection, empty if nothing was saved yet.
func (s *Store) LoadTasks(ctx context.Context) (*model.TaskFile, error) {
	f := &model.TaskFile{Version: model.FileVersion}
	if err := s.load(ctx, CollectionTasks, f); err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	if f.Tasks == nil {
		f.Tasks = []model.Task{}
	}
	return f, nil
}

func (s *Store) SaveTasks(ctx context.Context, f *model.TaskFile) error {
	if f.Version == "" {
		f.Version = model.FileVersion
	}
	if f.Tasks == nil {
		f.Tasks = []model.Task{}
	}
	ids := make([]string, 0, len(f.Tasks))
	for _, t := range f.Tasks {
		ids = append(ids, t.ID)
	}
	return s.save(ctx, CollectionTasks, f, ids)
}
