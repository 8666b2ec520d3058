package repository

import (
	"context"
	"fmt"

	"taskledger/internal/model"
)

func (s *Store) LoadNotifications(ctx context.Context) (*model.NotificationFile, error) {
	f := &model.NotificationFile{Version: model.FileVersion}
	if err := s.load(ctx, CollectionNotifications, f); err != nil {
		return nil, fmt.Errorf("load notifications: %w", err)
	}
	if f.Notifications == nil {
		f.Notifications = []model.Notification{}
	}
	return f, nil
}

// SaveNotifications additionally rejects any record whose status moves
// backward relative to what is currently stored.
func (s *Store) SaveNotifications(ctx context.Context, f *model.NotificationFile) error {
	if f.Version == "" {
		f.Version = model.FileVersion
	}
	if f.Notifications == nil {
		f.Notifications = []model.Notification{}
	}

	current, err := s.LoadNotifications(ctx)
	if err != nil {
		return err
	}
	previous := make(map[string]model.NotificationStatus, len(current.Notifications))
	for _, n := range current.Notifications {
		previous[n.ID] = n.Status
	}

	ids := make([]string, 0, len(f.Notifications))
	for _, n := range f.Notifications {
		if before, ok := previous[n.ID]; ok && !before.CanBecome(n.Status) {
			return &ValidationError{
				Collection: CollectionNotifications,
				Message:    fmt.Sprintf("notification %s cannot move from %s to %s", n.ID, before, n.Status),
			}
		}
		ids = append(ids, n.ID)
	}
	return s.save(ctx, CollectionNotifications, f, ids)
}
