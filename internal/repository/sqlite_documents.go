package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteDocuments stores each collection as a row of the documents table.
type SQLiteDocuments struct {
	db *gorm.DB
}

func NewSQLiteDocuments(db *gorm.DB) *SQLiteDocuments {
	return &SQLiteDocuments{db: db}
}

func (d *SQLiteDocuments) Load(ctx context.Context, name string) ([]byte, error) {
	var doc Document
	err := d.db.WithContext(ctx).Where("name = ?", name).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return []byte(doc.Body), nil
}

func (d *SQLiteDocuments) Save(ctx context.Context, name string, data []byte) error {
	doc := Document{Name: name, Body: string(data), UpdatedAt: time.Now()}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&doc).Error
	if err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (d *SQLiteDocuments) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
