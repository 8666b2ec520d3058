package repository

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Document is one stored collection in the SQLite backend.
type Document struct {
	Name      string `gorm:"primaryKey"`
	Body      string `gorm:"not null"`
	UpdatedAt time.Time
}

// NewDB opens the SQLite ledger database and migrates the documents table.
// Logs go to stderr because stdout may carry the MCP stream.
func NewDB(path string) (*gorm.DB, error) {
	if path == "" {
		path = "taskledger.db"
	}
	if err := ensureParentDir(path); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stderr, "[gorm] ", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		},
	)

	db, err := gorm.Open(sqlite.Open(withPragmas(path)), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("migrate documents: %w", err)
	}
	return db, nil
}

func isMemoryPath(path string) bool {
	return strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
}

// withPragmas adds a busy timeout, and WAL for file databases, unless the
// caller already passed query options.
func withPragmas(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	if isMemoryPath(path) {
		return path + "?_busy_timeout=5000"
	}
	return path + "?_busy_timeout=5000&_journal_mode=WAL"
}

func ensureParentDir(path string) error {
	if isMemoryPath(path) {
		return nil
	}
	clean, _, _ := strings.Cut(strings.TrimPrefix(path, "file:"), "?")
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
