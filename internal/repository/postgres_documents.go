package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
)

const (
	postgresDocumentsTable   = "taskledger_documents"
	postgresOperationTimeout = 5 * time.Second
)

// PostgresDocuments stores collections in a single key/value table.
// The connection and table are created lazily on first use.
type PostgresDocuments struct {
	dsn       string
	tableName string

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

func NewPostgresDocuments(dsn string) (*PostgresDocuments, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("%w: empty postgres dsn", ErrUnsupportedDSN)
	}
	return &PostgresDocuments{dsn: dsn, tableName: postgresDocumentsTable}, nil
}

func (d *PostgresDocuments) Load(ctx context.Context, name string) ([]byte, error) {
	if err := d.ensureReady(ctx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT body FROM %s WHERE name = $1", quoteIdentifier(d.tableName))
	var body string
	err := d.db.QueryRowContext(ctx, query, name).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return []byte(body), nil
}

func (d *PostgresDocuments) Save(ctx context.Context, name string, data []byte) error {
	if err := d.ensureReady(ctx); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		INSERT INTO %s (name, body, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name)
		DO UPDATE SET body = EXCLUDED.body, updated_at = NOW()`, quoteIdentifier(d.tableName))
	if _, err := d.db.ExecContext(ctx, query, name, string(data)); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	return nil
}

func (d *PostgresDocuments) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *PostgresDocuments) ensureReady(ctx context.Context) error {
	d.initOnce.Do(func() {
		db, err := sql.Open("postgres", d.dsn)
		if err != nil {
			d.initErr = fmt.Errorf("open postgres: %w", err)
			return
		}
		ctx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
		defer cancel()

		query := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				name TEXT PRIMARY KEY,
				body TEXT NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, quoteIdentifier(d.tableName))
		if _, err := db.ExecContext(ctx, query); err != nil {
			_ = db.Close()
			d.initErr = fmt.Errorf("create documents table: %w", err)
			return
		}
		d.db = db
	})
	return d.initErr
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
