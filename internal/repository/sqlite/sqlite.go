package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Repository persists deployments and indexed product events in a single
// SQLite file.
type Repository struct {
	db  *sql.DB
	log *logrus.Entry
}

// NewRepository opens (or creates) the database at storagePath and makes sure
// the schema exists.
func NewRepository(ctx context.Context, log *logrus.Entry, storagePath string) (*Repository, error) {
	dtb, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", storagePath))
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	return open(ctx, log, dtb)
}

// open checks the connection and migrates the schema. dtb is closed when
// either step fails.
func open(ctx context.Context, log *logrus.Entry, dtb *sql.DB) (*Repository, error) {
	if err := dtb.PingContext(ctx); err != nil {
		dtb.Close()
		return nil, fmt.Errorf("unable to establish connection to database: %w", err)
	}

	if err := initSchema(ctx, dtb); err != nil {
		dtb.Close()
		return nil, fmt.Errorf("DB schema initialization error: %w", err)
	}

	return NewWithDB(dtb, log), nil
}

// NewWithDB wraps an already opened handle without touching the schema.
func NewWithDB(dtb *sql.DB, log *logrus.Entry) *Repository {
	return &Repository{db: dtb, log: log}
}

func initSchema(ctx context.Context, dtb *sql.DB) error {
	const migrationQuery = `
	CREATE TABLE IF NOT EXISTS deployments (
		chain_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		tx_hash TEXT NOT NULL,
		deployer TEXT NOT NULL,
		bytecode_hash TEXT NOT NULL,
		block_number INTEGER NOT NULL,
		deployed_at INTEGER NOT NULL,
		PRIMARY KEY (chain_id, name)
	);

	CREATE TABLE IF NOT EXISTS product_events (
		chain_id INTEGER NOT NULL,
		contract TEXT NOT NULL,
		product_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		actor TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price TEXT NOT NULL,
		block_number INTEGER NOT NULL,
		tx_hash TEXT NOT NULL,
		log_index INTEGER NOT NULL,
		UNIQUE (tx_hash, log_index)
	);

	CREATE INDEX IF NOT EXISTS idx_product_events_product
		ON product_events (chain_id, contract, product_id);
	`
	_, err := dtb.ExecContext(ctx, migrationQuery)
	if err != nil {
		return fmt.Errorf("failed to execute migration query: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	if err := r.db.Close(); err != nil {
		r.log.WithError(err).WithField("op", "repository.sqlite.Close").Error("failed to close the database")
		return fmt.Errorf("failed to close the database: %w", err)
	}

	return nil
}
