package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
)

// Store is the SQLite-backed document store: the authority for all
// business records. The vector store is a rebuildable projection of
// the embeddings referenced here.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the SQLite database at path and
// prepares all collections, using the same WAL/NORMAL pragma dial as
// the vector store.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeerr.Wrap("open", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, storeerr.Wrap("open", err)
	}

	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS messages (
			id           TEXT PRIMARY KEY,
			type         TEXT NOT NULL,
			raw_content  TEXT NOT NULL,
			fields_json  TEXT NOT NULL,
			sender_id    TEXT NOT NULL,
			receiver_id  TEXT NOT NULL,
			timestamp    TEXT NOT NULL,
			status       TEXT NOT NULL,
			cluster_id   TEXT NOT NULL DEFAULT '',
			template_id  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_messages_status ON messages(status);
		CREATE INDEX IF NOT EXISTS idx_messages_type ON messages(type);
		CREATE INDEX IF NOT EXISTS idx_messages_template_id ON messages(template_id);

		CREATE TABLE IF NOT EXISTS templates (
			id                  TEXT PRIMARY KEY,
			type                TEXT NOT NULL,
			buyer_id            TEXT NOT NULL,
			seller_id           TEXT NOT NULL,
			template_content    TEXT NOT NULL,
			variable_fields_json TEXT NOT NULL,
			cluster_id          TEXT NOT NULL,
			message_count       INTEGER NOT NULL,
			confidence          REAL NOT NULL,
			description         TEXT NOT NULL DEFAULT '',
			created_at          TEXT NOT NULL,
			UNIQUE(type, buyer_id, seller_id, cluster_id)
		);
		CREATE INDEX IF NOT EXISTS idx_templates_type ON templates(type);
		CREATE INDEX IF NOT EXISTS idx_templates_pair ON templates(type, buyer_id, seller_id);

		CREATE TABLE IF NOT EXISTS transactions (
			id                TEXT PRIMARY KEY,
			swift_message_id  TEXT NOT NULL UNIQUE,
			template_id       TEXT NOT NULL DEFAULT '',
			type              TEXT NOT NULL,
			extracted_json    TEXT NOT NULL,
			user_entered_json TEXT NOT NULL,
			match_confidence  REAL NOT NULL,
			matching_details_json TEXT NOT NULL,
			status            TEXT NOT NULL,
			buyer_id          TEXT NOT NULL,
			seller_id         TEXT NOT NULL,
			structured_analysis TEXT,
			processed_at      TEXT NOT NULL,
			metadata_json     TEXT NOT NULL,
			audit_trail_json  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_transactions_template_id ON transactions(template_id);

		CREATE TABLE IF NOT EXISTS system_configuration (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS user_preferences (
			user_id TEXT NOT NULL,
			key     TEXT NOT NULL,
			value   TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
