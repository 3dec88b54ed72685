package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/roomlink/internal/settings"
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	username   TEXT NOT NULL DEFAULT '',
	server_url TEXT NOT NULL DEFAULT '',
	api_key    TEXT NOT NULL DEFAULT ''
);
`

// Store implements settings.Store over a single-row SQLite table.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the settings database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Load returns the record, or a zero one if nothing was saved yet.
func (s *Store) Load(ctx context.Context) (settings.Record, error) {
	var rec settings.Record
	row := s.db.QueryRowContext(ctx,
		`SELECT username, server_url, api_key FROM settings WHERE id = 1`)
	if err := row.Scan(&rec.Username, &rec.ServerURL, &rec.APIKey); err != nil {
		if err == sql.ErrNoRows {
			return settings.Record{}, nil
		}
		return settings.Record{}, fmt.Errorf("load settings: %w", err)
	}
	return rec, nil
}

// Save upserts the single record.
func (s *Store) Save(ctx context.Context, rec settings.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, username, server_url, api_key)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username   = excluded.username,
			server_url = excluded.server_url,
			api_key    = excluded.api_key
	`, rec.Username, rec.ServerURL, rec.APIKey)
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
