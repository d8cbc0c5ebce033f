// Package journal provides the SQLite-backed processed-notification journal.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS notifications (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id     TEXT NOT NULL,
	event_name   TEXT NOT NULL,
	bucket       TEXT NOT NULL,
	object_key   TEXT NOT NULL,
	item_id      TEXT NOT NULL DEFAULT '',
	outcome      TEXT NOT NULL,
	error        TEXT NOT NULL DEFAULT '',
	processed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_notifications_item ON notifications(item_id);
`

// SQLiteJournal implements output.Journal on a local SQLite database.
type SQLiteJournal struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal at path.
func Open(ctx context.Context, path string) (*SQLiteJournal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, &domain.StorageError{Operation: "open", URI: path, Err: err}
		}
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &domain.StorageError{Operation: "open", URI: path, Err: err}
	}
	// A single connection keeps :memory: databases alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "open", URI: path, Err: err}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Operation: "migrate", URI: path, Err: err}
	}

	return &SQLiteJournal{db: db}, nil
}

// Record implements output.Journal.
func (j *SQLiteJournal) Record(ctx context.Context, e output.JournalEntry) error {
	if e.EventID == "" {
		// Spool files and some gateways omit eventId.
		e.EventID = uuid.NewString()
	}
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO notifications
			(event_id, event_name, bucket, object_key, item_id, outcome, error, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.EventName, e.Bucket, e.Key, e.ItemID, e.Outcome, e.Error,
		e.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return &domain.StorageError{Operation: "journal", URI: e.EventID, Err: err}
	}
	return nil
}

// Recent implements output.Journal.
func (j *SQLiteJournal) Recent(ctx context.Context, limit int) ([]output.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT event_id, event_name, bucket, object_key, item_id, outcome, error, processed_at
		FROM notifications
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, &domain.StorageError{Operation: "journal", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var entries []output.JournalEntry
	for rows.Next() {
		var e output.JournalEntry
		var processedAt string
		if err := rows.Scan(&e.EventID, &e.EventName, &e.Bucket, &e.Key,
			&e.ItemID, &e.Outcome, &e.Error, &processedAt); err != nil {
			return nil, &domain.StorageError{Operation: "journal", Err: err}
		}
		if t, err := time.Parse(time.RFC3339Nano, processedAt); err == nil {
			e.ProcessedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageError{Operation: "journal", Err: err}
	}
	return entries, nil
}

// Close implements output.Journal.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
