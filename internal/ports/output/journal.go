package output

import (
	"context"
	"time"
)

// JournalEntry records the handling of one notification record.
type JournalEntry struct {
	EventID     string
	EventName   string
	Bucket      string
	Key         string
	ItemID      string
	Outcome     string
	Error       string
	ProcessedAt time.Time
}

// Journal defines the secondary port for the processed-notification log.
type Journal interface {
	// Record appends an entry.
	Record(ctx context.Context, entry JournalEntry) error

	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]JournalEntry, error)

	// Close releases the journal.
	Close() error
}

// NoOpJournal is a Journal that keeps nothing.
type NoOpJournal struct{}

// Record implements Journal.
func (NoOpJournal) Record(_ context.Context, _ JournalEntry) error { return nil }

// Recent implements Journal.
func (NoOpJournal) Recent(_ context.Context, _ int) ([]JournalEntry, error) { return nil, nil }

// Close implements Journal.
func (NoOpJournal) Close() error { return nil }
