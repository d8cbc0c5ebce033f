package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/input"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// ConsumerState is the lifecycle state of the notification consumer loop.
type ConsumerState string

// Consumer states.
const (
	StateDisconnected ConsumerState = "disconnected"
	StateSubscribed   ConsumerState = "subscribed"
	StateConsuming    ConsumerState = "consuming"
	StateShutdown     ConsumerState = "shutdown"
)

// Consumer receives notification batches from the bus and hands each
// record to the catalog updater, one delivery at a time. The catalog is
// owned by the loop; readers get a snapshot.
type Consumer struct {
	subscriber output.Subscriber
	updater    input.CatalogUpdater
	journal    output.Journal
	metrics    output.MetricsCollector
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	state    ConsumerState
	snapshot domain.CatalogSnapshot
	hasSnap  bool

	processed atomic.Int64
	failed    atomic.Int64
}

// NewConsumer creates a new consumer loop. A nil journal keeps nothing.
func NewConsumer(
	subscriber output.Subscriber,
	updater input.CatalogUpdater,
	journal output.Journal,
	metrics output.MetricsCollector,
	logger *slog.Logger,
) *Consumer {
	if journal == nil {
		journal = output.NoOpJournal{}
	}
	return &Consumer{
		subscriber: subscriber,
		updater:    updater,
		journal:    journal,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		state:      StateDisconnected,
	}
}

// Run subscribes and processes deliveries until ctx is cancelled or the
// transport goes away. Cancellation returns nil; a lost transport returns
// its error.
func (c *Consumer) Run(ctx context.Context, catalog *domain.Catalog) error {
	c.publish(catalog)

	deliveries, err := c.subscriber.Subscribe(ctx)
	if err != nil {
		c.setState(StateShutdown)
		return fmt.Errorf("subscribing to notifications: %w", err)
	}
	defer func() {
		if err := c.subscriber.Close(); err != nil {
			c.logger.Warn("failed to close subscriber", "error", err)
		}
		c.setState(StateShutdown)
	}()

	c.setState(StateSubscribed)
	c.logger.Info("waiting for notifications", "catalog", catalog.ID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer stopped: context canceled")
			return nil
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					c.logger.Info("consumer stopped: context canceled")
					return nil
				}
				if err := c.subscriber.Err(); err != nil {
					return err
				}
				return domain.ErrBusDisconnected
			}
			c.setState(StateConsuming)
			c.handleDelivery(ctx, catalog, d)
		}
	}
}

// handleDelivery acknowledges the delivery before processing it. A failure
// after the ack is logged and the message is not redelivered.
func (c *Consumer) handleDelivery(ctx context.Context, catalog *domain.Catalog, d output.Delivery) {
	if d.Ack != nil {
		if err := d.Ack(); err != nil {
			c.logger.Warn("failed to acknowledge delivery", "source", d.Source, "error", err)
		}
	}

	batch, err := domain.ParseBatch(d.Body)
	if err != nil {
		var nerr *domain.NotificationError
		if errors.As(err, &nerr) {
			nerr.Source = d.Source
		}
		c.metrics.IncMalformed()
		c.logger.Warn("discarding malformed notification", "source", d.Source, "error", err)
		return
	}

	c.logger.Debug("notification received", "source", d.Source, "records", len(batch.Records))
	for _, record := range batch.Records {
		c.handleRecord(ctx, catalog, record)
	}
}

func (c *Consumer) handleRecord(ctx context.Context, catalog *domain.Catalog, record domain.Record) {
	class := record.Class()
	c.metrics.IncNotifications(string(class))

	var (
		result domain.Result
		err    error
	)
	if err = record.Validate(); err == nil {
		switch class {
		case domain.EventCreated:
			result, err = c.updater.Apply(ctx, catalog, record)
		case domain.EventRemoved:
			result, err = c.updater.Remove(ctx, catalog, record)
		default:
			c.logger.Debug("ignoring event", "event", record.EventName, "event_id", record.EventID)
			result = domain.Result{Outcome: domain.OutcomeIgnored, URI: record.ObjectURI()}
		}
	}

	entry := output.JournalEntry{
		EventID:     record.EventID,
		EventName:   record.EventName,
		Bucket:      record.S3.Bucket.Name,
		Key:         record.ObjectKey(),
		ItemID:      result.ItemID,
		ProcessedAt: c.now().UTC(),
	}

	if err != nil {
		c.failed.Add(1)
		result.Outcome = domain.OutcomeFailed
		entry.Error = err.Error()
		c.logger.Error("failed to process notification",
			"event", record.EventName,
			"event_id", record.EventID,
			"uri", record.ObjectURI(),
			"error", err,
		)
	} else {
		c.processed.Add(1)
	}
	entry.Outcome = string(result.Outcome)
	c.metrics.IncOutcome(entry.Outcome)

	if err := c.journal.Record(ctx, entry); err != nil {
		c.logger.Warn("failed to journal notification", "event_id", record.EventID, "error", err)
	}

	// A failed save still leaves the new item in memory.
	if result.Outcome == domain.OutcomeInserted || (err != nil && catalog.HasItem(result.ItemID)) {
		c.publish(catalog)
	}
}

func (c *Consumer) publish(catalog *domain.Catalog) {
	snap := catalog.Snapshot(c.now())
	c.mu.Lock()
	c.snapshot = snap
	c.hasSnap = true
	c.mu.Unlock()
}

func (c *Consumer) setState(state ConsumerState) {
	c.mu.Lock()
	prev := c.state
	c.state = state
	c.mu.Unlock()
	if prev != state {
		c.logger.Debug("consumer state changed", "from", prev, "to", state)
	}
}

// State returns the current loop state.
func (c *Consumer) State() ConsumerState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Snapshot returns the last published catalog state.
func (c *Consumer) Snapshot() (domain.CatalogSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot, c.hasSnap
}

// RecentEvents returns the newest journal entries.
func (c *Consumer) RecentEvents(ctx context.Context, limit int) ([]output.JournalEntry, error) {
	return c.journal.Recent(ctx, limit)
}

// Stats returns the number of processed and failed records since start.
func (c *Consumer) Stats() (processed, failed int64) {
	return c.processed.Load(), c.failed.Load()
}
