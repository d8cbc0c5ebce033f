// Package input defines the primary/driving ports of the application.
package input

import (
	"context"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// CatalogUpdater defines the primary port for applying notification
// records to a catalog.
type CatalogUpdater interface {
	// Apply handles an ObjectCreated record.
	Apply(ctx context.Context, catalog *domain.Catalog, record domain.Record) (domain.Result, error)

	// Remove handles an ObjectRemoved record.
	Remove(ctx context.Context, catalog *domain.Catalog, record domain.Record) (domain.Result, error)
}

// CatalogView defines the primary port for read-only catalog access.
type CatalogView interface {
	// Snapshot returns the last published catalog state.
	Snapshot() (domain.CatalogSnapshot, bool)

	// RecentEvents returns the newest journal entries.
	RecentEvents(ctx context.Context, limit int) ([]output.JournalEntry, error)
}

// HealthChecker defines the primary port for health checks.
type HealthChecker interface {
	// IsHealthy returns true if the service is healthy.
	IsHealthy(ctx context.Context) bool

	// IsReady returns true if the consumer is receiving notifications.
	IsReady(ctx context.Context) bool

	// GetHealthDetails returns detailed health information.
	GetHealthDetails(ctx context.Context) HealthDetails
}

// HealthDetails contains detailed health information.
type HealthDetails struct {
	Healthy      bool              // Overall health status
	Ready        bool              // Consumer is consuming
	State        string            // Consumer loop state
	CatalogItems int               // Number of items in the catalog
	Processed    int64             // Records handled since start
	Failed       int64             // Records that failed since start
	Components   map[string]string // Component statuses
}
