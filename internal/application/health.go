package application

import (
	"context"

	"github.com/jobrunner/stacsync/internal/ports/input"
)

// HealthService provides health check functionality.
type HealthService struct {
	consumer *Consumer
}

// NewHealthService creates a new health service.
func NewHealthService(consumer *Consumer) *HealthService {
	return &HealthService{
		consumer: consumer,
	}
}

// IsHealthy returns true until the consumer loop has shut down.
func (s *HealthService) IsHealthy(_ context.Context) bool {
	return s.consumer.State() != StateShutdown
}

// IsReady returns true while the consumer is subscribed to the bus.
func (s *HealthService) IsReady(_ context.Context) bool {
	switch s.consumer.State() {
	case StateSubscribed, StateConsuming:
		return true
	default:
		return false
	}
}

// GetHealthDetails returns detailed health information.
func (s *HealthService) GetHealthDetails(ctx context.Context) input.HealthDetails {
	state := s.consumer.State()
	processed, failed := s.consumer.Stats()

	items := 0
	catalogStatus := "not loaded"
	if snap, ok := s.consumer.Snapshot(); ok {
		items = snap.ItemCount
		catalogStatus = "ok"
	}

	busStatus := "ok"
	if !s.IsReady(ctx) {
		busStatus = string(state)
	}

	return input.HealthDetails{
		Healthy:      s.IsHealthy(ctx),
		Ready:        s.IsReady(ctx),
		State:        string(state),
		CatalogItems: items,
		Processed:    processed,
		Failed:       failed,
		Components: map[string]string{
			"catalog": catalogStatus,
			"bus":     busStatus,
		},
	}
}
