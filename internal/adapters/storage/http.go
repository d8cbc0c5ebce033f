package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jobrunner/stacsync/internal/domain"
)

// HTTPBackend reads catalog documents over HTTP(S). Writes are rejected.
type HTTPBackend struct {
	client   *http.Client
	username string
	password string
}

// HTTPConfig holds HTTP storage configuration.
type HTTPConfig struct {
	Timeout  time.Duration
	Username string
	Password string
}

// NewHTTPBackend creates a new HTTP storage backend.
func NewHTTPBackend(cfg HTTPConfig) *HTTPBackend {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPBackend{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		username: cfg.Username,
		password: cfg.Password,
	}
}

// Read implements output.StorageBackend.
func (b *HTTPBackend) Read(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}

	if b.username != "" && b.password != "" {
		req.SetBasicAuth(b.username, b.password)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", uri, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", uri, domain.ErrObjectNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, uri)
	}

	return io.ReadAll(resp.Body)
}

// Write implements output.StorageBackend.
func (b *HTTPBackend) Write(_ context.Context, uri string, _ []byte) error {
	return fmt.Errorf("%s: %w", uri, domain.ErrReadOnlyStorage)
}
