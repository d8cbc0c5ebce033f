// Package storage provides the catalog document I/O adapters.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// StacIO reads and writes catalog documents, choosing a backend from the
// URI scheme of each call. URIs without a scheme go to the file backend.
type StacIO struct {
	mu       sync.RWMutex
	backends map[string]output.StorageBackend
	metrics  output.MetricsCollector
	logger   *slog.Logger
}

// NewStacIO creates a dispatcher with only the local file backend registered.
func NewStacIO(metrics output.MetricsCollector, logger *slog.Logger) *StacIO {
	if metrics == nil {
		metrics = &output.NoOpMetrics{}
	}
	s := &StacIO{
		backends: make(map[string]output.StorageBackend),
		metrics:  metrics,
		logger:   logger,
	}
	s.Register(output.StorageTypeLocal, NewLocalBackend())
	return s
}

// Register installs the backend for a scheme, replacing any earlier one.
func (s *StacIO) Register(scheme output.StorageType, backend output.StorageBackend) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backends[strings.ToLower(string(scheme))] = backend
}

// Schemes returns the registered schemes.
func (s *StacIO) Schemes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schemes := make([]string, 0, len(s.backends))
	for scheme := range s.backends {
		schemes = append(schemes, scheme)
	}
	return schemes
}

// ReadText implements output.StacIO.
func (s *StacIO) ReadText(ctx context.Context, uri string) (string, error) {
	scheme, backend, err := s.backend(uri)
	if err != nil {
		return "", &domain.StorageError{Operation: "read", URI: uri, Err: err}
	}

	data, err := backend.Read(ctx, uri)
	s.metrics.IncStorageOperations(scheme, "read", err == nil)
	if err != nil {
		return "", &domain.StorageError{Operation: "read", URI: uri, Err: classify(err)}
	}

	s.logger.Debug("read document", "uri", uri, "bytes", len(data))
	return string(data), nil
}

// WriteText implements output.StacIO.
func (s *StacIO) WriteText(ctx context.Context, uri string, text string) error {
	scheme, backend, err := s.backend(uri)
	if err != nil {
		return &domain.StorageError{Operation: "write", URI: uri, Err: err}
	}

	err = backend.Write(ctx, uri, []byte(text))
	s.metrics.IncStorageOperations(scheme, "write", err == nil)
	if err != nil {
		return &domain.StorageError{Operation: "write", URI: uri, Err: classify(err)}
	}

	s.logger.Debug("wrote document", "uri", uri, "bytes", len(text))
	return nil
}

func (s *StacIO) backend(uri string) (string, output.StorageBackend, error) {
	scheme := domain.Scheme(uri)
	if scheme == "" {
		scheme = string(output.StorageTypeLocal)
	}

	s.mu.RLock()
	backend, ok := s.backends[scheme]
	s.mu.RUnlock()
	if !ok {
		return scheme, nil, fmt.Errorf("%s: %w", scheme, domain.ErrUnsupportedScheme)
	}
	return scheme, backend, nil
}

// classify keeps not-found and unsupported errors as they are and marks
// everything else as a transport failure.
func classify(err error) error {
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrUnsupported) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrTransport, err)
}

// splitLocation splits scheme://container/key into container and key.
func splitLocation(uri string) (string, string, error) {
	i := strings.Index(uri, "://")
	if i < 0 {
		return "", "", fmt.Errorf("%q has no scheme: %w", uri, domain.ErrInvalidInput)
	}
	rest := uri[i+3:]
	container, key, _ := strings.Cut(rest, "/")
	if container == "" || key == "" {
		return "", "", fmt.Errorf("%q must name a bucket and a key: %w", uri, domain.ErrInvalidInput)
	}
	return container, key, nil
}
