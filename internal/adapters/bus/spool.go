package bus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// ProcessedDir is the spool subdirectory acknowledged files are moved to.
const ProcessedDir = "processed"

// SpoolConfig holds spool subscriber configuration.
type SpoolConfig struct {
	Dir      string
	Debounce time.Duration
}

// pendingFile holds a debounced spool file.
type pendingFile struct {
	firstSeen time.Time
	lastEvent time.Time
}

// SpoolSubscriber delivers notification batches dropped as *.json files into
// a directory. A file is delivered once it has been quiet for the debounce
// interval; acknowledging moves it to the processed subdirectory.
type SpoolSubscriber struct {
	dir       string
	debounce  time.Duration
	logger    *slog.Logger
	fsWatcher *fsnotify.Watcher

	mu       sync.Mutex
	pending  map[string]*pendingFile
	inflight map[string]bool
	err      error
}

// NewSpoolSubscriber creates a new spool subscriber.
func NewSpoolSubscriber(cfg SpoolConfig, logger *slog.Logger) (*SpoolSubscriber, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("spool directory: %w", domain.ErrInvalidInput)
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = 500 * time.Millisecond
	}

	dir, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, err
	}

	return &SpoolSubscriber{
		dir:      dir,
		debounce: cfg.Debounce,
		logger:   logger,
		pending:  make(map[string]*pendingFile),
		inflight: make(map[string]bool),
	}, nil
}

// Subscribe implements output.Subscriber. Files already present in the
// spool are delivered first, in name order.
func (s *SpoolSubscriber) Subscribe(ctx context.Context) (<-chan output.Delivery, error) {
	if err := os.MkdirAll(filepath.Join(s.dir, ProcessedDir), 0750); err != nil {
		return nil, fmt.Errorf("creating spool: %w: %w", domain.ErrTransport, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w: %w", domain.ErrTransport, err)
	}
	if err := fsWatcher.Add(s.dir); err != nil {
		_ = fsWatcher.Close()
		return nil, fmt.Errorf("watching %s: %w: %w", s.dir, domain.ErrTransport, err)
	}
	s.fsWatcher = fsWatcher

	existing, err := s.scan()
	if err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	s.logger.Info("watching spool directory", "path", s.dir, "existing", len(existing))

	out := make(chan output.Delivery)
	go s.run(ctx, existing, out)
	return out, nil
}

// scan lists spool files present before the watch started.
func (s *SpoolSubscriber) scan() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("reading spool: %w: %w", domain.ErrTransport, err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isSpoolFile(e.Name()) {
			paths = append(paths, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func (s *SpoolSubscriber) run(ctx context.Context, existing []string, out chan<- output.Delivery) {
	defer close(out)

	for _, path := range existing {
		if !s.deliver(ctx, path, out) {
			return
		}
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-s.fsWatcher.Events:
			if !ok {
				if ctx.Err() == nil {
					s.setErr(domain.ErrBusDisconnected)
				}
				return
			}
			s.handleFsEvent(event)

		case err, ok := <-s.fsWatcher.Errors:
			if !ok {
				if ctx.Err() == nil {
					s.setErr(domain.ErrBusDisconnected)
				}
				return
			}
			s.logger.Error("spool watcher error", "error", err)

		case <-ticker.C:
			for _, path := range s.ready() {
				if !s.deliver(ctx, path, out) {
					return
				}
			}
		}
	}
}

// handleFsEvent records create and write events of spool files.
func (s *SpoolSubscriber) handleFsEvent(event fsnotify.Event) {
	if !isSpoolFile(event.Name) || filepath.Dir(event.Name) != s.dir {
		return
	}
	if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
		return
	}

	s.logger.Debug("spool event", "path", event.Name, "op", event.Op.String())

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inflight[event.Name] {
		return
	}
	now := time.Now()
	if p, ok := s.pending[event.Name]; ok {
		p.lastEvent = now
		return
	}
	s.pending[event.Name] = &pendingFile{firstSeen: now, lastEvent: now}
}

// ready returns the files that have been quiet for the debounce interval,
// oldest first.
func (s *SpoolSubscriber) ready() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var paths []string
	for path, p := range s.pending {
		if now.Sub(p.lastEvent) < s.debounce {
			continue
		}
		paths = append(paths, path)
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := s.pending[paths[i]], s.pending[paths[j]]
		if !a.firstSeen.Equal(b.firstSeen) {
			return a.firstSeen.Before(b.firstSeen)
		}
		return paths[i] < paths[j]
	})
	for _, path := range paths {
		delete(s.pending, path)
	}
	return paths
}

// deliver reads a spool file and sends it. It returns false when ctx ended.
func (s *SpoolSubscriber) deliver(ctx context.Context, path string, out chan<- output.Delivery) bool {
	s.mu.Lock()
	if s.inflight[path] {
		s.mu.Unlock()
		return true
	}
	s.inflight[path] = true
	s.mu.Unlock()

	body, err := os.ReadFile(path) //#nosec G304 -- path is inside the configured spool
	if err != nil {
		s.release(path)
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Error("reading spool file", "path", path, "error", err)
		}
		return true
	}

	d := output.Delivery{
		Body:       body,
		Source:     path,
		ReceivedAt: time.Now(),
		Ack:        func() error { return s.ack(path) },
	}
	select {
	case out <- d:
		return true
	case <-ctx.Done():
		s.release(path)
		return false
	}
}

// ack moves a delivered file to the processed directory.
func (s *SpoolSubscriber) ack(path string) error {
	defer s.release(path)
	dest := filepath.Join(s.dir, ProcessedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("acknowledging %s: %w", path, err)
	}
	return nil
}

func (s *SpoolSubscriber) release(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, path)
}

func (s *SpoolSubscriber) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Err implements output.Subscriber.
func (s *SpoolSubscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close implements output.Subscriber.
func (s *SpoolSubscriber) Close() error {
	if s.fsWatcher == nil {
		return nil
	}
	return s.fsWatcher.Close()
}

// isSpoolFile checks if the path is a spooled notification batch.
func isSpoolFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(strings.ToLower(name), ".json") && !strings.HasPrefix(name, ".")
}
