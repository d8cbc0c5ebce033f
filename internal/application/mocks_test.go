package application

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// memStacIO implements output.StacIO over a map.
type memStacIO struct {
	mu       sync.Mutex
	docs     map[string]string
	writes   []string
	writeErr error
	failOn   string // href whose write fails with writeErr
}

func newMemStacIO() *memStacIO {
	return &memStacIO{docs: make(map[string]string)}
}

func (m *memStacIO) ReadText(_ context.Context, uri string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.docs[uri]
	if !ok {
		return "", &domain.StorageError{Operation: "read", URI: uri, Err: domain.ErrObjectNotFound}
	}
	return text, nil
}

func (m *memStacIO) WriteText(_ context.Context, uri string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil && (m.failOn == "" || m.failOn == uri) {
		return &domain.StorageError{Operation: "write", URI: uri, Err: m.writeErr}
	}
	m.docs[uri] = text
	m.writes = append(m.writes, uri)
	return nil
}

func (m *memStacIO) hrefs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	hrefs := make([]string, 0, len(m.docs))
	for href := range m.docs {
		hrefs = append(hrefs, href)
	}
	sort.Strings(hrefs)
	return hrefs
}

func (m *memStacIO) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.writes)
}

// fakeExtractor implements output.GeometryExtractor.
type fakeExtractor struct {
	mu    sync.Mutex
	bbox  domain.BBox
	err   error
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, uri string) (domain.Geometry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, uri)
	if f.err != nil {
		return domain.Geometry{}, &domain.ExtractionError{URI: uri, Err: f.err}
	}
	return domain.NewRectangleGeometry(f.bbox)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeValidator implements output.SchemaValidator.
type fakeValidator struct {
	reject domain.DocumentKind
}

func (f *fakeValidator) Validate(doc domain.Document) error {
	if doc.Kind == f.reject {
		return &domain.ValidationError{Document: doc.Href, Kind: string(doc.Kind), Message: "rejected"}
	}
	return nil
}

// fakeSubscriber implements output.Subscriber over a channel.
type fakeSubscriber struct {
	ch           chan output.Delivery
	subscribeErr error
	err          error
	closed       bool
}

func newFakeSubscriber(size int) *fakeSubscriber {
	return &fakeSubscriber{ch: make(chan output.Delivery, size)}
}

func (f *fakeSubscriber) Subscribe(_ context.Context) (<-chan output.Delivery, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	return f.ch, nil
}

func (f *fakeSubscriber) Err() error { return f.err }

func (f *fakeSubscriber) Close() error {
	f.closed = true
	return nil
}

// memJournal implements output.Journal.
type memJournal struct {
	mu      sync.Mutex
	entries []output.JournalEntry
}

func (m *memJournal) Record(_ context.Context, entry output.JournalEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memJournal) Recent(_ context.Context, limit int) ([]output.JournalEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]output.JournalEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memJournal) Close() error { return nil }

// recordingMetrics implements output.MetricsCollector and keeps counts.
type recordingMetrics struct {
	output.NoOpMetrics

	mu        sync.Mutex
	classes   map[string]int
	outcomes  map[string]int
	malformed int
	items     int
	persisted []bool
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		classes:  make(map[string]int),
		outcomes: make(map[string]int),
	}
}

func (r *recordingMetrics) IncNotifications(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class]++
}

func (r *recordingMetrics) IncMalformed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.malformed++
}

func (r *recordingMetrics) IncOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes[outcome]++
}

func (r *recordingMetrics) SetCatalogItems(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = count
}

func (r *recordingMetrics) ObservePersistDuration(success bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persisted = append(r.persisted, success)
}

// testRecord builds an ObjectCreated record for bucket/key with the given
// metadata pairs.
func testRecord(eventName, bucket, key string, metadata ...domain.MetadataEntry) domain.Record {
	return domain.Record{
		EventName: eventName,
		EventID:   "evt-" + key,
		S3: domain.S3Entity{
			Bucket: domain.BucketEntity{Name: bucket},
			Object: domain.ObjectEntity{Key: key, Metadata: metadata},
		},
	}
}

var cogMarker = domain.MetadataEntry{Key: "x-amz-meta-fairease.catalog.mediatype", Val: "COG"}

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const testRoot = "s3://uca-eoscfe-catalog/"

type testEnv struct {
	stacIO    *memStacIO
	extractor *fakeExtractor
	validator *fakeValidator
	metrics   *recordingMetrics
	store     *CatalogStore
	updater   *Updater
	catalog   *domain.Catalog
}

func newTestEnv() *testEnv {
	env := &testEnv{
		stacIO:    newMemStacIO(),
		extractor: &fakeExtractor{bbox: domain.BBox{10, 20, 11, 21}},
		validator: &fakeValidator{},
		metrics:   newRecordingMetrics(),
		catalog:   domain.NewCatalog("uca-catalog", "UCA demo catalog."),
	}
	logger := newTestLogger()
	env.store = NewCatalogStore(env.stacIO, env.validator, env.metrics, logger, testRoot)
	env.updater = NewUpdater(UpdaterConfig{}, env.extractor, env.store, logger)
	env.updater.now = func() time.Time { return fixedTime }
	return env
}
