package storage

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobrunner/stacsync/internal/domain"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingMetrics struct {
	output.NoOpMetrics
	mu  sync.Mutex
	ops []string
}

func (m *recordingMetrics) IncStorageOperations(scheme, operation string, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := "ok"
	if !success {
		status = "error"
	}
	m.ops = append(m.ops, scheme+":"+operation+":"+status)
}

func TestStacIOLocalRoundTrip(t *testing.T) {
	dir := t.TempDir()
	metrics := &recordingMetrics{}
	sio := NewStacIO(metrics, testLogger())
	ctx := context.Background()

	uri := filepath.Join(dir, "scene01", "scene01.json")
	require.NoError(t, sio.WriteText(ctx, uri, `{"id":"scene01"}`))

	text, err := sio.ReadText(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"scene01"}`, text)

	text, err = sio.ReadText(ctx, "file://"+uri)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"scene01"}`, text)

	assert.Equal(t, []string{"file:write:ok", "file:read:ok", "file:read:ok"}, metrics.ops)
}

func TestStacIOLocalNotFound(t *testing.T) {
	sio := NewStacIO(nil, testLogger())

	_, err := sio.ReadText(context.Background(), filepath.Join(t.TempDir(), "catalog.json"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrTransport)

	var storageErr *domain.StorageError
	require.ErrorAs(t, err, &storageErr)
	assert.Equal(t, "read", storageErr.Operation)
}

func TestStacIOLocalWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	sio := NewStacIO(nil, testLogger())
	err := sio.WriteText(context.Background(), filepath.Join(blocker, "catalog.json"), "{}")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestStacIOUnsupportedScheme(t *testing.T) {
	sio := NewStacIO(nil, testLogger())

	_, err := sio.ReadText(context.Background(), "gs://bucket/catalog.json")
	assert.ErrorIs(t, err, domain.ErrUnsupportedScheme)

	err = sio.WriteText(context.Background(), "gs://bucket/catalog.json", "{}")
	assert.ErrorIs(t, err, domain.ErrUnsupportedScheme)
}

func TestStacIORegisterOverridesScheme(t *testing.T) {
	sio := NewStacIO(nil, testLogger())
	sio.Register("S3", NewHTTPBackend(HTTPConfig{}))

	assert.ElementsMatch(t, []string{"file", "s3"}, sio.Schemes())
}

func TestHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/catalog.json":
			user, pass, ok := r.BasicAuth()
			if !ok || user != "reader" || pass != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"type":"Catalog"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	sio := NewStacIO(nil, testLogger())
	sio.Register(output.StorageTypeHTTP, NewHTTPBackend(HTTPConfig{Username: "reader", Password: "secret"}))
	ctx := context.Background()

	text, err := sio.ReadText(ctx, srv.URL+"/catalog.json")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"Catalog"}`, text)

	_, err = sio.ReadText(ctx, srv.URL+"/missing.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = sio.WriteText(ctx, srv.URL+"/catalog.json", "{}")
	assert.ErrorIs(t, err, domain.ErrReadOnlyStorage)
	assert.NotErrorIs(t, err, domain.ErrTransport)
}

// fakeS3 is a path-style S3 endpoint that keeps objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	headers map[string]http.Header
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, headers: map[string]http.Header{}}
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	if strings.HasPrefix(path, "forbidden/") {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`))
		return
	}

	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[path] = body
		f.headers[path] = r.Header.Clone()
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Backend(t *testing.T, endpoint string) *S3Backend {
	t.Helper()
	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AKIDEXAMPLE", "secret", ""),
	}
	return NewS3BackendFromConfig(awsCfg, S3Config{Endpoint: endpoint})
}

func TestS3Backend(t *testing.T) {
	fake := newFakeS3()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	sio := NewStacIO(nil, testLogger())
	sio.Register(output.StorageTypeS3, newTestS3Backend(t, srv.URL))
	ctx := context.Background()

	uri := "s3://uca-eoscfe-catalog/scene01/scene01.json"
	require.NoError(t, sio.WriteText(ctx, uri, `{"id":"scene01"}`))

	fake.mu.Lock()
	stored := string(fake.objects["uca-eoscfe-catalog/scene01/scene01.json"])
	header := fake.headers["uca-eoscfe-catalog/scene01/scene01.json"]
	fake.mu.Unlock()
	assert.Equal(t, `{"id":"scene01"}`, stored)
	assert.Equal(t, "application/json", header.Get("Content-Type"))
	assert.Equal(t, "utf-8", header.Get("Content-Encoding"))

	text, err := sio.ReadText(ctx, uri)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"scene01"}`, text)
}

func TestS3BackendErrors(t *testing.T) {
	srv := httptest.NewServer(newFakeS3())
	defer srv.Close()

	sio := NewStacIO(nil, testLogger())
	sio.Register(output.StorageTypeS3, newTestS3Backend(t, srv.URL))
	ctx := context.Background()

	_, err := sio.ReadText(ctx, "s3://uca-eoscfe-catalog/catalog.json")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NotErrorIs(t, err, domain.ErrTransport)

	_, err = sio.ReadText(ctx, "s3://forbidden/catalog.json")
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.NotErrorIs(t, err, domain.ErrNotFound)

	_, err = sio.ReadText(ctx, "s3://bucket-only")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSplitLocation(t *testing.T) {
	tests := []struct {
		uri       string
		container string
		key       string
		wantErr   bool
	}{
		{"s3://data/scene01.tif", "data", "scene01.tif", false},
		{"s3://data/dem/N00/E006.tif", "data", "dem/N00/E006.tif", false},
		{"az://catalogs/uca/catalog.json", "catalogs", "uca/catalog.json", false},
		{"s3://data", "", "", true},
		{"s3:///key", "", "", true},
		{"data/key", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			container, key, err := splitLocation(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.container, container)
			assert.Equal(t, tt.key, key)
		})
	}
}
