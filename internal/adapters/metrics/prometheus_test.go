package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/jobrunner/stacsync/internal/ports/output"
)

var _ output.MetricsCollector = (*Collector)(nil)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	c.IncNotifications("created")
	c.IncNotifications("created")
	c.IncNotifications("removed")
	c.IncMalformed()
	c.IncOutcome("inserted")
	c.SetCatalogItems(7)
	c.IncStorageOperations("s3", "write", true)
	c.IncStorageOperations("s3", "write", false)
	c.ObservePersistDuration(true, 20*time.Millisecond)
	c.ObserveExtractionDuration(false, time.Millisecond)

	if got := testutil.ToFloat64(c.notifications.WithLabelValues("created")); got != 2 {
		t.Errorf("notifications{created} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.malformed); got != 1 {
		t.Errorf("malformed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.outcomes.WithLabelValues("inserted")); got != 1 {
		t.Errorf("outcomes{inserted} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.catalogItems); got != 7 {
		t.Errorf("catalog_items = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.storageOperations.WithLabelValues("s3", "write", "error")); got != 1 {
		t.Errorf("storage_operations{s3,write,error} = %v, want 1", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())
	c.SetCatalogItems(3)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_catalog_items 3") {
		t.Errorf("metrics output missing gauge:\n%s", rec.Body.String())
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	c := NewCollector("test", prometheus.NewRegistry())

	r := mux.NewRouter()
	r.Use(c.Middleware)
	r.HandleFunc("/api/v1/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/items/scene01", nil))

	if got := testutil.ToFloat64(c.httpRequestsTotal.WithLabelValues("GET", "/api/v1/items/{id}", "4xx")); got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
}

func TestStatusToString(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{204, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{503, "5xx"},
		{100, "unknown"},
	}

	for _, tt := range tests {
		if got := statusToString(tt.code); got != tt.want {
			t.Errorf("statusToString(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestNormalizePath(t *testing.T) {
	if got := normalizePath("/health"); got != "/health" {
		t.Errorf("normalizePath() = %q", got)
	}
	if got := normalizePath("/a/very/long/path/that/keeps/going"); got != "/a/very/long/path/th..." {
		t.Errorf("normalizePath() = %q", got)
	}
}
