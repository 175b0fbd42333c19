package server

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/control"
	"github.com/quantlens/trendview/internal/events"
	"github.com/quantlens/trendview/internal/prefs"
	"github.com/quantlens/trendview/internal/snapshot"
	"github.com/quantlens/trendview/internal/trendapi"
)

// testUpstream is a fake Trend View backend the server talks to.
type testUpstream struct {
	*httptest.Server
	datasetHits atomic.Int64
}

func newTestUpstream(t *testing.T) *testUpstream {
	t.Helper()
	upstream := &testUpstream{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /control/sync/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"accepted"}`))
	})
	mux.HandleFunc("GET /control/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":{"concept_insight":{"status":"success","message":"synced"}},"config":{"auto_sync":true}}`))
	})
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		upstream.datasetHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"items":[{"conceptName":"AI","close":10},{"conceptName":"EV","close":12}],"total":2}`))
	})

	upstream.Server = httptest.NewServer(mux)
	t.Cleanup(upstream.Close)
	return upstream
}

func newTestServer(t *testing.T, upstream *testUpstream) (*Server, *clientdata.Repository) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	repo := clientdata.NewRepository(db)
	require.NoError(t, repo.InitSchema())

	api := trendapi.NewClient(upstream.URL, zerolog.Nop())
	api.SetRetry(1, time.Millisecond)

	bus := events.NewBus()
	runner := control.NewRunner(api, repo, bus, zerolog.Nop(), time.Millisecond, time.Second)
	t.Cleanup(runner.Close)

	snapshots, err := snapshot.NewStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		API:       api,
		Runner:    runner,
		Repo:      repo,
		Prefs:     prefs.NewStore(repo, "zh", zerolog.Nop()),
		Snapshots: snapshots,
		Bus:       bus,
	})
	return srv, repo
}

func doJSON(t *testing.T, srv *Server, method, path string, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if strings.Contains(rec.Header().Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestDatasetServedFromCache(t *testing.T) {
	upstream := newTestUpstream(t)
	srv, repo := newTestServer(t, upstream)

	cached := &trendapi.Page{
		Items: []map[string]interface{}{{"concept_name": "Cached"}},
		Total: 1,
	}
	require.NoError(t, repo.Store("concepts", clientdata.DefaultPageKey, cached, time.Hour))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/datasets/concepts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, body["total"])
	assert.Zero(t, upstream.datasetHits.Load(), "fresh cache must not hit upstream")
}

func TestDatasetCacheMissFetchesUpstream(t *testing.T) {
	upstream := newTestUpstream(t)
	srv, _ := newTestServer(t, upstream)

	rec, body := doJSON(t, srv, http.MethodGet, "/api/datasets/concepts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, upstream.datasetHits.Load())
}

func TestDatasetRefreshForcesFetch(t *testing.T) {
	upstream := newTestUpstream(t)
	srv, repo := newTestServer(t, upstream)

	require.NoError(t, repo.Store("concepts", clientdata.DefaultPageKey, &trendapi.Page{Total: 1}, time.Hour))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/datasets/concepts?refresh=true", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, upstream.datasetHits.Load())
}

func TestDatasetUnknown(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/datasets/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, body["detail"], "unknown dataset")
}

func TestTriggerSyncAccepted(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/control/sync/concept-insight", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "concept_insight", body["job"])
	assert.NotEmpty(t, body["run_id"])
}

func TestTriggerSyncUnknownJob(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/control/sync/definitely-not-a-job", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestControlStatusMergesRunning(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/control/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	jobs, ok := body["jobs"].(map[string]interface{})
	require.True(t, ok)
	require.Contains(t, jobs, "concept_insight")

	// The upstream status actually decodes, not just passes through as idle
	job, ok := jobs["concept_insight"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "success", job["status"])
	assert.Equal(t, "synced", job["message"])

	assert.Contains(t, body, "running")
}

func TestLanguagePreferenceRoundTrip(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/prefs/language", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "zh", body["language"])

	rec, _ = doJSON(t, srv, http.MethodPut, "/api/prefs/language", `{"language":"en"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = doJSON(t, srv, http.MethodGet, "/api/prefs/language", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "en", body["language"])
}

func TestLanguagePreferenceRejectsUnsupported(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, _ := doJSON(t, srv, http.MethodPut, "/api/prefs/language", `{"language":"fr"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotLifecycle(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, body := doJSON(t, srv, http.MethodPost, "/api/snapshots/", `{"title":"AI rally","dataset":"concepts"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id, ok := body["id"].(string)
	require.True(t, ok)
	require.NotEmpty(t, id)

	rec, body = doJSON(t, srv, http.MethodGet, "/api/snapshots/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list, ok := body["snapshots"].([]interface{})
	require.True(t, ok)
	assert.Len(t, list, 1)

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/snapshots/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = doJSON(t, srv, http.MethodDelete, "/api/snapshots/"+id, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSnapshotRequiresTitle(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/snapshots/", `{"dataset":"concepts"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTrendAnalysisFromCachedSeries(t *testing.T) {
	srv, repo := newTestServer(t, newTestUpstream(t))

	items := make([]map[string]interface{}, 0, 10)
	for i := 1; i <= 10; i++ {
		items = append(items, map[string]interface{}{"close": float64(i)})
	}
	page := &trendapi.Page{Items: items, Total: int64(len(items))}
	require.NoError(t, repo.Store("index_history", clientdata.DefaultPageKey, page, time.Hour))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/analysis/trend?dataset=index-history&window=3", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index-history", body["dataset"])

	trend, ok := body["trend"].(map[string]interface{})
	require.True(t, ok)
	assert.EqualValues(t, 10, trend["last"])
}

func TestTrendAnalysisTooFewPoints(t *testing.T) {
	srv, repo := newTestServer(t, newTestUpstream(t))

	page := &trendapi.Page{Items: []map[string]interface{}{{"close": 1.0}}, Total: 1}
	require.NoError(t, repo.Store("index_history", clientdata.DefaultPageKey, page, time.Hour))

	rec, _ := doJSON(t, srv, http.MethodGet, "/api/analysis/trend?dataset=index-history&window=5", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCorrelationFromCachedSeries(t *testing.T) {
	srv, repo := newTestServer(t, newTestUpstream(t))

	itemsA := make([]map[string]interface{}, 0, 5)
	itemsB := make([]map[string]interface{}, 0, 5)
	for i := 1; i <= 5; i++ {
		itemsA = append(itemsA, map[string]interface{}{"close": float64(i)})
		itemsB = append(itemsB, map[string]interface{}{"close": float64(i * 2)})
	}
	require.NoError(t, repo.Store("index_history", clientdata.DefaultPageKey,
		&trendapi.Page{Items: itemsA, Total: 5}, time.Hour))
	require.NoError(t, repo.Store("dollar_index", clientdata.DefaultPageKey,
		&trendapi.Page{Items: itemsB, Total: 5}, time.Hour))

	rec, body := doJSON(t, srv, http.MethodGet, "/api/analysis/correlation?a=index-history&b=dollar-index", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1.0, body["correlation"].(float64), 1e-9)
}

func TestBackupUnconfigured(t *testing.T) {
	srv, _ := newTestServer(t, newTestUpstream(t))

	rec, _ := doJSON(t, srv, http.MethodPost, "/api/control/backup", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
