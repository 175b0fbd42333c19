package trendapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, zerolog.Nop())
	client.SetRetry(1, 0)
	return client, server
}

func TestTriggerSyncAccepted(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
	}))

	err := client.TriggerSync(context.Background(), "concept_insight", map[string]interface{}{"days": 30})
	require.NoError(t, err)
	assert.Equal(t, "/control/sync/concept_insight", gotPath)
	assert.Equal(t, float64(30), gotBody["days"])
}

func TestTriggerSyncServerDetail(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "job already running"})
	}))

	err := client.TriggerSync(context.Background(), "concept_insight", nil)
	require.Error(t, err)
	assert.Equal(t, "job already running", err.Error())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
}

func TestTriggerSyncGenericFailure(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	err := client.TriggerSync(context.Background(), "ppi", nil)
	require.Error(t, err)
	assert.Equal(t, "request failed with status 502", err.Error())
}

func TestControlStatusParsesMixedSpellings(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/control/status", r.URL.Path)
		_, _ = w.Write([]byte(`{
			"jobs": {
				"concept_insight": {
					"status": "running",
					"started_at": "2024-03-01T09:30:00Z",
					"progress": 0.4
				},
				"ppi": {
					"status": "error",
					"startedAt": "2024-03-01 08:00:00",
					"error": "source unavailable"
				}
			},
			"config": {"auto_sync": true}
		}`))
	}))

	status, err := client.ControlStatus(context.Background())
	require.NoError(t, err)

	concept := status.Job("concept_insight")
	assert.Equal(t, JobStateRunning, concept.State)
	require.NotNil(t, concept.StartedAt)
	assert.Equal(t, 2024, concept.StartedAt.Year())
	assert.InDelta(t, 0.4, concept.Progress, 1e-9)

	ppi := status.Job("ppi")
	assert.Equal(t, JobStateError, ppi.State)
	assert.Equal(t, "source unavailable", ppi.Error)
	require.NotNil(t, ppi.StartedAt)

	// Absent job keys read as idle
	assert.Equal(t, JobStateIdle, status.Job("dollar_index").State)

	assert.Equal(t, true, status.Config["auto_sync"])
}

func TestDatasetFetch(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/concept/insights", r.URL.Path)
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		assert.Equal(t, "40", r.URL.Query().Get("offset"))
		_, _ = w.Write([]byte(`{
			"items": [
				{"concept_name": "AI", "net_amount": "12.5"},
				{"conceptName": "Semis", "netAmount": 8.1}
			],
			"total": 120,
			"last_synced_at": "2024-03-01T10:00:00Z"
		}`))
	}))

	page, err := client.Dataset(context.Background(), "concepts", 20, 40)
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, int64(120), page.Total)
	require.NotNil(t, page.LastSyncedAt)
	assert.Equal(t, time.March, page.LastSyncedAt.Month())
}

func TestDatasetUnknownName(t *testing.T) {
	client := NewClient("http://localhost:0", zerolog.Nop())

	_, err := client.Dataset(context.Background(), "nope", 0, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dataset")
}

func TestJobStateTerminal(t *testing.T) {
	assert.True(t, JobStateIdle.Terminal())
	assert.True(t, JobStateSuccess.Terminal())
	assert.True(t, JobStateError.Terminal())
	assert.False(t, JobStateRunning.Terminal())
}
