package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/quantlens/trendview/internal/analysis"
	"github.com/quantlens/trendview/internal/clientdata"
	"github.com/quantlens/trendview/internal/control"
	"github.com/quantlens/trendview/internal/snapshot"
	"github.com/quantlens/trendview/internal/trendapi"
)

// handleControlStatus handles GET /api/control/status requests.
// Returns the upstream job board merged with our in-flight runs.
func (s *Server) handleControlStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.api.ControlStatus(r.Context())
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("failed to fetch control status: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":       status.Jobs,
		"config":     status.Config,
		"fetched_at": status.FetchedAt.Format(time.RFC3339),
		"running":    s.runner.Running(),
	})
}

// handleRecentRuns handles GET /api/control/runs requests
func (s *Server) handleRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid limit: %q", raw))
			return
		}
		limit = parsed
	}

	runs, err := s.repo.RecentRuns(limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

// handleTriggerSync handles POST /api/control/sync/{job} requests.
// The run is polled in the background; the response carries the run id.
func (s *Server) handleTriggerSync(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "job")
	job, ok := control.JobBySlug(slug)
	if !ok {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown sync job: %q", slug))
		return
	}

	var payload map[string]interface{}
	if r.Body != nil && r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
			return
		}
	}

	runID, err := s.runner.Trigger(r.Context(), job, payload)
	if err != nil {
		if errors.Is(err, control.ErrAlreadyRunning) {
			s.writeJSON(w, http.StatusConflict, map[string]interface{}{
				"detail": "job already running",
				"job":    job.Key,
				"run_id": runID,
			})
			return
		}
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job":    job.Key,
		"run_id": runID,
	})
}

// handleTriggerBackup handles POST /api/control/backup requests
func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if s.backup == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("backups are not configured"))
		return
	}

	if err := s.backup.Run(r.Context()); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"status": "completed"})
}

// handleDataset handles GET /api/datasets/{name} requests.
// Serves from the cache; ?refresh=true forces an upstream fetch first.
func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !trendapi.KnownDataset(name) {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("unknown dataset: %q", name))
		return
	}

	if r.URL.Query().Get("refresh") == "true" {
		page, err := s.runner.RefreshDataset(r.Context(), name)
		if err != nil {
			s.writeError(w, http.StatusBadGateway, fmt.Errorf("failed to refresh %s: %w", name, err))
			return
		}
		s.writeJSON(w, http.StatusOK, page)
		return
	}

	page, err := s.cachedPage(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

// cachedPage returns the dataset page, fetching from upstream on a cache
// miss. Stale cache entries are served as fallback when upstream is down.
func (s *Server) cachedPage(ctx context.Context, name string) (*trendapi.Page, error) {
	table := control.TableFor(name)

	if data, err := s.repo.GetIfFresh(table, clientdata.DefaultPageKey); err == nil && data != nil {
		var page trendapi.Page
		if err := json.Unmarshal(data, &page); err == nil {
			return &page, nil
		}
	}

	page, err := s.runner.RefreshDataset(ctx, name)
	if err == nil {
		return page, nil
	}

	// Upstream unavailable - fall back to a stale cache entry if we have one
	if data, staleErr := s.repo.Get(table, clientdata.DefaultPageKey); staleErr == nil && data != nil {
		var stale trendapi.Page
		if jsonErr := json.Unmarshal(data, &stale); jsonErr == nil {
			s.log.Warn().Err(err).Str("dataset", name).Msg("Serving stale dataset, upstream unavailable")
			return &stale, nil
		}
	}

	return nil, fmt.Errorf("failed to fetch %s: %w", name, err)
}

// handleGetLanguage handles GET /api/prefs/language requests
func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"language": s.prefs.Language()})
}

// handleSetLanguage handles PUT /api/prefs/language requests
func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}

	if err := s.prefs.SetLanguage(body.Language); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"language": body.Language})
}

// handleListSnapshots handles GET /api/snapshots/ requests
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"snapshots": s.snapshots.List()})
}

// handleAddSnapshot handles POST /api/snapshots/ requests
func (s *Server) handleAddSnapshot(w http.ResponseWriter, r *http.Request) {
	var entry snapshot.Entry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	if entry.Title == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("title is required"))
		return
	}

	saved, err := s.snapshots.Add(entry)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, saved)
}

// handleRemoveSnapshot handles DELETE /api/snapshots/{id} requests
func (s *Server) handleRemoveSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	removed, err := s.snapshots.Remove(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !removed {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("snapshot not found: %q", id))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleTrend handles GET /api/analysis/trend requests.
// Query: dataset (required), field (default "close"), window (default 20).
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("dataset")
	if !trendapi.KnownDataset(name) {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("unknown dataset: %q", name))
		return
	}

	field := r.URL.Query().Get("field")
	if field == "" {
		field = "close"
	}

	window := 20
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid window: %q", raw))
			return
		}
		window = parsed
	}

	page, err := s.cachedPage(r.Context(), name)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	series := analysis.SeriesFromRecords(page.Items, field)
	trend, err := analysis.TrendSeries(series, window)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"dataset": name,
		"field":   field,
		"trend":   trend,
	})
}

// handleCorrelation handles GET /api/analysis/correlation requests.
// Query: a, b (datasets, required), field (default "close").
func (s *Server) handleCorrelation(w http.ResponseWriter, r *http.Request) {
	nameA := r.URL.Query().Get("a")
	nameB := r.URL.Query().Get("b")
	if !trendapi.KnownDataset(nameA) || !trendapi.KnownDataset(nameB) {
		s.writeError(w, http.StatusBadRequest, errors.New("both a and b must name known datasets"))
		return
	}

	field := r.URL.Query().Get("field")
	if field == "" {
		field = "close"
	}

	pageA, err := s.cachedPage(r.Context(), nameA)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	pageB, err := s.cachedPage(r.Context(), nameB)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}

	corr, err := analysis.Correlation(
		analysis.SeriesFromRecords(pageA.Items, field),
		analysis.SeriesFromRecords(pageB.Items, field),
	)
	if err != nil {
		s.writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"a":           nameA,
		"b":           nameB,
		"field":       field,
		"correlation": corr,
	})
}
