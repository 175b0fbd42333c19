// Package trendapi provides the client for the upstream Trend View REST backend.
package trendapi

import (
	"time"

	"github.com/quantlens/trendview/internal/normalize"
)

// JobState is the lifecycle state reported by the control status endpoint.
// Jobs transition idle -> running -> {success | error} -> idle, or stay idle
// if never triggered.
type JobState string

const (
	JobStateIdle    JobState = "idle"
	JobStateRunning JobState = "running"
	JobStateSuccess JobState = "success"
	JobStateError   JobState = "error"
)

// Terminal reports whether no further transition happens without a new trigger.
func (s JobState) Terminal() bool {
	return s == JobStateIdle || s == JobStateSuccess || s == JobStateError
}

// JobStatus is the status of a single named backend job.
// Consumed, not owned - the wire shape belongs to the backend.
type JobStatus struct {
	State      JobState   `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Progress   float64    `json:"progress"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// ControlStatus is the payload of GET /control/status.
type ControlStatus struct {
	Jobs      map[string]*JobStatus  `json:"jobs"`
	Config    map[string]interface{} `json:"config,omitempty"`
	FetchedAt time.Time              `json:"fetchedAt"`
}

// Job returns the status for a job key, treating an absent key as idle.
func (c *ControlStatus) Job(key string) *JobStatus {
	if c == nil || c.Jobs == nil {
		return &JobStatus{State: JobStateIdle}
	}
	if status, ok := c.Jobs[key]; ok && status != nil {
		return status
	}
	return &JobStatus{State: JobStateIdle}
}

// Page is a paginated dataset payload: {items, total?, lastSyncedAt?}.
type Page struct {
	Items        []map[string]interface{} `json:"items"`
	Total        int64                    `json:"total"`
	LastSyncedAt *time.Time               `json:"lastSyncedAt,omitempty"`
}

// timestampLayouts are the formats the backend has been observed to emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts the backend's assorted timestamp shapes:
// RFC3339 strings, bare datetimes and unix seconds as numbers.
func parseTimestamp(val interface{}) *time.Time {
	switch v := val.(type) {
	case string:
		for _, layout := range timestampLayouts {
			if ts, err := time.Parse(layout, v); err == nil {
				return &ts
			}
		}
		return nil
	case float64:
		if v <= 0 {
			return nil
		}
		ts := time.Unix(int64(v), 0)
		return &ts
	default:
		return nil
	}
}

// jobStatusFromRecord builds a JobStatus from a raw payload object whose
// keys may be camelCase or snake_case.
func jobStatusFromRecord(record map[string]interface{}) *JobStatus {
	status := &JobStatus{
		State:    JobStateIdle,
		Progress: normalize.Float(record, "progress"),
		Message:  normalize.String(record, "message"),
		Error:    normalize.String(record, "error"),
	}

	if state := normalize.String(record, "status"); state != "" {
		status.State = JobState(state)
	}
	if val, ok := normalize.Resolve(record, "startedAt"); ok {
		status.StartedAt = parseTimestamp(val)
	}
	if val, ok := normalize.Resolve(record, "finishedAt"); ok {
		status.FinishedAt = parseTimestamp(val)
	}

	return status
}

// pageFromRecord builds a Page from a raw dataset payload.
func pageFromRecord(record map[string]interface{}) *Page {
	page := &Page{
		Items: []map[string]interface{}{},
		Total: normalize.Int(record, "total"),
	}

	if val, ok := normalize.Resolve(record, "lastSyncedAt"); ok {
		page.LastSyncedAt = parseTimestamp(val)
	}

	rawItems, ok := normalize.Resolve(record, "items")
	if !ok {
		return page
	}
	items, ok := rawItems.([]interface{})
	if !ok {
		return page
	}
	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			page.Items = append(page.Items, m)
		}
	}
	if page.Total == 0 {
		page.Total = int64(len(page.Items))
	}

	return page
}
