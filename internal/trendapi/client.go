package trendapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// datasetPaths maps logical dataset names to upstream resource paths.
var datasetPaths = map[string]string{
	"concepts":       "/concept/insights",
	"industries":     "/industry/insights",
	"peripheral":     "/peripheral/insights",
	"moneyflow":      "/moneyflow/funds",
	"index-history":  "/index/history",
	"macro":          "/macro/indicators",
	"ppi":            "/macro/ppi",
	"dollar-index":   "/macro/dollar-index",
	"leverage-ratio": "/macro/leverage-ratio",
}

// DatasetNames returns the known logical dataset names.
func DatasetNames() []string {
	names := make([]string, 0, len(datasetPaths))
	for name := range datasetPaths {
		names = append(names, name)
	}
	return names
}

// KnownDataset reports whether name maps to an upstream resource.
func KnownDataset(name string) bool {
	_, ok := datasetPaths[name]
	return ok
}

// APIError is a non-2xx response from the backend, carrying the
// server-provided detail when the error body had one.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Client talks to the upstream Trend View backend.
type Client struct {
	baseURL      string
	client       *http.Client
	log          zerolog.Logger
	retryMax     int
	retryBackoff time.Duration
}

// NewClient creates a backend client. The base URL is the original
// window.API_BASE_URL override, e.g. "http://localhost:8000/api".
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 15 * time.Second},
		log:          log.With().Str("client", "trendapi").Logger(),
		retryMax:     3,
		retryBackoff: 500 * time.Millisecond,
	}
}

// SetTimeout sets the HTTP client timeout for upstream calls
func (c *Client) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// SetRetry configures the bounded retry used for one-shot dataset GETs
func (c *Client) SetRetry(maxAttempts int, backoffStep time.Duration) {
	if maxAttempts >= 1 {
		c.retryMax = maxAttempts
	}
	c.retryBackoff = backoffStep
}

// TriggerSync starts a named backend job via POST /control/sync/{slug}.
// Any 2xx response means the job was accepted; the caller is expected to
// poll the status endpoint for the outcome.
func (c *Client) TriggerSync(ctx context.Context, jobSlug string, payload interface{}) error {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sync payload: %w", err)
	}

	endpoint := c.baseURL + "/control/sync/" + url.PathEscape(jobSlug)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("job", jobSlug).Str("url", endpoint).Msg("Triggering sync")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromResponse(resp)
	}

	c.log.Info().Str("job", jobSlug).Msg("Sync accepted")
	return nil
}

// ControlStatus fetches GET /control/status. Deliberately not retried:
// the poller calls this once per interval and surfaces transient failures
// immediately rather than stacking retries inside the poll loop.
func (c *Client) ControlStatus(ctx context.Context) (*ControlStatus, error) {
	record, err := c.getJSON(ctx, c.baseURL+"/control/status")
	if err != nil {
		return nil, err
	}

	status := &ControlStatus{
		Jobs:      make(map[string]*JobStatus),
		FetchedAt: time.Now(),
	}

	if rawJobs, ok := record["jobs"].(map[string]interface{}); ok {
		for key, rawJob := range rawJobs {
			jobRecord, ok := rawJob.(map[string]interface{})
			if !ok {
				continue
			}
			status.Jobs[key] = jobStatusFromRecord(jobRecord)
		}
	}
	if rawConfig, ok := record["config"].(map[string]interface{}); ok {
		status.Config = rawConfig
	}

	return status, nil
}

// Dataset fetches a page of a named dataset with bounded retry.
// limit <= 0 means the backend default.
func (c *Client) Dataset(ctx context.Context, name string, limit, offset int) (*Page, error) {
	path, ok := datasetPaths[name]
	if !ok {
		return nil, fmt.Errorf("unknown dataset: %s", name)
	}

	endpoint := c.baseURL + path
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}
	if offset > 0 {
		query.Set("offset", fmt.Sprintf("%d", offset))
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	resp, err := DoWithRetry(ctx, c.client, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	}, c.retryMax, c.retryBackoff, c.log)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dataset %s: %w", name, err)
	}
	defer resp.Body.Close()

	var record map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to parse dataset %s: %w", name, err)
	}

	return pageFromRecord(record), nil
}

// getJSON performs a single GET and decodes the JSON object response
func (c *Client) getJSON(ctx context.Context, endpoint string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrorFromResponse(resp)
	}

	var record map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return record, nil
}

// apiErrorFromResponse extracts the server-provided detail/message field
// from an error body when present.
func apiErrorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return apiErr
	}

	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Detail != "" {
			apiErr.Detail = parsed.Detail
		} else if parsed.Message != "" {
			apiErr.Detail = parsed.Message
		}
	}

	return apiErr
}
