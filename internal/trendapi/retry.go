package trendapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DoWithRetry performs a request with bounded linear-backoff retry.
// The delay before attempt k (1-indexed) is backoffStep * k; there is no
// jitter. Any non-2xx status counts as a retryable failure, the same as a
// transport error - 4xx responses are NOT exempt. That matches the
// historical behavior this client replaces; callers that need to stop on
// client errors must inspect the final *APIError themselves.
//
// newReq is called per attempt because a *http.Request body cannot be
// replayed once consumed.
func DoWithRetry(
	ctx context.Context,
	client *http.Client,
	newReq func() (*http.Request, error),
	maxAttempts int,
	backoffStep time.Duration,
	log zerolog.Logger,
) (*http.Response, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := backoffStep * time.Duration(attempt)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("Retrying request")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}

		lastErr = apiErrorFromResponse(resp)
		// Drain so the connection can be reused across attempts
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxAttempts, lastErr)
}
