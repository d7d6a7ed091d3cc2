package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const maxResponseBytes = 4 << 20

// doWithRetry executes an HTTP request with bounded exponential backoff.
// Network errors, 429 and 5xx responses are retried up to cfg.MaxAttempts
// total attempts; a Retry-After header on 429 overrides the next delay.
// Any other non-200 status fails immediately. The request is rebuilt per
// attempt because request bodies are single-use.
func doWithRetry(ctx context.Context, client *http.Client, cfg FetcherConfig, build func() (*http.Request, error)) ([]byte, error) {
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = func(ctx context.Context, d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}

	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	delay := time.Second
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			sleep(ctx, delay)
			delay *= 2
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		if req.Header.Get("User-Agent") == "" && cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read response: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
			if ra := resp.Header.Get("Retry-After"); resp.StatusCode == http.StatusTooManyRequests && ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
					delay = time.Duration(secs) * time.Second
				}
			}
			continue
		}

		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	return nil, lastErr
}
