package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Default HTTP behaviour for provider APIs.
const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = 1 * time.Second
	defaultMaxDelay   = 10 * time.Second
	userAgent         = "Mozilla/5.0"
)

// httpError is a terminal (non-retryable) HTTP status failure.
type httpError struct {
	status int
	url    string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("http %d from %s", e.status, e.url)
}

// apiClient wraps http.Client with bounded retries and exponential backoff.
// Transient failures (network errors, 5xx) are retried; 4xx responses are
// terminal for the request and never retried.
type apiClient struct {
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
}

func newAPIClient() *apiClient {
	return &apiClient{
		client:     &http.Client{Timeout: defaultTimeout},
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
		maxDelay:   defaultMaxDelay,
	}
}

// getJSON fetches url and decodes the JSON body into out.
func (c *apiClient) getJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode >= 500:
			lastErr = &httpError{status: resp.StatusCode, url: url}
			continue
		case resp.StatusCode >= 400:
			return &httpError{status: resp.StatusCode, url: url}
		}

		if err := json.Unmarshal(body, out); err != nil {
			// Malformed payloads are terminal: retrying will not fix them.
			return fmt.Errorf("decode response from %s: %w", url, err)
		}
		return nil
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
