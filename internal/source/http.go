package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig tunes URL fetches. Zero values get defaults:
// Timeout 30s, MaxRetries 3, InitialBackoff 200ms, MaxBackoff 5s.
// A negative MaxRetries disables retries.
type HTTPConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Transport      http.RoundTripper
}

// HTTP downloads a CSV with GET. 429 and 5xx responses and transport errors
// are retried with exponential backoff; any other non-2xx status fails.
type HTTP struct {
	url            string
	client         *http.Client
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// NewHTTP returns an HTTP source for url.
func NewHTTP(url string, cfg HTTPConfig) *HTTP {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 200 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	return &HTTP{
		url:            url,
		client:         &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Open performs the GET. The caller must close the returned body.
func (h *HTTP) Open(ctx context.Context) (io.ReadCloser, error) {
	attempts := h.maxRetries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
		if err != nil {
			return nil, fmt.Errorf("source: build request: %w", err)
		}
		req.Header.Set("Accept", "text/csv, */*")

		resp, err := h.client.Do(req)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp.Body, nil
		case retryable(resp.StatusCode):
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("source: GET %s: retryable status %d", h.url, resp.StatusCode)
		default:
			_ = resp.Body.Close()
			return nil, fmt.Errorf("source: GET %s: status %d", h.url, resp.StatusCode)
		}

		if attempt+1 < attempts {
			if err := wait(ctx, backoff(h.initialBackoff, attempt, h.maxBackoff)); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

func retryable(code int) bool {
	return code == http.StatusTooManyRequests || (code >= 500 && code <= 599)
}

// backoff returns initial * 2^attempt, clamped to max.
func backoff(initial time.Duration, attempt int, max time.Duration) time.Duration {
	d := initial << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
