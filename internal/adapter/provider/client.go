// Package provider fetches raw payloads from the upstream AQI, FIRMS and
// Open-Meteo HTTP APIs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/air-quality-etl/internal/observability"
)

// maxBodyBytes bounds how much of an upstream response is read.
const maxBodyBytes = 64 << 20

// ErrDecode marks an upstream response body that could not be parsed.
var ErrDecode = errors.New("decode upstream response")

// UpstreamError reports a non-2xx upstream response.
type UpstreamError struct {
	Provider string
	Status   int
	Body     string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.Status, e.Body)
}

// IsUpstream reports whether err came from a failed or unparseable upstream call.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	var re *RequestError
	return errors.As(err, &ue) || errors.As(err, &re) || errors.Is(err, ErrDecode)
}

// RequestError reports a transport failure reaching an upstream provider.
type RequestError struct {
	Provider string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s request: %v", e.Provider, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// transport performs instrumented GET requests shared by all provider clients.
type transport struct {
	httpClient *http.Client
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func newTransport(timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) transport {
	return transport{
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
		logger:     logger,
	}
}

// get fetches fullURL and returns the body of a 2xx response.
func (t transport) get(ctx context.Context, provider, fullURL string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	t.metrics.UpstreamDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		t.metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return nil, &RequestError{Provider: provider, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		t.metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		return nil, &RequestError{Provider: provider, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.metrics.UpstreamRequests.WithLabelValues(provider, "error").Inc()
		t.logger.Warn("upstream request failed", "provider", provider, "status", resp.StatusCode)
		return nil, &UpstreamError{Provider: provider, Status: resp.StatusCode, Body: truncate(string(body), 500)}
	}

	t.metrics.UpstreamRequests.WithLabelValues(provider, "success").Inc()
	t.logger.Debug("upstream request complete", "provider", provider, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
