package bridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"pathbridge/internal/metrics"
)

const userAgent = "pathbridge (PATH schedule bridge for Pebble)"

// Fetcher performs the single GET a transaction needs.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (status int, body string, err error)
}

type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher returns a fetcher. A zero timeout leaves requests unbounded.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: &uaTransport{base: http.DefaultTransport, userAgent: userAgent},
		},
	}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (int, string, error) {
	start := time.Now()
	defer func() { metrics.ScheduleRequestDuration.Observe(time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.ScheduleRequests.WithLabelValues("error").Inc()
		return 0, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		metrics.ScheduleRequests.WithLabelValues("error").Inc()
		return 0, "", fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ScheduleRequests.WithLabelValues("error").Inc()
		return resp.StatusCode, "", fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		metrics.ScheduleRequests.WithLabelValues("ok").Inc()
	} else {
		metrics.ScheduleRequests.WithLabelValues("non_200").Inc()
	}
	return resp.StatusCode, string(body), nil
}

type uaTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *uaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
