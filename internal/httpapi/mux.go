// Package httpapi holds the HTTP plumbing shared by the bridge and the
// schedule server: health checks, metrics exposition and request logging.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewMux returns a mux serving /healthz and /metrics. Callers mount their own routes on it.
func NewMux(checks map[string]Check, logger *slog.Logger) *http.ServeMux {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	registerHealthcheck(mux, checks, logger)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}
