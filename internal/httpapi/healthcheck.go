package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"pathbridge/internal/utils"
)

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// DBCheck runs SELECT 1 against db.
func DBCheck(db *sql.DB) Check {
	return func(ctx context.Context) error {
		var ok int
		if err := db.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
			return err
		}
		if ok != 1 {
			return errors.New("unexpected result from SELECT 1")
		}
		return nil
	}
}

// LinkCheck fails while the device link is down.
func LinkCheck(connected func() bool) Check {
	return func(context.Context) error {
		if !connected() {
			return errors.New("device link not connected")
		}
		return nil
	}
}

type healthchecker interface {
	handleHealthz(w http.ResponseWriter, r *http.Request)
}

type healthcheckerImpl struct {
	checks map[string]Check
	logger *slog.Logger
}

func NewHealthchecker(checks map[string]Check, logger *slog.Logger) healthchecker {
	return &healthcheckerImpl{checks: checks, logger: logger}
}

func (h *healthcheckerImpl) handleHealthz(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			h.logger.Error("health check failed", "check", name, "error", err)
			utils.WriteError(w, http.StatusInternalServerError, name+": "+err.Error())
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, checks map[string]Check, logger *slog.Logger) {
	healthchecker := NewHealthchecker(checks, logger)
	mux.HandleFunc("GET /healthz", healthchecker.handleHealthz)
}
