// Package schedule wires the timetable backend the bridge queries: catalog,
// scraper, SQLite cache, service and HTTP routes.
package schedule

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"pathbridge/internal/modules/schedule/catalog"
	"pathbridge/internal/modules/schedule/controller"
	"pathbridge/internal/modules/schedule/repository"
	"pathbridge/internal/modules/schedule/scraper"
	"pathbridge/internal/modules/schedule/service"
)

type Feature struct {
	Catalog catalog.Catalog
	Limit   int
	TTL     time.Duration
	// Scraper defaults to an HTTP scraper.
	Scraper scraper.Scraper
}

// RegisterFeature mounts the schedule routes on mux and returns the service behind them.
func RegisterFeature(mux *http.ServeMux, db *sql.DB, f Feature, logger *slog.Logger) *service.Service {
	var repo repository.TimetableRepository
	if db != nil {
		repo = repository.NewRepository(db)
	}
	svc := service.NewService(service.Options{
		Catalog:    f.Catalog,
		Repository: repo,
		Scraper:    f.Scraper,
		Limit:      f.Limit,
		TTL:        f.TTL,
		Logger:     logger,
	})
	controller.NewScheduleController(svc).RegisterRoutes(mux)
	return svc
}
