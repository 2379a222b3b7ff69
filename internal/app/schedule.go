package app

import (
	"context"
	"errors"
	"log/slog"

	"pathbridge/internal/config"
	"pathbridge/internal/db"
	"pathbridge/internal/db/migrate"
	"pathbridge/internal/httpapi"
	"pathbridge/internal/modules/schedule"
	"pathbridge/internal/modules/schedule/catalog"
	"pathbridge/internal/modules/schedule/scraper"
)

// ScheduleOptions exposes hooks used by tests; the zero value is fine in production.
type ScheduleOptions struct {
	Scraper scraper.Scraper
	Ready   chan<- string
}

// RunSchedule serves the timetable routes, /healthz and /metrics until ctx is done.
func RunSchedule(ctx context.Context, cfg config.Config, logger *slog.Logger, opts ScheduleOptions) error {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"scheduleAddr", cfg.ScheduleAddr,
		"scheduleLimit", cfg.ScheduleLimit,
		"scheduleCatalog", cfg.ScheduleCatalog,
		"scheduleCacheTTL", cfg.ScheduleCacheTTL,
		"sqlitePath", cfg.SQLitePath,
		"sqliteMaxOpenConns", cfg.SQLiteMaxOpenConns,
		"sqliteMaxIdleConns", cfg.SQLiteMaxIdleConns,
		"sqliteConnMaxLifetime", cfg.SQLiteConnMaxLifetime,
		"sqliteLogSQL", cfg.SQLiteLogSQL,
	)

	cat, err := catalog.Load(cfg.ScheduleCatalog)
	if err != nil {
		return err
	}

	dbConn, err := db.Open(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			logger.Error("db close", "error", closeErr)
		}
	}()

	if err := migrate.Run(ctx, dbConn, logger); err != nil {
		return err
	}

	var ok int
	if err := dbConn.QueryRowContext(ctx, `SELECT 1`).Scan(&ok); err != nil {
		return err
	}
	if ok != 1 {
		return errors.New("database connection failed")
	}
	logger.Info("database connection successful")

	mux := httpapi.NewMux(map[string]httpapi.Check{"db": httpapi.DBCheck(dbConn)}, logger)
	schedule.RegisterFeature(mux, dbConn, schedule.Feature{
		Catalog: cat,
		Limit:   cfg.ScheduleLimit,
		TTL:     cfg.ScheduleCacheTTL,
		Scraper: opts.Scraper,
	}, logger)
	logger.Info("schedule directions loaded", "directions", cat.Keys())

	srv := httpapi.NewServer(cfg.ScheduleAddr, mux, logger)
	if err := serve(ctx, srv, logger, opts.Ready); err != nil {
		return err
	}
	return ctx.Err()
}
