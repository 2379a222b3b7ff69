package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pathbridge/internal/config"
	"pathbridge/internal/db"
	"pathbridge/internal/db/migrate"
	"pathbridge/internal/logging"
	"pathbridge/internal/modules/schedule/catalog"
	"pathbridge/internal/modules/schedule/repository"
	"pathbridge/internal/modules/schedule/service"
)

var version = "dev"
var appName = "pathbridge-dbtool"

const usage = `usage: %s <command>
  migrate   apply pending schema migrations
  prefetch  scrape every catalog direction into the timetable cache
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprintf(stderr, usage, args[0])
		return 1
	}
	command := args[1]
	switch command {
	case "migrate", "prefetch":
	default:
		fmt.Fprintf(stderr, "unknown command: %s\n", command)
		fmt.Fprintf(stderr, usage, args[0])
		return 1
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config error: %v\n", err)
		return 1
	}
	logger := logging.New(cfg, version, appName)
	slog.SetDefault(logger)

	conn, err := db.Open(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "db open: %v\n", err)
		return 1
	}
	defer func() {
		if closeErr := db.Close(conn); closeErr != nil {
			slog.Error("db close", "err", closeErr)
		}
	}()

	if err := migrate.Run(ctx, conn, logger); err != nil {
		fmt.Fprintf(stderr, "migrate: %v\n", err)
		return 1
	}

	if command == "migrate" {
		fmt.Fprintln(stdout, "migrations applied")
		return 0
	}

	cat, err := catalog.Load(cfg.ScheduleCatalog)
	if err != nil {
		fmt.Fprintf(stderr, "catalog: %v\n", err)
		return 1
	}
	svc := service.NewService(service.Options{
		Catalog:    cat,
		Repository: repository.NewRepository(conn),
		Limit:      cfg.ScheduleLimit,
		TTL:        cfg.ScheduleCacheTTL,
		Logger:     logger,
	})
	code := 0
	for _, direction := range cat.Keys() {
		stations, err := svc.Stations(ctx, direction)
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", direction, err)
			code = 1
			continue
		}
		fmt.Fprintf(stdout, "%s: %d stations\n", direction, len(stations))
	}
	return code
}
