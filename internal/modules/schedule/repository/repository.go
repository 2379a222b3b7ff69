package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pathbridge/internal/modules/schedule/types"
)

//go:embed sql/upsert-timetable.sql
var upsertTimetableSQL string

//go:embed sql/delete-stations.sql
var deleteStationsSQL string

//go:embed sql/insert-station.sql
var insertStationSQL string

//go:embed sql/get-timetable.sql
var getTimetableSQL string

//go:embed sql/get-stations.sql
var getStationsSQL string

var ErrNotFound = errors.New("timetable not found")

type TimetableRepository interface {
	SaveTimetable(ctx context.Context, tt types.Timetable) error
	GetTimetable(ctx context.Context, direction string) (types.Timetable, error)
}

type repositoryImpl struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) TimetableRepository {
	return &repositoryImpl{db: db}
}

// SaveTimetable replaces the stored timetable for tt.Direction.
func (r *repositoryImpl) SaveTimetable(ctx context.Context, tt types.Timetable) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	fetchedAt := tt.FetchedAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.ExecContext(ctx, upsertTimetableSQL, tt.Direction, tt.SourceURL, fetchedAt); err != nil {
		return fmt.Errorf("upsert timetable: %w", err)
	}
	if _, err := tx.ExecContext(ctx, deleteStationsSQL, tt.Direction); err != nil {
		return fmt.Errorf("clear stations: %w", err)
	}
	for i, stn := range tt.Stations {
		times := tt.Times[stn]
		if times == nil {
			times = []string{}
		}
		encoded, err := json.Marshal(times)
		if err != nil {
			return fmt.Errorf("encode times for %q: %w", stn, err)
		}
		if _, err := tx.ExecContext(ctx, insertStationSQL, tt.Direction, i, stn, string(encoded)); err != nil {
			return fmt.Errorf("insert station %q: %w", stn, err)
		}
	}
	return tx.Commit()
}

func (r *repositoryImpl) GetTimetable(ctx context.Context, direction string) (types.Timetable, error) {
	tt := types.Timetable{Direction: direction, Times: map[string][]string{}}

	var fetchedAt string
	err := r.db.QueryRowContext(ctx, getTimetableSQL, direction).Scan(&tt.SourceURL, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Timetable{}, ErrNotFound
	}
	if err != nil {
		return types.Timetable{}, fmt.Errorf("get timetable %q: %w", direction, err)
	}
	tt.FetchedAt, err = time.Parse(time.RFC3339Nano, fetchedAt)
	if err != nil {
		return types.Timetable{}, fmt.Errorf("parse fetched_at %q: %w", fetchedAt, err)
	}

	rows, err := r.db.QueryContext(ctx, getStationsSQL, direction)
	if err != nil {
		return types.Timetable{}, fmt.Errorf("get stations %q: %w", direction, err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close timetable rows", "error", err)
		}
	}()

	for rows.Next() {
		var stn, encoded string
		if err := rows.Scan(&stn, &encoded); err != nil {
			return types.Timetable{}, err
		}
		var times []string
		if err := json.Unmarshal([]byte(encoded), &times); err != nil {
			return types.Timetable{}, fmt.Errorf("decode times for %q: %w", stn, err)
		}
		tt.Stations = append(tt.Stations, stn)
		tt.Times[stn] = times
	}
	return tt, rows.Err()
}
