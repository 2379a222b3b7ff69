// Package service answers schedule queries from cached timetables, scraping
// a direction's page only when no fresh copy is held in memory or SQLite.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"pathbridge/internal/metrics"
	"pathbridge/internal/modules/schedule/catalog"
	"pathbridge/internal/modules/schedule/repository"
	"pathbridge/internal/modules/schedule/scraper"
	"pathbridge/internal/modules/schedule/types"
)

var (
	ErrUnknownStation = errors.New("invalid stn")
	ErrInvalidTime    = errors.New("invalid 'time'")
)

type Options struct {
	Catalog    catalog.Catalog
	Repository repository.TimetableRepository // nil keeps timetables in memory only
	Scraper    scraper.Scraper
	Limit      int
	TTL        time.Duration
	Logger     *slog.Logger
	Now        func() time.Time
}

type Service struct {
	catalog catalog.Catalog
	repo    repository.TimetableRepository
	scraper scraper.Scraper
	limit   int
	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time

	// loadMu serialises loads so concurrent misses scrape a page once.
	loadMu sync.Mutex
	mu     sync.RWMutex
	cache  map[string]types.Timetable
}

func NewService(opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Scraper == nil {
		opts.Scraper = scraper.New(0)
	}
	return &Service{
		catalog: opts.Catalog,
		repo:    opts.Repository,
		scraper: opts.Scraper,
		limit:   opts.Limit,
		ttl:     opts.TTL,
		logger:  opts.Logger,
		now:     opts.Now,
		cache:   make(map[string]types.Timetable),
	}
}

// Stations lists a direction's stations in timetable order.
func (s *Service) Stations(ctx context.Context, direction string) ([]string, error) {
	tt, err := s.Timetable(ctx, direction)
	if err != nil {
		return nil, err
	}
	return tt.Stations, nil
}

// NextDepartures renders the next departures from stn at or after clock.
func (s *Service) NextDepartures(ctx context.Context, stn, direction, clock string) (string, error) {
	tt, err := s.Timetable(ctx, direction)
	if err != nil {
		return "", err
	}

	times, ok := tt.Times[stn]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStation, stn)
	}

	cur, err := ParseClock(clock)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidTime, err)
	}

	next, err := NextTimes(times, cur, s.limit)
	if err != nil {
		return "", err
	}
	return MinutesLeft(next, cur)
}

// Timetable returns the direction's timetable from memory, then SQLite, then
// the published page. A stale copy is served when a refresh scrape fails.
func (s *Service) Timetable(ctx context.Context, direction string) (types.Timetable, error) {
	pageURL, err := s.catalog.PageURL(direction)
	if err != nil {
		return types.Timetable{}, err
	}

	if tt, ok := s.fromMemory(direction); ok && tt.Fresh(s.now(), s.ttl) {
		metrics.TimetableLoads.WithLabelValues("memory").Inc()
		return tt, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	// Another caller may have loaded it while we waited.
	stale, haveStale := s.fromMemory(direction)
	if haveStale && stale.Fresh(s.now(), s.ttl) {
		metrics.TimetableLoads.WithLabelValues("memory").Inc()
		return stale, nil
	}

	if s.repo != nil {
		tt, err := s.repo.GetTimetable(ctx, direction)
		switch {
		case err == nil && tt.Fresh(s.now(), s.ttl):
			metrics.TimetableLoads.WithLabelValues("db").Inc()
			s.store(tt)
			return tt, nil
		case err == nil:
			if !haveStale || tt.FetchedAt.After(stale.FetchedAt) {
				stale, haveStale = tt, true
			}
		case !errors.Is(err, repository.ErrNotFound):
			s.logger.Warn("timetable lookup failed", "direction", direction, "error", err)
		}
	}

	tt, err := s.scraper.Scrape(ctx, direction, pageURL)
	if err != nil {
		if haveStale {
			metrics.TimetableLoads.WithLabelValues("stale").Inc()
			s.logger.Warn("timetable refresh failed; serving stale copy",
				"direction", direction,
				"fetched_at", stale.FetchedAt,
				"error", err,
			)
			return stale, nil
		}
		metrics.TimetableLoads.WithLabelValues("error").Inc()
		return types.Timetable{}, err
	}
	metrics.TimetableLoads.WithLabelValues("scrape").Inc()
	s.logger.Info("timetable scraped", "direction", direction, "url", pageURL, "stations", len(tt.Stations))

	if s.repo != nil {
		if err := s.repo.SaveTimetable(ctx, tt); err != nil {
			s.logger.Warn("failed to persist timetable", "direction", direction, "error", err)
		}
	}
	s.store(tt)
	return tt, nil
}

func (s *Service) fromMemory(direction string) (types.Timetable, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tt, ok := s.cache[direction]
	return tt, ok
}

func (s *Service) store(tt types.Timetable) {
	s.mu.Lock()
	s.cache[tt.Direction] = tt
	s.mu.Unlock()
}
