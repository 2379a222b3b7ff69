package controller

import (
	"context"
	"net/http"
)

// ScheduleService is what the HTTP layer needs from the schedule service.
type ScheduleService interface {
	Stations(ctx context.Context, direction string) ([]string, error)
	NextDepartures(ctx context.Context, stn, direction, clock string) (string, error)
}

type ScheduleController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type scheduleControllerImpl struct {
	service ScheduleService
}

func NewScheduleController(service ScheduleService) ScheduleController {
	return &scheduleControllerImpl{service: service}
}

func (c *scheduleControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /p/list/{direction}/{$}", c.handleListStations)
	mux.HandleFunc("GET /p/{stn}/{direction}/{time}/{$}", c.handleGrabTimes)
}
