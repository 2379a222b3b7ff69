package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"pathbridge/internal/metrics"
	"pathbridge/internal/modules/schedule/service"
	"pathbridge/internal/utils"
)

// handleListStations writes the direction's stations as "[a,b,c]".
func (c *scheduleControllerImpl) handleListStations(w http.ResponseWriter, r *http.Request) {
	direction := r.PathValue("direction")
	if direction == "" {
		utils.WriteTextError(w, http.StatusBadRequest, "'direction' cannot be empty")
		return
	}

	stations, err := c.service.Stations(r.Context(), direction)
	if err != nil {
		slog.Warn("list stations failed", "direction", direction, "error", err)
		utils.WriteTextError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.WriteText(w, http.StatusOK, "["+strings.Join(stations, ",")+"]")
}

// handleGrabTimes writes the next departures from a station.
func (c *scheduleControllerImpl) handleGrabTimes(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.TimesRequests.Observe(time.Since(start).Seconds()) }()

	for _, key := range []string{"stn", "direction", "time"} {
		if r.PathValue(key) == "" {
			utils.WriteTextError(w, http.StatusBadRequest, "'"+key+"' cannot be empty")
			return
		}
	}
	stn, direction, clock := r.PathValue("stn"), r.PathValue("direction"), r.PathValue("time")

	body, err := c.service.NextDepartures(r.Context(), stn, direction, clock)
	if err != nil {
		status := statusFor(err)
		slog.Warn("grab times failed",
			"stn", stn,
			"direction", direction,
			"time", clock,
			"status", status,
			"error", err,
		)
		utils.WriteTextError(w, status, err.Error())
		return
	}
	utils.WriteText(w, http.StatusOK, body)
}

// statusFor maps caller mistakes to 400; everything else, including an
// unknown direction and upstream failures, is a 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnknownStation), errors.Is(err, service.ErrInvalidTime):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
