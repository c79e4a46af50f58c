package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EmpoweredVote/geofence-backend/internal/occupancy"
	"github.com/EmpoweredVote/geofence-backend/internal/regions"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("encode response")
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, regions.ErrNotFound),
		errors.Is(err, occupancy.ErrUnknownRegion),
		errors.Is(err, occupancy.ErrUnknownNetwork):
		return http.StatusNotFound
	case errors.Is(err, regions.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, occupancy.ErrInvalidEvent),
		errors.Is(err, occupancy.ErrInvalidLocation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// addServerTiming reports how long a store write took.
func addServerTiming(w http.ResponseWriter, name string, d time.Duration) {
	w.Header().Add("Server-Timing", fmt.Sprintf("%s;dur=%.1f", name, float64(d.Microseconds())/1000))
}
