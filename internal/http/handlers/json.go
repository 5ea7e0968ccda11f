package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/bookings"
	"github.com/wolfman30/podology-booking/internal/flows"
	"github.com/wolfman30/podology-booking/internal/patients"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, bookings.ErrUnknownProvider), errors.Is(err, patients.ErrPatientNotFound):
		return http.StatusNotFound
	case errors.Is(err, bookings.ErrInvalidWindow), errors.Is(err, analytics.ErrInvalidPeriod),
		errors.Is(err, flows.ErrUnknownAction), errors.Is(err, flows.ErrInvalidPayload):
		return http.StatusBadRequest
	case errors.Is(err, bookings.ErrNoSourceReachable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// parseTimeParam reads an optional RFC3339 query parameter.
func parseTimeParam(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s must be RFC3339", name)
	}
	return &t, nil
}
