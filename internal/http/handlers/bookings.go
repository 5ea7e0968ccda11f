package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/podology-booking/internal/analytics"
	"github.com/wolfman30/podology-booking/internal/availability"
	"github.com/wolfman30/podology-booking/internal/bookings"
	"github.com/wolfman30/podology-booking/internal/patients"
	"github.com/wolfman30/podology-booking/pkg/logging"
)

// BookingService is the query surface served over HTTP.
type BookingService interface {
	GetAvailableSlots(ctx context.Context, providerKey string, start, end *time.Time) ([]availability.AvailableSlot, error)
	GetPatientAppointmentHistory(ctx context.Context, patientID string) ([]patients.AppointmentRecord, error)
	ResolvePatientByPhone(ctx context.Context, phone string) (patients.PhoneLookup, error)
	RunFullSync(ctx context.Context, timeMin, timeMax time.Time) (bookings.SyncReport, error)
	GenerateDashboardKPIs(ctx context.Context, period *analytics.Period) (*analytics.KPIs, error)
}

// BookingsHandler serves slots, patients, sync and dashboard endpoints.
type BookingsHandler struct {
	service    BookingService
	logger     *logging.Logger
	syncWindow time.Duration
	now        func() time.Time
}

// NewBookingsHandler creates the handler. syncWindow is the default span on
// each side of now for POST /sync without a body.
func NewBookingsHandler(service BookingService, syncWindow time.Duration, logger *logging.Logger) *BookingsHandler {
	if service == nil {
		panic("handlers: booking service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if syncWindow <= 0 {
		syncWindow = 30 * 24 * time.Hour
	}
	return &BookingsHandler{service: service, logger: logger, syncWindow: syncWindow, now: time.Now}
}

type slotsResponse struct {
	Slots []availability.AvailableSlot `json:"slots"`
	Count int                          `json:"count"`
}

// ListSlots handles GET /slots?provider=&start=&end=
func (h *BookingsHandler) ListSlots(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	provider := strings.TrimSpace(r.URL.Query().Get("provider"))

	slots, err := h.service.GetAvailableSlots(r.Context(), provider, start, end)
	if err != nil {
		h.fail(w, "list slots", err)
		return
	}
	if slots == nil {
		slots = []availability.AvailableSlot{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Slots: slots, Count: len(slots)})
}

type historyResponse struct {
	PatientID    string                       `json:"patient_id"`
	Appointments []patients.AppointmentRecord `json:"appointments"`
}

// PatientHistory handles GET /patients/{patientID}/appointments
func (h *BookingsHandler) PatientHistory(w http.ResponseWriter, r *http.Request) {
	// chi routes on RawPath when it is set, leaving the param still escaped
	patientID := chi.URLParam(r, "patientID")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(patientID)
		if err != nil {
			jsonError(w, "invalid patient id", http.StatusBadRequest)
			return
		}
		patientID = unescaped
	}
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		jsonError(w, "missing patient id", http.StatusBadRequest)
		return
	}
	appts, err := h.service.GetPatientAppointmentHistory(r.Context(), patientID)
	if err != nil {
		h.fail(w, "patient history", err)
		return
	}
	writeJSON(w, http.StatusOK, historyResponse{PatientID: patientID, Appointments: appts})
}

// LookupPatient handles GET /patients/lookup?phone=
func (h *BookingsHandler) LookupPatient(w http.ResponseWriter, r *http.Request) {
	phone := strings.TrimSpace(r.URL.Query().Get("phone"))
	if phone == "" {
		jsonError(w, "phone is required", http.StatusBadRequest)
		return
	}
	lookup, err := h.service.ResolvePatientByPhone(r.Context(), phone)
	if err != nil {
		h.fail(w, "patient lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, lookup)
}

type syncRequest struct {
	TimeMin *time.Time `json:"time_min"`
	TimeMax *time.Time `json:"time_max"`
}

// Sync handles POST /sync. An empty body syncs the default window around now.
// A run where every calendar failed still returns its report, with 503.
func (h *BookingsHandler) Sync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	now := h.now()
	timeMin, timeMax := now.Add(-h.syncWindow), now.Add(h.syncWindow)
	if req.TimeMin != nil {
		timeMin = *req.TimeMin
	}
	if req.TimeMax != nil {
		timeMax = *req.TimeMax
	}

	rep, err := h.service.RunFullSync(r.Context(), timeMin, timeMax)
	if errors.Is(err, bookings.ErrNoSourceReachable) {
		h.logger.Error("sync reached no calendar", "run_id", rep.RunID)
		writeJSON(w, http.StatusServiceUnavailable, rep)
		return
	}
	if err != nil {
		h.fail(w, "sync", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// DashboardKPIs handles GET /dashboard/kpis?start=&end=
func (h *BookingsHandler) DashboardKPIs(w http.ResponseWriter, r *http.Request) {
	start, err := parseTimeParam(r, "start")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	end, err := parseTimeParam(r, "end")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var period *analytics.Period
	switch {
	case start != nil && end != nil:
		period = &analytics.Period{Start: *start, End: *end}
	case start != nil || end != nil:
		jsonError(w, "start and end must be given together", http.StatusBadRequest)
		return
	}

	kpis, err := h.service.GenerateDashboardKPIs(r.Context(), period)
	if err != nil {
		h.fail(w, "dashboard kpis", err)
		return
	}
	writeJSON(w, http.StatusOK, kpis)
}

func (h *BookingsHandler) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op+" failed", "error", err)
	} else {
		h.logger.Warn(op+" rejected", "error", err)
	}
	jsonError(w, err.Error(), status)
}

// Health handles GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
