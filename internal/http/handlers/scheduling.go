package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/clinic-scheduler/internal/availability"
	"github.com/wolfman30/clinic-scheduler/internal/booking"
	"github.com/wolfman30/clinic-scheduler/internal/dedup"
	"github.com/wolfman30/clinic-scheduler/internal/emr"
	"github.com/wolfman30/clinic-scheduler/internal/patients"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const bookAppointmentOp = "book_appointment"

type availabilityService interface {
	GetAvailableDates(ctx context.Context, doctorID, clinicID, startDate, endDate string) (schedule.DateAvailability, error)
	GetAvailableSlots(ctx context.Context, doctorID, clinicID, date string) (schedule.DaySummary, error)
	Resolve(ctx context.Context, req availability.ResolveRequest) (availability.Resolution, error)
}

type bookingService interface {
	Book(ctx context.Context, req booking.Request) (*booking.Result, error)
}

type patientService interface {
	Add(ctx context.Context, input emr.PatientInput) (*patients.Result, error)
}

type SchedulingConfig struct {
	Availability availabilityService
	Booking      bookingService
	Patients     patientService
	Dedup        *dedup.Deduplicator
	Logger       *logging.Logger
}

// SchedulingHandler exposes availability lookup, booking and patient
// registration over HTTP.
type SchedulingHandler struct {
	availability availabilityService
	booking      bookingService
	patients     patientService
	dedup        *dedup.Deduplicator
	logger       *logging.Logger
}

func NewSchedulingHandler(cfg SchedulingConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &SchedulingHandler{
		availability: cfg.Availability,
		booking:      cfg.Booking,
		patients:     cfg.Patients,
		dedup:        cfg.Dedup,
		logger:       cfg.Logger,
	}
}

// Routes returns the /v1 scheduling routes.
func (h *SchedulingHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/doctors/{doctorID}", func(r chi.Router) {
		r.Get("/availability", h.ResolveAvailability)
		r.Get("/clinics/{clinicID}/available-dates", h.AvailableDates)
		r.Get("/clinics/{clinicID}/slots", h.AvailableSlots)
	})
	r.Post("/appointments", h.BookAppointment)
	r.Post("/patients", h.AddPatient)
	r.Get("/dedup/stats", h.DedupStats)
	r.Delete("/dedup", h.ClearDedup)
	return r
}

// Health reports liveness.
func (h *SchedulingHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// AvailableDates lists dates with at least one open slot.
// Route: GET /v1/doctors/{doctorID}/clinics/{clinicID}/available-dates?start_date=&end_date=
func (h *SchedulingHandler) AvailableDates(w http.ResponseWriter, r *http.Request) {
	doctorID, clinicID := pathIDs(r)
	start := strings.TrimSpace(r.URL.Query().Get("start_date"))
	end := strings.TrimSpace(r.URL.Query().Get("end_date"))

	startDate, err := schedule.ParseDate(start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}
	endDate, err := schedule.ParseDate(end)
	if err != nil {
		writeError(w, http.StatusBadRequest, "end_date must be YYYY-MM-DD")
		return
	}
	if endDate.Before(startDate) {
		writeError(w, http.StatusBadRequest, "end_date must not be before start_date")
		return
	}

	result, err := h.availability.GetAvailableDates(r.Context(), doctorID, clinicID, start, end)
	if err != nil {
		h.writeFailure(w, "get available dates", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// AvailableSlots summarizes one day's open slots.
// Route: GET /v1/doctors/{doctorID}/clinics/{clinicID}/slots?date=
func (h *SchedulingHandler) AvailableSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, clinicID := pathIDs(r)
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if _, err := schedule.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	summary, err := h.availability.GetAvailableSlots(r.Context(), doctorID, clinicID, date)
	if err != nil {
		h.writeFailure(w, "get available slots", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type doctorCard struct {
	Component string          `json:"component"`
	Input     doctorCardInput `json:"input"`
	Meta      cardMeta        `json:"_meta"`
}

type doctorCardInput struct {
	Doctors       []availability.DoctorEntry            `json:"doctors"`
	DoctorDetails map[string]availability.DoctorDetails `json:"doctor_details"`
}

type cardMeta struct {
	Callbacks []cardCallback `json:"callbacks"`
}

type cardCallback struct {
	ToolName    string            `json:"tool_name"`
	InputSchema map[string]string `json:"input_schema"`
}

var doctorCardCallbacks = []cardCallback{
	{ToolName: "get_doctor_profile_basic", InputSchema: map[string]string{"doctor_id": "string"}},
	{ToolName: "get_available_slots", InputSchema: map[string]string{
		"doctor_id": "string",
		"clinic_id": "string",
		"date":      "string (YYYY-MM-DD)",
	}},
}

// ResolveAvailability renders a doctor card with the doctor's availability
// over the rolling window.
// Route: GET /v1/doctors/{doctorID}/availability?clinic_id=&preferred_date=&preferred_time=
func (h *SchedulingHandler) ResolveAvailability(w http.ResponseWriter, r *http.Request) {
	doctorID, _ := pathIDs(r)
	q := r.URL.Query()
	req := availability.ResolveRequest{
		DoctorID:      doctorID,
		ClinicID:      strings.TrimSpace(q.Get("clinic_id")),
		PreferredDate: strings.TrimSpace(q.Get("preferred_date")),
		PreferredTime: strings.TrimSpace(q.Get("preferred_time")),
	}

	res, err := h.availability.Resolve(r.Context(), req)
	if errors.Is(err, availability.ErrDoctorNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("Doctor with ID '%s' not found", doctorID))
		return
	}
	if err != nil {
		h.writeFailure(w, "resolve availability", err)
		return
	}

	writeJSON(w, http.StatusOK, doctorCard{
		Component: "doctor_card",
		Input: doctorCardInput{
			Doctors:       []availability.DoctorEntry{res.DoctorEntry},
			DoctorDetails: map[string]availability.DoctorDetails{doctorID: res.DoctorDetails},
		},
		Meta: cardMeta{Callbacks: doctorCardCallbacks},
	})
}

// BookAppointment books a slot. Identical requests inside the dedup window
// replay the first response instead of booking twice.
// Route: POST /v1/appointments
func (h *SchedulingHandler) BookAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	book := func(ctx context.Context) (json.RawMessage, error) {
		result, err := h.booking.Book(ctx, req)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	}

	raw, duplicate, err := h.deduped(r.Context(), bookAppointmentOp, req, book)
	if err != nil {
		h.writeFailure(w, "book appointment", err)
		return
	}

	var result booking.Result
	if err := json.Unmarshal(raw, &result); err != nil {
		h.logger.Error("book appointment: decode result", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to encode booking result")
		return
	}
	if duplicate {
		w.Header().Set("X-Duplicate-Request", "true")
	}
	writeJSON(w, result.HTTPStatus(), raw)
}

// AddPatient registers a patient profile.
// Route: POST /v1/patients
func (h *SchedulingHandler) AddPatient(w http.ResponseWriter, r *http.Request) {
	var input emr.PatientInput
	if err := decodeJSON(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.patients.Add(r.Context(), input)
	if err != nil {
		h.writeFailure(w, "add patient", err)
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		w.Header().Set("X-Duplicate-Request", "true")
		status = http.StatusOK
	}
	writeJSON(w, status, res.Response)
}

// DedupStats reports how full the dedup window is.
// Route: GET /v1/dedup/stats
func (h *SchedulingHandler) DedupStats(w http.ResponseWriter, r *http.Request) {
	if h.dedup == nil {
		writeError(w, http.StatusServiceUnavailable, "deduplication disabled")
		return
	}
	stats, err := h.dedup.Stats(r.Context())
	if err != nil {
		h.writeFailure(w, "dedup stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearDedup drops every tracked request signature.
// Route: DELETE /v1/dedup
func (h *SchedulingHandler) ClearDedup(w http.ResponseWriter, r *http.Request) {
	if h.dedup == nil {
		writeError(w, http.StatusServiceUnavailable, "deduplication disabled")
		return
	}
	if err := h.dedup.Clear(r.Context()); err != nil {
		h.writeFailure(w, "dedup clear", err)
		return
	}
	h.logger.Info("dedup window cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (h *SchedulingHandler) deduped(ctx context.Context, op string, payload any, fn func(context.Context) (json.RawMessage, error)) (json.RawMessage, bool, error) {
	if h.dedup == nil {
		raw, err := fn(ctx)
		return raw, false, err
	}
	params, err := dedup.ParamsOf(payload)
	if err != nil {
		return nil, false, err
	}
	return h.dedup.Do(ctx, op, params, fn)
}

// writeFailure maps service errors onto HTTP statuses. Upstream client
// errors keep their status; anything else from the EMR becomes a 502.
func (h *SchedulingHandler) writeFailure(w http.ResponseWriter, op string, err error) {
	var (
		bookingErr *booking.ValidationError
		patientErr *patients.ValidationError
		parseErr   *schedule.ParseError
		apiErr     *emr.APIError
	)
	switch {
	case errors.As(err, &bookingErr), errors.As(err, &patientErr), errors.As(err, &parseErr):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dedup.ErrInFlight):
		writeError(w, http.StatusConflict, "duplicate request in progress")
	case errors.As(err, &apiErr):
		status := http.StatusBadGateway
		if apiErr.Status >= 400 && apiErr.Status < 500 {
			status = apiErr.Status
		}
		h.logger.Warn(op+": upstream error", "status", apiErr.Status, "code", apiErr.Code, "error", apiErr.Message)
		writeJSON(w, status, map[string]any{
			"error":           apiErr.Message,
			"error_code":      apiErr.Code,
			"upstream_status": apiErr.Status,
		})
	case errors.Is(err, context.DeadlineExceeded):
		h.logger.Error(op+": upstream timeout", "error", err)
		writeError(w, http.StatusGatewayTimeout, "upstream timed out")
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathIDs(r *http.Request) (doctorID, clinicID string) {
	return strings.TrimSpace(chi.URLParam(r, "doctorID")), strings.TrimSpace(chi.URLParam(r, "clinicID"))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
