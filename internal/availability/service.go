package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/clinic-scheduler/internal/emr"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var availabilityTracer = otel.Tracer("clinic.internal.availability")

// ErrDoctorNotFound is returned when the upstream has no profile for a doctor.
var ErrDoctorNotFound = errors.New("availability: doctor not found")

// Upstream is the subset of the scheduling API the service reads from.
type Upstream interface {
	GetAppointmentSlots(ctx context.Context, doctorID, clinicID, startDate, endDate string) (*schedule.Response, error)
	GetBusinessEntities(ctx context.Context) (*emr.BusinessEntities, error)
	GetDoctorProfile(ctx context.Context, doctorID string) (*emr.DoctorProfile, error)
}

// Config tunes the availability window and fetch behaviour.
type Config struct {
	WindowDays   int
	LookbackDays int
	// Concurrency bounds parallel per-date slot fetches. Values below 2 fetch
	// sequentially.
	Concurrency int
	Currency    string
	Now         func() time.Time
}

// Service answers availability questions for a doctor.
type Service struct {
	upstream   Upstream
	summarizer schedule.Summarizer
	cfg        Config
	logger     *logging.Logger
	metrics    *metrics.SchedulingMetrics
}

func NewService(upstream Upstream, cfg Config, m *metrics.SchedulingMetrics, logger *logging.Logger) *Service {
	if upstream == nil {
		panic("availability: upstream required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultWindowDays
	}
	if cfg.LookbackDays < 0 {
		cfg.LookbackDays = DefaultLookbackDays
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		upstream:   upstream,
		summarizer: schedule.Summarizer{Currency: cfg.Currency},
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
	}
}

// GetAvailableDates lists dates between startDate and endDate with at least
// one open slot.
func (s *Service) GetAvailableDates(ctx context.Context, doctorID, clinicID, startDate, endDate string) (schedule.DateAvailability, error) {
	resp, err := s.upstream.GetAppointmentSlots(ctx, doctorID, clinicID, startDate, endDate)
	if err != nil {
		return schedule.DateAvailability{}, fmt.Errorf("availability: fetch dates: %w", err)
	}
	dates, skipped := s.summarizer.AvailableDates(resp, clinicID, startDate, endDate)
	s.metrics.ObserveSkippedSlots(skipped)
	return dates, nil
}

// GetAvailableSlots returns the slot-format summary for a single date.
func (s *Service) GetAvailableSlots(ctx context.Context, doctorID, clinicID, date string) (schedule.DaySummary, error) {
	resp, err := s.upstream.GetAppointmentSlots(ctx, doctorID, clinicID, date, date)
	if err != nil {
		return schedule.DaySummary{}, fmt.Errorf("availability: fetch slots: %w", err)
	}
	summary, skipped := s.summarizer.SummarizeDay(resp, clinicID, date, doctorID)
	s.metrics.ObserveSkippedSlots(skipped)
	return summary, nil
}

// ResolveRequest asks when a doctor can be seen.
type ResolveRequest struct {
	DoctorID      string
	ClinicID      string
	PreferredDate string
	PreferredTime string
}

// DayAvailability lists one date's open start times.
type DayAvailability struct {
	Date         string   `json:"date"`
	Slots        []string `json:"slots"`
	SelectedSlot string   `json:"selected_slot,omitempty"`
}

// DoctorEntry is the per-doctor availability block of the doctor card.
type DoctorEntry struct {
	DoctorID       string            `json:"doctor_id"`
	HospitalID     string            `json:"hospital_id,omitempty"`
	DatePreference string            `json:"date_preference,omitempty"`
	SlotPreference string            `json:"slot_preference,omitempty"`
	Availability   []DayAvailability `json:"availability,omitempty"`
	SelectedDate   string            `json:"selected_date,omitempty"`
}

// Resolution is the outcome of Resolve.
type Resolution struct {
	DoctorEntry   DoctorEntry
	DoctorDetails DoctorDetails
}

// Resolve looks up the doctor's clinics, picks one, and assembles a
// day-by-day availability list over the rolling window. Failures fetching
// an individual day are logged and skipped.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (Resolution, error) {
	ctx, span := availabilityTracer.Start(ctx, "availability.resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("doctor_id", req.DoctorID),
		attribute.String("clinic_id", req.ClinicID),
	)

	profile, err := s.upstream.GetDoctorProfile(ctx, req.DoctorID)
	if err != nil {
		var apiErr *emr.APIError
		if errors.As(err, &apiErr) && apiErr.NotFound() {
			return Resolution{}, ErrDoctorNotFound
		}
		span.RecordError(err)
		return Resolution{}, fmt.Errorf("availability: fetch profile: %w", err)
	}
	if profile == nil || profile.ID == "" {
		return Resolution{}, ErrDoctorNotFound
	}

	entities, err := s.upstream.GetBusinessEntities(ctx)
	if err != nil {
		span.RecordError(err)
		return Resolution{}, fmt.Errorf("availability: fetch directory: %w", err)
	}
	clinics := DoctorClinics(entities, req.DoctorID)
	clinicID := ResolveClinic(clinics, req.ClinicID)

	entry := DoctorEntry{
		DoctorID:       req.DoctorID,
		HospitalID:     clinicID,
		DatePreference: req.PreferredDate,
		SlotPreference: req.PreferredTime,
	}
	if clinicID != "" {
		entry.Availability, entry.SelectedDate = s.collect(ctx, req, clinicID)
	} else {
		s.logger.Warn("doctor has no known clinics", "doctor_id", req.DoctorID)
	}
	span.SetAttributes(
		attribute.String("resolved_clinic_id", clinicID),
		attribute.Int("available_days", len(entry.Availability)),
	)

	return Resolution{
		DoctorEntry:   entry,
		DoctorDetails: BuildDoctorDetails(profile, clinics),
	}, nil
}

func (s *Service) collect(ctx context.Context, req ResolveRequest, clinicID string) ([]DayAvailability, string) {
	window := ComputeWindow(s.cfg.Now(), req.PreferredDate, s.cfg.WindowDays, s.cfg.LookbackDays)
	dates, err := s.GetAvailableDates(ctx, req.DoctorID, clinicID, window.StartDate(), window.EndDate())
	if err != nil {
		s.logger.Warn("failed to fetch availability window",
			"doctor_id", req.DoctorID,
			"clinic_id", clinicID,
			"error", err,
		)
		return nil, ""
	}

	available := dates.AvailableDates
	if len(available) > s.cfg.WindowDays {
		available = available[:s.cfg.WindowDays]
	}

	days := s.fetchDays(ctx, req.DoctorID, clinicID, available)
	var out []DayAvailability
	for _, day := range days {
		if day == nil || len(day.Slots) == 0 {
			continue
		}
		if req.PreferredTime != "" && day.Date == req.PreferredDate && contains(day.Slots, req.PreferredTime) {
			day.SelectedSlot = req.PreferredTime
		}
		out = append(out, *day)
	}

	selected := ""
	if req.PreferredDate != "" && contains(available, req.PreferredDate) {
		selected = req.PreferredDate
	} else if len(available) > 0 {
		selected = available[0]
	}
	return out, selected
}

// fetchDays loads each date's slots. Results keep the order of dates; a nil
// entry marks a date whose fetch failed.
func (s *Service) fetchDays(ctx context.Context, doctorID, clinicID string, dates []string) []*DayAvailability {
	results := make([]*DayAvailability, len(dates))
	fetch := func(ctx context.Context, i int) {
		summary, err := s.GetAvailableSlots(ctx, doctorID, clinicID, dates[i])
		if err != nil {
			s.metrics.ObserveDateFetchFailure(doctorID)
			s.logger.Warn("failed to fetch slots for date",
				"doctor_id", doctorID,
				"clinic_id", clinicID,
				"date", dates[i],
				"error", err,
			)
			return
		}
		results[i] = &DayAvailability{Date: dates[i], Slots: summary.AllSlots}
	}

	if s.cfg.Concurrency < 2 {
		for i := range dates {
			if ctx.Err() != nil {
				break
			}
			fetch(ctx, i)
		}
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i := range dates {
		i := i
		g.Go(func() error {
			fetch(gctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
