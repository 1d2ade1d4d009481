// Package booking validates a requested slot against the provider schedule
// and submits the appointment when the slot is open.
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/emr"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/schedule"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var bookingTracer = otel.Tracer("clinic.internal.booking")

// Upstream is the subset of the scheduling API used to book.
type Upstream interface {
	GetAppointmentSlots(ctx context.Context, doctorID, clinicID, startDate, endDate string) (*schedule.Response, error)
	BookAppointment(ctx context.Context, req emr.AppointmentRequest) (json.RawMessage, error)
}

// Config tunes the orchestrator.
type Config struct {
	// Location converts provider wall-clock times to Unix timestamps.
	Location     *time.Location
	AlternateCap int
}

// Orchestrator books slots after checking them against the day's schedule.
type Orchestrator struct {
	upstream     Upstream
	loc          *time.Location
	alternateCap int
	logger       *logging.Logger
	metrics      *metrics.SchedulingMetrics
}

func NewOrchestrator(upstream Upstream, cfg Config, m *metrics.SchedulingMetrics, logger *logging.Logger) *Orchestrator {
	if upstream == nil {
		panic("booking: upstream required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc, _ = FixedZone(DefaultUTCOffset)
	}
	limit := cfg.AlternateCap
	if limit <= 0 {
		limit = schedule.DefaultAlternateCap
	}
	return &Orchestrator{upstream: upstream, loc: loc, alternateCap: limit, logger: logger, metrics: m}
}

// Book checks the requested slot and submits it when open. Business
// outcomes (no schedule, slot not found, slot unavailable) are reported
// through the result; the error is reserved for invalid requests and
// upstream failures.
func (o *Orchestrator) Book(ctx context.Context, req Request) (*Result, error) {
	ctx, span := bookingTracer.Start(ctx, "booking.book")
	defer span.End()

	req, err := req.normalize()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("doctor_id", req.DoctorID),
		attribute.String("clinic_id", req.ClinicID),
		attribute.String("date", req.Date),
		attribute.String("start_time", req.StartTime),
	)

	resp, err := o.upstream.GetAppointmentSlots(ctx, req.DoctorID, req.ClinicID, req.Date, req.Date)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("booking: fetch schedule: %w", err)
	}

	blocks := resp.Blocks(req.ClinicID)
	if len(blocks) == 0 {
		return o.finish(noScheduleResult(), req), nil
	}

	slots, skipped := schedule.Flatten(blocks)
	if skipped > 0 {
		o.metrics.ObserveSkippedSlots(skipped)
		o.logger.Warn("skipped malformed slots", "clinic_id", req.ClinicID, "date", req.Date, "skipped", skipped)
	}

	check, err := schedule.CheckAvailability(slots, req.Date, req.StartTime, o.alternateCap)
	if err != nil {
		return nil, fmt.Errorf("booking: match slot: %w", err)
	}

	switch check.Outcome {
	case schedule.OutcomeNotFound:
		return o.finish(slotNotFoundResult(req.StartTime, req.EndTime), req), nil
	case schedule.OutcomeUnavailable:
		requested := SlotRef{Date: req.Date, StartTime: req.StartTime, EndTime: req.EndTime}
		if requested.EndTime == "" {
			requested.EndTime = check.Slot.EndClock()
		}
		return o.finish(unavailableResult(requested, check.Alternates), req), nil
	}

	slot := check.Slot
	appointment := emr.AppointmentRequest{
		ClinicID:  req.ClinicID,
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		Details: emr.AppointmentDetails{
			StartTime: unixIn(slot.Start, o.loc),
			EndTime:   unixIn(slot.End, o.loc),
			Mode:      req.Mode,
			Reason:    req.Reason,
		},
	}
	confirmation, err := o.upstream.BookAppointment(ctx, appointment)
	if err != nil {
		span.RecordError(err)
		o.metrics.ObserveBooking("error")
		return nil, fmt.Errorf("booking: submit appointment: %w", err)
	}

	result := bookedResult(confirmation, SlotRef{
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   slot.EndClock(),
	})
	return o.finish(result, req), nil
}

func (o *Orchestrator) finish(result *Result, req Request) *Result {
	o.metrics.ObserveBooking(string(result.Status))
	o.logger.Info("booking attempt finished",
		"status", string(result.Status),
		"doctor_id", req.DoctorID,
		"clinic_id", req.ClinicID,
		"date", req.Date,
		"start_time", req.StartTime,
		"alternates", len(result.AlternateSlots),
	)
	return result
}
