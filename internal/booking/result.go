package booking

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// Status is the business outcome of a booking attempt.
type Status string

const (
	StatusBooked          Status = "booked"
	StatusSlotUnavailable Status = "slot_unavailable"
	StatusSlotNotFound    Status = "slot_not_found"
	StatusNoSchedule      Status = "no_schedule"
)

var (
	ErrNoSchedule      = errors.New("booking: no appointment schedule for clinic")
	ErrSlotNotFound    = errors.New("booking: slot not found in schedule")
	ErrSlotUnavailable = errors.New("booking: slot already booked")
)

// SlotRef identifies a slot by date and HH:MM bounds.
type SlotRef struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Available *bool  `json:"available,omitempty"`
}

// ErrorBody is the structured error carried by non-booked results.
type ErrorBody struct {
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
}

// Result is exactly one of booked, slot unavailable, slot not found or no
// schedule, as reported by Status.
type Result struct {
	Status Status `json:"-"`

	Success         bool                 `json:"success"`
	SlotUnavailable bool                 `json:"slot_unavailable,omitempty"`
	Message         string               `json:"message,omitempty"`
	Data            json.RawMessage      `json:"data,omitempty"`
	BookedSlot      *SlotRef             `json:"booked_slot,omitempty"`
	RequestedSlot   *SlotRef             `json:"requested_slot,omitempty"`
	AlternateSlots  []schedule.Alternate `json:"alternate_slots"`
	Error           *ErrorBody           `json:"error,omitempty"`
}

// Err maps a non-booked result to its sentinel error, or nil when booked.
func (r *Result) Err() error {
	switch r.Status {
	case StatusNoSchedule:
		return ErrNoSchedule
	case StatusSlotNotFound:
		return ErrSlotNotFound
	case StatusSlotUnavailable:
		return ErrSlotUnavailable
	default:
		return nil
	}
}

// MarshalJSON emits alternate_slots on every unavailable result, as an empty
// list when nothing else is open that day, and leaves it out of the others.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		AlternateSlots *[]schedule.Alternate `json:"alternate_slots,omitempty"`
	}{plain: plain(r)}
	if r.Status == StatusSlotUnavailable {
		alternates := r.AlternateSlots
		if alternates == nil {
			alternates = []schedule.Alternate{}
		}
		out.AlternateSlots = &alternates
	}
	return json.Marshal(out)
}

// HTTPStatus is the status code a transport should answer with.
func (r *Result) HTTPStatus() int {
	if r.Error != nil {
		return r.Error.StatusCode
	}
	return http.StatusOK
}

func bookedResult(confirmation json.RawMessage, slot SlotRef) *Result {
	return &Result{
		Status:     StatusBooked,
		Success:    true,
		Data:       confirmation,
		BookedSlot: &slot,
	}
}

func noScheduleResult() *Result {
	return &Result{
		Status: StatusNoSchedule,
		Error: &ErrorBody{
			Message:    "No appointment schedule available for this clinic",
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NO_SCHEDULE",
		},
	}
}

func slotNotFoundResult(startTime, endTime string) *Result {
	return &Result{
		Status: StatusSlotNotFound,
		Error: &ErrorBody{
			Message:    fmt.Sprintf("Time slot %s not found in doctor's schedule", timeRange(startTime, endTime)),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "SLOT_NOT_FOUND",
		},
	}
}

func unavailableResult(requested SlotRef, alternates []schedule.Alternate) *Result {
	unavailable := false
	requested.Available = &unavailable
	return &Result{
		Status:          StatusSlotUnavailable,
		SlotUnavailable: true,
		Message:         fmt.Sprintf("The requested time slot %s is not available.", timeRange(requested.StartTime, requested.EndTime)),
		RequestedSlot:   &requested,
		AlternateSlots:  alternates,
		Error: &ErrorBody{
			Message:    "Requested slot is already booked",
			StatusCode: http.StatusConflict,
			ErrorCode:  "SLOT_UNAVAILABLE",
		},
	}
}

func timeRange(start, end string) string {
	if end == "" {
		return start
	}
	return start + "-" + end
}
