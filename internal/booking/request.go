package booking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/schedule"
)

// DefaultMode is used when a request does not name a consultation mode.
const DefaultMode = "in_clinic"

// Request asks to book one slot for a patient.
type Request struct {
	PatientID string `json:"patient_id"`
	DoctorID  string `json:"doctor_id"`
	ClinicID  string `json:"clinic_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	// EndTime is advisory. The booked end always comes from the matched slot.
	EndTime string `json:"end_time,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ValidationError reports a malformed booking request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("booking: invalid %s: %s", e.Field, e.Reason)
}

// normalize trims fields, applies defaults and validates formats.
func (r Request) normalize() (Request, error) {
	r.PatientID = strings.TrimSpace(r.PatientID)
	r.DoctorID = strings.TrimSpace(r.DoctorID)
	r.ClinicID = strings.TrimSpace(r.ClinicID)
	r.Date = strings.TrimSpace(r.Date)
	r.StartTime = strings.TrimSpace(r.StartTime)
	r.EndTime = strings.TrimSpace(r.EndTime)
	r.Mode = strings.TrimSpace(r.Mode)
	if r.Mode == "" {
		r.Mode = DefaultMode
	}

	for _, f := range []struct{ name, value string }{
		{"patient_id", r.PatientID},
		{"doctor_id", r.DoctorID},
		{"clinic_id", r.ClinicID},
		{"date", r.Date},
		{"start_time", r.StartTime},
	} {
		if f.value == "" {
			return r, &ValidationError{Field: f.name, Reason: "required"}
		}
	}
	if _, err := schedule.ParseDate(r.Date); err != nil {
		return r, &ValidationError{Field: "date", Reason: "expected YYYY-MM-DD"}
	}
	if _, err := time.Parse(schedule.ClockLayout, r.StartTime); err != nil || len(r.StartTime) != 5 {
		return r, &ValidationError{Field: "start_time", Reason: "expected HH:MM"}
	}
	if r.EndTime != "" {
		if _, err := time.Parse(schedule.ClockLayout, r.EndTime); err != nil || len(r.EndTime) != 5 {
			return r, &ValidationError{Field: "end_time", Reason: "expected HH:MM"}
		}
	}
	return r, nil
}

// DefaultUTCOffset is the fixed offset applied to provider wall-clock times
// when converting them to Unix timestamps.
const DefaultUTCOffset = "+05:30"

// FixedZone parses an offset such as "+05:30" or "-0400" into a fixed zone.
func FixedZone(offset string) (*time.Location, error) {
	raw := strings.TrimSpace(offset)
	if raw == "" {
		raw = DefaultUTCOffset
	}
	if raw == "Z" || raw == "UTC" {
		return time.UTC, nil
	}
	if len(raw) < 3 || (raw[0] != '+' && raw[0] != '-') {
		return nil, fmt.Errorf("booking: invalid UTC offset %q", offset)
	}
	digits := strings.ReplaceAll(raw[1:], ":", "")
	if len(digits) != 2 && len(digits) != 4 {
		return nil, fmt.Errorf("booking: invalid UTC offset %q", offset)
	}
	hours, err := strconv.Atoi(digits[:2])
	if err != nil || hours > 14 {
		return nil, fmt.Errorf("booking: invalid UTC offset %q", offset)
	}
	minutes := 0
	if len(digits) == 4 {
		minutes, err = strconv.Atoi(digits[2:])
		if err != nil || minutes >= 60 {
			return nil, fmt.Errorf("booking: invalid UTC offset %q", offset)
		}
	}
	seconds := hours*3600 + minutes*60
	if raw[0] == '-' {
		seconds = -seconds
	}
	return time.FixedZone("UTC"+raw, seconds), nil
}

// unixIn interprets a wall-clock time in loc and returns Unix seconds.
func unixIn(wall time.Time, loc *time.Location) int64 {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, loc).Unix()
}
