package schedule

import (
	"encoding/json"
	"strings"
	"time"
)

// RawSlot is a single slot as reported by the upstream scheduling system.
type RawSlot struct {
	Start     string `json:"s"`
	End       string `json:"e"`
	Available bool   `json:"available"`
}

// ServiceBlock groups the raw slots offered under one service at a clinic.
type ServiceBlock struct {
	ServiceName     string    `json:"service_name"`
	Fee             *float64  `json:"fee,omitempty"`
	RegistrationFee *float64  `json:"registration_fee,omitempty"`
	Slots           []RawSlot `json:"slots"`
}

// Schedule maps a clinic ID to the service blocks offered there.
type Schedule map[string][]ServiceBlock

// Response is the decoded upstream schedule envelope.
type Response struct {
	Data struct {
		Schedule Schedule `json:"schedule"`
	} `json:"data"`
}

// Blocks returns the service blocks for a clinic, or nil.
func (r *Response) Blocks(clinicID string) []ServiceBlock {
	if r == nil || r.Data.Schedule == nil {
		return nil
	}
	return r.Data.Schedule[clinicID]
}

// Slot is a normalized slot in provider-local wall-clock time.
type Slot struct {
	Start     time.Time
	End       time.Time
	Available bool
	Category  string
}

// Date returns the slot's start date as YYYY-MM-DD.
func (s Slot) Date() string { return s.Start.Format(DateLayout) }

// StartClock returns the slot start as HH:MM.
func (s Slot) StartClock() string { return s.Start.Format(ClockLayout) }

// EndClock returns the slot end as HH:MM.
func (s Slot) EndClock() string { return s.End.Format(ClockLayout) }

// Category lists the available start times offered under one service category.
type Category struct {
	Category string   `json:"category"`
	Slots    []string `json:"slots"`
}

// SlotConfig describes the cadence between consecutive slots.
type SlotConfig struct {
	IntervalMinutes int `json:"interval_minutes"`
}

// Pricing is taken from the first service block of a clinic's schedule.
type Pricing struct {
	ConsultationFee *float64 `json:"consultation_fee,omitempty"`
	RegistrationFee *float64 `json:"registration_fee,omitempty"`
	Currency        string   `json:"currency"`
}

// DaySummary is the slot-format view of one day at one clinic.
type DaySummary struct {
	Date           string          `json:"date"`
	DoctorID       string          `json:"doctor_id"`
	ClinicID       string          `json:"clinic_id"`
	AllSlots       []string        `json:"all_slots"`
	SlotConfig     *SlotConfig     `json:"slot_config,omitempty"`
	SlotCategories []Category      `json:"slot_categories,omitempty"`
	Pricing        *Pricing        `json:"pricing,omitempty"`
	Metadata       json.RawMessage `json:"metadata"`
}

// DateRange is an inclusive date window rendered as YYYY-MM-DD.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// DateAvailability lists the dates within a range that have an open slot.
type DateAvailability struct {
	AvailableDates []string  `json:"available_dates"`
	DateRange      DateRange `json:"date_range"`
}

// Alternate is an open slot proposed in place of an unavailable request.
type Alternate struct {
	Date                  string `json:"date"`
	StartTime             string `json:"start_time"`
	EndTime               string `json:"end_time"`
	TimeDifferenceMinutes int    `json:"time_difference_minutes"`
}

const (
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04"
	wallLayout     = "2006-01-02T15:04:05"
	defaultService = "consultation"
)

// CategoryName normalizes a service name into a slot category key.
func CategoryName(serviceName string) string {
	name := strings.ToLower(strings.TrimSpace(serviceName))
	if name == "" {
		return defaultService
	}
	return strings.Join(strings.Fields(name), "_")
}
