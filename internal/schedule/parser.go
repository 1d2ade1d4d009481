package schedule

import (
	"encoding/json"
	"sort"
	"strings"
)

// DefaultCurrency is reported with pricing when no currency is configured.
const DefaultCurrency = "INR"

var emptyMetadata = json.RawMessage(`{}`)

// Flatten normalizes every raw slot across the given service blocks, in
// source order, regardless of availability. Slots whose timestamps cannot be
// parsed, or whose end does not follow their start, are skipped and counted.
func Flatten(blocks []ServiceBlock) ([]Slot, int) {
	var (
		out     []Slot
		skipped int
	)
	for _, block := range blocks {
		category := CategoryName(block.ServiceName)
		for _, raw := range block.Slots {
			start, err := ParseWallClock(raw.Start)
			if err != nil {
				skipped++
				continue
			}
			end, err := ParseWallClock(raw.End)
			if err != nil || !end.After(start) {
				skipped++
				continue
			}
			out = append(out, Slot{
				Start:     start,
				End:       end,
				Available: raw.Available,
				Category:  category,
			})
		}
	}
	return out, skipped
}

// Summarizer renders upstream schedules into the slot and date views.
type Summarizer struct {
	Currency string
}

// SummarizeDay builds the slot-format view for one clinic on one date.
// Only available slots starting on date are listed; a day fetch can carry
// early slots of the next local date, which belong to that date's view.
// Pricing comes from the first service block only. The second result counts
// malformed slots that were skipped.
func (s Summarizer) SummarizeDay(resp *Response, clinicID, date, doctorID string) (DaySummary, int) {
	blocks := resp.Blocks(clinicID)
	summary := DaySummary{
		Date:     date,
		DoctorID: doctorID,
		ClinicID: clinicID,
		AllSlots: []string{},
		Metadata: emptyMetadata,
	}

	var (
		all     []string
		skipped int
	)
	for _, block := range blocks {
		slots, n := Flatten([]ServiceBlock{block})
		skipped += n
		times := SlotsByDate(slots)[date]
		if len(times) == 0 {
			continue
		}
		all = append(all, times...)
		summary.SlotCategories = append(summary.SlotCategories, Category{
			Category: CategoryName(block.ServiceName),
			Slots:    times,
		})
	}
	summary.AllSlots = sortedUnique(all)

	if interval := inferInterval(summary.AllSlots); interval > 0 {
		summary.SlotConfig = &SlotConfig{IntervalMinutes: interval}
	}
	if len(blocks) > 0 {
		summary.Pricing = s.pricing(blocks[0])
	}
	return summary, skipped
}

// AvailableDates lists the dates between start and end (inclusive) that
// carry at least one available slot. Bounds may be dates or timestamps. The
// second result counts malformed slots that were skipped.
func (s Summarizer) AvailableDates(resp *Response, clinicID, start, end string) (DateAvailability, int) {
	rangeStart, rangeEnd := datePart(start), datePart(end)
	slots, skipped := Flatten(resp.Blocks(clinicID))

	dates := []string{}
	for date := range SlotsByDate(slots) {
		if rangeStart != "" && date < rangeStart {
			continue
		}
		if rangeEnd != "" && date > rangeEnd {
			continue
		}
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return DateAvailability{
		AvailableDates: dates,
		DateRange:      DateRange{Start: rangeStart, End: rangeEnd},
	}, skipped
}

// SlotsByDate groups available start times by local date, sorted and unique.
func SlotsByDate(slots []Slot) map[string][]string {
	grouped := make(map[string][]string)
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		grouped[slot.Date()] = append(grouped[slot.Date()], slot.StartClock())
	}
	for date, times := range grouped {
		grouped[date] = sortedUnique(times)
	}
	return grouped
}

func (s Summarizer) pricing(block ServiceBlock) *Pricing {
	if block.Fee == nil && block.RegistrationFee == nil {
		return nil
	}
	currency := s.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Pricing{
		ConsultationFee: block.Fee,
		RegistrationFee: block.RegistrationFee,
		Currency:        currency,
	}
}

func inferInterval(sorted []string) int {
	if len(sorted) < 2 {
		return 0
	}
	first, err := parseClockOnly(sorted[0])
	if err != nil {
		return 0
	}
	second, err := parseClockOnly(sorted[1])
	if err != nil {
		return 0
	}
	return int(second.Sub(first).Minutes())
}

func sortedUnique(values []string) []string {
	if len(values) == 0 {
		return []string{}
	}
	cp := append([]string(nil), values...)
	sort.Strings(cp)
	out := cp[:1]
	for _, v := range cp[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

func datePart(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.IndexByte(value, 'T'); idx >= 0 {
		return value[:idx]
	}
	return value
}
