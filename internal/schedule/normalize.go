package schedule

import (
	"fmt"
	"strings"
	"time"
)

// ParseError reports a provider timestamp that could not be normalized.
type ParseError struct {
	Value  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("schedule: cannot parse %q: %s", e.Value, e.Reason)
}

// ParseWallClock strips any UTC offset suffix from a provider timestamp and
// returns the remaining local wall-clock time. The offset is discarded, not
// applied: "2025-01-15T10:00:00+05:30" parses as 10:00.
func ParseWallClock(value string) (time.Time, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return time.Time{}, &ParseError{Value: value, Reason: "empty timestamp"}
	}
	tIdx := strings.IndexByte(raw, 'T')
	if tIdx < 0 {
		return time.Time{}, &ParseError{Value: value, Reason: "missing time component"}
	}

	datePart, clock := raw[:tIdx], raw[tIdx+1:]
	if cut := strings.IndexAny(clock, "+-Z"); cut >= 0 {
		suffix := clock[cut:]
		if !validOffset(suffix) {
			return time.Time{}, &ParseError{Value: value, Reason: "malformed offset " + suffix}
		}
		clock = clock[:cut]
	}
	if dot := strings.IndexByte(clock, '.'); dot >= 0 {
		clock = clock[:dot]
	}

	local := datePart + "T" + clock
	if t, err := time.Parse(wallLayout, local); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04", local); err == nil {
		return t, nil
	}
	return time.Time{}, &ParseError{Value: value, Reason: "not an ISO-8601 local timestamp"}
}

func validOffset(suffix string) bool {
	if suffix == "Z" {
		return true
	}
	if len(suffix) < 3 {
		return false
	}
	digits := 0
	for i, r := range suffix[1:] {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ':' && i == 2:
		default:
			return false
		}
	}
	return digits == 2 || digits == 4
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &ParseError{Value: value, Reason: "expected YYYY-MM-DD"}
	}
	return t, nil
}

// ParseClock combines a YYYY-MM-DD date and an HH:MM time into a wall-clock time.
func ParseClock(date, clock string) (time.Time, error) {
	t, err := time.Parse(DateLayout+" "+ClockLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, &ParseError{Value: date + " " + clock, Reason: "expected YYYY-MM-DD and HH:MM"}
	}
	return t, nil
}

func parseClockOnly(clock string) (time.Time, error) {
	return time.Parse(ClockLayout, clock)
}
