package schedule

// DefaultAlternateCap bounds how many alternates are proposed.
const DefaultAlternateCap = 6

// Outcome classifies a requested slot against a day's schedule.
type Outcome int

const (
	// OutcomeNotFound means no slot in the schedule starts at the requested time.
	OutcomeNotFound Outcome = iota
	// OutcomeUnavailable means the slot exists but is already taken.
	OutcomeUnavailable
	// OutcomeAvailable means the slot exists and is open.
	OutcomeAvailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAvailable:
		return "available"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "not_found"
	}
}

// Check is the result of matching a request against a schedule.
type Check struct {
	Outcome    Outcome
	Slot       Slot
	Alternates []Alternate
}

// FindSlot returns the first slot whose start falls on date at startTime
// (HH:MM). Only the start is compared; provider slot length is authoritative.
func FindSlot(slots []Slot, date, startTime string) (Slot, bool) {
	for _, slot := range slots {
		if slot.Date() == date && slot.StartClock() == startTime {
			return slot, true
		}
	}
	return Slot{}, false
}

// CheckAvailability classifies the requested start time. Alternates are only
// computed when the slot exists but is unavailable.
func CheckAvailability(slots []Slot, date, startTime string, limit int) (Check, error) {
	slot, ok := FindSlot(slots, date, startTime)
	if !ok {
		return Check{Outcome: OutcomeNotFound}, nil
	}
	if slot.Available {
		return Check{Outcome: OutcomeAvailable, Slot: slot}, nil
	}
	alternates, err := FindAlternates(slots, date, startTime, limit)
	if err != nil {
		return Check{}, err
	}
	return Check{Outcome: OutcomeUnavailable, Slot: slot, Alternates: alternates}, nil
}
