package schedule

import "sort"

// FindAlternates ranks every available slot by absolute distance in minutes
// from the requested date and time, earlier and later alike, and returns at
// most limit of them. Ties keep schedule order.
func FindAlternates(slots []Slot, date, startTime string, limit int) ([]Alternate, error) {
	requested, err := ParseClock(date, startTime)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultAlternateCap
	}

	type ranked struct {
		slot     Slot
		distance int
	}
	candidates := make([]ranked, 0, len(slots))
	for _, slot := range slots {
		if !slot.Available {
			continue
		}
		diff := int(slot.Start.Sub(requested).Minutes())
		if diff < 0 {
			diff = -diff
		}
		candidates = append(candidates, ranked{slot: slot, distance: diff})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]Alternate, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Alternate{
			Date:                  c.slot.Date(),
			StartTime:             c.slot.StartClock(),
			EndTime:               c.slot.EndClock(),
			TimeDifferenceMinutes: c.distance,
		})
	}
	return out, nil
}
