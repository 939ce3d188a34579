package booking

import "fmt"

// Validate decides whether candidate may be booked against the amenity's
// constraints and a snapshot of existing reservations for the same amenity.
// It is pure: no persistence, no clock. Checks run in a fixed order and
// short-circuit, so the returned kind always names the first violated rule.
//
// Cancelled entries in existing are ignored. The overlap rule is asymmetric on
// purpose: only the existing reservations' AllowSharing flags gate a conflict,
// never the candidate's own flag.
func Validate(amenity Amenity, candidate Reservation, existing []Reservation) error {
	if !candidate.Start.Before(candidate.End) {
		return reject(KindInvalidRange, "start must be before end")
	}

	loc := amenity.Location()
	localStart := candidate.Start.In(loc)
	localEnd := candidate.End.In(loc)

	if !amenity.weekdayAllowed(localStart) {
		return reject(KindWeekdayNotAllowed, fmt.Sprintf("weekday %d not allowed for %s", weekdayIndex(localStart), amenity.Name))
	}

	if amenity.OpenTime != nil {
		startOfDay := NewTimeOfDay(localStart.Hour(), localStart.Minute())
		if startOfDay < *amenity.OpenTime {
			return reject(KindOutsideHours, fmt.Sprintf("starts %s, opens %s", startOfDay, *amenity.OpenTime))
		}
	}
	if amenity.CloseTime != nil {
		endOfDay := NewTimeOfDay(localEnd.Hour(), localEnd.Minute())
		if endOfDay > *amenity.CloseTime {
			return reject(KindOutsideHours, fmt.Sprintf("ends %s, closes %s", endOfDay, *amenity.CloseTime))
		}
	}

	if amenity.dateBlocked(localStart) {
		return reject(KindDateBlocked, localStart.Format("2006-01-02"))
	}

	for _, r := range existing {
		if !r.Status.Active() {
			continue
		}
		if r.ID != 0 && r.ID == candidate.ID {
			continue
		}
		if !r.Overlaps(candidate.Start, candidate.End) {
			continue
		}
		if !r.AllowSharing {
			return &RuleError{
				Kind:       KindOverlapDenied,
				ConflictID: r.ID,
				Detail:     fmt.Sprintf("conflicts with reservation %d", r.ID),
			}
		}
	}

	return nil
}
