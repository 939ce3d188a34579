package booking

import "time"

// DefaultSlotSize is the picker granularity used by the portal.
const DefaultSlotSize = 60 * time.Minute

// defaultClose mirrors the portal's rendering bound for amenities without a
// configured closing time: the day ends at 23:59, so an unbounded amenity's
// last full hour slot is 22:00-23:00.
var (
	defaultOpen  = NewTimeOfDay(0, 0)
	defaultClose = NewTimeOfDay(23, 59)
)

// FreeSlots returns the fixed-size windows on the given calendar date (year,
// month and day of date, taken in the amenity's zone) that carry zero active
// reservations, in ascending order.
//
// This is deliberately coarser than Validate's overlap rule: a window touched
// by any active reservation is withheld even when that reservation allows
// sharing, so the picker only ever offers truly empty windows. A direct
// booking attempt into a withheld window may still succeed via the sharing
// exception; both behaviors hold at once.
func FreeSlots(amenity Amenity, date time.Time, existing []Reservation, now time.Time, slotSize time.Duration) []Slot {
	if slotSize <= 0 {
		slotSize = DefaultSlotSize
	}

	loc := amenity.Location()
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)

	if !amenity.weekdayAllowed(day) || amenity.dateBlocked(day) {
		return nil
	}

	open := defaultOpen
	if amenity.OpenTime != nil {
		open = *amenity.OpenTime
	}
	close := defaultClose
	if amenity.CloseTime != nil {
		close = *amenity.CloseTime
	}

	dayStart := open.At(day, loc)
	dayEnd := close.At(day, loc)

	localNow := now.In(loc)
	today := localNow.Year() == day.Year() && localNow.YearDay() == day.YearDay()

	var slots []Slot
	for cursor := dayStart; !cursor.Add(slotSize).After(dayEnd); cursor = cursor.Add(slotSize) {
		slotEnd := cursor.Add(slotSize)

		// No elapsed slots when browsing today.
		if today && !slotEnd.After(localNow) {
			continue
		}

		if anyActiveOverlap(existing, cursor, slotEnd) {
			continue
		}
		slots = append(slots, Slot{Start: cursor, End: slotEnd})
	}
	return slots
}

func anyActiveOverlap(existing []Reservation, start, end time.Time) bool {
	for _, r := range existing {
		if !r.Status.Active() {
			continue
		}
		if r.Overlaps(start, end) {
			return true
		}
	}
	return false
}
