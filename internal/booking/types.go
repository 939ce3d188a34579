package booking

import (
	"fmt"
	"time"
)

// Weekday indices follow the catalog convention 0=Monday ... 6=Sunday.

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusCancelled Status = "CANCELLED"
)

// Active reports whether the reservation still occupies its time window.
func (s Status) Active() bool { return s != StatusCancelled }

type Role string

const (
	RoleResident   Role = "RESIDENT"
	RoleDoorkeeper Role = "DOORKEEPER"
	RoleManager    Role = "MANAGER"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleResident, RoleDoorkeeper, RoleManager:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// TimeOfDay is a wall-clock minute offset from midnight (0..1439).
type TimeOfDay int

func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return NewTimeOfDay(t.Hour(), t.Minute()), nil
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// At anchors the time-of-day on a calendar date in loc.
func (t TimeOfDay) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc)
}

// Amenity is a shared bookable space scoped to one property (condominium).
type Amenity struct {
	ID          int64
	PropertyID  int64
	Name        string
	Description string

	// Empty means every weekday is allowed. Indices are 0=Monday ... 6=Sunday.
	AllowedWeekdays []int

	// Nil bounds mean the window is open on that side.
	OpenTime  *TimeOfDay
	CloseTime *TimeOfDay

	// ISO dates ("2006-01-02") on which no booking may be created.
	BlockedDates []string

	// IANA zone name; all weekday/date/time-of-day derivations happen here.
	Timezone string
}

// Location resolves the amenity's zone, falling back to the local zone when the
// name is empty or unknown.
func (a Amenity) Location() *time.Location {
	if a.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (a Amenity) weekdayAllowed(d time.Time) bool {
	if len(a.AllowedWeekdays) == 0 {
		return true
	}
	wd := weekdayIndex(d)
	for _, allowed := range a.AllowedWeekdays {
		if allowed == wd {
			return true
		}
	}
	return false
}

func (a Amenity) dateBlocked(d time.Time) bool {
	iso := d.Format("2006-01-02")
	for _, b := range a.BlockedDates {
		if b == iso {
			return true
		}
	}
	return false
}

// weekdayIndex maps time.Weekday (Sunday=0) to the catalog convention (Monday=0).
func weekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// Reservation is a resident's claim on an amenity time window. It is never
// deleted, only status-transitioned.
type Reservation struct {
	ID           int64
	AmenityID    int64
	RequesterID  int64
	Start        time.Time
	End          time.Time
	Status       Status
	AllowSharing bool
	Note         string
	CreatedAt    time.Time
}

// Overlaps is the strict half-open interval test: [a,b) and [c,d) overlap
// iff a < d and c < b.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}

// Slot is one bookable window offered by the slot generator.
type Slot struct {
	Start time.Time
	End   time.Time
}

// Clock lets tests pin "now".
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
