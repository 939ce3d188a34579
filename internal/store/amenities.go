package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/db"
)

// Amenities is the catalog repository. Weekday allow-lists and blocked dates
// are stored as comma-separated text; empty means unrestricted.
type Amenities struct{ db *db.DB }

func NewAmenities(d *db.DB) *Amenities { return &Amenities{db: d} }

const amenityCols = `id, property_id, name, description, allowed_weekdays, open_time, close_time, blocked_dates, timezone`

func (s *Amenities) GetByID(ctx context.Context, id int64) (booking.Amenity, error) {
	row := s.db.QueryRow(ctx, `SELECT `+amenityCols+` FROM amenities WHERE id=$1`, id)
	a, err := scanAmenity(row)
	if err != nil {
		return booking.Amenity{}, db.WrapNotFound(err)
	}
	return a, nil
}

func (s *Amenities) List(ctx context.Context) ([]booking.Amenity, error) {
	rows, err := s.db.Query(ctx, `SELECT `+amenityCols+` FROM amenities ORDER BY property_id, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Amenity
	for rows.Next() {
		a, err := scanAmenity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Amenities) Create(ctx context.Context, a booking.Amenity) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
INSERT INTO amenities(property_id, name, description, allowed_weekdays, open_time, close_time, blocked_dates, timezone)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		a.PropertyID, a.Name, a.Description,
		joinWeekdays(a.AllowedWeekdays), timeOfDayString(a.OpenTime), timeOfDayString(a.CloseTime),
		strings.Join(a.BlockedDates, ","), a.Timezone,
	).Scan(&id)
	return id, err
}

// BlockDate appends an ISO date to the amenity's blackout list.
func (s *Amenities) BlockDate(ctx context.Context, id int64, isoDate string) error {
	a, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	for _, d := range a.BlockedDates {
		if d == isoDate {
			return nil
		}
	}
	a.BlockedDates = append(a.BlockedDates, isoDate)
	return s.db.Exec(ctx, `UPDATE amenities SET blocked_dates=$2 WHERE id=$1`,
		id, strings.Join(a.BlockedDates, ","))
}

func scanAmenity(row db.Row) (booking.Amenity, error) {
	var a booking.Amenity
	var weekdays, open, close, blocked string
	if err := row.Scan(&a.ID, &a.PropertyID, &a.Name, &a.Description,
		&weekdays, &open, &close, &blocked, &a.Timezone); err != nil {
		return booking.Amenity{}, err
	}

	var err error
	if a.AllowedWeekdays, err = parseWeekdays(weekdays); err != nil {
		return booking.Amenity{}, fmt.Errorf("amenity %d: %w", a.ID, err)
	}
	if a.OpenTime, err = parseTimeOfDayCol(open); err != nil {
		return booking.Amenity{}, fmt.Errorf("amenity %d open_time: %w", a.ID, err)
	}
	if a.CloseTime, err = parseTimeOfDayCol(close); err != nil {
		return booking.Amenity{}, fmt.Errorf("amenity %d close_time: %w", a.ID, err)
	}
	a.BlockedDates = splitCSV(blocked)
	return a, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func parseWeekdays(s string) ([]int, error) {
	var out []int
	for _, p := range splitCSV(s) {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 6 {
			return nil, fmt.Errorf("bad weekday %q", p)
		}
		out = append(out, n)
	}
	return out, nil
}

func joinWeekdays(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

func parseTimeOfDayCol(s string) (*booking.TimeOfDay, error) {
	if s == "" {
		return nil, nil
	}
	t, err := booking.ParseTimeOfDay(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func timeOfDayString(t *booking.TimeOfDay) string {
	if t == nil {
		return ""
	}
	return t.String()
}
