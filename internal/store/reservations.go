package store

import (
	"context"
	"time"

	"github.com/example/condo-portal/internal/booking"
	"github.com/example/condo-portal/internal/db"
)

// Reservations persists bookings. Rows are never deleted; lifecycle changes
// go through UpdateStatus so the history stays intact.
type Reservations struct{ db *db.DB }

func NewReservations(d *db.DB) *Reservations { return &Reservations{db: d} }

const reservationCols = `id, amenity_id, requester_id, starts_at, ends_at, status, allow_sharing, note, created_at`

func (s *Reservations) Create(ctx context.Context, r booking.Reservation) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
INSERT INTO reservations(amenity_id, requester_id, starts_at, ends_at, status, allow_sharing, note, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id`,
		r.AmenityID, r.RequesterID, r.Start, r.End, string(r.Status), r.AllowSharing, r.Note, r.CreatedAt,
	).Scan(&id)
	return id, err
}

func (s *Reservations) GetByID(ctx context.Context, id int64) (booking.Reservation, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reservationCols+` FROM reservations WHERE id=$1`, id)
	r, err := scanReservation(row)
	if err != nil {
		return booking.Reservation{}, db.WrapNotFound(err)
	}
	return r, nil
}

func (s *Reservations) UpdateStatus(ctx context.Context, id int64, status booking.Status) error {
	return s.db.Exec(ctx, `UPDATE reservations SET status=$2 WHERE id=$1`, id, string(status))
}

// ActiveByAmenity returns every non-cancelled reservation for the amenity.
// Order is not guaranteed; the engine sorts where it matters.
func (s *Reservations) ActiveByAmenity(ctx context.Context, amenityID int64) ([]booking.Reservation, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+reservationCols+`
FROM reservations
WHERE amenity_id=$1 AND status <> 'CANCELLED'`, amenityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *Reservations) ListByRequester(ctx context.Context, requesterID int64, from, to time.Time, limit int) ([]booking.Reservation, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+reservationCols+`
FROM reservations
WHERE requester_id=$1 AND starts_at >= $2 AND starts_at <= $3
ORDER BY starts_at DESC
LIMIT $4`, requesterID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

// CancelStalePending flips PENDING reservations whose start has passed to
// CANCELLED and reports how many rows changed. Used by the sweeper.
func (s *Reservations) CancelStalePending(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx, `
WITH stale AS (
	UPDATE reservations
	SET status='CANCELLED'
	WHERE status='PENDING' AND starts_at <= $1
	RETURNING 1
)
SELECT count(*) FROM stale`, now).Scan(&n)
	return n, err
}

func scanReservation(row db.Row) (booking.Reservation, error) {
	var r booking.Reservation
	var status string
	if err := row.Scan(&r.ID, &r.AmenityID, &r.RequesterID, &r.Start, &r.End,
		&status, &r.AllowSharing, &r.Note, &r.CreatedAt); err != nil {
		return booking.Reservation{}, err
	}
	r.Status = booking.Status(status)
	return r, nil
}

func collectReservations(rows db.Rows) ([]booking.Reservation, error) {
	var out []booking.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
