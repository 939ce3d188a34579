package booking

import (
	"context"
	"sync"
	"time"
)

// AmenityStore is the catalog read side the lifecycle manager depends on.
type AmenityStore interface {
	GetByID(ctx context.Context, id int64) (Amenity, error)
	List(ctx context.Context) ([]Amenity, error)
}

// ReservationStore is the persistence collaborator. Create and UpdateStatus
// must be atomic at the single-row level; cross-row serialization is handled
// here, not in the store.
type ReservationStore interface {
	Create(ctx context.Context, r Reservation) (int64, error)
	GetByID(ctx context.Context, id int64) (Reservation, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ActiveByAmenity(ctx context.Context, amenityID int64) ([]Reservation, error)
	ListByRequester(ctx context.Context, requesterID int64, from, to time.Time, limit int) ([]Reservation, error)
}

// Actor identifies who is asking for a lifecycle transition.
type Actor struct {
	UserID int64
	Role   Role
}

// CreateRequest is a candidate booking from the presentation layer.
type CreateRequest struct {
	AmenityID    int64
	Start        time.Time
	End          time.Time
	AllowSharing bool
	Note         string

	// InitialStatus selects the caller's approval policy: StatusPending for
	// a separate approval step, StatusApproved for direct confirmation.
	InitialStatus Status
}

// HistoryLimit caps how many rows a history query returns.
const HistoryLimit = 100

// Service is the reservation lifecycle manager. Two concurrent Creates for
// the same amenity are serialized through a per-amenity mutex so the
// snapshot-validate-insert sequence cannot interleave; without it two
// non-sharing candidates could race past the overlap check and both commit.
type Service struct {
	Amenities    AmenityStore
	Reservations ReservationStore
	Clock        Clock

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func NewService(amenities AmenityStore, reservations ReservationStore, clock Clock) *Service {
	if clock == nil {
		clock = RealClock{}
	}
	return &Service{
		Amenities:    amenities,
		Reservations: reservations,
		Clock:        clock,
		locks:        make(map[int64]*sync.Mutex),
	}
}

func (s *Service) amenityLock(amenityID int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[amenityID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[amenityID] = l
	}
	return l
}

// Create validates the candidate against the amenity's rules and the current
// active reservations, then persists it with the requested initial status. On
// rejection nothing is written and the typed reason is returned.
func (s *Service) Create(ctx context.Context, actor Actor, req CreateRequest) (Reservation, error) {
	if actor.Role == RoleDoorkeeper {
		return Reservation{}, reject(KindForbidden, "doorkeepers may not create reservations")
	}

	status := req.InitialStatus
	if status == "" {
		status = StatusPending
	}
	if status != StatusPending && status != StatusApproved {
		return Reservation{}, reject(KindInvalidTransition, "initial status must be PENDING or APPROVED")
	}

	amenity, err := s.Amenities.GetByID(ctx, req.AmenityID)
	if err != nil {
		return Reservation{}, err
	}

	candidate := Reservation{
		AmenityID:    req.AmenityID,
		RequesterID:  actor.UserID,
		Start:        req.Start,
		End:          req.End,
		Status:       status,
		AllowSharing: req.AllowSharing,
		Note:         req.Note,
		CreatedAt:    s.Clock.Now(),
	}

	lock := s.amenityLock(req.AmenityID)
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.Reservations.ActiveByAmenity(ctx, req.AmenityID)
	if err != nil {
		return Reservation{}, err
	}
	if err := Validate(amenity, candidate, existing); err != nil {
		return Reservation{}, err
	}

	id, err := s.Reservations.Create(ctx, candidate)
	if err != nil {
		return Reservation{}, err
	}
	candidate.ID = id
	return candidate, nil
}

// Cancel transitions a reservation to CANCELLED. Only the requester or a
// manager may cancel, and only before the reservation starts. Cancelling an
// already-cancelled reservation succeeds without touching anything.
func (s *Service) Cancel(ctx context.Context, actor Actor, reservationID int64) error {
	r, err := s.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}

	if actor.UserID != r.RequesterID && actor.Role != RoleManager {
		return reject(KindForbidden, "only the requester or a manager may cancel")
	}

	if r.Status == StatusCancelled {
		return nil
	}

	if !r.Start.After(s.Clock.Now()) {
		return reject(KindAlreadyStarted, "reservation has already started")
	}

	return s.Reservations.UpdateStatus(ctx, r.ID, StatusCancelled)
}

// Approve transitions PENDING to APPROVED. Manager only. Approving an
// already-approved reservation is a no-op; a cancelled one cannot come back.
func (s *Service) Approve(ctx context.Context, actor Actor, reservationID int64) error {
	if actor.Role != RoleManager {
		return reject(KindForbidden, "only a manager may approve")
	}

	r, err := s.Reservations.GetByID(ctx, reservationID)
	if err != nil {
		return err
	}

	switch r.Status {
	case StatusApproved:
		return nil
	case StatusCancelled:
		return reject(KindInvalidTransition, "cancelled reservations cannot be approved")
	}

	return s.Reservations.UpdateStatus(ctx, r.ID, StatusApproved)
}

// FreeSlotsFor runs the slot generator for one amenity and date against the
// store's active snapshot.
func (s *Service) FreeSlotsFor(ctx context.Context, amenityID int64, date time.Time, slotSize time.Duration) ([]Slot, error) {
	amenity, err := s.Amenities.GetByID(ctx, amenityID)
	if err != nil {
		return nil, err
	}
	existing, err := s.Reservations.ActiveByAmenity(ctx, amenityID)
	if err != nil {
		return nil, err
	}
	return FreeSlots(amenity, date, existing, s.Clock.Now(), slotSize), nil
}

// History lists the actor's own reservations between from and to, newest
// first, capped at HistoryLimit.
func (s *Service) History(ctx context.Context, actor Actor, from, to time.Time) ([]Reservation, error) {
	return s.Reservations.ListByRequester(ctx, actor.UserID, from, to, HistoryLimit)
}
