package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type memAmenities struct {
	byID map[int64]Amenity
}

func (m *memAmenities) GetByID(_ context.Context, id int64) (Amenity, error) {
	a, ok := m.byID[id]
	if !ok {
		return Amenity{}, fmt.Errorf("amenity %d: not found", id)
	}
	return a, nil
}

func (m *memAmenities) List(_ context.Context) ([]Amenity, error) {
	out := make([]Amenity, 0, len(m.byID))
	for _, a := range m.byID {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memReservations struct {
	mu   sync.Mutex
	next int64
	rows map[int64]Reservation
}

func newMemReservations() *memReservations {
	return &memReservations{next: 1, rows: make(map[int64]Reservation)}
}

func (m *memReservations) Create(_ context.Context, r Reservation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.ID = m.next
	m.next++
	m.rows[r.ID] = r
	return r.ID, nil
}

func (m *memReservations) GetByID(_ context.Context, id int64) (Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return Reservation{}, fmt.Errorf("reservation %d: not found", id)
	}
	return r, nil
}

func (m *memReservations) UpdateStatus(_ context.Context, id int64, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return fmt.Errorf("reservation %d: not found", id)
	}
	r.Status = status
	m.rows[id] = r
	return nil
}

func (m *memReservations) ActiveByAmenity(_ context.Context, amenityID int64) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.rows {
		if r.AmenityID == amenityID && r.Status.Active() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memReservations) ListByRequester(_ context.Context, requesterID int64, from, to time.Time, limit int) ([]Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.rows {
		if r.RequesterID != requesterID {
			continue
		}
		if r.Start.Before(from) || r.Start.After(to) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memReservations) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func newTestService(t *testing.T, now time.Time) (*Service, *memReservations) {
	t.Helper()
	amenities := &memAmenities{byID: map[int64]Amenity{1: weekendAmenity()}}
	reservations := newMemReservations()
	return NewService(amenities, reservations, fixedClock{now}), reservations
}

func TestServiceCreate(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	svc, store := newTestService(t, now)
	ctx := context.Background()

	resident := Actor{UserID: 10, Role: RoleResident}
	req := CreateRequest{
		AmenityID:     1,
		Start:         time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:           time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
		Note:          "aniversário",
		InitialStatus: StatusApproved,
	}

	r, err := svc.Create(ctx, resident, req)
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if r.ID == 0 {
		t.Error("Create() returned zero ID")
	}
	if r.Status != StatusApproved {
		t.Errorf("status = %s, want APPROVED", r.Status)
	}
	if r.RequesterID != resident.UserID {
		t.Errorf("requester = %d, want %d", r.RequesterID, resident.UserID)
	}

	// An overlapping non-sharing follow-up is rejected and writes nothing.
	before := store.count()
	req2 := req
	req2.Start = time.Date(2025, 6, 14, 10, 30, 0, 0, loc)
	req2.End = time.Date(2025, 6, 14, 11, 30, 0, 0, loc)
	_, err = svc.Create(ctx, Actor{UserID: 11, Role: RoleResident}, req2)
	if !IsKind(err, KindOverlapDenied) {
		t.Fatalf("Create() = %v, want OVERLAP_DENIED", err)
	}
	if store.count() != before {
		t.Errorf("rejected create mutated the store: %d rows, want %d", store.count(), before)
	}
}

func TestServiceCreateDefaultsToPending(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	svc, _ := newTestService(t, now)

	r, err := svc.Create(context.Background(), Actor{UserID: 10, Role: RoleResident}, CreateRequest{
		AmenityID: 1,
		Start:     time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:       time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if r.Status != StatusPending {
		t.Errorf("status = %s, want PENDING default", r.Status)
	}
}

func TestServiceCreateDoorkeeperForbidden(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	svc, store := newTestService(t, now)

	_, err := svc.Create(context.Background(), Actor{UserID: 20, Role: RoleDoorkeeper}, CreateRequest{
		AmenityID: 1,
		Start:     time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:       time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
	})
	if !IsKind(err, KindForbidden) {
		t.Fatalf("Create() = %v, want FORBIDDEN for doorkeeper", err)
	}
	if store.count() != 0 {
		t.Error("forbidden create mutated the store")
	}
}

func TestServiceCancel(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, loc)
	svc, store := newTestService(t, now)
	ctx := context.Background()

	owner := Actor{UserID: 10, Role: RoleResident}
	r, err := svc.Create(ctx, owner, CreateRequest{
		AmenityID:     1,
		Start:         time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:           time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
		InitialStatus: StatusApproved,
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	t.Run("stranger forbidden", func(t *testing.T) {
		err := svc.Cancel(ctx, Actor{UserID: 99, Role: RoleResident}, r.ID)
		if !IsKind(err, KindForbidden) {
			t.Fatalf("Cancel() = %v, want FORBIDDEN", err)
		}
	})

	t.Run("owner cancels", func(t *testing.T) {
		if err := svc.Cancel(ctx, owner, r.ID); err != nil {
			t.Fatalf("Cancel() = %v", err)
		}
		got, _ := store.GetByID(ctx, r.ID)
		if got.Status != StatusCancelled {
			t.Errorf("status = %s, want CANCELLED", got.Status)
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		if err := svc.Cancel(ctx, owner, r.ID); err != nil {
			t.Fatalf("second Cancel() = %v, want success no-op", err)
		}
		got, _ := store.GetByID(ctx, r.ID)
		if got.Status != StatusCancelled {
			t.Errorf("status = %s after idempotent cancel, want CANCELLED", got.Status)
		}
	})

	t.Run("window freed for others", func(t *testing.T) {
		_, err := svc.Create(ctx, Actor{UserID: 11, Role: RoleResident}, CreateRequest{
			AmenityID:     1,
			Start:         r.Start,
			End:           r.End,
			InitialStatus: StatusApproved,
		})
		if err != nil {
			t.Fatalf("Create() after cancel = %v, want accept", err)
		}
	})
}

func TestServiceCancelAlreadyStarted(t *testing.T) {
	loc := saoPaulo(t)
	svc, store := newTestService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()

	owner := Actor{UserID: 10, Role: RoleResident}
	r, err := svc.Create(ctx, owner, CreateRequest{
		AmenityID:     1,
		Start:         time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:           time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
		InitialStatus: StatusApproved,
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	// Move the clock past the reservation start.
	svc.Clock = fixedClock{time.Date(2025, 6, 14, 10, 0, 0, 0, loc)}

	if err := svc.Cancel(ctx, owner, r.ID); !IsKind(err, KindAlreadyStarted) {
		t.Fatalf("Cancel() = %v, want ALREADY_STARTED", err)
	}
	got, _ := store.GetByID(ctx, r.ID)
	if got.Status != StatusApproved {
		t.Errorf("status = %s, want APPROVED untouched", got.Status)
	}

	// A manager is held to the same rule.
	if err := svc.Cancel(ctx, Actor{UserID: 1, Role: RoleManager}, r.ID); !IsKind(err, KindAlreadyStarted) {
		t.Errorf("manager Cancel() = %v, want ALREADY_STARTED", err)
	}
}

func TestServiceCancelByManager(t *testing.T) {
	loc := saoPaulo(t)
	svc, store := newTestService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()

	r, err := svc.Create(ctx, Actor{UserID: 10, Role: RoleResident}, CreateRequest{
		AmenityID:     1,
		Start:         time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:           time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
		InitialStatus: StatusApproved,
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if err := svc.Cancel(ctx, Actor{UserID: 1, Role: RoleManager}, r.ID); err != nil {
		t.Fatalf("manager Cancel() = %v", err)
	}
	got, _ := store.GetByID(ctx, r.ID)
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", got.Status)
	}
}

func TestServiceApprove(t *testing.T) {
	loc := saoPaulo(t)
	svc, store := newTestService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()

	owner := Actor{UserID: 10, Role: RoleResident}
	manager := Actor{UserID: 1, Role: RoleManager}
	r, err := svc.Create(ctx, owner, CreateRequest{
		AmenityID: 1,
		Start:     time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
		End:       time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
	})
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	if err := svc.Approve(ctx, owner, r.ID); !IsKind(err, KindForbidden) {
		t.Fatalf("resident Approve() = %v, want FORBIDDEN", err)
	}

	if err := svc.Approve(ctx, manager, r.ID); err != nil {
		t.Fatalf("Approve() = %v", err)
	}
	got, _ := store.GetByID(ctx, r.ID)
	if got.Status != StatusApproved {
		t.Errorf("status = %s, want APPROVED", got.Status)
	}

	if err := svc.Approve(ctx, manager, r.ID); err != nil {
		t.Fatalf("repeat Approve() = %v, want no-op success", err)
	}

	if err := svc.Cancel(ctx, manager, r.ID); err != nil {
		t.Fatalf("Cancel() = %v", err)
	}
	if err := svc.Approve(ctx, manager, r.ID); !IsKind(err, KindInvalidTransition) {
		t.Fatalf("Approve() after cancel = %v, want INVALID_TRANSITION", err)
	}
}

// Two overlapping non-sharing candidates racing Create must not both commit.
func TestServiceCreateSerializedPerAmenity(t *testing.T) {
	loc := saoPaulo(t)
	svc, store := newTestService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Create(ctx, Actor{UserID: int64(100 + i), Role: RoleResident}, CreateRequest{
				AmenityID:     1,
				Start:         time.Date(2025, 6, 14, 10, 0, 0, 0, loc),
				End:           time.Date(2025, 6, 14, 11, 0, 0, 0, loc),
				InitialStatus: StatusApproved,
			})
		}()
	}
	wg.Wait()

	var ok, denied int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case IsKind(err, KindOverlapDenied):
			denied++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("%d creates succeeded, want exactly 1", ok)
	}
	if denied != attempts-1 {
		t.Errorf("%d creates denied, want %d", denied, attempts-1)
	}
	if store.count() != 1 {
		t.Errorf("store holds %d rows, want 1", store.count())
	}
}

func TestServiceHistory(t *testing.T) {
	loc := saoPaulo(t)
	svc, _ := newTestService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, loc))
	ctx := context.Background()

	owner := Actor{UserID: 10, Role: RoleResident}
	for _, day := range []int{7, 14} { // both Saturdays
		_, err := svc.Create(ctx, owner, CreateRequest{
			AmenityID:     1,
			Start:         time.Date(2025, 6, day, 10, 0, 0, 0, loc),
			End:           time.Date(2025, 6, day, 11, 0, 0, 0, loc),
			InitialStatus: StatusApproved,
		})
		if err != nil {
			t.Fatalf("Create() day %d = %v", day, err)
		}
	}

	got, err := svc.History(ctx, owner,
		time.Date(2025, 6, 1, 0, 0, 0, 0, loc),
		time.Date(2025, 6, 30, 0, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("History() = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(history) = %d, want 2", len(got))
	}
	if !got[0].Start.After(got[1].Start) {
		t.Error("history not ordered newest first")
	}
}
