package repository_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
	"github.com/iliyamo/dock-slot-reservation/internal/repository"
	"github.com/iliyamo/dock-slot-reservation/internal/service"
	"github.com/iliyamo/dock-slot-reservation/internal/testutil"
)

// Monday, far enough out that no horizon policy interferes.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestReservationRepo_ActiveUniqueness(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, db)
	repo := repository.NewReservationRepo(db)
	now := time.Now().UTC()

	id, err := repo.Create(ctx, 1, monday, "09:00-12:00", model.ReservationMetadata{ContainerNumber: strPtr("MSKU1234565")}, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, 2, monday, "09:00-12:00", model.ReservationMetadata{}, now); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("second active create err = %v, want ErrDuplicate", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Date.Equal(monday) || got.Status != model.StatusActive || got.Metadata.ContainerNumber == nil {
		t.Fatalf("stored reservation = %+v", got)
	}

	if err := repo.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := repo.Cancel(ctx, id); err != nil {
		t.Fatalf("repeat cancel should be a no-op: %v", err)
	}
	if err := repo.Cancel(ctx, 999999); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("cancel missing err = %v", err)
	}

	// Cancelled rows do not occupy the key.
	if _, err := repo.Create(ctx, 2, monday, "09:00-12:00", model.ReservationMetadata{}, now); err != nil {
		t.Fatalf("rebook after cancel: %v", err)
	}
	all, err := repo.ListByDate(ctx, monday)
	if err != nil || len(all) != 2 {
		t.Fatalf("list by date = %d rows, err %v", len(all), err)
	}
	active, err := repo.ActiveSlots(ctx, monday)
	if err != nil || !active["09:00-12:00"] || len(active) != 1 {
		t.Fatalf("active slots = %v, err %v", active, err)
	}
	window, err := repo.ListBetween(ctx, monday, monday.AddDate(0, 0, 1))
	if err != nil || len(window) != 2 || window[0].Status != model.StatusCancelled || window[1].Status != model.StatusActive {
		t.Fatalf("list between = %+v, err %v", window, err)
	}
}

func TestReservationRepo_ListAllJoinsRequester(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, db)
	repo := repository.NewReservationRepo(db)

	uid := testutil.InsertPerson(t, ctx, db, model.Person{Username: "hauler", Name: "Hauler Ltd", Role: model.RoleClient, Contact: strPtr("+1-555-0100")})
	if _, err := repo.Create(ctx, uid, monday, "13:00-16:00", model.ReservationMetadata{}, time.Now().UTC()); err != nil {
		t.Fatalf("create: %v", err)
	}
	// A requester without a users row still lists.
	if _, err := repo.Create(ctx, 424242, monday, "09:00-12:00", model.ReservationMetadata{}, time.Now().UTC()); err != nil {
		t.Fatalf("create orphan: %v", err)
	}

	views, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("got %d views", len(views))
	}
	var found bool
	for _, v := range views {
		if v.RequesterID == uid {
			found = true
			if v.RequesterName != "Hauler Ltd" || v.RequesterUsername != "hauler" || v.RequesterContact == nil {
				t.Fatalf("joined view = %+v", v)
			}
		}
	}
	if !found {
		t.Fatalf("requester %d missing from %+v", uid, views)
	}

	mine, err := repo.ListByRequester(ctx, uid)
	if err != nil || len(mine) != 1 {
		t.Fatalf("list by requester = %v, %v", mine, err)
	}
}

func TestClosureRepo_CloseAndReopen(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	testutil.TruncateAll(t, ctx, db)
	repo := repository.NewClosureRepo(db)
	admin := testutil.InsertPerson(t, ctx, db, model.Person{Username: "admin", Name: "Yard Admin", Role: model.RoleAdmin})
	now := time.Now().UTC()

	id, err := repo.Close(ctx, monday, "09:00-12:00", "crane maintenance", admin, now)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := repo.Close(ctx, monday, "09:00-12:00", "again", admin, now); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("double close err = %v", err)
	}
	closed, err := repo.ListByDate(ctx, monday)
	if err != nil || !closed["09:00-12:00"] {
		t.Fatalf("list by date = %v, %v", closed, err)
	}
	views, err := repo.ListWithinHorizon(ctx, monday, 7)
	if err != nil || len(views) != 1 || views[0].CreatedByName != "Yard Admin" || views[0].Reason != "crane maintenance" {
		t.Fatalf("horizon views = %+v, %v", views, err)
	}

	c, err := repo.Reopen(ctx, id)
	if err != nil || c.ID != id {
		t.Fatalf("reopen = %+v, %v", c, err)
	}
	if _, err := repo.Reopen(ctx, id); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("repeat reopen err = %v", err)
	}
	if ok, err := repo.Exists(ctx, monday, "09:00-12:00"); err != nil || ok {
		t.Fatalf("exists after reopen = %v, %v", ok, err)
	}

	if _, err := repo.Close(ctx, monday, "13:00-16:00", "", admin, now); err != nil {
		t.Fatalf("close afternoon: %v", err)
	}
	if _, err := repo.ReopenByDateSlot(ctx, monday, "13:00-16:00"); err != nil {
		t.Fatalf("reopen by key: %v", err)
	}
	if _, err := repo.ReopenByDateSlot(ctx, monday, "13:00-16:00"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("repeat reopen by key err = %v", err)
	}
}

func newResolver(t *testing.T) *service.Resolver {
	db := testutil.NewTestDB(t)
	testutil.TruncateAll(t, context.Background(), db)
	return service.NewResolver(
		model.DefaultSlotCatalog(),
		repository.NewReservationRepo(db),
		repository.NewClosureRepo(db),
		repository.NewSlotLocker(db),
		service.WithPolicy(calendar.WeekdaysOnly()),
	)
}

func TestResolver_ConcurrentBookOnMySQL(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()

	const n = 10
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ids     []uint64
		refused int
		other   []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(requester uint64) {
			defer wg.Done()
			<-start
			id, err := r.Book(ctx, requester, monday, "09:00-12:00", model.ReservationMetadata{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ids = append(ids, id)
			case errors.Is(err, service.ErrSlotUnavailable):
				refused++
			default:
				other = append(other, err)
			}
		}(uint64(i + 1))
	}
	close(start)
	wg.Wait()

	if len(other) > 0 {
		t.Fatalf("unexpected errors: %v", other)
	}
	if len(ids) != 1 || refused != n-1 {
		t.Fatalf("got %d bookings and %d refusals", len(ids), refused)
	}
	ok, err := r.IsAvailable(ctx, monday, "09:00-12:00")
	if err != nil || ok {
		t.Fatalf("slot should be taken: %v, %v", ok, err)
	}
}

func TestResolver_CloseRaceWithBookOnMySQL(t *testing.T) {
	r := newResolver(t)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		bookErr   error
		closeErr  error
		bookedID  uint64
		closureID uint64
	)
	start := make(chan struct{})
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		bookedID, bookErr = r.Book(ctx, 5, monday, "13:00-16:00", model.ReservationMetadata{})
	}()
	go func() {
		defer wg.Done()
		<-start
		closureID, closeErr = r.Close(ctx, monday, "13:00-16:00", "berth repair", 1)
	}()
	close(start)
	wg.Wait()

	// Exactly one side wins; the other sees the key occupied.
	switch {
	case bookErr == nil:
		if bookedID == 0 || !errors.Is(closeErr, service.ErrConflict) {
			t.Fatalf("book won but close err = %v", closeErr)
		}
	case closeErr == nil:
		if closureID == 0 || !errors.Is(bookErr, service.ErrSlotUnavailable) {
			t.Fatalf("close won but book err = %v", bookErr)
		}
	default:
		t.Fatalf("both failed: book %v, close %v", bookErr, closeErr)
	}
}
