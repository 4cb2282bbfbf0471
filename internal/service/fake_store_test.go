package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
	"github.com/iliyamo/dock-slot-reservation/internal/queue"
	"github.com/iliyamo/dock-slot-reservation/internal/repository"
)

// memStore mimics the MySQL tables: one active reservation per key, one
// closure per key, and a mutex per key standing in for slot_locks.
type memStore struct {
	mu           sync.Mutex
	nextID       uint64
	reservations map[uint64]model.Reservation
	closures     map[uint64]model.Closure
	keyLocks     map[string]*sync.Mutex
	people       []model.Person

	calls      int
	failCreate error
	// hideActive makes HasActive lie so the unique index is the last guard.
	hideActive bool
}

func newMemStore() *memStore {
	return &memStore{
		reservations: make(map[uint64]model.Reservation),
		closures:     make(map[uint64]model.Closure),
		keyLocks:     make(map[string]*sync.Mutex),
	}
}

func slotKey(date time.Time, slot string) string {
	return calendar.FormatDate(date) + "|" + slot
}

func (s *memStore) touch() {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
}

func (s *memStore) storageCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) WithSlotLock(ctx context.Context, date time.Time, slot string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.calls++
	l, ok := s.keyLocks[slotKey(date, slot)]
	if !ok {
		l = &sync.Mutex{}
		s.keyLocks[slotKey(date, slot)] = l
	}
	s.mu.Unlock()
	l.Lock()
	defer l.Unlock()
	return fn(ctx)
}

func (s *memStore) activeCount(date time.Time, slot string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.reservations {
		if r.Status == model.StatusActive && slotKey(r.Date, r.Slot) == slotKey(date, slot) {
			n++
		}
	}
	return n
}

type memLedger struct{ *memStore }

func (l memLedger) Create(ctx context.Context, requesterID uint64, date time.Time, slot string, meta model.ReservationMetadata, createdAt time.Time) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.failCreate != nil {
		return 0, l.failCreate
	}
	for _, r := range l.reservations {
		if r.Status == model.StatusActive && slotKey(r.Date, r.Slot) == slotKey(date, slot) {
			return 0, repository.ErrDuplicate
		}
	}
	l.nextID++
	l.reservations[l.nextID] = model.Reservation{
		ID: l.nextID, RequesterID: requesterID, Date: date, Slot: slot,
		Status: model.StatusActive, Metadata: meta, CreatedAt: createdAt,
	}
	return l.nextID, nil
}

func (l memLedger) Get(ctx context.Context, id uint64) (model.Reservation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	r, ok := l.reservations[id]
	if !ok {
		return r, repository.ErrNotFound
	}
	return r, nil
}

func (l memLedger) Cancel(ctx context.Context, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	r, ok := l.reservations[id]
	if !ok {
		return repository.ErrNotFound
	}
	r.Status = model.StatusCancelled
	l.reservations[id] = r
	return nil
}

func (l memLedger) HasActive(ctx context.Context, date time.Time, slot string) (bool, error) {
	l.touch()
	if l.hideActive {
		return false, nil
	}
	return l.activeCount(date, slot) > 0, nil
}

func (l memLedger) ActiveSlots(ctx context.Context, date time.Time) (map[string]bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	out := map[string]bool{}
	for _, r := range l.reservations {
		if r.Status == model.StatusActive && r.Date.Equal(date) {
			out[r.Slot] = true
		}
	}
	return out, nil
}

func (l memLedger) sorted(keep func(model.Reservation) bool) []model.Reservation {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	var out []model.Reservation
	for _, r := range l.reservations {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		if out[i].Slot != out[j].Slot {
			return out[i].Slot < out[j].Slot
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (l memLedger) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
	return l.sorted(func(r model.Reservation) bool { return r.RequesterID == requesterID }), nil
}

func (l memLedger) ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
	return l.sorted(func(r model.Reservation) bool { return r.Date.Equal(date) }), nil
}

func (l memLedger) ListBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error) {
	return l.sorted(func(r model.Reservation) bool {
		return !r.Date.Before(from) && r.Date.Before(to)
	}), nil
}

func (l memLedger) ListAll(ctx context.Context) ([]model.ReservationView, error) {
	var out []model.ReservationView
	for _, r := range l.sorted(func(model.Reservation) bool { return true }) {
		out = append(out, model.ReservationView{Reservation: r})
	}
	return out, nil
}

type memRegistry struct{ *memStore }

func (g memRegistry) Close(ctx context.Context, date time.Time, slot, reason string, actor uint64, createdAt time.Time) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, c := range g.closures {
		if slotKey(c.Date, c.Slot) == slotKey(date, slot) {
			return 0, repository.ErrDuplicate
		}
	}
	g.nextID++
	g.closures[g.nextID] = model.Closure{ID: g.nextID, Date: date, Slot: slot, Reason: reason, CreatedBy: actor, CreatedAt: createdAt}
	return g.nextID, nil
}

func (g memRegistry) Exists(ctx context.Context, date time.Time, slot string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for _, c := range g.closures {
		if slotKey(c.Date, c.Slot) == slotKey(date, slot) {
			return true, nil
		}
	}
	return false, nil
}

func (g memRegistry) ListByDate(ctx context.Context, date time.Time) (map[string]bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	out := map[string]bool{}
	for _, c := range g.closures {
		if c.Date.Equal(date) {
			out[c.Slot] = true
		}
	}
	return out, nil
}

func (g memRegistry) ListWithinHorizon(ctx context.Context, start time.Time, days int) ([]model.ClosureView, error) {
	closures, _ := g.ListBetween(ctx, start, start.AddDate(0, 0, days))
	out := make([]model.ClosureView, 0, len(closures))
	for _, c := range closures {
		out = append(out, model.ClosureView{Closure: c})
	}
	return out, nil
}

func (g memRegistry) ListBetween(ctx context.Context, from, to time.Time) ([]model.Closure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	var out []model.Closure
	for _, c := range g.closures {
		if !c.Date.Before(from) && c.Date.Before(to) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return slotKey(out[i].Date, out[i].Slot) < slotKey(out[j].Date, out[j].Slot) })
	return out, nil
}

func (g memRegistry) Reopen(ctx context.Context, id uint64) (model.Closure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	c, ok := g.closures[id]
	if !ok {
		return c, repository.ErrNotFound
	}
	delete(g.closures, id)
	return c, nil
}

func (g memRegistry) ReopenByDateSlot(ctx context.Context, date time.Time, slot string) (model.Closure, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	for id, c := range g.closures {
		if slotKey(c.Date, c.Slot) == slotKey(date, slot) {
			delete(g.closures, id)
			return c, nil
		}
	}
	return model.Closure{}, repository.ErrNotFound
}

func (s *memStore) ListByRole(ctx context.Context, role string) ([]model.Person, error) {
	var out []model.Person
	for _, p := range s.people {
		if p.Role == role {
			out = append(out, p)
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SlotEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, ev queue.SlotEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) kinds() []queue.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventKind, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Kind)
	}
	return out
}

type countingInvalidator struct {
	mu sync.Mutex
	n  int
}

func (c *countingInvalidator) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
	return nil
}
