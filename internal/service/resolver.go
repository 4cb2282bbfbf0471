// Package service holds the availability resolver: the one place where the
// calendar policy, the closed-slot registry and the reservation ledger are
// composed into booking decisions.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/dock-slot-reservation/internal/calendar"
	"github.com/iliyamo/dock-slot-reservation/internal/clock"
	"github.com/iliyamo/dock-slot-reservation/internal/model"
	"github.com/iliyamo/dock-slot-reservation/internal/queue"
	"github.com/iliyamo/dock-slot-reservation/internal/repository"
)

// Ledger stores reservations.  Implementations report a second active
// reservation for the same key as repository.ErrDuplicate.
type Ledger interface {
	Create(ctx context.Context, requesterID uint64, date time.Time, slot string, meta model.ReservationMetadata, createdAt time.Time) (uint64, error)
	Get(ctx context.Context, id uint64) (model.Reservation, error)
	Cancel(ctx context.Context, id uint64) error
	HasActive(ctx context.Context, date time.Time, slot string) (bool, error)
	ActiveSlots(ctx context.Context, date time.Time) (map[string]bool, error)
	ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error)
	ListByDate(ctx context.Context, date time.Time) ([]model.Reservation, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Reservation, error)
	ListAll(ctx context.Context) ([]model.ReservationView, error)
}

// Registry stores closures.  Implementations report a second closure for
// the same key as repository.ErrDuplicate.
type Registry interface {
	Close(ctx context.Context, date time.Time, slot, reason string, actor uint64, createdAt time.Time) (uint64, error)
	Exists(ctx context.Context, date time.Time, slot string) (bool, error)
	ListByDate(ctx context.Context, date time.Time) (map[string]bool, error)
	ListWithinHorizon(ctx context.Context, start time.Time, days int) ([]model.ClosureView, error)
	ListBetween(ctx context.Context, from, to time.Time) ([]model.Closure, error)
	Reopen(ctx context.Context, id uint64) (model.Closure, error)
	ReopenByDateSlot(ctx context.Context, date time.Time, slot string) (model.Closure, error)
}

// Locker serializes mutations of one (date, slot) key.  Ledger and
// Registry calls made with the ctx passed to fn observe every change
// committed by earlier holders of the same key.
type Locker interface {
	WithSlotLock(ctx context.Context, date time.Time, slot string, fn func(ctx context.Context) error) error
}

// Directory lists known people by role.
type Directory interface {
	ListByRole(ctx context.Context, role string) ([]model.Person, error)
}

// EventPublisher receives lifecycle events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SlotEvent) error
}

// Invalidator drops cached availability answers after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

const (
	maxReasonLen  = 255
	maxWindowDays = 62
	publishBudget = 10 * time.Second
)

// Resolver answers availability questions and performs the guarded
// accept-or-reject decision for bookings and closures.
type Resolver struct {
	catalog  model.SlotCatalog
	policy   calendar.Policy
	clock    clock.Clock
	ledger   Ledger
	registry Registry
	locker   Locker
	people   Directory
	events   EventPublisher
	cache    Invalidator

	pending sync.WaitGroup
}

type ResolverOption func(*Resolver)

// WithPolicy replaces the weekday-only date policy.
func WithPolicy(p calendar.Policy) ResolverOption {
	return func(r *Resolver) { r.policy = p }
}

// WithClock sets the clock used for creation timestamps and event times.
func WithClock(c clock.Clock) ResolverOption {
	return func(r *Resolver) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithDirectory(d Directory) ResolverOption {
	return func(r *Resolver) { r.people = d }
}

// WithPublisher enables best-effort lifecycle events.
func WithPublisher(p EventPublisher) ResolverOption {
	return func(r *Resolver) { r.events = p }
}

// WithInvalidator registers the read cache to drop after each write.
func WithInvalidator(i Invalidator) ResolverOption {
	return func(r *Resolver) { r.cache = i }
}

func NewResolver(catalog model.SlotCatalog, ledger Ledger, registry Registry, locker Locker, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		catalog:  catalog,
		policy:   calendar.WeekdaysOnly(),
		clock:    clock.NewSystem(),
		ledger:   ledger,
		registry: registry,
		locker:   locker,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Catalog returns the slot catalog the resolver validates against.
func (r *Resolver) Catalog() model.SlotCatalog { return r.catalog }

// IsBookableDate reports whether date passes the calendar policy.
func (r *Resolver) IsBookableDate(date time.Time) bool {
	return r.policy.Allows(date)
}

// IsAvailable reports whether (date, slot) can be booked right now: the
// date is bookable, the slot is in the catalog, and neither an active
// reservation nor a closure holds the key.
func (r *Resolver) IsAvailable(ctx context.Context, date time.Time, slot string) (bool, error) {
	if !r.IsBookableDate(date) || !r.catalog.Contains(slot) {
		return false, nil
	}
	date = calendar.Day(date)
	active, err := r.ledger.HasActive(ctx, date, slot)
	if err != nil {
		return false, r.storageFailure("is available", err)
	}
	if active {
		return false, nil
	}
	closed, err := r.registry.Exists(ctx, date, slot)
	if err != nil {
		return false, r.storageFailure("is available", err)
	}
	return !closed, nil
}

// AvailableSlots returns the free labels of date in catalog order.  A date
// outside the policy has none.
func (r *Resolver) AvailableSlots(ctx context.Context, date time.Time) ([]string, error) {
	out := []string{}
	if !r.IsBookableDate(date) {
		return out, nil
	}
	date = calendar.Day(date)
	active, err := r.ledger.ActiveSlots(ctx, date)
	if err != nil {
		return nil, r.storageFailure("available slots", err)
	}
	closed, err := r.registry.ListByDate(ctx, date)
	if err != nil {
		return nil, r.storageFailure("available slots", err)
	}
	for _, slot := range r.catalog.Labels() {
		if !active[slot] && !closed[slot] {
			out = append(out, slot)
		}
	}
	return out, nil
}

// Book reserves (date, slot) for requester.  The availability re-check and
// the insert run under the key's lock, and the ledger's unique index backs
// the lock up, so of any number of concurrent calls for one free key
// exactly one succeeds and the rest get ErrSlotUnavailable.
func (r *Resolver) Book(ctx context.Context, requesterID uint64, date time.Time, slot string, meta model.ReservationMetadata) (uint64, error) {
	if requesterID == 0 {
		return 0, invalid("requesterId", "requester is required")
	}
	if err := r.validateBooking(date, slot); err != nil {
		return 0, err
	}
	meta = normalizeMetadata(meta)
	date = calendar.Day(date)

	var id uint64
	err := r.locker.WithSlotLock(ctx, date, slot, func(ctx context.Context) error {
		closed, err := r.registry.Exists(ctx, date, slot)
		if err != nil {
			return err
		}
		if closed {
			return ErrSlotUnavailable
		}
		active, err := r.ledger.HasActive(ctx, date, slot)
		if err != nil {
			return err
		}
		if active {
			return ErrSlotUnavailable
		}
		id, err = r.ledger.Create(ctx, requesterID, date, slot, meta, r.clock.Now())
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrSlotUnavailable
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return 0, err
		}
		return 0, r.storageFailure("book", err)
	}

	r.afterWrite(queue.SlotEvent{
		Kind:          queue.KindBooked,
		Date:          calendar.FormatDate(date),
		Slot:          slot,
		ReservationID: id,
		ActorID:       requesterID,
	})
	return id, nil
}

// Cancel cancels a reservation on behalf of its requester.  Someone else's
// reservation yields ErrForbidden.  A cancelled reservation stays cancelled
// and a repeated call succeeds.
func (r *Resolver) Cancel(ctx context.Context, reservationID, requesterID uint64) error {
	res, err := r.lookupReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	if res.RequesterID != requesterID {
		return ErrForbidden
	}
	return r.cancel(ctx, res, requesterID)
}

// AdminCancel cancels any reservation.
func (r *Resolver) AdminCancel(ctx context.Context, reservationID, actorID uint64) error {
	res, err := r.lookupReservation(ctx, reservationID)
	if err != nil {
		return err
	}
	return r.cancel(ctx, res, actorID)
}

func (r *Resolver) lookupReservation(ctx context.Context, id uint64) (model.Reservation, error) {
	if id == 0 {
		return model.Reservation{}, invalid("reservationId", "reservation id is required")
	}
	res, err := r.ledger.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return res, ErrNotFound
	}
	if err != nil {
		return res, r.storageFailure("get reservation", err)
	}
	return res, nil
}

func (r *Resolver) cancel(ctx context.Context, res model.Reservation, actorID uint64) error {
	if res.Status == model.StatusCancelled {
		return nil
	}
	err := r.ledger.Cancel(ctx, res.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return r.storageFailure("cancel", err)
	}
	r.afterWrite(queue.SlotEvent{
		Kind:          queue.KindCancelled,
		Date:          calendar.FormatDate(res.Date),
		Slot:          res.Slot,
		ReservationID: res.ID,
		ActorID:       actorID,
	})
	return nil
}

// Close closes (date, slot).  It fails with ErrConflict when the key is
// already closed or holds an active reservation.
func (r *Resolver) Close(ctx context.Context, date time.Time, slot, reason string, actorID uint64) (uint64, error) {
	if actorID == 0 {
		return 0, invalid("actorId", "administrator is required")
	}
	if err := r.validateKey(date, slot); err != nil {
		return 0, err
	}
	reason = strings.TrimSpace(reason)
	if len(reason) > maxReasonLen {
		return 0, invalid("reason", fmt.Sprintf("reason must be at most %d characters", maxReasonLen))
	}
	date = calendar.Day(date)

	var id uint64
	err := r.locker.WithSlotLock(ctx, date, slot, func(ctx context.Context) error {
		active, err := r.ledger.HasActive(ctx, date, slot)
		if err != nil {
			return err
		}
		if active {
			return ErrConflict
		}
		id, err = r.registry.Close(ctx, date, slot, reason, actorID, r.clock.Now())
		if errors.Is(err, repository.ErrDuplicate) {
			return ErrConflict
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return 0, err
		}
		return 0, r.storageFailure("close", err)
	}

	r.afterWrite(queue.SlotEvent{
		Kind:      queue.KindClosed,
		Date:      calendar.FormatDate(date),
		Slot:      slot,
		ClosureID: id,
		ActorID:   actorID,
		Reason:    reason,
	})
	return id, nil
}

// Reopen removes a closure by id.  A missing id, including one already
// reopened, yields ErrNotFound.
func (r *Resolver) Reopen(ctx context.Context, closureID, actorID uint64) error {
	if closureID == 0 {
		return invalid("closureId", "closure id is required")
	}
	c, err := r.registry.Reopen(ctx, closureID)
	return r.afterReopen(c, actorID, err)
}

// ReopenByDateSlot removes the closure of (date, slot).
func (r *Resolver) ReopenByDateSlot(ctx context.Context, date time.Time, slot string, actorID uint64) error {
	if date.IsZero() {
		return invalid("date", "date is required")
	}
	if !r.catalog.Contains(slot) {
		return invalid("slot", "unknown slot "+slot)
	}
	c, err := r.registry.ReopenByDateSlot(ctx, calendar.Day(date), slot)
	return r.afterReopen(c, actorID, err)
}

func (r *Resolver) afterReopen(c model.Closure, actorID uint64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return r.storageFailure("reopen", err)
	}
	r.afterWrite(queue.SlotEvent{
		Kind:      queue.KindReopened,
		Date:      calendar.FormatDate(c.Date),
		Slot:      c.Slot,
		ClosureID: c.ID,
		ActorID:   actorID,
	})
	return nil
}

// Horizon returns the business days in [start, start+days).
func (r *Resolver) Horizon(start time.Time, days int) []time.Time {
	return calendar.Horizon(start, days)
}

// BookableDates returns the dates a requester may pick from today.
func (r *Resolver) BookableDates() []time.Time {
	var out []time.Time
	for _, d := range r.policy.Dates() {
		if r.policy.Allows(d) {
			out = append(out, d)
		}
	}
	return out
}

// ListClosures returns the closures dated in [start, start+days).
func (r *Resolver) ListClosures(ctx context.Context, start time.Time, days int) ([]model.ClosureView, error) {
	if err := validateWindow(days); err != nil {
		return nil, err
	}
	out, err := r.registry.ListWithinHorizon(ctx, calendar.Day(start), days)
	if err != nil {
		return nil, r.storageFailure("list closures", err)
	}
	return out, nil
}

func (r *Resolver) MyReservations(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
	out, err := r.ledger.ListByRequester(ctx, requesterID)
	if err != nil {
		return nil, r.storageFailure("list reservations", err)
	}
	return out, nil
}

func (r *Resolver) ReservationsByDate(ctx context.Context, date time.Time) ([]model.Reservation, error) {
	out, err := r.ledger.ListByDate(ctx, calendar.Day(date))
	if err != nil {
		return nil, r.storageFailure("list reservations", err)
	}
	return out, nil
}

func (r *Resolver) AllReservations(ctx context.Context) ([]model.ReservationView, error) {
	out, err := r.ledger.ListAll(ctx)
	if err != nil {
		return nil, r.storageFailure("list reservations", err)
	}
	return out, nil
}

// Clients lists the people holding the client role.
func (r *Resolver) Clients(ctx context.Context) ([]model.Person, error) {
	if r.people == nil {
		return []model.Person{}, nil
	}
	out, err := r.people.ListByRole(ctx, model.RoleClient)
	if err != nil {
		return nil, r.storageFailure("list clients", err)
	}
	return out, nil
}

// Schedule returns, for every business day in [start, start+days), the
// state of each catalog slot.
func (r *Resolver) Schedule(ctx context.Context, start time.Time, days int) ([]model.DaySchedule, error) {
	if err := validateWindow(days); err != nil {
		return nil, err
	}
	from := calendar.Day(start)
	to := from.AddDate(0, 0, days)

	reservations, err := r.ledger.ListBetween(ctx, from, to)
	if err != nil {
		return nil, r.storageFailure("schedule", err)
	}
	closures, err := r.registry.ListBetween(ctx, from, to)
	if err != nil {
		return nil, r.storageFailure("schedule", err)
	}

	type key struct {
		date string
		slot string
	}
	booked := make(map[key]uint64, len(reservations))
	cancelled := make(map[key][]uint64)
	for _, res := range reservations {
		k := key{calendar.FormatDate(res.Date), res.Slot}
		switch res.Status {
		case model.StatusActive:
			booked[k] = res.ID
		case model.StatusCancelled:
			cancelled[k] = append(cancelled[k], res.ID)
		}
	}
	closed := make(map[key]uint64, len(closures))
	for _, c := range closures {
		closed[key{calendar.FormatDate(c.Date), c.Slot}] = c.ID
	}

	dates := calendar.Horizon(from, days)
	out := make([]model.DaySchedule, 0, len(dates))
	for _, d := range dates {
		day := model.DaySchedule{Date: d, Slots: make([]model.SlotStatus, 0, r.catalog.Len())}
		for _, slot := range r.catalog.Labels() {
			k := key{calendar.FormatDate(d), slot}
			st := model.SlotStatus{Slot: slot, State: model.SlotFree, CancelledIDs: cancelled[k]}
			if id, ok := closed[k]; ok {
				st.State = model.SlotClosed
				st.ClosureID = &id
			}
			if id, ok := booked[k]; ok {
				st.State = model.SlotBooked
				st.ReservationID = &id
			}
			day.Slots = append(day.Slots, st)
		}
		out = append(out, day)
	}
	return out, nil
}

// Drain waits for in-flight event publications.
func (r *Resolver) Drain() { r.pending.Wait() }

func (r *Resolver) validateBooking(date time.Time, slot string) error {
	if err := r.validateKey(date, slot); err != nil {
		return err
	}
	if !r.policy.Allows(date) {
		return invalid("date", "date is outside the booking horizon")
	}
	return nil
}

func (r *Resolver) validateKey(date time.Time, slot string) error {
	if date.IsZero() {
		return invalid("date", "date is required")
	}
	if !calendar.IsBusinessDay(calendar.Day(date)) {
		return invalid("date", "date must be a weekday")
	}
	if !r.catalog.Contains(slot) {
		return invalid("slot", "unknown slot "+slot)
	}
	return nil
}

func validateWindow(days int) error {
	if days <= 0 || days > maxWindowDays {
		return invalid("days", fmt.Sprintf("days must be between 1 and %d", maxWindowDays))
	}
	return nil
}

func normalizeMetadata(meta model.ReservationMetadata) model.ReservationMetadata {
	trim := func(s *string) *string {
		if s == nil {
			return nil
		}
		v := strings.TrimSpace(*s)
		if v == "" {
			return nil
		}
		return &v
	}
	return model.ReservationMetadata{
		ContainerNumber: trim(meta.ContainerNumber),
		AttachmentRef:   trim(meta.AttachmentRef),
	}
}

// storageFailure logs the cause and returns an opaque persistence error.
func (r *Resolver) storageFailure(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("resolver: %s: %v", op, err)
	return fmt.Errorf("%s: %w", op, ErrPersistence)
}

// afterWrite drops cached reads and publishes ev in the background.  Both
// are best effort.
func (r *Resolver) afterWrite(ev queue.SlotEvent) {
	ev.OccurredAt = r.clock.Now().UTC().Format(time.RFC3339)
	if r.cache != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := r.cache.Invalidate(ctx); err != nil {
			log.Printf("resolver: cache invalidate failed: %v", err)
		}
		cancel()
	}
	if r.events == nil {
		return
	}
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishBudget)
		defer cancel()
		if err := r.events.Publish(ctx, ev); err != nil {
			log.Printf("resolver: publish %s failed: %v", ev.Kind, err)
		}
	}()
}
