// Package queue defines message payloads exchanged over the message broker
// along with the publisher and the audit consumer that move them.
package queue

// EventKind names a slot lifecycle transition.
type EventKind string

const (
    KindBooked    EventKind = "reservation.booked"
    KindCancelled EventKind = "reservation.cancelled"
    KindClosed    EventKind = "slot.closed"
    KindReopened  EventKind = "slot.reopened"
)

// SlotEventsQueue is the durable queue every lifecycle event is routed to.
const SlotEventsQueue = "slot.events"

// SlotEvent is published after a booking, cancellation, closure or reopen
// has been committed.  It carries enough information for downstream
// consumers to log or notify without querying the primary database.
type SlotEvent struct {
    ID            string    `json:"id"`
    Kind          EventKind `json:"kind"`
    Date          string    `json:"date"`
    Slot          string    `json:"slot"`
    ReservationID uint64    `json:"reservationId,omitempty"`
    ClosureID     uint64    `json:"closureId,omitempty"`
    ActorID       uint64    `json:"actorId,omitempty"`
    Reason        string    `json:"reason,omitempty"`
    OccurredAt    string    `json:"occurredAt"`
}
