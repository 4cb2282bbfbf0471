package model

import "time"

// SlotState is the resolved state of one (date, slot) pair.
type SlotState string

const (
    SlotFree   SlotState = "free"
    SlotBooked SlotState = "booked"
    SlotClosed SlotState = "closed"
)

// SlotStatus describes a single slot in a schedule board.  ReservationID is
// set when the slot is booked, ClosureID when it is closed.  CancelledIDs
// lists earlier reservations of the slot that were cancelled, oldest first,
// whatever the current state.
type SlotStatus struct {
    Slot          string
    State         SlotState
    ReservationID *uint64
    ClosureID     *uint64
    CancelledIDs  []uint64
}

// DaySchedule lists every catalog slot of one business date.
type DaySchedule struct {
    Date  time.Time
    Slots []SlotStatus
}
