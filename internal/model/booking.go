package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.  A reservation
// is created active and may only move to cancelled; rows are never deleted.
type ReservationStatus string

const (
    StatusActive    ReservationStatus = "active"
    StatusCancelled ReservationStatus = "cancelled"
)

// ReservationMetadata carries the optional free-form fields supplied with a
// booking request.  AttachmentRef is an opaque reference to a file stored by
// an external collaborator (e.g. a packing list); it is never dereferenced.
type ReservationMetadata struct {
    ContainerNumber *string
    AttachmentRef   *string
}

// Reservation records one requester's hold on a (date, slot) pair.  It maps
// to a row in the `reservations` table.
//
// Fields:
//  ID          – primary key identifier.
//  RequesterID – opaque id of the requesting user.
//  Date        – business date at UTC midnight.
//  Slot        – label from the slot catalog.
//  Status      – active or cancelled.
//  Metadata    – optional container number and attachment reference.
//  CreatedAt   – creation timestamp.
type Reservation struct {
    ID          uint64
    RequesterID uint64
    Date        time.Time
    Slot        string
    Status      ReservationStatus
    Metadata    ReservationMetadata
    CreatedAt   time.Time
}

// ReservationView is a reservation joined with the requester's display data.
type ReservationView struct {
    Reservation
    RequesterName     string
    RequesterUsername string
    RequesterContact  *string
}

// Closure is an administrator-imposed removal of a (date, slot) pair from
// availability.  At most one closure exists per pair; it maps to a row in
// the `closed_slots` table.
type Closure struct {
    ID        uint64
    Date      time.Time
    Slot      string
    Reason    string
    CreatedBy uint64
    CreatedAt time.Time
}

// ClosureView is a closure joined with its creator's display name.
type ClosureView struct {
    Closure
    CreatedByName string
}
