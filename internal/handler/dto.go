package handler

import (
    "time"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/model"
)

// reservationResponse is the wire shape of a reservation.  Dates travel as
// YYYY-MM-DD and timestamps as RFC 3339 in UTC.
type reservationResponse struct {
    ID                uint64  `json:"id"`
    RequesterID       uint64  `json:"requesterId"`
    Date              string  `json:"date"`
    Slot              string  `json:"slot"`
    Status            string  `json:"status"`
    ContainerNumber   *string `json:"containerNumber,omitempty"`
    AttachmentRef     *string `json:"attachmentRef,omitempty"`
    CreatedAt         string  `json:"createdAt"`
    RequesterName     string  `json:"requesterName,omitempty"`
    RequesterUsername string  `json:"requesterUsername,omitempty"`
    RequesterContact  *string `json:"requesterContact,omitempty"`
}

func toReservation(r model.Reservation) reservationResponse {
    return reservationResponse{
        ID:              r.ID,
        RequesterID:     r.RequesterID,
        Date:            calendar.FormatDate(r.Date),
        Slot:            r.Slot,
        Status:          string(r.Status),
        ContainerNumber: r.Metadata.ContainerNumber,
        AttachmentRef:   r.Metadata.AttachmentRef,
        CreatedAt:       r.CreatedAt.UTC().Format(time.RFC3339),
    }
}

func toReservations(rs []model.Reservation) []reservationResponse {
    out := make([]reservationResponse, 0, len(rs))
    for _, r := range rs {
        out = append(out, toReservation(r))
    }
    return out
}

func toReservationViews(vs []model.ReservationView) []reservationResponse {
    out := make([]reservationResponse, 0, len(vs))
    for _, v := range vs {
        r := toReservation(v.Reservation)
        r.RequesterName = v.RequesterName
        r.RequesterUsername = v.RequesterUsername
        r.RequesterContact = v.RequesterContact
        out = append(out, r)
    }
    return out
}

type closureResponse struct {
    ID            uint64 `json:"id"`
    Date          string `json:"date"`
    Slot          string `json:"slot"`
    Reason        string `json:"reason"`
    CreatedBy     uint64 `json:"createdBy"`
    CreatedByName string `json:"createdByName,omitempty"`
    CreatedAt     string `json:"createdAt"`
}

func toClosures(vs []model.ClosureView) []closureResponse {
    out := make([]closureResponse, 0, len(vs))
    for _, v := range vs {
        out = append(out, closureResponse{
            ID:            v.ID,
            Date:          calendar.FormatDate(v.Date),
            Slot:          v.Slot,
            Reason:        v.Reason,
            CreatedBy:     v.CreatedBy,
            CreatedByName: v.CreatedByName,
            CreatedAt:     v.CreatedAt.UTC().Format(time.RFC3339),
        })
    }
    return out
}

type personResponse struct {
    ID       uint64  `json:"id"`
    Username string  `json:"username"`
    Name     string  `json:"name"`
    Role     string  `json:"role"`
    Contact  *string `json:"contact,omitempty"`
}

func toPeople(ps []model.Person) []personResponse {
    out := make([]personResponse, 0, len(ps))
    for _, p := range ps {
        out = append(out, personResponse{ID: p.ID, Username: p.Username, Name: p.Name, Role: p.Role, Contact: p.Contact})
    }
    return out
}

type slotStatusResponse struct {
    Slot          string   `json:"slot"`
    State         string   `json:"state"`
    ReservationID *uint64  `json:"reservationId,omitempty"`
    ClosureID     *uint64  `json:"closureId,omitempty"`
    CancelledIDs  []uint64 `json:"cancelledIds"`
}

type dayScheduleResponse struct {
    Date  string               `json:"date"`
    Slots []slotStatusResponse `json:"slots"`
}

func toSchedule(days []model.DaySchedule) []dayScheduleResponse {
    out := make([]dayScheduleResponse, 0, len(days))
    for _, d := range days {
        day := dayScheduleResponse{Date: calendar.FormatDate(d.Date), Slots: make([]slotStatusResponse, 0, len(d.Slots))}
        for _, s := range d.Slots {
            cancelled := s.CancelledIDs
            if cancelled == nil {
                cancelled = []uint64{}
            }
            day.Slots = append(day.Slots, slotStatusResponse{
                Slot: s.Slot, State: string(s.State), ReservationID: s.ReservationID, ClosureID: s.ClosureID,
                CancelledIDs: cancelled,
            })
        }
        out = append(out, day)
    }
    return out
}
