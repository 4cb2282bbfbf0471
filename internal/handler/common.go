package handler // handler defines http handlers

import (
    "context"
    "errors"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/middleware"
    "github.com/iliyamo/dock-slot-reservation/internal/model"
)

// SlotService is the availability resolver as seen by the HTTP layer.
type SlotService interface {
    Catalog() model.SlotCatalog
    AvailableSlots(ctx context.Context, date time.Time) ([]string, error)
    BookableDates() []time.Time
    Horizon(start time.Time, days int) []time.Time
    Book(ctx context.Context, requesterID uint64, date time.Time, slot string, meta model.ReservationMetadata) (uint64, error)
    Cancel(ctx context.Context, reservationID, requesterID uint64) error
    AdminCancel(ctx context.Context, reservationID, actorID uint64) error
    Close(ctx context.Context, date time.Time, slot, reason string, actorID uint64) (uint64, error)
    Reopen(ctx context.Context, closureID, actorID uint64) error
    ReopenByDateSlot(ctx context.Context, date time.Time, slot string, actorID uint64) error
    ListClosures(ctx context.Context, start time.Time, days int) ([]model.ClosureView, error)
    MyReservations(ctx context.Context, requesterID uint64) ([]model.Reservation, error)
    ReservationsByDate(ctx context.Context, date time.Time) ([]model.Reservation, error)
    AllReservations(ctx context.Context) ([]model.ReservationView, error)
    Clients(ctx context.Context) ([]model.Person, error)
    Schedule(ctx context.Context, start time.Time, days int) ([]model.DaySchedule, error)
}

var errNoUser = errors.New("invalid user_id in context")

// getUserID returns the authenticated subject set by middleware.JWTAuth.
func getUserID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, errNoUser
    }
    return id, nil
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
    n, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || n == 0 {
        return 0, false
    }
    return n, true
}

// parseWindow reads ?start=YYYY-MM-DD&days=N.  A missing start means today
// and a missing days means def.
func parseWindow(c echo.Context, today time.Time, def int) (time.Time, int, error) {
    start := calendar.Day(today)
    if s := strings.TrimSpace(c.QueryParam("start")); s != "" {
        d, err := calendar.ParseDate(s)
        if err != nil {
            return time.Time{}, 0, err
        }
        start = d
    }
    days := def
    if s := strings.TrimSpace(c.QueryParam("days")); s != "" {
        n, err := strconv.Atoi(s)
        if err != nil {
            return time.Time{}, 0, err
        }
        days = n
    }
    return start, days, nil
}

func formatDates(ds []time.Time) []string {
    out := make([]string, 0, len(ds))
    for _, d := range ds {
        out = append(out, calendar.FormatDate(d))
    }
    return out
}
