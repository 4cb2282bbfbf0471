package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/clock"
)

// PublicHandler serves availability reads.  None of them need a session
// except Schedule, which the router mounts behind JWTAuth.
type PublicHandler struct {
    svc   SlotService
    clock clock.Clock
}

func NewPublicHandler(svc SlotService, clk clock.Clock) *PublicHandler {
    if svc == nil {
        panic("nil service passed to NewPublicHandler")
    }
    if clk == nil {
        clk = clock.NewSystem()
    }
    return &PublicHandler{svc: svc, clock: clk}
}

// AvailableSlots handles GET /v1/slots/:date.  Weekend dates and dates
// outside the booking horizon simply have no slots.
func (h *PublicHandler) AvailableSlots(c echo.Context) error {
    date, err := calendar.ParseDate(c.Param("date"))
    if err != nil {
        return writeError(c, http.StatusBadRequest, codeInvalidDate, "date must be YYYY-MM-DD")
    }
    slots, err := h.svc.AvailableSlots(c.Request().Context(), date)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{
        "date":           calendar.FormatDate(date),
        "availableSlots": slots,
    })
}

// Calendar handles GET /v1/calendar.  Without query parameters it returns
// the dates a requester may currently pick; with ?start and ?days it lists
// the business days of that window.
func (h *PublicHandler) Calendar(c echo.Context) error {
    if c.QueryParam("start") == "" && c.QueryParam("days") == "" {
        return c.JSON(http.StatusOK, echo.Map{
            "dates": formatDates(h.svc.BookableDates()),
            "slots": h.svc.Catalog().Labels(),
        })
    }
    start, days, err := parseWindow(c, h.clock.Now(), calendar.DefaultHorizonDays)
    if err != nil {
        return writeError(c, http.StatusBadRequest, codeValidation, "start must be YYYY-MM-DD and days an integer")
    }
    if days < 1 || days > 62 {
        return writeError(c, http.StatusBadRequest, codeValidation, "days must be between 1 and 62")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "dates": formatDates(h.svc.Horizon(start, days)),
        "slots": h.svc.Catalog().Labels(),
    })
}

// Schedule handles GET /v1/schedule: the per-slot board of a window.
func (h *PublicHandler) Schedule(c echo.Context) error {
    start, days, err := parseWindow(c, h.clock.Now(), calendar.DefaultHorizonDays)
    if err != nil {
        return writeError(c, http.StatusBadRequest, codeValidation, "start must be YYYY-MM-DD and days an integer")
    }
    board, err := h.svc.Schedule(c.Request().Context(), start, days)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"days": toSchedule(board)})
}
