package handler

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/clock"
)

// AdminHandler serves closures and the full reservation ledger.
type AdminHandler struct {
    svc   SlotService
    clock clock.Clock
}

func NewAdminHandler(svc SlotService, clk clock.Clock) *AdminHandler {
    if svc == nil {
        panic("nil service passed to NewAdminHandler")
    }
    if clk == nil {
        clk = clock.NewSystem()
    }
    return &AdminHandler{svc: svc, clock: clk}
}

// ListReservations handles GET /v1/admin/reservations.
func (h *AdminHandler) ListReservations(c echo.Context) error {
    list, err := h.svc.AllReservations(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": toReservationViews(list)})
}

// ReservationsByDate handles GET /v1/admin/reservations/date/:date.
func (h *AdminHandler) ReservationsByDate(c echo.Context) error {
    date, err := calendar.ParseDate(c.Param("date"))
    if err != nil {
        return writeError(c, http.StatusBadRequest, codeInvalidDate, "date must be YYYY-MM-DD")
    }
    list, err := h.svc.ReservationsByDate(c.Request().Context(), date)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"date": calendar.FormatDate(date), "reservations": toReservations(list)})
}

// CancelReservation handles POST /v1/admin/reservations/:id/cancel.
func (h *AdminHandler) CancelReservation(c echo.Context) error {
    adminID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    id, ok := parseID(c, "id")
    if !ok {
        return writeError(c, http.StatusBadRequest, codeInvalidID, "invalid reservation id")
    }
    if err := h.svc.AdminCancel(c.Request().Context(), id, adminID); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// ListClosures handles GET /v1/admin/closures?start=&days=.
func (h *AdminHandler) ListClosures(c echo.Context) error {
    start, days, err := parseWindow(c, h.clock.Now(), calendar.DefaultHorizonDays)
    if err != nil {
        return writeError(c, http.StatusBadRequest, codeValidation, "start must be YYYY-MM-DD and days an integer")
    }
    list, err := h.svc.ListClosures(c.Request().Context(), start, days)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"closures": toClosures(list)})
}

type closeRequest struct {
    Date   string `json:"date"`
    Slot   string `json:"slot"`
    Reason string `json:"reason"`
}

// CloseSlot handles POST /v1/admin/closures.
func (h *AdminHandler) CloseSlot(c echo.Context) error {
    adminID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    var body closeRequest
    if err := c.Bind(&body); err != nil {
        return writeError(c, http.StatusBadRequest, codeInvalidBody, "invalid request body")
    }
    date, err := calendar.ParseDate(body.Date)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD", "code": codeInvalidDate, "field": "date"})
    }
    id, err := h.svc.Close(c.Request().Context(), date, strings.TrimSpace(body.Slot), body.Reason, adminID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{"closureId": id})
}

type reopenRequest struct {
    ClosureID uint64 `json:"closureId"`
    Date      string `json:"date"`
    Slot      string `json:"slot"`
}

// Reopen handles POST /v1/admin/closures/reopen with either {closureId}
// or {date, slot}.
func (h *AdminHandler) Reopen(c echo.Context) error {
    adminID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    var body reopenRequest
    if err := c.Bind(&body); err != nil {
        return writeError(c, http.StatusBadRequest, codeInvalidBody, "invalid request body")
    }
    ctx := c.Request().Context()
    switch {
    case body.ClosureID != 0:
        err = h.svc.Reopen(ctx, body.ClosureID, adminID)
    case body.Date != "" && body.Slot != "":
        date, perr := calendar.ParseDate(body.Date)
        if perr != nil {
            return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD", "code": codeInvalidDate, "field": "date"})
        }
        err = h.svc.ReopenByDateSlot(ctx, date, strings.TrimSpace(body.Slot), adminID)
    default:
        return writeError(c, http.StatusBadRequest, codeValidation, "closureId or date and slot are required")
    }
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// DeleteClosure handles DELETE /v1/admin/closures/:id.
func (h *AdminHandler) DeleteClosure(c echo.Context) error {
    adminID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    id, ok := parseID(c, "id")
    if !ok {
        return writeError(c, http.StatusBadRequest, codeInvalidID, "invalid closure id")
    }
    if err := h.svc.Reopen(c.Request().Context(), id, adminID); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
