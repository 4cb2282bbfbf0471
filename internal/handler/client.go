package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/calendar"
    "github.com/iliyamo/dock-slot-reservation/internal/model"
    "github.com/iliyamo/dock-slot-reservation/internal/service"
)

// ClientHandler serves the requester's own bookings.  All methods assume
// JWTAuth and RequireRole already ran.
type ClientHandler struct {
    svc SlotService
}

func NewClientHandler(svc SlotService) *ClientHandler {
    if svc == nil {
        panic("nil service passed to NewClientHandler")
    }
    return &ClientHandler{svc: svc}
}

type bookRequest struct {
    Date            string  `json:"date"`
    Slot            string  `json:"slot"`
    ContainerNumber *string `json:"containerNumber"`
    AttachmentRef   *string `json:"attachmentRef"`
}

// Book handles POST /v1/reservations.  When the slot is taken or the input
// is rejected for a well-formed date, the response carries the date's
// current availableSlots so the caller can pick again.
func (h *ClientHandler) Book(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    var body bookRequest
    if err := c.Bind(&body); err != nil {
        return writeError(c, http.StatusBadRequest, codeInvalidBody, "invalid request body")
    }
    date, err := calendar.ParseDate(body.Date)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD", "code": codeInvalidDate, "field": "date"})
    }

    ctx := c.Request().Context()
    id, err := h.svc.Book(ctx, userID, date, strings.TrimSpace(body.Slot), model.ReservationMetadata{
        ContainerNumber: body.ContainerNumber,
        AttachmentRef:   body.AttachmentRef,
    })
    if err != nil {
        if !errors.Is(err, service.ErrSlotUnavailable) && !errors.Is(err, service.ErrValidation) {
            return respondError(c, err)
        }
        status, code, msg := statusFor(err)
        resp := echo.Map{"error": msg, "code": code}
        var ve *service.ValidationError
        if errors.As(err, &ve) {
            resp["field"] = ve.Field
        }
        if slots, lerr := h.svc.AvailableSlots(ctx, date); lerr == nil {
            resp["availableSlots"] = slots
        }
        return c.JSON(status, resp)
    }
    return c.JSON(http.StatusCreated, echo.Map{"reservationId": id})
}

// MyReservations handles GET /v1/my-reservations.
func (h *ClientHandler) MyReservations(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    list, err := h.svc.MyReservations(c.Request().Context(), userID)
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": toReservations(list)})
}

// Cancel handles POST /v1/reservations/:id/cancel.  Only the requester who
// made the reservation may cancel it this way.
func (h *ClientHandler) Cancel(c echo.Context) error {
    userID, err := getUserID(c)
    if err != nil {
        return writeError(c, http.StatusUnauthorized, codeUnauthorized, "unauthorized")
    }
    id, ok := parseID(c, "id")
    if !ok {
        return writeError(c, http.StatusBadRequest, codeInvalidID, "invalid reservation id")
    }
    if err := h.svc.Cancel(c.Request().Context(), id, userID); err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"ok": true})
}
