package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// OperatorHandler gives dock operators a read-only view.
type OperatorHandler struct {
    svc SlotService
}

func NewOperatorHandler(svc SlotService) *OperatorHandler {
    if svc == nil {
        panic("nil service passed to NewOperatorHandler")
    }
    return &OperatorHandler{svc: svc}
}

// Reservations handles GET /v1/operator/reservations.
func (h *OperatorHandler) Reservations(c echo.Context) error {
    list, err := h.svc.AllReservations(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"reservations": toReservationViews(list)})
}

// Clients handles GET /v1/operator/clients.
func (h *OperatorHandler) Clients(c echo.Context) error {
    list, err := h.svc.Clients(c.Request().Context())
    if err != nil {
        return respondError(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"clients": toPeople(list)})
}
