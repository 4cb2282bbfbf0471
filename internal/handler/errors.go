package handler

import (
    "context"
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/dock-slot-reservation/internal/service"
)

const (
    codeValidation      = "validation_error"
    codeInvalidBody     = "invalid_request_body"
    codeInvalidID       = "invalid_id"
    codeInvalidDate     = "invalid_date"
    codeSlotUnavailable = "slot_unavailable"
    codeConflict        = "conflict"
    codeNotFound        = "not_found"
    codeForbidden       = "forbidden"
    codeUnauthorized    = "unauthorized"
    codeInternalError   = "internal_error"
)

func writeError(c echo.Context, status int, code, msg string) error {
    return c.JSON(status, echo.Map{"error": msg, "code": code})
}

// statusFor maps resolver errors onto HTTP statuses and error codes.
// Persistence failures are reported as an opaque 500.
func statusFor(err error) (int, string, string) {
    var ve *service.ValidationError
    switch {
    case errors.As(err, &ve):
        return http.StatusBadRequest, codeValidation, ve.Message
    case errors.Is(err, service.ErrSlotUnavailable):
        return http.StatusConflict, codeSlotUnavailable, "slot unavailable"
    case errors.Is(err, service.ErrConflict):
        return http.StatusConflict, codeConflict, "slot already closed or reserved"
    case errors.Is(err, service.ErrNotFound):
        return http.StatusNotFound, codeNotFound, "not found"
    case errors.Is(err, service.ErrForbidden):
        return http.StatusForbidden, codeForbidden, "forbidden"
    case errors.Is(err, context.DeadlineExceeded):
        return http.StatusGatewayTimeout, codeInternalError, "request timed out"
    default:
        return http.StatusInternalServerError, codeInternalError, "internal error"
    }
}

func respondError(c echo.Context, err error) error {
    status, code, msg := statusFor(err)
    body := echo.Map{"error": msg, "code": code}
    var ve *service.ValidationError
    if errors.As(err, &ve) {
        body["field"] = ve.Field
    }
    return c.JSON(status, body)
}
