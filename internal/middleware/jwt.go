package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/iliyamo/dock-slot-reservation/internal/utils"
)

// Context keys set by JWTAuth.
const (
    ctxUserID = "user_id"
    ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used when issuing tokens.  Handlers
// read the authenticated identity through UserID and Role.
func JWTAuth(secret string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "unauthorized"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            // Only HS256 signatures made with our secret are accepted.
            id, err := utils.ParseAccessToken(secret, raw)
            if err != nil {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "unauthorized"})
            }

            c.Set(ctxUserID, id.UserID)
            c.Set(ctxRole, id.Role)
            return next(c)
        }
    }
}
