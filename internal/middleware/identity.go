package middleware

import (
    "strconv"

    "github.com/labstack/echo/v4"
)

// UserID returns the authenticated subject stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
    id, ok := c.Get(ctxUserID).(uint64)
    return id, ok && id != 0
}

// Role returns the authenticated role, or "" for anonymous requests.
func Role(c echo.Context) string {
    r, _ := c.Get(ctxRole).(string)
    return r
}

// identityKey identifies the caller for rate limiting: the user id when
// authenticated, "guest" otherwise.
func identityKey(c echo.Context) string {
    if id, ok := UserID(c); ok {
        return strconv.FormatUint(id, 10)
    }
    return "guest"
}
