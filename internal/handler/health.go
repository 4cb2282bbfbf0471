package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http" // net/http provides status codes and response helpers
    "time"

    "github.com/labstack/echo/v4" // echo is the web framework used for this project
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
    PingContext(ctx context.Context) error
}

// Health is a health-check endpoint used by load balancers and monitoring
// systems.  It answers 200 "ok" while the database responds and 503
// otherwise.  A nil db only reports that the process is up.
func Health(db Pinger) echo.HandlerFunc {
    return func(c echo.Context) error {
        if db == nil {
            return c.String(http.StatusOK, "ok")
        }
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        if err := db.PingContext(ctx); err != nil {
            return c.String(http.StatusServiceUnavailable, "database unavailable")
        }
        return c.String(http.StatusOK, "ok")
    }
}
