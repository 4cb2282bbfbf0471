package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/dock-slot-reservation/internal/handler"    // HTTP handlers over the slot resolver
	"github.com/iliyamo/dock-slot-reservation/internal/middleware" // JWT authentication, role enforcement, rate limit, cache
	"github.com/iliyamo/dock-slot-reservation/internal/model"
)

// Deps bundles what the route groups need.  DB may be nil, in which case
// the health check only reports liveness.
type Deps struct {
	DB        *sql.DB
	JWTSecret string
	Public    *handler.PublicHandler
	Client    *handler.ClientHandler
	Admin     *handler.AdminHandler
	Operator  *handler.OperatorHandler
	RateLimit echo.MiddlewareFunc
	Cache     echo.MiddlewareFunc
}

// Register mounts every route on e.
func Register(e *echo.Echo, d Deps) {
	RegisterPublic(e, d)
	RegisterClient(e, d)
	RegisterAdmin(e, d)
	RegisterOperator(e, d)
}

// RegisterPublic registers the routes that do not require authentication,
// plus the schedule board that any signed-in role may read.
func RegisterPublic(e *echo.Echo, d Deps) {
	if d.DB != nil {
		e.GET("/healthz", handler.Health(d.DB))
	} else {
		e.GET("/healthz", handler.Health(nil))
	}

	pub := e.Group("/v1", passThrough(d.RateLimit))
	// Availability answers are cached per date until the next write.
	pub.GET("/slots/:date", d.Public.AvailableSlots, passThrough(d.Cache))
	pub.GET("/calendar", d.Public.Calendar)

	board := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleClient, model.RoleOperator, model.RoleAdmin),
		passThrough(d.RateLimit),
	)
	board.GET("/schedule", d.Public.Schedule)
}

// RegisterClient registers requester endpoints.  All routes require a
// valid JWT with the client role.
func RegisterClient(e *echo.Echo, d Deps) {
	g := e.Group("/v1",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleClient),
		passThrough(d.RateLimit),
	)
	g.POST("/reservations", d.Client.Book)
	g.GET("/my-reservations", d.Client.MyReservations)
	g.POST("/reservations/:id/cancel", d.Client.Cancel)
}

// RegisterAdmin registers closure management and the full ledger view
// under /v1/admin.
func RegisterAdmin(e *echo.Echo, d Deps) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin),
		passThrough(d.RateLimit),
	)
	g.GET("/reservations", d.Admin.ListReservations)
	g.GET("/reservations/date/:date", d.Admin.ReservationsByDate)
	g.POST("/reservations/:id/cancel", d.Admin.CancelReservation)

	g.GET("/closures", d.Admin.ListClosures)
	g.POST("/closures", d.Admin.CloseSlot)
	g.POST("/closures/reopen", d.Admin.Reopen)
	g.DELETE("/closures/:id", d.Admin.DeleteClosure)
}

// RegisterOperator registers the read-only operator dashboard.
func RegisterOperator(e *echo.Echo, d Deps) {
	g := e.Group("/v1/operator",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleOperator, model.RoleAdmin),
		passThrough(d.RateLimit),
	)
	g.GET("/reservations", d.Operator.Reservations)
	g.GET("/clients", d.Operator.Clients)
}

func passThrough(mw echo.MiddlewareFunc) echo.MiddlewareFunc {
	if mw == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	return mw
}
