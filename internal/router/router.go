package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/handler"
	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/service"
)

// Deps carries what the route groups need: the handlers, the services the
// auth middleware consults, and the rate limiters.  IPLimit runs before the
// auth gates and Limit after them; either may be nil.
type Deps struct {
	Accounts *handler.AccountHandler
	Channels *handler.ChannelHandler
	Users    *handler.UserHandler
	Reviews  *handler.ReviewHandler

	AccountSvc *service.AccountService
	ChannelSvc *service.ChannelService
	UserSvc    *service.UserService

	IPLimit echo.MiddlewareFunc
	Limit   echo.MiddlewareFunc
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func (d Deps) limit() echo.MiddlewareFunc {
	if d.Limit == nil {
		return passthrough
	}
	return d.Limit
}

func (d Deps) ipLimit() echo.MiddlewareFunc {
	if d.IPLimit == nil {
		return passthrough
	}
	return d.IPLimit
}

// Register mounts every route of the API on e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e)
	RegisterAccounts(e, d)
	RegisterChannels(e, d)
	RegisterUsers(e, d)
	RegisterReviews(e, d)
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check for load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAccounts mounts /v1/accounts.  Register and login are public; the
// rest need a session token.  Every route is limited per client IP before
// the session is checked and, once authenticated, per account.
func RegisterAccounts(e *echo.Echo, d Deps) {
	a := d.Accounts
	g := e.Group("/v1/accounts", d.ipLimit())
	g.POST("/register", a.Register, d.limit())
	g.POST("/login", a.Login, d.limit())

	auth := []echo.MiddlewareFunc{middleware.AccountAuth(d.AccountSvc), d.limit()}
	g.GET("", a.Me, auth...)
	g.PATCH("", a.Update, auth...)
	g.POST("/topup", a.TopUp, auth...)
	g.POST("/upgrade", a.Upgrade, auth...)
	// Elevated listing across every channel the account owns.
	g.GET("/reviews", a.ListReviews, auth...)
}
