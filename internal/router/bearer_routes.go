package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
)

// RegisterUsers mounts /v1/users.  Every route needs the channel's bearer
// token in access-token and its id in channel-id; routes with :acc_id
// additionally resolve the user inside that channel.
func RegisterUsers(e *echo.Echo, d Deps) {
	h, r := d.Users, d.Reviews
	g := e.Group("/v1/users", d.ipLimit(), middleware.ChannelAccess(d.ChannelSvc, ""), d.limit())
	g.POST("", h.Create)
	g.GET("", h.List)

	u := g.Group("/:acc_id", middleware.UserInChannel(d.UserSvc, "acc_id"))
	u.GET("", h.Get)
	u.DELETE("", h.Delete)
	u.POST("/reviews", r.Create)
	u.PATCH("/reviews/:id", r.Update)
	u.DELETE("/reviews/:id", r.Delete)
}

// RegisterReviews mounts the channel-scoped review reads.
func RegisterReviews(e *echo.Echo, d Deps) {
	h := d.Reviews
	g := e.Group("/v1/reviews", d.ipLimit(), middleware.ChannelAccess(d.ChannelSvc, ""), d.limit())
	g.GET("", h.List)
	g.GET("/:id", h.Get)
}
