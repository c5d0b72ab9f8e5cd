package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
)

// RegisterChannels mounts /v1/channels for authenticated accounts.  Routes
// naming a channel in the path load it and require the caller to own it.
func RegisterChannels(e *echo.Echo, d Deps) {
	h := d.Channels
	g := e.Group("/v1/channels", d.ipLimit(), middleware.AccountAuth(d.AccountSvc), d.limit())
	g.POST("", h.Create)
	g.GET("", h.List)

	owner := []echo.MiddlewareFunc{
		middleware.ChannelFromPath(d.ChannelSvc, "id"),
		middleware.RequireChannelOwner(d.ChannelSvc),
	}
	g.POST("/:id/generate-token", h.RotateToken, owner...)
	g.DELETE("/:id", h.Delete, owner...)
}
