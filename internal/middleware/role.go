package middleware

import (
	"github.com/labstack/echo/v4"
)

// RequireChannelOwner enforces that the authenticated account owns the
// request's channel.  It composes after AccountAuth and ChannelFromPath and
// aborts with the loader's authorization error otherwise.
func RequireChannelOwner(loader ChannelLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := loader.Authorize(AccountFrom(c), ChannelFrom(c)); err != nil {
				return err
			}
			return next(c)
		}
	}
}
