package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/model"
)

// Header names understood by the auth middleware.
const (
	HeaderSessionToken = "x-auth-token"
	HeaderAccessToken  = "access-token"
	HeaderChannelID    = "channel-id"
)

// AccountAuthenticator resolves a session token to a live account.
type AccountAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*model.Account, error)
}

// ChannelAccessor verifies a channel bearer token.
type ChannelAccessor interface {
	Access(ctx context.Context, externalID, token string) (*model.Channel, error)
}

// ChannelLoader resolves channels by external id and checks ownership.
type ChannelLoader interface {
	Get(ctx context.Context, externalID string) (*model.Channel, error)
	Authorize(acc *model.Account, ch *model.Channel) error
}

// UserResolver finds a live user of a channel by acc_id.
type UserResolver interface {
	Get(ctx context.Context, ch *model.Channel, accID string) (*model.User, error)
}

// AccountAuth reads the session token from the x-auth-token header and
// attaches the account it names.  Failures are returned to the error
// handler unchanged so the response keeps the standard envelope.
func AccountAuth(auth AccountAuthenticator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := strings.TrimSpace(c.Request().Header.Get(HeaderSessionToken))
			acc, err := auth.Authenticate(c.Request().Context(), token)
			if err != nil {
				return err
			}
			c.Set(accountKey, acc)
			return next(c)
		}
	}
}

// ChannelAccess authenticates a bearer of a channel token.  The channel is
// named by the channel-id header, or by the route parameter param when the
// header is absent.
func ChannelAccess(access ChannelAccessor, param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Request().Header
			id := strings.TrimSpace(h.Get(HeaderChannelID))
			if id == "" && param != "" {
				id = c.Param(param)
			}
			ch, err := access.Access(c.Request().Context(), id, strings.TrimSpace(h.Get(HeaderAccessToken)))
			if err != nil {
				return err
			}
			c.Set(channelKey, ch)
			return next(c)
		}
	}
}

// ChannelFromPath loads the channel named by the route parameter param.
func ChannelFromPath(loader ChannelLoader, param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ch, err := loader.Get(c.Request().Context(), c.Param(param))
			if err != nil {
				return err
			}
			c.Set(channelKey, ch)
			return next(c)
		}
	}
}

// UserInChannel resolves the route parameter param as an acc_id of the
// request's channel.  It must run after ChannelAccess or ChannelFromPath.
func UserInChannel(users UserResolver, param string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ch := ChannelFrom(c)
			if ch == nil {
				return echo.ErrUnauthorized
			}
			u, err := users.Get(c.Request().Context(), ch, c.Param(param))
			if err != nil {
				return err
			}
			c.Set(userKey, u)
			return next(c)
		}
	}
}
