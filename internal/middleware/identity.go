package middleware

// identity.go stores and retrieves the principals resolved by the auth
// middleware.  Handlers read them through the typed getters below instead of
// raw context keys.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/utils"
)

const (
	accountKey = "account"
	channelKey = "channel"
	userKey    = "channel_user"
)

// AccountFrom returns the authenticated account or nil.
func AccountFrom(c echo.Context) *model.Account {
	a, _ := c.Get(accountKey).(*model.Account)
	return a
}

// ChannelFrom returns the channel resolved for the request or nil.
func ChannelFrom(c echo.Context) *model.Channel {
	ch, _ := c.Get(channelKey).(*model.Channel)
	return ch
}

// UserFrom returns the channel user resolved from the path or nil.
func UserFrom(c echo.Context) *model.User {
	u, _ := c.Get(userKey).(*model.User)
	return u
}

// principal names who is calling for logs and rate limit keys.  It returns
// "guest" when nothing has been authenticated yet.
func principal(c echo.Context) string {
	if a := AccountFrom(c); a != nil {
		return "account:" + a.Username
	}
	if ch := ChannelFrom(c); ch != nil {
		return "channel:" + utils.EncodeChannelID(ch.ID)
	}
	return "guest"
}
