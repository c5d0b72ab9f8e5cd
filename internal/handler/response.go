package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/utils"
)

// envelope wraps every successful response.
type envelope struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, code int, msg string, data any) error {
	return c.JSON(code, envelope{Message: msg, Data: data})
}

// bindAndValidate binds the request into dst and runs the registered
// validator.  A body that cannot be decoded is a 400.
func bindAndValidate(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	return c.Validate(dst)
}

type channelView struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	UserPrefix      string    `json:"user_prefix"`
	AccountUsername string    `json:"account_username"`
	AccessToken     string    `json:"access_token,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newChannelView(ch *model.Channel) channelView {
	return channelView{
		ID:              utils.EncodeChannelID(ch.ID),
		Name:            ch.Name,
		UserPrefix:      ch.UserPrefix,
		AccountUsername: ch.AccountUsername,
		CreatedAt:       ch.CreatedAt,
		UpdatedAt:       ch.UpdatedAt,
	}
}

type userView struct {
	AccID     string    `json:"acc_id"`
	ChannelID string    `json:"channel_id"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u *model.User) userView {
	return userView{AccID: u.AccID, ChannelID: utils.EncodeChannelID(u.ChannelID), CreatedAt: u.CreatedAt}
}

func newUserViews(users []*model.User) []userView {
	out := make([]userView, len(users))
	for i, u := range users {
		out[i] = newUserView(u)
	}
	return out
}
