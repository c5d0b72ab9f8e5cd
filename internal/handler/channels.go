package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/service"
)

// ChannelHandler serves /v1/channels for authenticated accounts.
// RotateToken and Delete rely on ChannelFromPath and RequireChannelOwner
// having loaded and checked the channel.
type ChannelHandler struct {
	Channels *service.ChannelService
}

func NewChannelHandler(channels *service.ChannelService) *ChannelHandler {
	if channels == nil {
		panic("nil service passed to NewChannelHandler")
	}
	return &ChannelHandler{Channels: channels}
}

type createChannelReq struct {
	Name       string `json:"name" validate:"required,max=255"`
	UserPrefix string `json:"user_prefix"`
}

// Create handles POST /v1/channels.  The plaintext access token is only
// ever returned here and by RotateToken.
func (h *ChannelHandler) Create(c echo.Context) error {
	var req createChannelReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	ch, token, err := h.Channels.Create(ctx, middleware.AccountFrom(c), req.Name, req.UserPrefix)
	if err != nil {
		return err
	}
	v := newChannelView(ch)
	v.AccessToken = token
	return respond(c, http.StatusCreated, "channel created", v)
}

// List handles GET /v1/channels?name=... or ?id=...
func (h *ChannelHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	chs, err := h.Channels.List(ctx, middleware.AccountFrom(c), c.QueryParam("name"), c.QueryParam("id"))
	if err != nil {
		return err
	}
	out := make([]channelView, len(chs))
	for i, ch := range chs {
		out[i] = newChannelView(ch)
	}
	return respond(c, http.StatusOK, "channels found", out)
}

// RotateToken handles POST /v1/channels/:id/generate-token.  The previous
// token stops working immediately.
func (h *ChannelHandler) RotateToken(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	ch := middleware.ChannelFrom(c)
	token, err := h.Channels.RotateToken(ctx, ch)
	if err != nil {
		return err
	}
	v := newChannelView(ch)
	v.AccessToken = token
	return respond(c, http.StatusOK, "access token regenerated", v)
}

// Delete handles DELETE /v1/channels/:id.
func (h *ChannelHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Channels.Delete(ctx, middleware.ChannelFrom(c)); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "channel deleted", nil)
}
