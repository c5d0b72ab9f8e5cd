package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/service"
)

// UserHandler serves /v1/users.  ChannelAccess has resolved the channel
// from the bearer token; routes with :acc_id also pass UserInChannel.
type UserHandler struct {
	Users *service.UserService
}

func NewUserHandler(users *service.UserService) *UserHandler {
	if users == nil {
		panic("nil service passed to NewUserHandler")
	}
	return &UserHandler{Users: users}
}

type allocateReq struct {
	Amount *int `json:"amount"`
}

// Create handles POST /v1/users.  An empty body allocates one user.
func (h *UserHandler) Create(c echo.Context) error {
	var req allocateReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, "amount must be a positive integer")
		}
	}
	n := 1
	if req.Amount != nil {
		n = *req.Amount
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.Allocate(ctx, middleware.ChannelFrom(c), n)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "users created", newUserViews(users))
}

// List handles GET /v1/users?limit=&offset=.
func (h *UserHandler) List(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	users, err := h.Users.List(ctx, middleware.ChannelFrom(c), limit, offset)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "users found", newUserViews(users))
}

// Get handles GET /v1/users/:acc_id.
func (h *UserHandler) Get(c echo.Context) error {
	return respond(c, http.StatusOK, "user found", newUserView(middleware.UserFrom(c)))
}

// Delete handles DELETE /v1/users/:acc_id.  The user drops out of the
// live count, so a deleted tail acc_id is handed out again by the next
// allocation.
func (h *UserHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Users.Delete(ctx, middleware.ChannelFrom(c), middleware.UserFrom(c)); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "user deleted", nil)
}
