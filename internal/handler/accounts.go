package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/service"
)

// AccountHandler serves the /v1/accounts endpoints.  Everything except
// Register and Login expects AccountAuth to have run.
type AccountHandler struct {
	Accounts *service.AccountService
	Reviews  *service.ReviewService
}

// NewAccountHandler wires the account endpoints.  Both services must be
// non-nil.
func NewAccountHandler(accounts *service.AccountService, reviews *service.ReviewService) *AccountHandler {
	if accounts == nil || reviews == nil {
		panic("nil service passed to NewAccountHandler")
	}
	return &AccountHandler{Accounts: accounts, Reviews: reviews}
}

// ----- DTOs -----

type registerReq struct {
	Username             string `json:"username" validate:"required"`
	Email                string `json:"email" validate:"required"`
	Name                 string `json:"name" validate:"required"`
	Password             string `json:"password" validate:"required"`
	PasswordConfirmation string `json:"password_confirmation" validate:"required"`
}

type loginReq struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type updateAccountReq struct {
	Email                *string `json:"email"`
	Name                 *string `json:"name"`
	Password             *string `json:"password"`
	PasswordConfirmation *string `json:"password_confirmation"`
}

type topUpReq struct {
	Credit uint64 `json:"credit" validate:"required"`
}

type sessionResp struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Account   *model.Account `json:"account"`
}

// Register handles POST /v1/accounts/register.  New accounts start on the
// free tier with zero credit.
func (h *AccountHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Accounts.Register(ctx, service.RegisterInput{
		Username:             req.Username,
		Email:                req.Email,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "account registered", acc)
}

// Login handles POST /v1/accounts/login and returns a session token for
// the x-auth-token header.
func (h *AccountHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	tok, acc, err := h.Accounts.Login(ctx, req.Username, req.Password)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "logged in", sessionResp{Token: tok.Token, ExpiresAt: tok.Exp, Account: acc})
}

// Me handles GET /v1/accounts.
func (h *AccountHandler) Me(c echo.Context) error {
	return respond(c, http.StatusOK, "account found", middleware.AccountFrom(c))
}

// Update handles PATCH /v1/accounts.  The message names the fields that
// changed.
func (h *AccountHandler) Update(c echo.Context) error {
	var req updateAccountReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, fields, err := h.Accounts.Update(ctx, middleware.AccountFrom(c).Username, service.UpdateInput{
		Email:                req.Email,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "updated "+strings.Join(fields, ", "), acc)
}

// TopUp handles POST /v1/accounts/topup.
func (h *AccountHandler) TopUp(c echo.Context) error {
	var req topUpReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Accounts.TopUp(ctx, middleware.AccountFrom(c).Username, req.Credit)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "credit topped up", acc)
}

// Upgrade handles POST /v1/accounts/upgrade.  The upgrade cost is debited
// from the account credit.
func (h *AccountHandler) Upgrade(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()

	acc, err := h.Accounts.Upgrade(ctx, middleware.AccountFrom(c).Username)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "account upgraded to premium", acc)
}

// ListReviews handles GET /v1/accounts/reviews.  Without channel_id it
// spans every live channel the account owns.
func (h *AccountHandler) ListReviews(c echo.Context) error {
	f, err := reviewFilterFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	scope, err := h.Reviews.AccountScope(ctx, middleware.AccountFrom(c), c.QueryParam("channel_id"))
	if err != nil {
		return err
	}
	views, err := h.Reviews.List(ctx, scope, f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "reviews found", views)
}
