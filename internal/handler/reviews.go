package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/review-channels/internal/middleware"
	"github.com/iliyamo/review-channels/internal/service"
)

// ReviewHandler serves review writes under /v1/users/:acc_id/reviews and
// the channel-scoped reads under /v1/reviews.
type ReviewHandler struct {
	Reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	if reviews == nil {
		panic("nil service passed to NewReviewHandler")
	}
	return &ReviewHandler{Reviews: reviews}
}

type createReviewReq struct {
	Rating     *int    `json:"rating" validate:"required"`
	Review     *string `json:"review"`
	Screenshot *string `json:"screenshot"`
	GameID     *uint64 `json:"game_id"`
	GameName   string  `json:"game_name"`
	First      bool    `json:"first"`
}

type updateReviewReq struct {
	Rating     *int    `json:"rating"`
	Review     *string `json:"review"`
	Screenshot *string `json:"screenshot"`
}

// Create handles POST /v1/users/:acc_id/reviews.  When game_name matches
// several games and first is not set the response is 300 with the
// candidates.
func (h *ReviewHandler) Create(c echo.Context) error {
	var req createReviewReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Reviews.Create(ctx, middleware.ChannelFrom(c), middleware.UserFrom(c), service.CreateReviewInput{
		Rating:     *req.Rating,
		Review:     req.Review,
		Screenshot: req.Screenshot,
		GameID:     req.GameID,
		GameName:   req.GameName,
		First:      req.First,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "review created", v)
}

// Update handles PATCH /v1/users/:acc_id/reviews/:id.
func (h *ReviewHandler) Update(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	var req updateReviewReq
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Reviews.Update(ctx, middleware.UserFrom(c), id, service.UpdateReviewInput{
		Rating:     req.Rating,
		Review:     req.Review,
		Screenshot: req.Screenshot,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review updated", v)
}

// Delete handles DELETE /v1/users/:acc_id/reviews/:id.
func (h *ReviewHandler) Delete(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if err := h.Reviews.Delete(ctx, middleware.UserFrom(c), id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review deleted", nil)
}

// List handles GET /v1/reviews.  Filters are ANDed; with none every live
// review of the channel is returned, newest first.
func (h *ReviewHandler) List(c echo.Context) error {
	f, err := reviewFilterFrom(c)
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	views, err := h.Reviews.List(ctx, service.ChannelScope(middleware.ChannelFrom(c)), f)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "reviews found", views)
}

// Get handles GET /v1/reviews/:id.  Reviews of deleted users are still
// returned.
func (h *ReviewHandler) Get(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	v, err := h.Reviews.Get(ctx, service.ChannelScope(middleware.ChannelFrom(c)), id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "review found", v)
}

// reviewFilterFrom reads the review listing filters from the query string.
func reviewFilterFrom(c echo.Context) (service.ReviewFilter, error) {
	var f service.ReviewFilter
	if raw := strings.TrimSpace(c.QueryParam("game_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return f, echo.NewHTTPError(http.StatusUnprocessableEntity, "game_id must be a positive integer")
		}
		f.GameID = &id
	}
	f.GameName = c.QueryParam("game_name")
	f.First = queryBool(c, "first")
	f.AccID = c.QueryParam("acc_id")

	var err error
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return f, err
	}
	return f, nil
}
