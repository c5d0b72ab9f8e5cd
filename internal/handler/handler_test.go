package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/service"
	"github.com/iliyamo/review-channels/internal/testutil"
)

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	e.HTTPErrorHandler = ErrorHandler(testutil.QuietLogger())
	return e
}

func serve(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_ServiceKinds(t *testing.T) {
	cases := []struct {
		kind service.Kind
		want int
	}{
		{service.KindValidation, http.StatusUnprocessableEntity},
		{service.KindBadRequest, http.StatusBadRequest},
		{service.KindAuthentication, http.StatusUnauthorized},
		{service.KindAuthorization, http.StatusForbidden},
		{service.KindNotFound, http.StatusNotFound},
		{service.KindConflict, http.StatusConflict},
		{service.KindExternal, http.StatusBadRequest},
		{service.KindMultipleChoices, http.StatusMultipleChoices},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			e := newTestEcho()
			e.GET("/x", func(c echo.Context) error {
				return &service.Error{Kind: tc.kind, Message: "boom"}
			})
			rec := serve(e, http.MethodGet, "/x", "")
			assert.Equal(t, tc.want, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tc.want, body.Status)
			assert.Equal(t, "boom", body.Message)
		})
	}
}

func TestErrorHandler_Candidates(t *testing.T) {
	e := newTestEcho()
	e.GET("/x", func(c echo.Context) error {
		return &service.Error{
			Kind:       service.KindMultipleChoices,
			Message:    "several games match",
			Candidates: []model.Game{{ID: 1, Name: "Doom"}, {ID: 2, Name: "Doom II"}},
		}
	})
	rec := serve(e, http.MethodGet, "/x", "")
	require.Equal(t, http.StatusMultipleChoices, rec.Code)
	body := decodeError(t, rec)
	assert.Len(t, body.Candidates, 2)
	assert.Equal(t, "Doom II", body.Candidates[1].Name)
}

func TestErrorHandler_UnknownErrorIsHidden(t *testing.T) {
	e := newTestEcho()
	e.GET("/x", func(c echo.Context) error { return errors.New("dial tcp 10.0.0.1:3306: refused") })
	rec := serve(e, http.MethodGet, "/x", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "internal server error", body.Message)
	assert.NotContains(t, rec.Body.String(), "3306")
}

func TestErrorHandler_EchoErrors(t *testing.T) {
	e := newTestEcho()
	rec := serve(e, http.MethodGet, "/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, http.StatusNotFound, decodeError(t, rec).Status)

	e.GET("/limited", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
	})
	rec = serve(e, http.MethodGet, "/limited", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", decodeError(t, rec).Message)
}

func TestValidator_UsesJSONNames(t *testing.T) {
	e := newTestEcho()
	e.POST("/register", func(c echo.Context) error {
		var req registerReq
		if err := bindAndValidate(c, &req); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, http.MethodPost, "/register", `{"username":"alice","email":"a@example.com","name":"A","password":"password1"}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "password_confirmation is required", decodeError(t, rec).Message)

	rec = serve(e, http.MethodPost, "/register", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(e, http.MethodPost, "/register", `{"username":"alice","email":"a@example.com","name":"A","password":"p","password_confirmation":"p"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestReviewFilterFrom(t *testing.T) {
	e := newTestEcho()
	var got service.ReviewFilter
	e.GET("/reviews", func(c echo.Context) error {
		f, err := reviewFilterFrom(c)
		if err != nil {
			return err
		}
		got = f
		return c.NoContent(http.StatusNoContent)
	})

	rec := serve(e, http.MethodGet, "/reviews?game_id=42&acc_id=US001&first=true&limit=5&offset=10", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got.GameID)
	assert.Equal(t, uint64(42), *got.GameID)
	assert.Equal(t, "US001", got.AccID)
	assert.True(t, got.First)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, 10, got.Offset)

	rec = serve(e, http.MethodGet, "/reviews?game_id=abc", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = serve(e, http.MethodGet, "/reviews?limit=ten", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestToSnake(t *testing.T) {
	assert.Equal(t, "password_confirmation", toSnake("PasswordConfirmation"))
	assert.Equal(t, "name", toSnake("Name"))
}
