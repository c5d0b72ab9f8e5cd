package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/review-channels/internal/model"
	"github.com/iliyamo/review-channels/internal/service"
)

// errorBody is the uniform error envelope.
type errorBody struct {
	Status     int          `json:"status"`
	Message    string       `json:"message"`
	Candidates []model.Game `json:"candidates,omitempty"`
}

// statusOf maps a service error kind to its HTTP status.
func statusOf(k service.Kind) int {
	switch k {
	case service.KindValidation:
		return http.StatusUnprocessableEntity
	case service.KindBadRequest, service.KindExternal:
		return http.StatusBadRequest
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindAuthorization:
		return http.StatusForbidden
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindConflict:
		return http.StatusConflict
	case service.KindMultipleChoices:
		return http.StatusMultipleChoices
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by handlers and middleware as
// {"status": ..., "message": ...}.  Unknown errors are logged and hidden
// behind a generic 500.
func ErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		body := toErrorBody(err)
		if body.Status >= http.StatusInternalServerError {
			log.WithError(err).WithFields(logrus.Fields{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Error("unhandled error")
		}
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(body.Status)
		} else {
			err = c.JSON(body.Status, body)
		}
		if err != nil {
			log.WithError(err).Warn("write error response")
		}
	}
}

func toErrorBody(err error) errorBody {
	var se *service.Error
	if errors.As(err, &se) {
		return errorBody{Status: statusOf(se.Kind), Message: se.Message, Candidates: se.Candidates}
	}
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return errorBody{Status: http.StatusUnprocessableEntity, Message: validationMessage(ve)}
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		} else if he.Message != nil {
			msg = fmt.Sprint(he.Message)
		}
		return errorBody{Status: he.Code, Message: msg}
	}
	return errorBody{Status: http.StatusInternalServerError, Message: "internal server error"}
}

func validationMessage(ve validator.ValidationErrors) string {
	msgs := make([]string, 0, len(ve))
	for _, fe := range ve {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "eqfield":
		return fe.Field() + " does not match " + toSnake(fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

// toSnake converts a Go field name like PasswordConfirmation to
// password_confirmation.
func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
