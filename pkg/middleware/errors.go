package middleware

import (
	"SmartNotice/internal/apperr"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

type errorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Details []FieldError `json:"details,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewHTTPErrorHandler renders every handler error as {"error": {...}}.
// Unclassified errors are logged and reported as 500.
func NewHTTPErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, apiErr := mapError(err)
		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, errorEnvelope{Error: apiErr})
		}
		if writeErr != nil {
			logger.Error("writing error response", zap.Error(writeErr))
		}
	}
}

func mapError(err error) (int, APIError) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, _ := he.Message.(string)
		if msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, APIError{Code: http.StatusText(he.Code), Message: msg}
	}

	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, APIError{
			Code:    "validation_error",
			Message: "Validation failed",
			Details: []FieldError{{Field: ve.Field, Message: ve.Message}},
		}
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound, APIError{Code: "not_found", Message: "The requested resource was not found"}
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{Code: "unauthorized", Message: "Authentication is required"}
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden, APIError{Code: "forbidden", Message: "You do not have permission to perform this action"}
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest, APIError{Code: "invalid_input", Message: "The request body is invalid"}
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict, APIError{Code: "conflict", Message: "The resource conflicts with its current state"}
	case errors.Is(err, apperr.ErrStore):
		return http.StatusServiceUnavailable, APIError{Code: "store_unavailable", Message: "The data store is unavailable"}
	}
	return http.StatusInternalServerError, APIError{Code: "internal_error", Message: "An unexpected error occurred"}
}
