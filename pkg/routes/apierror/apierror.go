// Package apierror maps domain errors onto HTTP errors
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/iris/pkg/disambiguation"
	"github.com/Ramsey-B/iris/pkg/indexguard"
)

// RetryAfterSeconds is sent with retryable 503 responses
const RetryAfterSeconds = "1"

// From converts err into an HTTP error. Retryable errors also set Retry-After.
// Errors it does not recognize are returned unchanged and render as 500.
func From(c echo.Context, err error) error {
	if err == nil || httperror.IsHTTPError(err) {
		return err
	}

	switch {
	case errors.Is(err, disambiguation.ErrInvalidEntity),
		errors.Is(err, disambiguation.ErrInvalidLimit),
		errors.Is(err, disambiguation.ErrInvalidSettings):
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, indexguard.ErrIndexUnavailable),
		errors.Is(err, disambiguation.ErrSignalUnavailable):
		c.Response().Header().Set("Retry-After", RetryAfterSeconds)
		return httperror.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, disambiguation.ErrNotConfigured):
		return httperror.NewHTTPError(http.StatusNotImplemented, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return httperror.NewHTTPError(http.StatusGatewayTimeout, "request timed out")
	}
	return err
}
