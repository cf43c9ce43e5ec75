package httpclient

import (
	"net/http"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
)

// Error carries a non-2xx answer
type Error struct {
	StatusCode int
	Response   []byte
}

func (e *Error) Error() string {
	return http.StatusText(e.StatusCode)
}

// NewError wraps a non-2xx answer. Rate limits and server errors are
// retryable, other client errors are not.
func NewError(url string, statusCode int, response []byte) error {
	sentinel := ierr.ErrInvalidOperation
	if statusCode >= 500 || statusCode == http.StatusTooManyRequests || statusCode == http.StatusRequestTimeout {
		sentinel = ierr.ErrUnavailable
	}
	return ierr.WithError(&Error{StatusCode: statusCode, Response: response}).
		WithHintf("Webhook endpoint answered %d", statusCode).
		WithReportableDetails(map[string]any{
			"url":         url,
			"status_code": statusCode,
		}).
		Mark(sentinel)
}

// IsHTTPError checks if an error is a non-2xx answer
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if ierr.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
