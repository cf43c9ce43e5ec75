package router

import (
	"context"
	"errors"
	"net"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
)

// shouldRetry reports whether a failed handler run is worth another attempt.
// Permanent failures are acked instead of burning through the retry budget.
func shouldRetry(logger *logger.Logger, err error) bool {
	if ierr.IsUnavailable(err) || errors.Is(err, context.DeadlineExceeded) {
		logger.Debugw("retrying due to unavailable backend", "error", err)
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		logger.Debugw("retrying due to network timeout", "error", netErr)
		return true
	}

	// Business logic errors (don't retry)
	if ierr.IsValidation(err) ||
		ierr.IsNotFound(err) ||
		ierr.IsPermissionDenied(err) ||
		ierr.IsInvalidOperation(err) {
		return false
	}

	// By default, retry unknown errors
	return true
}
