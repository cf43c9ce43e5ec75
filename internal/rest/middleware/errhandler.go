package middleware

import (
	"github.com/gin-gonic/gin"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains error information
type ErrorDetail struct {
	Code    string         `json:"code"`
	Display string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ErrorHandler renders the last error attached by a handler
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		c.JSON(ierr.HTTPStatusFromErr(err), NewErrorResponse(err))
	}
}

// NewErrorResponse builds the client-facing body for err. Only the hint and
// reportable details leave the process.
func NewErrorResponse(err error) ErrorResponse {
	display := ierr.Hint(err)
	if display == "" {
		display = "An unexpected error occurred"
	}

	details := ierr.Details(err)
	if len(details) == 0 {
		details = nil
	}

	return ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:    ierr.CodeFromErr(err),
			Display: display,
			Details: details,
		},
	}
}
