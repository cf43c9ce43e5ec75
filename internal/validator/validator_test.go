package validator

import (
	"testing"

	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/stretchr/testify/assert"
)

type sampleRequest struct {
	ShortCode string `json:"short_code" validate:"required,min=3"`
	Note      string `json:"note,omitempty" validate:"omitempty,max=10"`
}

func TestValidateRequest(t *testing.T) {
	assert.NoError(t, ValidateRequest(sampleRequest{ShortCode: "ABC123"}))

	err := ValidateRequest(sampleRequest{ShortCode: "AB", Note: "far too long a note"})
	assert.True(t, ierr.IsValidation(err))

	details := ierr.Details(err)
	assert.Contains(t, details, "short_code")
	assert.Contains(t, details, "note")
	assert.Equal(t, "Request validation failed", ierr.Hint(err))
}
