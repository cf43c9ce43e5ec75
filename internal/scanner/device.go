package scanner

import (
	"context"

	"github.com/parcelbase/parcelbase/internal/types"
)

// DecodeFunc receives one decoded frame. The returned outcome is reported
// back to whoever pushed the frame.
type DecodeFunc func(text, format string) types.DecodeOutcome

// ErrorFunc receives asynchronous device failures
type ErrorFunc func(err error)

// Constraints are the camera preferences passed on start
type Constraints struct {
	FacingMode string `json:"facing_mode"`
}

// DefaultConstraints prefers the rear camera
func DefaultConstraints() Constraints {
	return Constraints{FacingMode: types.CameraFacingEnvironment}
}

// Capabilities reported by the capture track
type Capabilities struct {
	Torch bool `json:"torch"`
}

// Device is a camera with a continuous decode loop
type Device interface {
	ID() string
	Start(ctx context.Context, constraints Constraints, onDecode DecodeFunc, onError ErrorFunc) error
	Stop() error
	Capabilities() Capabilities
	SetTorch(on bool) error
	Active() bool
}

// FrameSource is implemented by devices whose frames and failures are fed
// from outside the process.
type FrameSource interface {
	Push(text, format string) types.DecodeOutcome
	Fail(name, message string)
}
