package scanner

import (
	"errors"
	"fmt"
	"strings"
)

// DeviceErrorKind classifies camera failures
type DeviceErrorKind string

const (
	DeviceErrorPermissionDenied DeviceErrorKind = "permission_denied"
	DeviceErrorNoDevice         DeviceErrorKind = "no_device"
	DeviceErrorBusy             DeviceErrorKind = "device_busy"
	DeviceErrorInsecureContext  DeviceErrorKind = "insecure_context"
	DeviceErrorTorchUnsupported DeviceErrorKind = "torch_unsupported"
	DeviceErrorUnknown          DeviceErrorKind = "unknown"
)

var deviceErrorMessages = map[DeviceErrorKind]string{
	DeviceErrorPermissionDenied: "Camera access was denied. Allow camera access in the browser settings and retry.",
	DeviceErrorNoDevice:         "No camera was found on this device.",
	DeviceErrorBusy:             "The camera is in use by another application or scanner. Close it and retry.",
	DeviceErrorInsecureContext:  "The camera is only available over HTTPS. Open the app over a secure connection.",
	DeviceErrorTorchUnsupported: "This camera has no flashlight.",
	DeviceErrorUnknown:          "The camera could not be started.",
}

// DeviceError is an operator-facing camera failure. None of them are
// retried automatically.
type DeviceError struct {
	Kind   DeviceErrorKind `json:"kind"`
	Detail string          `json:"detail,omitempty"`
}

func NewDeviceError(kind DeviceErrorKind, detail string) *DeviceError {
	return &DeviceError{Kind: kind, Detail: detail}
}

func (e *DeviceError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("camera error: %s", e.Kind)
	}
	return fmt.Sprintf("camera error: %s: %s", e.Kind, e.Detail)
}

// Message is the text shown to the operator
func (e *DeviceError) Message() string {
	if msg, ok := deviceErrorMessages[e.Kind]; ok {
		return msg
	}
	return deviceErrorMessages[DeviceErrorUnknown]
}

// AsDeviceError unwraps err into a DeviceError, classifying anything else
// as unknown.
func AsDeviceError(err error) *DeviceError {
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}
	return NewDeviceError(DeviceErrorUnknown, err.Error())
}

// ClassifyDeviceError maps the error name reported by the capture API
func ClassifyDeviceError(name, message string) *DeviceError {
	var kind DeviceErrorKind
	switch strings.TrimSpace(name) {
	case "NotAllowedError", "PermissionDeniedError":
		kind = DeviceErrorPermissionDenied
	case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
		kind = DeviceErrorNoDevice
	case "NotReadableError", "TrackStartError", "AbortError":
		kind = DeviceErrorBusy
	case "SecurityError", "InsecureContextError":
		kind = DeviceErrorInsecureContext
	case "TorchUnsupportedError":
		kind = DeviceErrorTorchUnsupported
	default:
		kind = DeviceErrorUnknown
	}
	return NewDeviceError(kind, message)
}
