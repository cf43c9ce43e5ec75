package scanner

import (
	"context"
	"sync"

	"github.com/parcelbase/parcelbase/internal/types"
	"golang.org/x/time/rate"
)

// RemoteDevice is a camera running on a client. The client decodes frames
// locally and pushes the text here; frames only reach the session while
// the device is started.
type RemoteDevice struct {
	mu           sync.Mutex
	id           string
	secure       bool
	capabilities Capabilities
	limiter      *rate.Limiter

	active      bool
	torch       bool
	constraints Constraints
	onDecode    DecodeFunc
	onError     ErrorFunc
}

type RemoteDeviceOptions struct {
	ID            string
	SecureContext bool
	Capabilities  Capabilities
	// MaxFramesPerSec caps accepted frames; 0 disables the limit
	MaxFramesPerSec float64
}

func NewRemoteDevice(opts RemoteDeviceOptions) *RemoteDevice {
	limit := rate.Inf
	burst := 1
	if opts.MaxFramesPerSec > 0 {
		limit = rate.Limit(opts.MaxFramesPerSec)
		burst = int(opts.MaxFramesPerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &RemoteDevice{
		id:           opts.ID,
		secure:       opts.SecureContext,
		capabilities: opts.Capabilities,
		limiter:      rate.NewLimiter(limit, burst),
	}
}

var (
	_ Device      = (*RemoteDevice)(nil)
	_ FrameSource = (*RemoteDevice)(nil)
)

func (d *RemoteDevice) ID() string { return d.id }

func (d *RemoteDevice) Start(_ context.Context, constraints Constraints, onDecode DecodeFunc, onError ErrorFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.secure {
		return NewDeviceError(DeviceErrorInsecureContext, "")
	}
	d.active = true
	d.constraints = constraints
	d.onDecode = onDecode
	d.onError = onError
	return nil
}

func (d *RemoteDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.active = false
	d.torch = false
	d.onDecode = nil
	d.onError = nil
	return nil
}

func (d *RemoteDevice) Capabilities() Capabilities {
	return d.capabilities
}

func (d *RemoteDevice) SetTorch(on bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.capabilities.Torch {
		return NewDeviceError(DeviceErrorTorchUnsupported, "")
	}
	d.torch = on
	return nil
}

func (d *RemoteDevice) Torch() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.torch
}

func (d *RemoteDevice) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// Push delivers one decoded frame. The callback runs without the device
// lock held so that it may stop the device.
func (d *RemoteDevice) Push(text, format string) types.DecodeOutcome {
	d.mu.Lock()
	if !d.active || d.onDecode == nil {
		d.mu.Unlock()
		return types.DecodeOutcomeBlocked
	}
	if !d.limiter.Allow() {
		d.mu.Unlock()
		return types.DecodeOutcomeIgnored
	}
	onDecode := d.onDecode
	d.mu.Unlock()

	return onDecode(text, format)
}

// Fail reports a capture failure observed on the client
func (d *RemoteDevice) Fail(name, message string) {
	d.mu.Lock()
	onError := d.onError
	d.active = false
	d.mu.Unlock()

	if onError != nil {
		onError(ClassifyDeviceError(name, message))
	}
}
