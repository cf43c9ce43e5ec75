package scanner

import "sync"

// CameraRegistry tracks which session owns each camera. A camera has at
// most one owner; others get device_busy until it is released.
type CameraRegistry struct {
	mu     sync.Mutex
	owners map[string]string
}

func NewCameraRegistry() *CameraRegistry {
	return &CameraRegistry{owners: make(map[string]string)}
}

func (r *CameraRegistry) Acquire(deviceID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.owners[deviceID]; ok && current != owner {
		return NewDeviceError(DeviceErrorBusy, "camera owned by session "+current)
	}
	r.owners[deviceID] = owner
	return nil
}

// Release is a no-op unless owner holds the camera
func (r *CameraRegistry) Release(deviceID, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owners[deviceID] == owner {
		delete(r.owners, deviceID)
	}
}

func (r *CameraRegistry) Owner(deviceID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	owner, ok := r.owners[deviceID]
	return owner, ok
}
