package scanner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/parcelbase/parcelbase/internal/cache"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/samber/lo"
)

// Options configure one scan session
type Options struct {
	ID      string
	OwnerID string
	Mode    types.ScanMode
	// TargetStatus is applied to every resolved package in bulk mode
	TargetStatus     types.PackageStatus
	Location         *string
	DebounceWindow   time.Duration
	MinCodeLength    int
	NoiseLiterals    []string
	MaxNotifications int
	MaxBulkResults   int
	// OnActivity is called with the session id whenever the device pushes a
	// frame or reports an error.
	OnActivity func(id string)
}

type Notification struct {
	ID        string                  `json:"id"`
	Level     types.NotificationLevel `json:"level"`
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	CreatedAt time.Time               `json:"created_at"`
}

// BulkResult is one attempt in a bulk scan run
type BulkResult struct {
	Code       string                 `json:"code"`
	PackageID  string                 `json:"package_id,omitempty"`
	ShortCode  string                 `json:"short_code,omitempty"`
	FromStatus types.PackageStatus    `json:"from_status,omitempty"`
	ToStatus   types.PackageStatus    `json:"to_status,omitempty"`
	Status     types.BulkResultStatus `json:"status"`
	ErrorCode  string                 `json:"error_code,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	ScannedAt  time.Time              `json:"scanned_at"`
}

// Snapshot is a copy of the session state safe to hand to other goroutines
type Snapshot struct {
	ID             string                `json:"id"`
	Mode           types.ScanMode        `json:"mode"`
	State          types.SessionState    `json:"state"`
	TargetStatus   types.PackageStatus   `json:"target_status,omitempty"`
	DeviceID       string                `json:"device_id"`
	CameraActive   bool                  `json:"camera_active"`
	TorchSupported bool                  `json:"torch_supported"`
	Processing     bool                  `json:"processing"`
	Current        *Resolution           `json:"current,omitempty"`
	NextStatuses   []types.PackageStatus `json:"next_statuses,omitempty"`
	LastCode       string                `json:"last_code,omitempty"`
	NotFoundCode   string                `json:"not_found_code,omitempty"`
	DeviceError    *DeviceError          `json:"device_error,omitempty"`
	DeviceMessage  string                `json:"device_message,omitempty"`
	Notifications  []Notification        `json:"notifications"`
	BulkResults    []BulkResult          `json:"bulk_results,omitempty"`
	Revision       uint64                `json:"revision"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// ConfirmRequest is the operator's choice in the status picker
type ConfirmRequest struct {
	ToStatus types.PackageStatus
	Note     *string
	Force    bool
}

// Session is one operator's scanner screen. It owns the camera while it is
// scanning and holds exactly one state at a time.
//
// The camera runs only in idle_scanning. Every state change goes through
// setState, which starts or stops the device to match. Decoded frames are
// dropped while a lookup or status write is in flight.
type Session struct {
	mu       sync.Mutex
	opts     Options
	device   Device
	registry *CameraRegistry
	backend  Backend
	debounce cache.Cache
	logger   *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc

	state      types.SessionState
	processing bool
	cameraOn   bool
	closed     bool
	deviceErr  *DeviceError

	current      *Resolution
	lastCode     string
	lastRaw      string
	lastFormat   string
	notFoundCode string

	notifications []Notification
	bulkResults   []BulkResult

	revision    uint64
	updatedAt   time.Time
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// NewSession builds a session in idle_scanning without touching the camera.
// Call Open to start scanning. ctx supplies the actor for backend writes;
// its cancellation does not end the session.
func NewSession(
	ctx context.Context,
	opts Options,
	device Device,
	registry *CameraRegistry,
	backend Backend,
	debounce cache.Cache,
	log *logger.Logger,
) *Session {
	if opts.ID == "" {
		opts.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCAN_SESSION)
	}
	if len(opts.NoiseLiterals) == 0 {
		opts.NoiseLiterals = DefaultNoiseLiterals
	}

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	return &Session{
		opts:        opts,
		device:      device,
		registry:    registry,
		backend:     backend,
		debounce:    debounce,
		logger:      log.With("session_id", opts.ID, "mode", opts.Mode, "device_id", device.ID()),
		ctx:         sessionCtx,
		cancel:      cancel,
		state:       types.SessionStateIdleScanning,
		updatedAt:   time.Now().UTC(),
		subscribers: make(map[int]chan Snapshot),
	}
}

// Open starts the camera. A device failure is recorded on the session
// rather than returned; the operator retries explicitly.
func (s *Session) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.syncCamera()
	s.changed()
}

func (s *Session) ID() string { return s.opts.ID }

func (s *Session) OwnerID() string { return s.opts.OwnerID }

func (s *Session) Mode() types.ScanMode { return s.opts.Mode }

func (s *Session) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) CameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraOn
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Push feeds a frame decoded on the client. Frames only reach the session
// while the camera is running.
func (s *Session) Push(text, format string) types.DecodeOutcome {
	if s.Closed() {
		return types.DecodeOutcomeClosed
	}
	s.touch()
	fs, ok := s.device.(FrameSource)
	if !ok {
		return types.DecodeOutcomeBlocked
	}
	return fs.Push(text, format)
}

func (s *Session) touch() {
	if s.opts.OnActivity != nil {
		s.opts.OnActivity(s.opts.ID)
	}
}

// HandleDecode is the device callback for one decoded frame. It runs the
// lookup (single mode) or lookup and status write (bulk mode) before
// returning.
func (s *Session) HandleDecode(text, format string) types.DecodeOutcome {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return types.DecodeOutcomeClosed
	}

	code, err := ExtractIdentifier(text, s.opts.MinCodeLength, s.opts.NoiseLiterals)
	if err != nil {
		s.mu.Unlock()
		s.logger.Debugw("dropped decoded text", "error", err)
		return types.DecodeOutcomeIgnored
	}
	if s.processing {
		s.mu.Unlock()
		return types.DecodeOutcomeBusy
	}
	if s.state != types.SessionStateIdleScanning {
		s.mu.Unlock()
		return types.DecodeOutcomeBlocked
	}

	key := cache.GenerateKey(cache.PrefixDebounce, s.opts.ID, strings.TrimSpace(text))
	if !s.debounce.Add(s.ctx, key, struct{}{}, s.opts.DebounceWindow) {
		s.mu.Unlock()
		return types.DecodeOutcomeDuplicate
	}

	s.processing = true
	s.lastCode, s.lastRaw, s.lastFormat = code, text, format
	if s.opts.Mode == types.ScanModeSingle {
		s.setState(types.SessionStateLoadingLookup)
	}
	s.changed()
	ctx := s.ctx
	s.mu.Unlock()

	s.logger.Debugw("accepted decoded code", "code", code, "format", format)
	if s.opts.Mode == types.ScanModeBulk {
		s.runBulk(ctx, code, text, format)
	} else {
		s.runLookup(ctx, code)
	}
	return types.DecodeOutcomeAccepted
}

func (s *Session) runLookup(ctx context.Context, code string) {
	res, err := s.backend.Lookup(ctx, code)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processing = false
	if s.closed {
		return
	}

	switch {
	case err == nil:
		s.current = res
		s.notFoundCode = ""
		s.setState(types.SessionStatePackageDetail)
	case ierr.IsNotFound(err):
		s.current = nil
		s.notFoundCode = code
		s.setState(types.SessionStateNotFound)
		s.notify(types.NotificationLevelWarning, ierr.ErrCodeNotFound, fmt.Sprintf("No package found for %s", code))
	default:
		s.logger.Warnw("lookup failed", "code", code, "error", err)
		s.notify(types.NotificationLevelError, ierr.CodeFromErr(err), messageFor(err, "Lookup failed. Scan again to retry."))
		s.setState(types.SessionStateIdleScanning)
	}
	s.changed()
}

func (s *Session) runBulk(ctx context.Context, code, raw, format string) {
	result := BulkResult{
		Code:      code,
		ScannedAt: time.Now().UTC(),
	}

	res, err := s.backend.Lookup(ctx, code)
	if err == nil {
		result.PackageID = res.Package.ID
		result.ShortCode = res.Package.ShortCode
		result.FromStatus = res.Package.Status

		var applied *StatusResult
		applied, err = s.backend.ApplyStatus(ctx, &StatusRequest{
			PackageID:      res.Package.ID,
			ExpectedStatus: res.Package.Status,
			ToStatus:       s.opts.TargetStatus,
			Location:       s.opts.Location,
			RawPayload:     raw,
			Format:         format,
			Mode:           types.ScanModeBulk,
		})
		if err == nil {
			result.ToStatus = s.opts.TargetStatus
			result.Status = types.BulkResultSuccess
			if !applied.AuditComplete {
				result.Status = types.BulkResultPartial
				result.Reason = "Audit trail incomplete: " + strings.Join(applied.AuditFailures, ", ")
			}
		}
	}
	if err != nil {
		result.Status = types.BulkResultFailure
		result.ErrorCode = ierr.CodeFromErr(err)
		result.Reason = messageFor(err, "Status change failed")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processing = false
	s.bulkResults = append(s.bulkResults, result)
	if limit := s.opts.MaxBulkResults; limit > 0 && len(s.bulkResults) > limit {
		s.bulkResults = s.bulkResults[len(s.bulkResults)-limit:]
	}

	switch result.Status {
	case types.BulkResultSuccess:
		s.notify(types.NotificationLevelSuccess, "status_changed",
			fmt.Sprintf("%s moved to %s", result.ShortCode, result.ToStatus))
	case types.BulkResultPartial:
		s.notify(types.NotificationLevelWarning, "audit_incomplete",
			fmt.Sprintf("%s moved to %s but the audit trail is incomplete", result.ShortCode, result.ToStatus))
	default:
		s.notify(types.NotificationLevelError, result.ErrorCode, fmt.Sprintf("%s: %s", code, result.Reason))
	}
	s.changed()
}

// Acknowledge dismisses the not-found screen and resumes scanning
func (s *Session) Acknowledge() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(types.SessionStateNotFound); err != nil {
		return err
	}
	s.notFoundCode = ""
	s.setState(types.SessionStateIdleScanning)
	s.changed()
	return nil
}

// OpenStatusPicker moves from the package detail to the status choice and
// returns the statuses the package may move to.
func (s *Session) OpenStatusPicker() ([]types.PackageStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(types.SessionStatePackageDetail); err != nil {
		return nil, err
	}
	s.setState(types.SessionStateStatusPicker)
	s.changed()
	return s.current.Package.Status.NextStatuses(), nil
}

// Confirm writes the chosen status. Only one confirmation may be in flight
// per session. A version conflict reloads the package into the detail
// screen so the operator sees what changed.
func (s *Session) Confirm(ctx context.Context, req ConfirmRequest) (*StatusResult, error) {
	s.mu.Lock()
	if s.processing {
		s.mu.Unlock()
		return nil, ierr.NewError("status change already in progress").
			WithHint("A status change is already in progress").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.require(types.SessionStateStatusPicker); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if err := req.ToStatus.Validate(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	pkg := s.current.Package
	if !req.Force {
		if err := pkg.Status.ValidateTransition(req.ToStatus); err != nil {
			s.mu.Unlock()
			return nil, err
		}
	}

	s.processing = true
	statusReq := &StatusRequest{
		PackageID:      pkg.ID,
		ExpectedStatus: pkg.Status,
		ToStatus:       req.ToStatus,
		Location:       s.opts.Location,
		Note:           req.Note,
		RawPayload:     s.lastRaw,
		Format:         s.lastFormat,
		Mode:           types.ScanModeSingle,
		Force:          req.Force,
	}
	s.changed()
	s.mu.Unlock()

	result, err := s.backend.ApplyStatus(ctx, statusReq)

	var reloaded *Resolution
	var reloadErr error
	if ierr.IsVersionConflict(err) {
		reloaded, reloadErr = s.backend.Reload(ctx, pkg.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.processing = false
	if s.closed {
		return result, err
	}

	if err != nil {
		switch {
		case ierr.IsVersionConflict(err) && reloadErr == nil:
			s.current = reloaded
			s.setState(types.SessionStatePackageDetail)
			s.notify(types.NotificationLevelWarning, ierr.ErrCodeVersionConflict,
				messageFor(err, "The package was changed by someone else"))
		case ierr.IsVersionConflict(err):
			s.current = nil
			s.setState(types.SessionStateIdleScanning)
			s.notify(types.NotificationLevelError, ierr.CodeFromErr(reloadErr),
				messageFor(reloadErr, "The package could not be reloaded"))
		default:
			s.logger.Errorw("status change failed",
				"package_id", pkg.ID,
				"to_status", req.ToStatus,
				"error", err,
			)
			s.notify(types.NotificationLevelError, ierr.CodeFromErr(err), messageFor(err, "Status change failed"))
		}
		s.changed()
		return nil, err
	}

	if result.AuditComplete {
		s.notify(types.NotificationLevelSuccess, "status_changed",
			fmt.Sprintf("%s moved to %s", pkg.ShortCode, req.ToStatus))
	} else {
		s.notify(types.NotificationLevelWarning, "audit_incomplete",
			fmt.Sprintf("%s moved to %s but the audit trail is incomplete", pkg.ShortCode, req.ToStatus))
	}
	s.current = nil
	s.setState(types.SessionStateIdleScanning)
	s.changed()
	return result, nil
}

// Cancel leaves any modal screen and resumes scanning
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSessionClosed(s.opts.ID)
	}
	if s.processing {
		return ierr.NewError("session is busy").
			WithHint("Wait for the current operation to finish").
			Mark(ierr.ErrInvalidOperation)
	}
	s.current = nil
	s.notFoundCode = ""
	s.setState(types.SessionStateIdleScanning)
	s.changed()
	return nil
}

// RetryCamera clears a device error and starts the camera again if the
// session is scanning.
func (s *Session) RetryCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errSessionClosed(s.opts.ID)
	}
	s.deviceErr = nil
	s.syncCamera()
	s.changed()
	if s.deviceErr != nil {
		return s.deviceErr
	}
	return nil
}

func (s *Session) SetTorch(on bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cameraOn {
		return ierr.NewError("camera is not running").
			WithHint("The camera must be running to use the flashlight").
			Mark(ierr.ErrInvalidOperation)
	}
	if err := s.device.SetTorch(on); err != nil {
		de := AsDeviceError(err)
		s.notify(types.NotificationLevelWarning, string(de.Kind), de.Message())
		s.changed()
		return de
	}
	return nil
}

// ReportDeviceError records a capture failure observed by the client
func (s *Session) ReportDeviceError(name, message string) {
	s.touch()
	if fs, ok := s.device.(FrameSource); ok && s.device.Active() {
		fs.Fail(name, message)
		return
	}
	s.HandleDeviceError(ClassifyDeviceError(name, message))
}

// HandleDeviceError is the device callback for asynchronous failures
func (s *Session) HandleDeviceError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.stopCamera()
	s.setDeviceError(err)
	s.changed()
}

// Close stops the camera and ends the session. It is safe to call more
// than once and from any state, including while a lookup is in flight;
// the lookup's result is discarded.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.cancel()
	s.stopCamera()
	s.state = types.SessionStateClosed
	s.changed()

	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.logger.Infow("scan session closed", "bulk_results", len(s.bulkResults))
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only see the newest snapshot. The channel is closed
// when the session closes or the returned func is called.
func (s *Session) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		ch <- s.snapshotLocked()
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			close(sub)
			delete(s.subscribers, id)
		}
	}
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// The methods below expect s.mu to be held.

func (s *Session) setState(state types.SessionState) {
	if s.state != state {
		s.logger.Debugw("session state changed", "from", s.state, "to", state)
	}
	s.state = state
	s.syncCamera()
}

func (s *Session) syncCamera() {
	want := !s.closed && s.deviceErr == nil && s.state.CameraWanted()
	switch {
	case want && !s.cameraOn:
		s.startCamera()
	case !want && s.cameraOn:
		s.stopCamera()
	}
}

func (s *Session) startCamera() {
	if err := s.registry.Acquire(s.device.ID(), s.opts.ID); err != nil {
		s.setDeviceError(err)
		return
	}
	if err := s.device.Start(s.ctx, DefaultConstraints(), s.HandleDecode, s.HandleDeviceError); err != nil {
		s.registry.Release(s.device.ID(), s.opts.ID)
		s.setDeviceError(err)
		return
	}
	s.cameraOn = true
}

func (s *Session) stopCamera() {
	if s.cameraOn || s.device.Active() {
		if err := s.device.Stop(); err != nil {
			s.logger.Errorw("failed to stop camera", "error", err)
		}
	}
	s.registry.Release(s.device.ID(), s.opts.ID)
	s.cameraOn = false
}

func (s *Session) setDeviceError(err error) {
	de := AsDeviceError(err)
	s.deviceErr = de
	s.logger.Warnw("camera unavailable", "kind", de.Kind, "detail", de.Detail)
	s.notify(types.NotificationLevelError, string(de.Kind), de.Message())
}

func (s *Session) require(state types.SessionState) error {
	if s.closed {
		return errSessionClosed(s.opts.ID)
	}
	if s.opts.Mode == types.ScanModeBulk {
		return ierr.NewError("operation not available in bulk mode").
			WithHint("Bulk scanning applies the target status automatically").
			Mark(ierr.ErrInvalidOperation)
	}
	if s.state != state {
		return ierr.NewErrorf("session is in state %s, expected %s", s.state, state).
			WithHint("The scanner is not showing that screen").
			WithReportableDetails(map[string]any{
				"state":    s.state,
				"expected": state,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	return nil
}

func (s *Session) notify(level types.NotificationLevel, code, message string) {
	s.notifications = append(s.notifications, Notification{
		ID:        types.GenerateUUID(),
		Level:     level,
		Code:      code,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	})
	if limit := s.opts.MaxNotifications; limit > 0 && len(s.notifications) > limit {
		s.notifications = s.notifications[len(s.notifications)-limit:]
	}
}

func (s *Session) changed() {
	s.revision++
	s.updatedAt = time.Now().UTC()
	if len(s.subscribers) == 0 {
		return
	}

	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:             s.opts.ID,
		Mode:           s.opts.Mode,
		State:          s.state,
		TargetStatus:   s.opts.TargetStatus,
		DeviceID:       s.device.ID(),
		CameraActive:   s.cameraOn,
		TorchSupported: s.device.Capabilities().Torch,
		Processing:     s.processing,
		Current:        s.current,
		LastCode:       s.lastCode,
		NotFoundCode:   s.notFoundCode,
		DeviceError:    s.deviceErr,
		Notifications:  lo.Map(s.notifications, func(n Notification, _ int) Notification { return n }),
		BulkResults:    lo.Map(s.bulkResults, func(r BulkResult, _ int) BulkResult { return r }),
		Revision:       s.revision,
		UpdatedAt:      s.updatedAt,
	}
	if s.current != nil && s.current.Package != nil {
		snap.NextStatuses = s.current.Package.Status.NextStatuses()
	}
	if s.deviceErr != nil {
		snap.DeviceMessage = s.deviceErr.Message()
	}
	return snap
}

func errSessionClosed(id string) error {
	return ierr.NewErrorf("scan session %s is closed", id).
		WithHint("The scanner was closed").
		Mark(ierr.ErrInvalidOperation)
}

func messageFor(err error, fallback string) string {
	if hint := ierr.Hint(err); hint != "" {
		return hint
	}
	return fallback
}
