package scanner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/domain/parcel"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"github.com/stretchr/testify/suite"
)

// fakeBackend resolves codes against an in-memory map and records calls
type fakeBackend struct {
	mu       sync.Mutex
	packages map[string]*parcel.Package
	lookups  []string
	applied  []*StatusRequest

	lookupErr   error
	applyErr    error
	auditBroken bool
	// block, when set, holds Lookup until closed
	block   chan struct{}
	entered chan struct{}
}

func newFakeBackend(pkgs ...*parcel.Package) *fakeBackend {
	b := &fakeBackend{packages: make(map[string]*parcel.Package)}
	for _, p := range pkgs {
		b.packages[p.ShortCode] = p
	}
	return b
}

func (b *fakeBackend) Lookup(ctx context.Context, code string) (*Resolution, error) {
	b.mu.Lock()
	b.lookups = append(b.lookups, code)
	block, entered := b.block, b.entered
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if block != nil {
		<-block
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lookupErr != nil {
		return nil, b.lookupErr
	}
	p, ok := b.packages[code]
	if !ok {
		return nil, ierr.NewErrorf("package %s not found", code).Mark(ierr.ErrNotFound)
	}
	cp := *p
	return &Resolution{Package: &cp}, nil
}

func (b *fakeBackend) Reload(ctx context.Context, id string) (*Resolution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.packages {
		if p.ID == id {
			cp := *p
			return &Resolution{Package: &cp}, nil
		}
	}
	return nil, ierr.NewError("gone").Mark(ierr.ErrNotFound)
}

func (b *fakeBackend) ApplyStatus(ctx context.Context, req *StatusRequest) (*StatusResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.applied = append(b.applied, req)
	if b.applyErr != nil {
		return nil, b.applyErr
	}
	for _, p := range b.packages {
		if p.ID != req.PackageID {
			continue
		}
		if p.Status != req.ExpectedStatus {
			return nil, ierr.NewError("conflict").WithHint("changed by someone else").Mark(ierr.ErrVersionConflict)
		}
		p.Status = req.ToStatus
		p.Version++
		cp := *p
		res := &StatusResult{Package: &cp, AuditComplete: !b.auditBroken}
		if b.auditBroken {
			res.AuditFailures = []string{string(types.AuditRecordStatusHistory)}
		}
		return res, nil
	}
	return nil, ierr.NewError("gone").Mark(ierr.ErrNotFound)
}

func (b *fakeBackend) lookupCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lookups)
}

type SessionSuite struct {
	suite.Suite
	ctx      context.Context
	backend  *fakeBackend
	registry *CameraRegistry
	debounce cache.Cache
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionSuite))
}

func (s *SessionSuite) SetupTest() {
	s.ctx = types.SetUserID(context.Background(), "user_1")
	s.backend = newFakeBackend(
		&parcel.Package{ID: types.GeneratePackageID(), ShortCode: "ABC123", Status: types.PackageStatusCreated},
		&parcel.Package{ID: types.GeneratePackageID(), ShortCode: "A2", Status: types.PackageStatusHandedOver},
	)
	s.registry = NewCameraRegistry()
	s.debounce = cache.New(true, time.Second, time.Minute)
}

func (s *SessionSuite) newSession(mode types.ScanMode, target types.PackageStatus, deviceID string) (*Session, *RemoteDevice) {
	device := NewRemoteDevice(RemoteDeviceOptions{ID: deviceID, SecureContext: true, Capabilities: Capabilities{Torch: true}})
	minLen := 3
	if mode == types.ScanModeBulk {
		minLen = 2
	}
	sess := NewSession(s.ctx, Options{
		Mode:             mode,
		TargetStatus:     target,
		DebounceWindow:   200 * time.Millisecond,
		MinCodeLength:    minLen,
		MaxNotifications: 10,
		MaxBulkResults:   10,
	}, device, s.registry, s.backend, s.debounce, logger.NewNoopLogger())
	sess.Open()
	return sess, device
}

func (s *SessionSuite) TestSingleModeScenario() {
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")
	s.True(device.Active())

	s.Equal(types.DecodeOutcomeAccepted, sess.Push("ABC123", "qr_code"))
	s.Equal(types.SessionStatePackageDetail, sess.State())
	s.False(device.Active(), "camera must stop outside idle scanning")

	next, err := sess.OpenStatusPicker()
	s.Require().NoError(err)
	s.Contains(next, types.PackageStatusHandedOver)
	s.Equal(types.SessionStateStatusPicker, sess.State())

	res, err := sess.Confirm(s.ctx, ConfirmRequest{ToStatus: types.PackageStatusHandedOver})
	s.Require().NoError(err)
	s.Equal(types.PackageStatusHandedOver, res.Package.Status)
	s.True(res.AuditComplete)

	s.Require().Len(s.backend.applied, 1)
	req := s.backend.applied[0]
	s.Equal(types.PackageStatusCreated, req.ExpectedStatus)
	s.Equal(types.PackageStatusHandedOver, req.ToStatus)
	s.Equal("ABC123", req.RawPayload)
	s.Equal(types.ScanModeSingle, req.Mode)

	s.Equal(types.SessionStateIdleScanning, sess.State())
	s.True(device.Active(), "camera restarts when scanning resumes")
}

func (s *SessionSuite) TestNotFoundTrackingURL() {
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")

	s.Equal(types.DecodeOutcomeAccepted, sess.Push("https://app.example/track/XYZ999", "qr_code"))
	s.Equal([]string{"XYZ999"}, s.backend.lookups)
	s.Equal(types.SessionStateNotFound, sess.State())
	s.False(device.Active())
	s.Empty(s.backend.applied)

	snap := sess.Snapshot()
	s.Equal("XYZ999", snap.NotFoundCode)
	s.Require().NotEmpty(snap.Notifications)
	s.Equal(types.NotificationLevelWarning, snap.Notifications[len(snap.Notifications)-1].Level)

	s.Require().NoError(sess.Acknowledge())
	s.Equal(types.SessionStateIdleScanning, sess.State())
	s.True(device.Active())
}

func (s *SessionSuite) TestBulkModeScenario() {
	sess, device := s.newSession(types.ScanModeBulk, types.PackageStatusInTransit, "cam-1")

	for _, code := range []string{"A1", "A2", "A3"} {
		s.Equal(types.DecodeOutcomeAccepted, sess.Push(code, "qr_code"))
		s.Equal(types.SessionStateIdleScanning, sess.State())
		s.True(device.Active(), "bulk scanning resumes without operator input")
	}

	s.Require().Len(s.backend.applied, 1)
	s.Equal(types.PackageStatusInTransit, s.backend.applied[0].ToStatus)
	s.Equal(types.PackageStatusHandedOver, s.backend.applied[0].ExpectedStatus)

	results := sess.Snapshot().BulkResults
	s.Require().Len(results, 3)
	s.Equal(types.BulkResultFailure, results[0].Status)
	s.Equal(ierr.ErrCodeNotFound, results[0].ErrorCode)
	s.Equal(types.BulkResultSuccess, results[1].Status)
	s.Equal("A2", results[1].ShortCode)
	s.Equal(types.BulkResultFailure, results[2].Status)
}

func (s *SessionSuite) TestBulkModeAuditIncomplete() {
	s.backend.auditBroken = true
	sess, _ := s.newSession(types.ScanModeBulk, types.PackageStatusInTransit, "cam-1")

	sess.Push("A2", "qr_code")
	results := sess.Snapshot().BulkResults
	s.Require().Len(results, 1)
	s.Equal(types.BulkResultPartial, results[0].Status)
}

func (s *SessionSuite) TestNoiseNeverReachesLookup() {
	sess, _ := s.newSession(types.ScanModeSingle, "", "cam-1")

	for _, raw := range []string{"ab", "null", "undefined", "  ", "NaN"} {
		s.Equal(types.DecodeOutcomeIgnored, sess.Push(raw, "qr_code"))
	}
	s.Zero(s.backend.lookupCount())
	s.Equal(types.SessionStateIdleScanning, sess.State())
}

func (s *SessionSuite) TestDebounce() {
	sess, _ := s.newSession(types.ScanModeSingle, "", "cam-1")

	s.Equal(types.DecodeOutcomeAccepted, sess.Push("XYZ999", "qr_code"))
	s.Require().NoError(sess.Acknowledge())
	s.Equal(types.DecodeOutcomeDuplicate, sess.Push("XYZ999", "qr_code"))
	s.Equal(1, s.backend.lookupCount())

	time.Sleep(250 * time.Millisecond)
	s.Equal(types.DecodeOutcomeAccepted, sess.Push("XYZ999", "qr_code"))
	s.Equal(2, s.backend.lookupCount())
}

func (s *SessionSuite) TestFramesDroppedWhileProcessing() {
	s.backend.block = make(chan struct{})
	s.backend.entered = make(chan struct{}, 1)
	sess, _ := s.newSession(types.ScanModeBulk, types.PackageStatusInTransit, "cam-1")

	done := make(chan types.DecodeOutcome)
	go func() { done <- sess.Push("A2", "qr_code") }()
	<-s.backend.entered

	s.Equal(types.DecodeOutcomeBusy, sess.HandleDecode("ABC123", "qr_code"))
	close(s.backend.block)
	s.Equal(types.DecodeOutcomeAccepted, <-done)
	s.Equal(1, s.backend.lookupCount())
}

func (s *SessionSuite) TestCloseDuringLookupNeverRestartsCamera() {
	s.backend.block = make(chan struct{})
	s.backend.entered = make(chan struct{}, 1)
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")

	done := make(chan types.DecodeOutcome)
	go func() { done <- sess.Push("https://app.example/track/XYZ999", "qr_code") }()
	<-s.backend.entered

	sess.Close()
	close(s.backend.block)
	<-done

	s.Equal(types.SessionStateClosed, sess.State())
	s.False(device.Active())
	s.False(sess.CameraActive())
	_, owned := s.registry.Owner("cam-1")
	s.False(owned)
}

func (s *SessionSuite) TestCloseReleasesCameraFromEveryState() {
	states := []func(*Session){
		func(*Session) {},
		func(sess *Session) { sess.Push("ABC123", "qr_code") },
		func(sess *Session) {
			sess.Push("ABC123", "qr_code")
			_, _ = sess.OpenStatusPicker()
		},
		func(sess *Session) { sess.Push("XYZ999", "qr_code") },
		func(sess *Session) { sess.ReportDeviceError("NotReadableError", "in use") },
	}

	for i, prepare := range states {
		s.debounce.Flush(s.ctx)
		sess, device := s.newSession(types.ScanModeSingle, "", "cam-close")
		prepare(sess)
		sess.Close()
		s.False(device.Active(), "case %d", i)
		_, owned := s.registry.Owner("cam-close")
		s.False(owned, "case %d", i)
		s.Equal(types.DecodeOutcomeClosed, sess.Push("ABC123", "qr_code"))
	}
}

func (s *SessionSuite) TestVersionConflictReloadsDetail() {
	sess, _ := s.newSession(types.ScanModeSingle, "", "cam-1")
	sess.Push("ABC123", "qr_code")
	_, err := sess.OpenStatusPicker()
	s.Require().NoError(err)

	// another scanner moves the package first
	s.backend.packages["ABC123"].Status = types.PackageStatusPrinted

	_, err = sess.Confirm(s.ctx, ConfirmRequest{ToStatus: types.PackageStatusHandedOver})
	s.True(ierr.IsVersionConflict(err))
	s.Equal(types.SessionStatePackageDetail, sess.State())
	s.Equal(types.PackageStatusPrinted, sess.Snapshot().Current.Package.Status)
}

func (s *SessionSuite) TestConfirmRejectsDisallowedTransition() {
	sess, _ := s.newSession(types.ScanModeSingle, "", "cam-1")
	sess.Push("ABC123", "qr_code")
	_, err := sess.OpenStatusPicker()
	s.Require().NoError(err)

	_, err = sess.Confirm(s.ctx, ConfirmRequest{ToStatus: types.PackageStatusDelivered})
	s.True(ierr.IsInvalidOperation(err))
	s.Empty(s.backend.applied)
	s.Equal(types.SessionStateStatusPicker, sess.State())

	s.Require().NoError(sess.Cancel())
	s.Equal(types.SessionStateIdleScanning, sess.State())
}

func (s *SessionSuite) TestTransientLookupFailureReturnsToScanning() {
	s.backend.lookupErr = ierr.NewError("timeout").WithHint("Backend unreachable").Mark(ierr.ErrUnavailable)
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")

	s.Equal(types.DecodeOutcomeAccepted, sess.Push("ABC123", "qr_code"))
	s.Equal(types.SessionStateIdleScanning, sess.State())
	s.True(device.Active())

	notes := sess.Snapshot().Notifications
	s.Equal(ierr.ErrCodeUnavailable, notes[len(notes)-1].Code)
}

func (s *SessionSuite) TestCameraExclusivity() {
	first, _ := s.newSession(types.ScanModeSingle, "", "shared")
	second, secondDevice := s.newSession(types.ScanModeSingle, "", "shared")

	snap := second.Snapshot()
	s.Require().NotNil(snap.DeviceError)
	s.Equal(DeviceErrorBusy, snap.DeviceError.Kind)
	s.False(secondDevice.Active())

	first.Close()
	s.Require().NoError(second.RetryCamera())
	s.True(secondDevice.Active())
}

func (s *SessionSuite) TestDeviceErrorsAreDistinct() {
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")

	sess.ReportDeviceError("NotAllowedError", "denied")
	s.False(device.Active())
	snap := sess.Snapshot()
	s.Equal(DeviceErrorPermissionDenied, snap.DeviceError.Kind)
	s.NotEmpty(snap.DeviceMessage)

	// no automatic retry
	s.Equal(types.DecodeOutcomeBlocked, sess.Push("ABC123", "qr_code"))
	s.Require().NoError(sess.RetryCamera())
	s.True(device.Active())
}

func (s *SessionSuite) TestInsecureContext() {
	device := NewRemoteDevice(RemoteDeviceOptions{ID: "cam-http"})
	sess := NewSession(s.ctx, Options{Mode: types.ScanModeSingle, MinCodeLength: 3, DebounceWindow: time.Millisecond},
		device, s.registry, s.backend, s.debounce, logger.NewNoopLogger())
	sess.Open()

	snap := sess.Snapshot()
	s.Require().NotNil(snap.DeviceError)
	s.Equal(DeviceErrorInsecureContext, snap.DeviceError.Kind)
	_, owned := s.registry.Owner("cam-http")
	s.False(owned)
}

func (s *SessionSuite) TestTorch() {
	sess, device := s.newSession(types.ScanModeSingle, "", "cam-1")
	s.Require().NoError(sess.SetTorch(true))
	s.True(device.Torch())

	plain := NewRemoteDevice(RemoteDeviceOptions{ID: "cam-2", SecureContext: true})
	other := NewSession(s.ctx, Options{Mode: types.ScanModeSingle, MinCodeLength: 3, DebounceWindow: time.Millisecond},
		plain, s.registry, s.backend, s.debounce, logger.NewNoopLogger())
	other.Open()
	err := other.SetTorch(true)
	s.Require().Error(err)
	s.Equal(DeviceErrorTorchUnsupported, AsDeviceError(err).Kind)
}

func (s *SessionSuite) TestSubscribeReceivesLatestSnapshot() {
	sess, _ := s.newSession(types.ScanModeSingle, "", "cam-1")
	updates, cancel := sess.Subscribe()
	defer cancel()

	first := <-updates
	s.Equal(types.SessionStateIdleScanning, first.State)

	sess.Push("XYZ999", "qr_code")
	latest := <-updates
	s.Equal(types.SessionStateNotFound, latest.State)

	sess.Close()
	for snap := range updates {
		latest = snap
	}
	s.Equal(types.SessionStateClosed, latest.State)
}
