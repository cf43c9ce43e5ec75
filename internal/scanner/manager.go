package scanner

import (
	"context"
	"time"

	"github.com/parcelbase/parcelbase/internal/cache"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	goCache "github.com/patrickmn/go-cache"
)

// CreateOptions are the client supplied parameters of a new session
type CreateOptions struct {
	Mode         types.ScanMode
	TargetStatus types.PackageStatus
	// DeviceID names the physical camera. Sessions sharing a DeviceID
	// contend for it; an empty value gives the session its own camera.
	DeviceID       string
	SecureContext  bool
	TorchSupported bool
	Location       *string
}

func (o *CreateOptions) Validate() error {
	if err := o.Mode.Validate(); err != nil {
		return err
	}
	if o.Mode == types.ScanModeBulk {
		if o.TargetStatus == "" {
			return ierr.NewError("bulk mode requires a target status").
				WithHint("Choose the status to apply before scanning").
				Mark(ierr.ErrValidation)
		}
		return o.TargetStatus.Validate()
	}
	return nil
}

// Manager owns the live scan sessions. Sessions idle for longer than the
// configured TTL are evicted and closed, which releases their camera.
type Manager struct {
	sessions *goCache.Cache
	registry *CameraRegistry
	debounce cache.Cache
	backend  Backend
	cfg      config.ScannerConfig
	logger   *logger.Logger
}

func NewManager(cfg *config.Configuration, backend Backend, registry *CameraRegistry, log *logger.Logger) *Manager {
	ttl := cfg.Scanner.SessionTTL
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}

	sessions := goCache.New(ttl, cleanup)
	sessions.OnEvicted(func(id string, v interface{}) {
		if s, ok := v.(*Session); ok {
			s.Close()
			log.Debugw("scan session removed", "session_id", id)
		}
	})

	window := cfg.Scanner.DebounceWindow
	return &Manager{
		sessions: sessions,
		registry: registry,
		debounce: cache.New(true, window, time.Minute),
		backend:  backend,
		cfg:      cfg.Scanner,
		logger:   log,
	}
}

// Create opens a session owned by the actor in ctx and starts its camera
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCAN_SESSION)
	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = id
	}

	minLen := m.cfg.MinCodeLength
	if opts.Mode == types.ScanModeBulk {
		minLen = m.cfg.BulkMinCodeLength
	}

	device := NewRemoteDevice(RemoteDeviceOptions{
		ID:              deviceID,
		SecureContext:   opts.SecureContext,
		Capabilities:    Capabilities{Torch: opts.TorchSupported},
		MaxFramesPerSec: m.cfg.MaxFramesPerSec,
	})

	s := NewSession(ctx, Options{
		ID:               id,
		OwnerID:          types.GetUserID(ctx),
		Mode:             opts.Mode,
		TargetStatus:     opts.TargetStatus,
		Location:         opts.Location,
		DebounceWindow:   m.cfg.DebounceWindow,
		MinCodeLength:    minLen,
		NoiseLiterals:    m.cfg.NoiseLiterals,
		MaxNotifications: m.cfg.MaxNotifications,
		MaxBulkResults:   m.cfg.MaxBulkResults,
		OnActivity:       m.Touch,
	}, device, m.registry, m.backend, m.debounce, m.logger)

	s.Open()
	m.sessions.Set(id, s, goCache.DefaultExpiration)

	m.logger.Infow("scan session opened",
		"session_id", id,
		"mode", opts.Mode,
		"target_status", opts.TargetStatus,
		"device_id", deviceID,
		"camera_active", s.CameraActive(),
	)
	return s, nil
}

// Get returns a live session visible to the actor in ctx and refreshes its
// idle timer. Admins can see every session.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, sessionNotFound(id)
	}
	s := v.(*Session)
	if s.Closed() {
		return nil, sessionNotFound(id)
	}
	if s.OwnerID() != "" && s.OwnerID() != types.GetUserID(ctx) && !types.IsAdmin(ctx) {
		return nil, sessionNotFound(id)
	}

	m.sessions.Set(id, s, goCache.DefaultExpiration)
	return s, nil
}

// Touch refreshes the idle timer of a live session. Sessions that are gone
// or already closed are left alone.
func (m *Manager) Touch(id string) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return
	}
	if s := v.(*Session); !s.Closed() {
		_ = m.sessions.Replace(id, s, goCache.DefaultExpiration)
	}
}

// Close ends a session and releases its camera
func (m *Manager) Close(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	m.sessions.Delete(id)
	return nil
}

// CloseAll ends every session, used on shutdown
func (m *Manager) CloseAll() {
	items := m.sessions.Items()
	for id := range items {
		m.sessions.Delete(id)
	}
	if len(items) > 0 {
		m.logger.Infow("closed all scan sessions", "count", len(items))
	}
}

func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

func sessionNotFound(id string) error {
	return ierr.NewErrorf("scan session %s not found", id).
		WithHint("The scanner session has expired. Open the scanner again.").
		WithReportableDetails(map[string]any{"session_id": id}).
		Mark(ierr.ErrNotFound)
}
