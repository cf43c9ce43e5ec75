package pyroscope

import (
	"context"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/parcelbase/parcelbase/internal/config"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/types"
	"go.uber.org/fx"
)

// Service runs the continuous profiler when profiling is enabled
type Service struct {
	cfg      *config.Configuration
	logger   *logger.Logger
	profiler *pyroscope.Profiler
}

// Module provides fx options for profiling
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewPyroscopeService),
		fx.Invoke(RegisterHooks),
	)
}

func NewPyroscopeService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return svc.Start()
		},
		OnStop: func(ctx context.Context) error {
			return svc.Stop()
		},
	})
}

// Start begins profiling; a disabled profiler is a no-op
func (s *Service) Start() error {
	pc := s.cfg.Profiling
	if !pc.Enabled {
		s.logger.Debug("profiling is disabled")
		return nil
	}

	profileTypes := s.profileTypes()
	conf := pyroscope.Config{
		ApplicationName: pc.ApplicationName,
		ServerAddress:   pc.ServerAddress,
		ProfileTypes:    profileTypes,
		SampleRate:      pc.SampleRate,
		Tags:            map[string]string{"mode": string(s.cfg.Deployment.Mode)},
		Logger:          s,
	}
	if pc.BasicAuthUser != "" {
		conf.BasicAuthUser = pc.BasicAuthUser
		conf.BasicAuthPassword = pc.BasicAuthPass
	}

	profiler, err := pyroscope.Start(conf)
	if err != nil {
		s.logger.Errorw("failed to start profiler", "error", err)
		return err
	}
	s.profiler = profiler

	s.logger.Infow("profiling started",
		"application_name", pc.ApplicationName,
		"server_address", pc.ServerAddress,
		"profile_types", len(profileTypes),
	)
	return nil
}

// Stop flushes and stops the profiler if it was started
func (s *Service) Stop() error {
	if s.profiler == nil {
		return nil
	}
	s.logger.Info("stopping profiler")
	err := s.profiler.Stop()
	s.profiler = nil
	return err
}

func (s *Service) Debugf(format string, args ...interface{}) {
	if s.cfg.Logging.Level == types.LogLevelDebug {
		s.logger.Debugf("[pyroscope] "+format, args...)
	}
}

func (s *Service) Infof(format string, args ...interface{}) {
	s.logger.Infof("[pyroscope] "+format, args...)
}

func (s *Service) Errorf(format string, args ...interface{}) {
	s.logger.Errorf("[pyroscope] "+format, args...)
}

var profileTypeNames = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

func (s *Service) profileTypes() []pyroscope.ProfileType {
	if len(s.cfg.Profiling.ProfileTypes) == 0 {
		// scan sessions are goroutine heavy, so those are on by default
		return []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileGoroutines,
		}
	}

	var out []pyroscope.ProfileType
	for _, name := range s.cfg.Profiling.ProfileTypes {
		pt, ok := profileTypeNames[strings.ToLower(name)]
		if !ok {
			s.logger.Warnw("unknown profile type", "type", name)
			continue
		}
		out = append(out, pt)
	}
	return out
}
