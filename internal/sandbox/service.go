package sandbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
)

// Observer receives run telemetry
type Observer interface {
	ObserveRun(outcome string, duration time.Duration)
	ObserveArtifact(mimeType string, size int)
}

type nopObserver struct{}

func (nopObserver) ObserveRun(string, time.Duration) {}
func (nopObserver) ObserveArtifact(string, int)      {}

// Service rewrites, wraps and executes submitted scripts
type Service struct {
	executor *Executor
	harness  *Harness
	caps     Capabilities
	observer Observer
	logger   *logging.Logger
}

// DefaultCapabilities returns the globals every run gets besides the
// automation API
func DefaultCapabilities() Capabilities {
	return Capabilities{
		"console": Console(),
		"fs":      FileSystem(),
		"mime":    Mime(),
	}.Merge(Timers())
}

// NewService creates a service. extra is layered over the default
// capabilities, typically with the puppeteer binding.
func NewService(executor *Executor, config Config, extra Capabilities, observer Observer, logger *logging.Logger) *Service {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		executor: executor,
		harness:  NewHarness(config.ArtifactGrace),
		caps:     DefaultCapabilities().Merge(extra),
		observer: observer,
		logger:   logger.Named("sandbox"),
	}
}

// Execute runs an untrusted script and returns its log and artifact
func (s *Service) Execute(ctx context.Context, script string, opts Options) (*Result, error) {
	start := time.Now()

	rw, err := Rewrite(script, opts)
	if err != nil {
		s.logger.Warn("Script rejected", zap.Error(err))
		s.observer.ObserveRun(KindSecurityRejected.String(), time.Since(start))
		return nil, err
	}

	prepared, err := s.harness.Render(rw)
	if err != nil {
		s.observer.ObserveRun(KindExecution.String(), time.Since(start))
		return nil, errExecution(err)
	}

	result, err := s.executor.Run(ctx, prepared, s.caps)
	if err != nil {
		s.observer.ObserveRun(KindOf(err).String(), time.Since(start))
		return nil, err
	}

	s.observer.ObserveRun("success", time.Since(start))
	if result.Result != nil {
		s.observer.ObserveArtifact(result.Result.Type, len(result.Result.Buffer))
	}
	return result, nil
}

// Stats returns executor statistics
func (s *Service) Stats() map[string]interface{} {
	return s.executor.Stats()
}
