package automation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/resilience"
)

var chromeCandidates = []string{
	"google-chrome-stable",
	"google-chrome",
	"chromium",
	"chromium-browser",
	"headless-shell",
	"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
}

// findChrome resolves the binary to start for the shared session
func findChrome(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	for _, name := range chromeCandidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", errors.New("no chrome binary found")
}

// SessionStatus describes the shared browser
type SessionStatus struct {
	ID       string        `json:"id"`
	Endpoint string        `json:"endpoint,omitempty"`
	Mode     string        `json:"mode"`
	Running  bool          `json:"running"`
	Breaker  string        `json:"breaker"`
	Uptime   time.Duration `json:"uptime"`
}

// SessionManager owns the long-lived browser that reuse-mode scripts
// connect to. It is started lazily and restarted when it stops answering.
type SessionManager struct {
	cfg     Config
	logger  *logging.Logger
	breaker *resilience.Breaker

	mu       sync.Mutex
	id       string
	devtools *DevTools
	endpoint string
	cmd      *exec.Cmd
	dataDir  string
	started  time.Time
	closed   bool
}

// NewSessionManager creates a manager; no browser is started until the first
// call to Endpoint
func NewSessionManager(cfg Config, logger *logging.Logger) *SessionManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &SessionManager{
		cfg:    cfg,
		logger: logger.Named("session"),
	}

	settings := resilience.BrowserSettings()
	settings.OnStateChange = func(name string, from, to resilience.State) {
		s.logger.Warn("Browser session breaker changed state",
			zap.String("from", from.String()),
			zap.String("to", to.String()))
	}
	s.breaker = resilience.New("browser-session", settings)
	return s
}

func (s *SessionManager) mode() string {
	if s.cfg.Endpoint != "" {
		return "attach"
	}
	return "launch"
}

// Endpoint returns the websocket endpoint of a live shared browser, starting
// or restarting it if needed
func (s *SessionManager) Endpoint(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", ErrNoSession
	}

	if s.devtools != nil {
		if info, err := s.devtools.Version(ctx); err == nil {
			s.endpoint = info.WebSocketDebuggerURL
			return s.endpoint, nil
		}
		s.logger.Warn("Shared browser stopped answering, restarting")
		s.stopLocked()
	}

	err := s.breaker.Do(ctx, func(ctx context.Context) error {
		if s.cfg.Endpoint != "" {
			return s.attachLocked(ctx)
		}
		return s.launchLocked(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("shared browser: %w", err)
	}
	return s.endpoint, nil
}

// Current returns the endpoint handed out last, or "" when no session runs
func (s *SessionManager) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endpoint
}

func (s *SessionManager) attachLocked(ctx context.Context) error {
	devtools, err := DevToolsForEndpoint(s.cfg.Endpoint, 2)
	if err != nil {
		return err
	}
	info, err := devtools.Version(ctx)
	if err != nil {
		return err
	}

	s.devtools = devtools
	s.endpoint = info.WebSocketDebuggerURL
	s.id = uuid.NewString()
	s.started = time.Now()

	// leftovers from an earlier server start
	if n, err := s.closePagesLocked(ctx); err == nil && n > 0 {
		s.logger.Info("Closed stale pages", zap.Int("count", n))
	}

	s.logger.Info("Attached to shared browser",
		zap.String("session", s.id),
		zap.String("endpoint", s.endpoint))
	return nil
}

func (s *SessionManager) launchLocked(ctx context.Context) error {
	chrome, err := findChrome(s.cfg.ChromePath)
	if err != nil {
		return err
	}

	dataDir, err := os.MkdirTemp("", "try-automation-chrome-*")
	if err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	port := s.cfg.DebuggingPort
	if port == 0 {
		port = DefaultConfig().DebuggingPort
	}
	args := []string{
		"--headless=new",
		fmt.Sprintf("--remote-debugging-port=%d", port),
		"--remote-debugging-address=127.0.0.1",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--no-first-run",
		"--no-default-browser-check",
		"--mute-audio",
		fmt.Sprintf("--user-data-dir=%s", dataDir),
		"about:blank",
	}

	cmd := exec.Command(chrome, args...)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if err := cmd.Start(); err != nil {
		_ = os.RemoveAll(dataDir)
		return fmt.Errorf("start chrome: %w", err)
	}

	devtools := NewDevTools(fmt.Sprintf("http://127.0.0.1:%d", port), 0)
	info, err := s.waitReady(ctx, devtools)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		_ = os.RemoveAll(dataDir)
		return err
	}

	s.cmd = cmd
	s.dataDir = dataDir
	s.devtools = devtools
	s.endpoint = info.WebSocketDebuggerURL
	s.id = uuid.NewString()
	s.started = time.Now()

	s.logger.Info("Shared browser started",
		zap.String("session", s.id),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("endpoint", s.endpoint))
	return nil
}

func (s *SessionManager) waitReady(ctx context.Context, devtools *DevTools) (*VersionInfo, error) {
	timeout := s.cfg.LaunchTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().LaunchTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		info, err := devtools.Version(ctx)
		if err == nil {
			return info, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chrome did not become ready: %w", err)
		case <-ticker.C:
		}
	}
}

// Pages lists the pages open in the shared browser
func (s *SessionManager) Pages(ctx context.Context) ([]TargetInfo, error) {
	s.mu.Lock()
	devtools := s.devtools
	s.mu.Unlock()

	if devtools == nil {
		return nil, ErrNoSession
	}
	return devtools.Pages(ctx)
}

// ClosePages closes every page of the shared browser and reports how many
// were closed
func (s *SessionManager) ClosePages(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closePagesLocked(ctx)
}

func (s *SessionManager) closePagesLocked(ctx context.Context) (int, error) {
	if s.devtools == nil {
		return 0, ErrNoSession
	}

	pages, err := s.devtools.Pages(ctx)
	if err != nil {
		return 0, err
	}

	var closed int
	var errs []error
	for _, p := range pages {
		if err := s.devtools.ClosePage(ctx, p.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		closed++
	}
	return closed, errors.Join(errs...)
}

// Status reports the session state
func (s *SessionManager) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SessionStatus{
		ID:       s.id,
		Endpoint: s.endpoint,
		Mode:     s.mode(),
		Running:  s.devtools != nil,
		Breaker:  s.breaker.State().String(),
	}
	if !s.started.IsZero() && status.Running {
		status.Uptime = time.Since(s.started)
	}
	return status
}

func (s *SessionManager) stopLocked() {
	if s.cmd != nil && s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
		_ = s.cmd.Wait()
	}
	if s.dataDir != "" {
		_ = os.RemoveAll(s.dataDir)
	}
	s.cmd = nil
	s.dataDir = ""
	s.devtools = nil
	s.endpoint = ""
	s.started = time.Time{}
}

// Close stops a browser started by the manager. An attached browser is left
// running.
func (s *SessionManager) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.cmd != nil {
		s.logger.Info("Stopping shared browser", zap.String("session", s.id))
	}
	s.stopLocked()
	return nil
}
