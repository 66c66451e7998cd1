package sandbox

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Timeout:       5 * time.Second,
		ArtifactGrace: 100 * time.Millisecond,
		WorkDir:       t.TempDir(),
		MaxConcurrent: 4,
		QueueTimeout:  time.Second,
	}
}

// workDirs records the scratch directory of every run
type workDirs struct {
	mu   sync.Mutex
	dirs []string
}

func (w *workDirs) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}

// testCapabilities stand in for the automation API: writeFile produces an
// artifact the way a screenshot would
func testCapabilities(dirs *workDirs) Capabilities {
	return Capabilities{
		"writeFile": func(env *Env) (goja.Value, error) {
			if dirs != nil {
				dirs.mu.Lock()
				dirs.dirs = append(dirs.dirs, env.WorkDir)
				dirs.mu.Unlock()
			}
			return env.VM().ToValue(func(call goja.FunctionCall) goja.Value {
				name := call.Argument(0).String()
				data := call.Argument(1).String()
				return env.Async(func(ctx context.Context) (Builder, error) {
					full, err := env.Resolve(name)
					if err != nil {
						return nil, err
					}
					return nil, os.WriteFile(full, []byte(data), 0o644)
				})
			}), nil
		},
	}
}

func newTestService(t *testing.T, cfg Config, dirs *workDirs) *Service {
	t.Helper()
	exec, err := NewExecutor(cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { exec.Close() })
	return NewService(exec, cfg, testCapabilities(dirs), nil, logging.NewNop())
}
