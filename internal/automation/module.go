package automation

import (
	"context"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

// Name is the global scripts reach the browser through
const Name = "puppeteer"

// Capability exposes launch and connect to scripts. sessions may be nil, in
// which case connect is always refused.
func Capability(cfg Config, sessions *SessionManager) sandbox.Capability {
	return func(env *sandbox.Env) (goja.Value, error) {
		vm := env.VM()
		obj := vm.NewObject()

		_ = obj.Set("launch", func(call goja.FunctionCall) goja.Value {
			opts := optionsOf(vm, call.Argument(0))
			args := opts.Strings("args")
			if path := opts.String("executablePath", ""); path != "" {
				env.Logger.Debug("Ignoring script executable path", zap.String("path", path))
			}

			return env.Async(func(ctx context.Context) (sandbox.Builder, error) {
				b, err := launchBrowser(env, cfg, args)
				if err != nil {
					return nil, err
				}
				env.Track(b)
				return func(vm *goja.Runtime) goja.Value {
					return b.object(vm)
				}, nil
			})
		})

		_ = obj.Set("connect", func(call goja.FunctionCall) goja.Value {
			opts := optionsOf(vm, call.Argument(0))
			endpoint := opts.String("browserWSEndpoint", "")

			return env.Async(func(ctx context.Context) (sandbox.Builder, error) {
				if sessions == nil || endpoint == "" || endpoint != sessions.Current() {
					return nil, ErrConnectRefused
				}
				b, err := connectBrowser(env, cfg, endpoint)
				if err != nil {
					return nil, err
				}
				env.Track(b)
				return func(vm *goja.Runtime) goja.Value {
					return b.object(vm)
				}, nil
			})
		})

		_ = obj.Set("executablePath", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(cfg.ChromePath)
		})

		return obj, nil
	}
}

// Capabilities returns the browser capability keyed by its global name
func Capabilities(cfg Config, sessions *SessionManager) sandbox.Capabilities {
	return sandbox.Capabilities{Name: Capability(cfg, sessions)}
}
