package sandbox

import (
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var consoleMethods = []string{"log", "info", "warn", "error", "debug", "trace"}

// Console returns the base console capability. The harness takes over log,
// info and warn; whatever is left ends up in the host log at debug level.
func Console() Capability {
	return func(env *Env) (goja.Value, error) {
		obj := env.VM().NewObject()
		for _, method := range consoleMethods {
			if err := obj.Set(method, consoleFunc(env, method)); err != nil {
				return nil, err
			}
		}
		return obj, nil
	}
}

func consoleFunc(env *Env, method string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		env.Logger.Debug("Script console output",
			zap.String("channel", method),
			zap.String("message", strings.Join(parts, " ")),
		)
		return goja.Undefined()
	}
}
