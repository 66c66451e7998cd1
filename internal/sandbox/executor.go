package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TryAutomation/internal/shared/id"
)

// ambientGlobals are removed from every fresh runtime before capabilities
// are installed
var ambientGlobals = []string{
	"require", "process", "module", "exports", "eval",
	"setTimeout", "setInterval", "setImmediate",
	"clearTimeout", "clearInterval", "clearImmediate",
}

type outcome struct {
	result *Result
	err    error
}

// Executor runs prepared programs, one fresh runtime per call
type Executor struct {
	config Config
	logger *logging.Logger
	slots  *Slots
}

// NewExecutor creates an executor
func NewExecutor(config Config, logger *logging.Logger) (*Executor, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.WorkDir == "" {
		config.WorkDir = filepath.Join(os.TempDir(), "try-automation")
	}
	if err := os.MkdirAll(config.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Executor{
		config: config,
		logger: logger.Named("executor"),
		slots:  NewSlots(config.MaxConcurrent, config.QueueTimeout),
	}, nil
}

// Run executes a prepared program with the given capabilities and waits for
// the promise it evaluates to.
func (x *Executor) Run(ctx context.Context, prepared string, caps Capabilities) (*Result, error) {
	release, err := x.slots.Acquire(ctx)
	if err != nil {
		if errors.Is(err, ErrBusy) {
			return nil, errBusy(err)
		}
		return nil, errExecution(err)
	}
	defer release()

	runID := id.NewRunID()
	logger := x.logger.With(zap.String("run_id", runID.String()))
	start := time.Now()

	workDir := filepath.Join(x.config.WorkDir, runID.String())
	if err := os.Mkdir(workDir, 0o700); err != nil {
		return nil, errExecution(fmt.Errorf("create run dir: %w", err))
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			logger.Warn("Failed to remove run dir", zap.Error(err))
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, x.config.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	settle := func(o outcome) {
		select {
		case done <- o:
		default:
		}
	}

	loop := eventloop.NewEventLoop(eventloop.EnableConsole(false))
	env := newEnv(runCtx, runID, workDir, logger, loop, func(err error) {
		settle(outcome{err: err})
	})
	vmReady := make(chan *goja.Runtime, 1)

	loop.Start()
	loop.RunOnLoop(func(vm *goja.Runtime) {
		env.vm = vm
		vmReady <- vm

		if err := x.prepare(env, caps); err != nil {
			settle(outcome{err: err})
			return
		}

		val, err := vm.RunString(prepared)
		if err != nil {
			settle(outcome{err: scriptError(err)})
			return
		}
		x.await(env, val, settle)
	})

	logger.Debug("Run started")

	var res outcome
	select {
	case res = <-done:
	case <-runCtx.Done():
		vm := <-vmReady
		vm.Interrupt(ErrTimeout)
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res = outcome{err: errTimeout(x.config.Timeout)}
		} else {
			res = outcome{err: errExecution(fmt.Errorf("run cancelled: %w", ctx.Err()))}
		}
	}

	// closers get a live context; cancel then reaps whatever they left
	env.close()
	cancel()
	loop.Stop()

	if res.err != nil {
		logger.Info("Run failed",
			zap.Duration("duration", time.Since(start)),
			zap.Error(res.err),
		)
		return nil, errExecution(res.err)
	}

	logger.Info("Run finished", zap.Duration("duration", time.Since(start)))
	return res.result, nil
}

// prepare strips ambient globals and installs capabilities as read-only
// bindings
func (x *Executor) prepare(env *Env, caps Capabilities) error {
	vm := env.VM()
	global := vm.GlobalObject()

	for _, name := range ambientGlobals {
		if err := global.Delete(name); err != nil {
			return fmt.Errorf("remove %s: %w", name, err)
		}
	}

	x.trackRejections(env)

	// deterministic install order
	names := make([]string, 0, len(caps))
	for name := range caps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		val, err := caps[name](env)
		if err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
		if err := global.DefineDataProperty(name, val, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
			return fmt.Errorf("install %s: %w", name, err)
		}
	}
	return nil
}

// trackRejections fails the run on a rejection nobody handles within one
// loop turn
func (x *Executor) trackRejections(env *Env) {
	pending := make(map[*goja.Promise]struct{})

	env.VM().SetPromiseRejectionTracker(func(p *goja.Promise, op goja.PromiseRejectionOperation) {
		switch op {
		case goja.PromiseRejectionReject:
			pending[p] = struct{}{}
			env.Schedule(func(*goja.Runtime) {
				if _, ok := pending[p]; !ok {
					return
				}
				delete(pending, p)
				env.Fail(fmt.Errorf("unhandled promise rejection: %s", reasonString(p.Result())))
			})
		case goja.PromiseRejectionHandle:
			delete(pending, p)
		}
	})
}

// await settles the run with the value the program's promise resolves to
func (x *Executor) await(env *Env, val goja.Value, settle func(outcome)) {
	vm := env.VM()

	obj, ok := val.(*goja.Object)
	if !ok {
		settle(outcome{err: errors.New("program did not evaluate to a promise")})
		return
	}
	then, ok := goja.AssertFunction(obj.Get("then"))
	if !ok {
		settle(outcome{err: errors.New("program did not evaluate to a promise")})
		return
	}

	onFulfilled := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		result, err := decodeResult(vm, call.Argument(0))
		settle(outcome{result: result, err: err})
		return goja.Undefined()
	})
	onRejected := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		settle(outcome{err: errors.New(reasonString(call.Argument(0)))})
		return goja.Undefined()
	})

	if _, err := then(obj, onFulfilled, onRejected); err != nil {
		settle(outcome{err: scriptError(err)})
	}
}

// Stats exposes slot usage
func (x *Executor) Stats() map[string]interface{} {
	return x.slots.Stats()
}

// InFlight returns the number of runs holding a slot
func (x *Executor) InFlight() int {
	return x.slots.InUse()
}

// Close stops accepting runs
func (x *Executor) Close() error {
	return x.slots.Close()
}

func reasonString(v goja.Value) string {
	if isNullish(v) {
		return fmt.Sprint(v)
	}
	return v.String()
}
