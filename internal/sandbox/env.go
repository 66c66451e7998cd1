package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TryAutomation/internal/shared/id"
)

// Builder turns the outcome of host work into a JS value. It runs on the
// loop goroutine, where touching the VM is safe.
type Builder func(vm *goja.Runtime) goja.Value

// Env is the per-run environment handed to capabilities.
//
// Everything that touches the VM must happen on the loop goroutine:
// capability constructors and JS-called functions already do, host
// goroutines go through Schedule.
type Env struct {
	RunID   id.RunID
	WorkDir string
	Logger  *logging.Logger

	ctx  context.Context
	loop *eventloop.EventLoop
	vm   *goja.Runtime
	fail func(error)

	locals map[interface{}]interface{}

	mu      sync.Mutex
	closers []io.Closer
	closed  bool
}

func newEnv(ctx context.Context, runID id.RunID, workDir string, logger *logging.Logger, loop *eventloop.EventLoop, fail func(error)) *Env {
	return &Env{
		RunID:   runID,
		WorkDir: workDir,
		Logger:  logger,
		ctx:     ctx,
		loop:    loop,
		fail:    fail,
	}
}

// Context is cancelled when the run ends, on every path
func (e *Env) Context() context.Context {
	return e.ctx
}

// VM returns the run's runtime. Only valid on the loop goroutine.
func (e *Env) VM() *goja.Runtime {
	return e.vm
}

// Local returns the run-scoped value stored under key, creating it with
// init on first use. Only valid on the loop goroutine.
func (e *Env) Local(key interface{}, init func() interface{}) interface{} {
	if e.locals == nil {
		e.locals = make(map[interface{}]interface{})
	}
	v, ok := e.locals[key]
	if !ok {
		v = init()
		e.locals[key] = v
	}
	return v
}

// Fail aborts the run with err. Safe from any goroutine.
func (e *Env) Fail(err error) {
	e.fail(err)
}

// Track registers a handle to be closed at teardown
func (e *Env) Track(c io.Closer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		c.Close()
		return
	}
	e.closers = append(e.closers, c)
}

// Schedule runs fn on the loop. Dropped once the run is over.
func (e *Env) Schedule(fn func(vm *goja.Runtime)) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return
	}

	e.loop.RunOnLoop(func(vm *goja.Runtime) {
		if e.isClosed() {
			return
		}
		fn(vm)
	})
}

// Call invokes a script callback; a throw fails the run.
// Must be called on the loop.
func (e *Env) Call(fn goja.Callable, args ...goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		e.Fail(scriptError(err))
	}
}

// Async runs work off the loop and returns a promise settled with its
// outcome. A nil Builder resolves to undefined.
func (e *Env) Async(work func(ctx context.Context) (Builder, error)) goja.Value {
	promise, resolve, reject := e.vm.NewPromise()

	go func() {
		build, err := work(e.ctx)
		e.Schedule(func(vm *goja.Runtime) {
			if err != nil {
				reject(e.NewError(err))
				return
			}
			if build == nil {
				resolve(goja.Undefined())
				return
			}
			resolve(build(vm))
		})
	}()

	return e.vm.ToValue(promise)
}

// NewError converts a host error into a JS Error object
func (e *Env) NewError(err error) goja.Value {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.Value()
	}
	var fsErr *fsError
	if errors.As(err, &fsErr) {
		return fsErr.object(e.vm)
	}
	return e.vm.NewGoError(err)
}

// Throw raises err inside the script. Must be called from a JS-called
// function.
func (e *Env) Throw(err error) {
	panic(e.NewError(err))
}

// Resolve maps a script path onto the run's scratch directory
func (e *Env) Resolve(path string) (string, error) {
	full := filepath.Join(e.WorkDir, path)
	rel, err := filepath.Rel(e.WorkDir, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the working directory", path)
	}
	return full, nil
}

func (e *Env) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Env) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	closers := e.closers
	e.closers = nil
	e.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			e.Logger.Debug("Failed to release run handle", zap.Error(err))
		}
	}
}

// scriptError strips goja's stack suffix so the caller sees the thrown value
func scriptError(err error) error {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return errors.New(ex.Value().String())
	}
	return err
}
