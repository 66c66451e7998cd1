package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// artifactName is the only shape of path the script may read or delete
var artifactName = regexp.MustCompile(`^(\w|\./)+\.(png|jpg|jpeg|pdf)$`)

// fsError mirrors node's error for a missing file. Refused paths use the
// same shape so a script cannot tell a refusal from absence.
type fsError struct {
	Path    string
	Syscall string
}

func enoent(path, syscall string) *fsError {
	return &fsError{Path: path, Syscall: syscall}
}

func (e *fsError) Error() string {
	return fmt.Sprintf("ENOENT: no such file or directory, %s '%s'", e.Syscall, e.Path)
}

func (e *fsError) object(vm *goja.Runtime) goja.Value {
	obj := vm.NewGoError(e)
	obj.Set("message", e.Error())
	obj.Set("code", "ENOENT")
	obj.Set("errno", -2)
	obj.Set("syscall", e.Syscall)
	obj.Set("path", e.Path)
	return obj
}

// FileSystem returns the restricted fs capability
func FileSystem() Capability {
	return func(env *Env) (goja.Value, error) {
		f := &fileFacade{env: env}
		obj := env.VM().NewObject()
		if err := obj.Set("readFileSync", f.readFileSync); err != nil {
			return nil, err
		}
		if err := obj.Set("unlinkSync", f.unlinkSync); err != nil {
			return nil, err
		}
		if err := obj.Set("watch", f.watch); err != nil {
			return nil, err
		}
		return obj, nil
	}
}

type fileFacade struct {
	env *Env
}

// artifactPath checks the allow-list and resolves the path. Refusals are
// logged on the host side only.
func (f *fileFacade) artifactPath(path string) (string, error) {
	if !artifactName.MatchString(path) {
		f.env.Logger.Debug("Refused file access", zap.String("path", path))
		return "", enoent(path, "open")
	}
	full, err := f.env.Resolve(path)
	if err != nil {
		return "", enoent(path, "open")
	}
	return full, nil
}

func (f *fileFacade) readFileSync(call goja.FunctionCall) goja.Value {
	path := call.Argument(0).String()
	full, err := f.artifactPath(path)
	if err != nil {
		f.env.Throw(err)
	}

	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		f.env.Throw(enoent(path, "open"))
	}
	if err != nil {
		f.env.Throw(err)
	}

	return f.env.VM().ToValue(f.env.VM().NewArrayBuffer(data))
}

func (f *fileFacade) unlinkSync(call goja.FunctionCall) goja.Value {
	path := call.Argument(0).String()
	full, err := f.artifactPath(path)
	if err != nil {
		f.env.Throw(err)
	}

	if err := os.Remove(full); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.env.Throw(enoent(path, "open"))
		}
		f.env.Throw(err)
	}
	return goja.Undefined()
}

// watch implements fs.watch(path, [options], listener)
func (f *fileFacade) watch(call goja.FunctionCall) goja.Value {
	vm := f.env.VM()
	path := call.Argument(0).String()

	var (
		recursive bool
		listener  goja.Callable
	)
	for i := 1; i < len(call.Arguments); i++ {
		arg := call.Arguments[i]
		if fn, ok := goja.AssertFunction(arg); ok {
			listener = fn
			continue
		}
		if obj, ok := arg.(*goja.Object); ok {
			recursive = obj.Get("recursive") != nil && obj.Get("recursive").ToBoolean()
		}
	}

	full, err := f.env.Resolve(path)
	if err != nil {
		f.env.Throw(enoent(path, "watch"))
	}

	w, err := NewWatcher(full, recursive)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			f.env.Throw(enoent(path, "watch"))
		}
		f.env.Throw(err)
	}
	f.env.Track(w)

	if listener != nil {
		go w.Run(func(ev WatchEvent) {
			f.env.Schedule(func(vm *goja.Runtime) {
				if w.Closed() {
					return
				}
				f.env.Call(listener, vm.ToValue(ev.Type), vm.ToValue(ev.Name))
			})
		})
	}

	handle := vm.NewObject()
	handle.Set("close", func(goja.FunctionCall) goja.Value {
		w.Close()
		return goja.Undefined()
	})
	return handle
}
