package sandbox

import (
	"sync"
	"time"

	"github.com/dop251/goja"
)

type timerSetKey struct{}

// timerSet tracks the host timers of one run
type timerSet struct {
	env *Env

	mu     sync.Mutex
	next   int64
	timers map[int64]*time.Timer
}

// Timers returns the setTimeout and clearTimeout capabilities. Both share
// one timer set per run.
func Timers() Capabilities {
	get := func(env *Env) *timerSet {
		return env.Local(timerSetKey{}, func() interface{} {
			ts := &timerSet{env: env, timers: make(map[int64]*time.Timer)}
			env.Track(ts)
			return ts
		}).(*timerSet)
	}

	return Capabilities{
		"setTimeout": func(env *Env) (goja.Value, error) {
			return env.VM().ToValue(get(env).setTimeout), nil
		},
		"clearTimeout": func(env *Env) (goja.Value, error) {
			return env.VM().ToValue(get(env).clearTimeout), nil
		},
	}
}

// maxTimerDelay is the largest delay in milliseconds a timer accepts; larger
// ones fire after 1ms, as in Node
const maxTimerDelay = 1<<31 - 1

func timerDelay(ms int64) time.Duration {
	if ms < 1 || ms > maxTimerDelay {
		ms = 1
	}
	return time.Duration(ms) * time.Millisecond
}

func (t *timerSet) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(t.env.VM().NewTypeError("The \"callback\" argument must be of type function"))
	}

	delay := timerDelay(call.Argument(1).ToInteger())

	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	t.mu.Lock()
	t.next++
	handle := t.next
	t.timers[handle] = time.AfterFunc(delay, func() {
		t.env.Schedule(func(*goja.Runtime) {
			if !t.take(handle) {
				return
			}
			t.env.Call(fn, args...)
		})
	})
	t.mu.Unlock()

	return t.env.VM().ToValue(handle)
}

func (t *timerSet) clearTimeout(call goja.FunctionCall) goja.Value {
	handle := call.Argument(0).ToInteger()

	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[handle]; ok {
		timer.Stop()
		delete(t.timers, handle)
	}
	return goja.Undefined()
}

// take removes a fired timer, false if it was cleared in the meantime
func (t *timerSet) take(handle int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.timers[handle]; !ok {
		return false
	}
	delete(t.timers, handle)
	return true
}

// Close stops every pending timer
func (t *timerSet) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for handle, timer := range t.timers {
		timer.Stop()
		delete(t.timers, handle)
	}
	return nil
}
