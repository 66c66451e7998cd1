package automation

import (
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// abortReasons maps puppeteer error codes onto network error reasons
var abortReasons = map[string]network.ErrorReason{
	"aborted":            network.ErrorReasonAborted,
	"accessdenied":       network.ErrorReasonAccessDenied,
	"addressunreachable": network.ErrorReasonAddressUnreachable,
	"blockedbyclient":    network.ErrorReasonBlockedByClient,
	"connectionrefused":  network.ErrorReasonConnectionRefused,
	"failed":             network.ErrorReasonFailed,
	"timedout":           network.ErrorReasonTimedOut,
}

// Request is a paused network request awaiting a verdict
type Request struct {
	page    *Page
	ev      *fetch.EventRequestPaused
	handled atomic.Bool
}

func newRequest(p *Page, ev *fetch.EventRequestPaused) *Request {
	return &Request{page: p, ev: ev}
}

// resolve continues the request, or fails it with reason. The first verdict
// wins.
func (r *Request) resolve(reason *network.ErrorReason) {
	if r.handled.Swap(true) {
		return
	}

	var action chromedp.Action = fetch.ContinueRequest(r.ev.RequestID)
	if reason != nil {
		action = fetch.FailRequest(r.ev.RequestID, *reason)
	}

	go func() {
		if err := r.page.run(action); err != nil {
			r.page.env.Logger.Debug("Request verdict failed",
				zap.String("url", r.url()),
				zap.Error(err),
			)
		}
	}()
}

func (r *Request) url() string {
	if r.ev.Request == nil {
		return ""
	}
	return r.ev.Request.URL
}

func (r *Request) object(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = obj.Set(name, fn)
	}

	set("url", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(r.url())
	})
	set("method", func(goja.FunctionCall) goja.Value {
		if r.ev.Request == nil {
			return vm.ToValue("GET")
		}
		return vm.ToValue(r.ev.Request.Method)
	})
	set("resourceType", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(strings.ToLower(string(r.ev.ResourceType)))
	})
	set("headers", func(goja.FunctionCall) goja.Value {
		headers := map[string]interface{}{}
		if r.ev.Request != nil {
			for k, v := range r.ev.Request.Headers {
				headers[strings.ToLower(k)] = v
			}
		}
		return vm.ToValue(headers)
	})
	set("isNavigationRequest", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(r.ev.ResourceType == network.ResourceTypeDocument)
	})
	set("abort", func(call goja.FunctionCall) goja.Value {
		reason := network.ErrorReasonFailed
		if code := call.Argument(0); !goja.IsUndefined(code) {
			if mapped, ok := abortReasons[strings.ToLower(code.String())]; ok {
				reason = mapped
			}
		}
		r.resolve(&reason)
		return goja.Undefined()
	})
	set("continue", func(goja.FunctionCall) goja.Value {
		r.resolve(nil)
		return goja.Undefined()
	})
	return obj
}
