package automation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

// fileRequests pauses every file-scheme request, even with interception off
var fileRequests = []*fetch.RequestPattern{{URLPattern: "file:*"}}

func isFileURL(u string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(u)), "file:")
}

// Page is one browser tab
type Page struct {
	browser *Browser
	env     *sandbox.Env
	ctx     context.Context
	cancel  context.CancelFunc
	id      target.ID
	owned   bool // opened by this run, closed with it

	url       atomic.Value
	intercept atomic.Bool
	closed    atomic.Bool

	// loop-only
	obj      *goja.Object
	handlers map[string][]goja.Callable
	// gate closes once every interception change requested so far has
	// reached the browser; later operations wait on it
	gate chan struct{}
}

func newPage(b *Browser, ctx context.Context, cancel context.CancelFunc) *Page {
	p := &Page{
		browser:  b,
		env:      b.env,
		ctx:      ctx,
		cancel:   cancel,
		id:       chromedp.FromContext(ctx).Target.TargetID,
		handlers: make(map[string][]goja.Callable),
		gate:     make(chan struct{}),
	}
	close(p.gate)
	p.url.Store("about:blank")
	chromedp.ListenTarget(ctx, p.onEvent)
	return p
}

// URL returns the main frame URL as last reported by the browser
func (p *Page) URL() string {
	return p.url.Load().(string)
}

func (p *Page) onEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *cdppage.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			p.url.Store(ev.Frame.URL)
		}
	case *cdppage.EventLoadEventFired:
		p.env.Schedule(func(vm *goja.Runtime) {
			p.emit("load")
		})
	case *runtime.EventConsoleAPICalled:
		p.env.Schedule(func(vm *goja.Runtime) {
			p.emit("console", consoleMessage(vm, ev))
		})
	case *fetch.EventRequestPaused:
		p.env.Schedule(func(vm *goja.Runtime) {
			p.dispatchRequest(vm, ev)
		})
	}
}

// emit calls the handlers registered for event. Loop only.
func (p *Page) emit(event string, args ...goja.Value) {
	for _, fn := range p.handlers[event] {
		p.env.Call(fn, args...)
	}
}

// guard makes the browser pause file-scheme requests on this page
func (p *Page) guard() error {
	if err := p.run(fetch.Enable().WithPatterns(fileRequests)); err != nil {
		return fmt.Errorf("guard page: %w", err)
	}
	return nil
}

func (p *Page) dispatchRequest(vm *goja.Runtime, ev *fetch.EventRequestPaused) {
	req := newRequest(p, ev)
	if isFileURL(req.url()) {
		reason := network.ErrorReasonAccessDenied
		req.resolve(&reason)
		p.env.Logger.Info("Blocked file request", zap.String("url", req.url()))
		return
	}
	if len(p.handlers["request"]) == 0 || !p.intercept.Load() {
		req.resolve(nil)
		return
	}
	p.emit("request", req.object(vm))
}

// async runs work off the loop after pending interception changes. Must be
// called on the loop.
func (p *Page) async(work func(ctx context.Context) (sandbox.Builder, error)) goja.Value {
	gate := p.gate
	return p.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if p.closed.Load() {
			return nil, ErrPageClosed
		}
		return work(ctx)
	})
}

func (p *Page) run(actions ...chromedp.Action) error {
	return chromedp.Run(p.ctx, actions...)
}

func (p *Page) object(vm *goja.Runtime) *goja.Object {
	if p.obj != nil {
		return p.obj
	}

	obj := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = obj.Set(name, fn)
	}

	set("goto", p.jsGoto)
	set("url", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(p.URL())
	})
	set("title", func(goja.FunctionCall) goja.Value {
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			var title string
			if err := p.run(chromedp.Title(&title)); err != nil {
				return nil, err
			}
			return stringValue(title), nil
		})
	})
	set("content", func(goja.FunctionCall) goja.Value {
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			var html string
			if err := p.run(chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
				return nil, err
			}
			return stringValue(html), nil
		})
	})
	set("setViewport", func(call goja.FunctionCall) goja.Value {
		opts := optionsOf(vm, call.Argument(0))
		width := opts.Int("width", 800)
		height := opts.Int("height", 600)
		scale := opts.Float("deviceScaleFactor", 1)
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, p.run(chromedp.EmulateViewport(width, height, chromedp.EmulateScale(scale)))
		})
	})
	set("evaluate", p.jsEvaluate)
	set("click", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, p.run(chromedp.Click(sel, chromedp.ByQuery))
		})
	})
	set("type", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		text := call.Argument(1).String()
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, p.run(chromedp.SendKeys(sel, text, chromedp.ByQuery))
		})
	})
	set("waitForSelector", func(call goja.FunctionCall) goja.Value {
		sel := call.Argument(0).String()
		return p.async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, p.run(chromedp.WaitVisible(sel, chromedp.ByQuery))
		})
	})
	set("screenshot", p.jsScreenshot)
	set("pdf", p.jsPDF)
	set("setRequestInterception", p.jsSetRequestInterception)
	set("on", func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
			p.handlers[event] = append(p.handlers[event], fn)
		}
		return obj
	})
	set("isClosed", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(p.closed.Load())
	})
	set("browser", func(goja.FunctionCall) goja.Value {
		return p.browser.object(vm)
	})
	set("close", func(goja.FunctionCall) goja.Value {
		return p.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, p.Close()
		})
	})

	p.obj = obj
	return obj
}

func (p *Page) jsGoto(call goja.FunctionCall) goja.Value {
	rawURL := call.Argument(0).String()
	if isFileURL(rawURL) {
		return p.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			return nil, sandbox.ErrFileScheme
		})
	}
	return p.async(func(ctx context.Context) (sandbox.Builder, error) {
		if err := p.run(chromedp.Navigate(rawURL)); err != nil {
			return nil, fmt.Errorf("navigation to %s failed: %w", rawURL, err)
		}
		return nil, nil
	})
}

func (p *Page) jsEvaluate(call goja.FunctionCall) goja.Value {
	var args []goja.Value
	if len(call.Arguments) > 1 {
		args = call.Arguments[1:]
	}
	expr, err := evaluateExpression(call.Argument(0), args)
	if err != nil {
		p.env.Throw(err)
	}

	return p.async(func(ctx context.Context) (sandbox.Builder, error) {
		var raw []byte
		err := p.run(chromedp.Evaluate(expr, &raw, func(params *runtime.EvaluateParams) *runtime.EvaluateParams {
			return params.WithAwaitPromise(true)
		}))
		if err != nil {
			return nil, err
		}
		value, err := decodeJSON(raw)
		if err != nil {
			return nil, err
		}
		return func(vm *goja.Runtime) goja.Value {
			if value == nil {
				return goja.Undefined()
			}
			return vm.ToValue(value)
		}, nil
	})
}

func (p *Page) jsScreenshot(call goja.FunctionCall) goja.Value {
	opts := optionsOf(p.env.VM(), call.Argument(0))
	path := opts.String("path", "")
	fullPage := opts.Bool("fullPage", false)
	format := strings.ToLower(opts.String("type", ""))
	if format == "" && (strings.HasSuffix(strings.ToLower(path), ".jpg") || strings.HasSuffix(strings.ToLower(path), ".jpeg")) {
		format = "jpeg"
	}
	quality := opts.Int("quality", 90)

	out, err := p.outputPath(path)
	if err != nil {
		p.env.Throw(err)
	}

	return p.async(func(ctx context.Context) (sandbox.Builder, error) {
		var buf []byte
		var action chromedp.Action
		switch {
		case fullPage && format == "jpeg":
			action = chromedp.FullScreenshot(&buf, int(quality))
		case fullPage:
			action = chromedp.FullScreenshot(&buf, 100)
		case format == "jpeg":
			action = chromedp.ActionFunc(func(ctx context.Context) error {
				var err error
				buf, err = cdppage.CaptureScreenshot().
					WithFormat(cdppage.CaptureScreenshotFormatJpeg).
					WithQuality(quality).
					Do(ctx)
				return err
			})
		default:
			action = chromedp.CaptureScreenshot(&buf)
		}

		if err := p.run(action); err != nil {
			return nil, fmt.Errorf("screenshot: %w", err)
		}
		return p.writeArtifact(out, buf)
	})
}

func (p *Page) jsPDF(call goja.FunctionCall) goja.Value {
	opts := optionsOf(p.env.VM(), call.Argument(0))
	landscape := opts.Bool("landscape", false)
	background := opts.Bool("printBackground", true)

	out, err := p.outputPath(opts.String("path", ""))
	if err != nil {
		p.env.Throw(err)
	}

	return p.async(func(ctx context.Context) (sandbox.Builder, error) {
		var buf []byte
		err := p.run(chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, _, err = cdppage.PrintToPDF().
				WithLandscape(landscape).
				WithPrintBackground(background).
				Do(ctx)
			return err
		}))
		if err != nil {
			return nil, fmt.Errorf("pdf: %w", err)
		}
		return p.writeArtifact(out, buf)
	})
}

// outputPath resolves an artifact path inside the run directory; empty
// means the bytes are only returned
func (p *Page) outputPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	return p.env.Resolve(path)
}

func (p *Page) writeArtifact(path string, buf []byte) (sandbox.Builder, error) {
	if path != "" {
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			return nil, fmt.Errorf("write artifact: %w", err)
		}
	}
	return func(vm *goja.Runtime) goja.Value {
		return vm.ToValue(vm.NewArrayBuffer(buf))
	}, nil
}

func (p *Page) jsSetRequestInterception(call goja.FunctionCall) goja.Value {
	enabled := call.Argument(0).ToBoolean()
	p.intercept.Store(enabled)

	prev := p.gate
	done := make(chan struct{})
	p.gate = done

	return p.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
		defer close(done)
		select {
		case <-prev:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		action := fetch.Enable().WithPatterns(fileRequests)
		if enabled {
			action = fetch.Enable()
		}
		if err := p.run(action); err != nil {
			return nil, fmt.Errorf("set request interception: %w", err)
		}
		return nil, nil
	})
}

// Close closes the tab. Safe to call more than once.
func (p *Page) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	defer p.cancel()
	p.browser.forget(p.id)

	if err := p.run(cdppage.Close()); err != nil {
		p.env.Logger.Debug("Page close failed", zap.String("target", string(p.id)), zap.Error(err))
		return nil
	}
	return nil
}

func consoleMessage(vm *goja.Runtime, ev *runtime.EventConsoleAPICalled) goja.Value {
	parts := make([]string, 0, len(ev.Args))
	for _, arg := range ev.Args {
		if v, err := decodeJSON([]byte(arg.Value)); err == nil && v != nil {
			parts = append(parts, fmt.Sprint(v))
			continue
		}
		parts = append(parts, arg.Description)
	}
	text := strings.Join(parts, " ")
	typ := string(ev.Type)

	msg := vm.NewObject()
	_ = msg.Set("text", func(goja.FunctionCall) goja.Value { return vm.ToValue(text) })
	_ = msg.Set("type", func(goja.FunctionCall) goja.Value { return vm.ToValue(typ) })
	return msg
}

func stringValue(s string) sandbox.Builder {
	return func(vm *goja.Runtime) goja.Value {
		return vm.ToValue(s)
	}
}
