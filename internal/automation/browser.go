package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

var (
	ErrBrowserClosed  = errors.New("browser has been closed")
	ErrPageClosed     = errors.New("page has been closed")
	ErrNoSession      = errors.New("no shared browser session")
	ErrConnectRefused = errors.New("connect is only available for the shared browser session")
)

// Browser is a launched or attached Chrome owned by one run
type Browser struct {
	env         *sandbox.Env
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	// attached mode only
	endpoint string
	devtools *DevTools
	anchor   target.ID

	mu     sync.Mutex
	pages  map[target.ID]*Page
	closed bool

	// loop-only
	obj      *goja.Object
	handlers map[string][]goja.Callable
}

func newBrowser(env *sandbox.Env, ctx context.Context, cancel, allocCancel context.CancelFunc) *Browser {
	return &Browser{
		env:         env,
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		pages:       make(map[target.ID]*Page),
		handlers:    make(map[string][]goja.Callable),
	}
}

// start runs the first action on a fresh browser context within timeout.
// The context itself must not carry the deadline, it owns the browser.
func start(ctx context.Context, timeout time.Duration) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(ctx)
	}()

	if timeout <= 0 {
		timeout = DefaultConfig().LaunchTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("browser did not start within %s", timeout)
	}
}

// launchBrowser starts a private Chrome bound to the run
func launchBrowser(env *sandbox.Env, cfg Config, args []string) (*Browser, error) {
	opts, dropped := cfg.allocatorOptions(args)
	if len(dropped) > 0 {
		env.Logger.Info("Ignoring launch flags", zap.Strings("flags", dropped))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(env.Context(), opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	if err := start(ctx, cfg.LaunchTimeout); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := newBrowser(env, ctx, cancel, allocCancel)
	// the initial tab shares the browser context, closing it must not
	// cancel the browser
	first := newPage(b, ctx, func() {})
	if err := first.guard(); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	first.owned = true
	b.remember(first)

	env.Logger.Debug("Browser launched", zap.Strings("args", args))
	return b, nil
}

// connectBrowser attaches to a running Chrome through a tab of its own
func connectBrowser(env *sandbox.Env, cfg Config, endpoint string) (*Browser, error) {
	devtools, err := DevToolsForEndpoint(endpoint, 2)
	if err != nil {
		return nil, err
	}

	anchor, err := devtools.NewPage(env.Context(), "about:blank")
	if err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(env.Context(), endpoint)
	ctx, cancel := chromedp.NewContext(allocCtx, chromedp.WithTargetID(target.ID(anchor.ID)))

	if err := start(ctx, cfg.LaunchTimeout); err != nil {
		cancel()
		allocCancel()
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		_ = devtools.ClosePage(closeCtx, anchor.ID)
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	b := newBrowser(env, ctx, cancel, allocCancel)
	b.endpoint = endpoint
	b.devtools = devtools
	b.anchor = target.ID(anchor.ID)

	env.Logger.Debug("Browser attached", zap.String("endpoint", endpoint))
	return b, nil
}

// Attached reports whether the browser belongs to someone else
func (b *Browser) Attached() bool {
	return b.devtools != nil
}

func (b *Browser) remember(p *Page) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pages[p.id] = p
}

func (b *Browser) forget(id target.ID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pages, id)
}

func (b *Browser) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// NewPage opens a tab
func (b *Browser) NewPage() (*Page, error) {
	if b.isClosed() {
		return nil, ErrBrowserClosed
	}

	ctx, cancel := chromedp.NewContext(b.ctx)
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("new page: %w", err)
	}

	p := newPage(b, ctx, cancel)
	if err := p.guard(); err != nil {
		cancel()
		return nil, fmt.Errorf("new page: %w", err)
	}
	p.owned = true
	b.remember(p)
	return p, nil
}

// Pages returns every open page, attaching to the ones not opened here
func (b *Browser) Pages() ([]*Page, error) {
	if b.isClosed() {
		return nil, ErrBrowserClosed
	}

	infos, err := chromedp.Targets(b.ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	var pages []*Page
	for _, info := range infos {
		if info.Type != "page" || info.TargetID == b.anchor {
			continue
		}

		b.mu.Lock()
		p, ok := b.pages[info.TargetID]
		b.mu.Unlock()
		if !ok {
			ctx, cancel := chromedp.NewContext(b.ctx, chromedp.WithTargetID(info.TargetID))
			if err := chromedp.Run(ctx); err != nil {
				cancel()
				continue
			}
			p = newPage(b, ctx, cancel)
			if err := p.guard(); err != nil {
				cancel()
				continue
			}
			p.url.Store(info.URL)
			b.remember(p)
		}
		pages = append(pages, p)
	}
	return pages, nil
}

// Version returns the browser product string
func (b *Browser) Version() (string, error) {
	var product string
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		_, product, _, _, _, err = browser.GetVersion().Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
		return err
	}))
	return product, err
}

// Close releases the browser. A launched browser is shut down; an attached
// one only loses the tabs this run opened.
func (b *Browser) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	var owned []*Page
	for _, p := range b.pages {
		if p.owned {
			owned = append(owned, p)
		}
	}
	b.mu.Unlock()

	if b.Attached() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		for _, p := range owned {
			if p.closed.Swap(true) {
				continue
			}
			if err := b.devtools.ClosePage(ctx, string(p.id)); err != nil {
				b.env.Logger.Debug("Failed to close page", zap.Error(err))
			}
		}
		if err := b.devtools.ClosePage(ctx, string(b.anchor)); err != nil {
			b.env.Logger.Debug("Failed to close anchor page", zap.Error(err))
		}
	} else {
		for _, p := range owned {
			p.closed.Store(true)
		}
	}

	b.cancel()
	b.allocCancel()
	return nil
}

func (b *Browser) emit(event string, args ...goja.Value) {
	for _, fn := range b.handlers[event] {
		b.env.Call(fn, args...)
	}
}

func (b *Browser) object(vm *goja.Runtime) *goja.Object {
	if b.obj != nil {
		return b.obj
	}

	obj := vm.NewObject()
	set := func(name string, fn func(goja.FunctionCall) goja.Value) {
		_ = obj.Set(name, fn)
	}

	set("newPage", func(goja.FunctionCall) goja.Value {
		return b.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			p, err := b.NewPage()
			if err != nil {
				return nil, err
			}
			return func(vm *goja.Runtime) goja.Value {
				page := p.object(vm)
				b.emit("targetcreated", b.targetObject(vm, p))
				return page
			}, nil
		})
	})
	set("pages", func(goja.FunctionCall) goja.Value {
		return b.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			pages, err := b.Pages()
			if err != nil {
				return nil, err
			}
			return func(vm *goja.Runtime) goja.Value {
				items := make([]interface{}, len(pages))
				for i, p := range pages {
					items[i] = p.object(vm)
				}
				return vm.NewArray(items...)
			}, nil
		})
	})
	set("on", func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
			b.handlers[event] = append(b.handlers[event], fn)
		}
		return obj
	})
	set("wsEndpoint", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(b.endpoint)
	})
	set("version", func(goja.FunctionCall) goja.Value {
		return b.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			product, err := b.Version()
			if err != nil {
				return nil, err
			}
			return stringValue(product), nil
		})
	})
	set("isConnected", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(!b.isClosed())
	})
	closeFn := func(goja.FunctionCall) goja.Value {
		return b.env.Async(func(ctx context.Context) (sandbox.Builder, error) {
			if err := b.Close(); err != nil {
				return nil, err
			}
			return func(vm *goja.Runtime) goja.Value {
				b.emit("disconnected")
				return goja.Undefined()
			}, nil
		})
	}
	set("close", closeFn)
	set("disconnect", closeFn)

	b.obj = obj
	return obj
}

// targetObject describes a page target for targetcreated listeners
func (b *Browser) targetObject(vm *goja.Runtime, p *Page) *goja.Object {
	obj := vm.NewObject()
	_ = obj.Set("page", func(goja.FunctionCall) goja.Value {
		promise, resolve, _ := vm.NewPromise()
		_ = resolve(p.object(vm))
		return vm.ToValue(promise)
	})
	_ = obj.Set("url", func(goja.FunctionCall) goja.Value {
		return vm.ToValue(p.URL())
	})
	_ = obj.Set("type", func(goja.FunctionCall) goja.Value {
		return vm.ToValue("page")
	})
	_ = obj.Set("browser", func(goja.FunctionCall) goja.Value {
		return b.object(vm)
	})
	return obj
}
