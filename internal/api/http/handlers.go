package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/automation"
	"github.com/GriffinCanCode/TryAutomation/internal/examples"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/TryAutomation/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/TryAutomation/internal/sandbox"
)

const runErrorPrefix = "Error running your code. "

// Runner executes scripts
type Runner interface {
	Execute(ctx context.Context, script string, opts sandbox.Options) (*sandbox.Result, error)
	Stats() map[string]interface{}
}

// Sessions is the shared browser used in reuse mode
type Sessions interface {
	Endpoint(ctx context.Context) (string, error)
	Pages(ctx context.Context) ([]automation.TargetInfo, error)
	ClosePages(ctx context.Context) (int, error)
	Status() automation.SessionStatus
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runner    Runner
	sessions  Sessions
	catalog   *examples.Catalog
	metrics   *monitoring.Metrics
	maxScript int64
	logger    *logging.Logger
}

// Options configures NewHandlers
type Options struct {
	// Sessions enables reuse mode when set
	Sessions Sessions
	// Metrics adds totals to /health when set
	Metrics *monitoring.Metrics
	// MaxScriptSize bounds the uploaded script in bytes
	MaxScriptSize int64
}

// NewHandlers creates a new handler set
func NewHandlers(runner Runner, catalog *examples.Catalog, opts Options, logger *logging.Logger) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	if opts.MaxScriptSize <= 0 {
		opts.MaxScriptSize = 64 << 10
	}
	return &Handlers{
		runner:    runner,
		sessions:  opts.Sessions,
		catalog:   catalog,
		metrics:   opts.Metrics,
		maxScript: opts.MaxScriptSize,
		logger:    logger.Named("http"),
	}
}

// Register mounts the routes. runMiddleware guards /run only.
func (h *Handlers) Register(r gin.IRouter, runMiddleware ...gin.HandlerFunc) {
	r.GET("/", h.Root)
	r.GET("/health", h.Health)
	r.GET("/examples", h.ListExamples)
	r.GET("/examples/:name", h.GetExample)
	r.POST("/run", append(runMiddleware, h.Run)...)
	r.GET("/pages", h.Pages)
	r.GET("/cleanup", h.Cleanup)
}

// Root handles the service banner
func (h *Handlers) Root(c *gin.Context) {
	renderJSON(c, http.StatusOK, gin.H{
		"status":  "online",
		"service": "Try Automation",
		"reuse":   h.sessions != nil,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	body := gin.H{
		"status":   "healthy",
		"executor": h.runner.Stats(),
		"examples": h.catalog.Len(),
	}
	if h.sessions != nil {
		body["browser"] = h.sessions.Status()
	}
	if h.metrics != nil {
		body["totals"] = h.metrics.Snapshot()
	}
	renderJSON(c, http.StatusOK, body)
}

// ListExamples returns the example filenames
func (h *Handlers) ListExamples(c *gin.Context) {
	renderJSON(c, http.StatusOK, h.catalog.Names())
}

// GetExample returns one example's source
func (h *Handlers) GetExample(c *gin.Context) {
	data, err := h.catalog.Read(c.Param("name"))
	if errors.Is(err, examples.ErrNotFound) {
		renderError(c, http.StatusNotFound, "Example not found.")
		return
	}
	if err != nil {
		h.logger.Error("Failed to read example", zap.Error(err))
		renderError(c, http.StatusInternalServerError, "Error reading example.")
		return
	}
	c.Data(http.StatusOK, "text/javascript; charset=utf-8", data)
}

// Run executes the uploaded script and returns its log and artifact
func (h *Handlers) Run(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.logger.With(zap.String("trace_id", string(tracing.GetTraceID(ctx))))

	script, status, err := h.readScript(c)
	if err != nil {
		logger.Debug("Rejected upload", zap.Error(err))
		renderError(c, status, runErrorPrefix+err.Error())
		return
	}

	var opts sandbox.Options
	if h.sessions != nil {
		endpoint, err := h.sessions.Endpoint(ctx)
		if err != nil {
			logger.Error("Shared browser unavailable", zap.Error(err))
			renderError(c, http.StatusServiceUnavailable, runErrorPrefix+"The browser is unavailable, try again shortly.")
			return
		}
		opts.ReuseSession = endpoint
	}

	span, ctx := tracing.StartSpan(ctx, "sandbox.execute")
	span.Annotate(zap.Int("script_bytes", len(script)), zap.Bool("reuse", opts.ReuseSession != ""))
	result, err := h.runner.Execute(ctx, script, opts)
	if result != nil && result.Result != nil {
		span.Annotate(zap.String("artifact", result.Result.Type))
	}
	span.End(0, err)

	if err != nil {
		kind := sandbox.KindOf(err)
		logger.Info("Run failed", zap.Stringer("kind", kind), zap.Error(err))

		status := http.StatusInternalServerError
		if kind == sandbox.KindBusy {
			status = http.StatusServiceUnavailable
		}
		renderError(c, status, runErrorPrefix+err.Error())
		return
	}

	renderJSON(c, http.StatusOK, result)
}

func (h *Handlers) readScript(c *gin.Context) (string, int, error) {
	// room for the multipart envelope around the script
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxScript+16<<10)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return "", http.StatusRequestEntityTooLarge, fmt.Errorf("script exceeds %d bytes", h.maxScript)
		}
		return "", http.StatusBadRequest, errors.New("no script file uploaded")
	}
	if header.Size > h.maxScript {
		return "", http.StatusRequestEntityTooLarge, fmt.Errorf("script exceeds %d bytes", h.maxScript)
	}

	f, err := header.Open()
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.maxScript+1))
	if err != nil {
		return "", http.StatusBadRequest, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > h.maxScript {
		return "", http.StatusRequestEntityTooLarge, fmt.Errorf("script exceeds %d bytes", h.maxScript)
	}
	return string(data), 0, nil
}

// Pages lists the URLs open in the shared browser, one per line
func (h *Handlers) Pages(c *gin.Context) {
	if h.sessions == nil {
		renderError(c, http.StatusNotFound, "Browser reuse is disabled.")
		return
	}

	pages, err := h.sessions.Pages(c.Request.Context())
	if errors.Is(err, automation.ErrNoSession) {
		c.String(http.StatusOK, "")
		return
	}
	if err != nil {
		h.logger.Error("Failed to list pages", zap.Error(err))
		renderError(c, http.StatusBadGateway, "Error listing pages.")
		return
	}

	urls := make([]string, len(pages))
	for i, p := range pages {
		urls[i] = p.URL
	}
	c.String(http.StatusOK, strings.Join(urls, "\n"))
}

// Cleanup closes every page of the shared browser
func (h *Handlers) Cleanup(c *gin.Context) {
	if h.sessions == nil {
		renderError(c, http.StatusNotFound, "Browser reuse is disabled.")
		return
	}

	closed, err := h.sessions.ClosePages(c.Request.Context())
	if err != nil && !errors.Is(err, automation.ErrNoSession) {
		h.logger.Error("Failed to close pages", zap.Error(err))
		renderJSON(c, http.StatusBadGateway, gin.H{"closed": closed, "errors": "Error closing pages."})
		return
	}

	h.logger.Info("Closed shared browser pages", zap.Int("count", closed))
	renderJSON(c, http.StatusOK, gin.H{"closed": closed})
}
