package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedTracer() (*Tracer, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return New("test", zap.New(core)), logs
}

func TestStartPropagatesTrace(t *testing.T) {
	tracer, _ := newObservedTracer()
	defer tracer.Close()

	root, ctx := tracer.Start(context.Background(), "root")
	assert.True(t, strings.HasPrefix(string(root.Trace), "req_"))
	assert.True(t, strings.HasPrefix(string(root.ID), "span_"))
	assert.Empty(t, root.Parent)

	// the tracer travels with the context
	child, childCtx := StartSpan(ctx, "child")
	assert.Equal(t, root.Trace, child.Trace)
	assert.Equal(t, root.ID, child.Parent)
	assert.Equal(t, child.ID, GetSpanID(childCtx))
	assert.Equal(t, root.Trace, GetTraceID(childCtx))
}

func TestStartSpanWithoutTracerIsNotLogged(t *testing.T) {
	ctx := WithTrace(context.Background(), "req_outer", "")
	span, got := StartSpan(ctx, "detached")
	span.End(0, nil)

	assert.Equal(t, TraceID("req_outer"), span.Trace)
	assert.Equal(t, ctx, got)
	assert.GreaterOrEqual(t, int64(span.Elapsed()), int64(0))
}

func TestCloseDrainsSpans(t *testing.T) {
	tracer, logs := newObservedTracer()

	ok, _ := tracer.Start(context.Background(), "ok")
	ok.Annotate(zap.String("kind", "run"))
	ok.End(200, nil)
	ok.End(500, errors.New("ignored"))

	failed, _ := tracer.Start(context.Background(), "failed")
	failed.End(0, errors.New("boom"))

	tracer.Close()
	tracer.Close()

	require.Equal(t, 2, logs.Len())
	errored := logs.FilterMessage("span completed with error").All()
	require.Len(t, errored, 1)
	assert.Equal(t, int64(500), errored[0].ContextMap()["status"])
	assert.Equal(t, "run", logs.FilterMessage("span completed").All()[0].ContextMap()["kind"])

	// after Close spans are dropped silently
	late, _ := tracer.Start(context.Background(), "late")
	late.End(200, nil)
}

func TestHTTPMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, logs := newObservedTracer()

	var seen TraceID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.GET("/examples", func(c *gin.Context) {
		seen = GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest("GET", "/examples", nil)
	req.Header.Set(TraceHeader, "req_incoming")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, TraceID("req_incoming"), seen)
	assert.Equal(t, "req_incoming", w.Header().Get(TraceHeader))
	assert.NotEmpty(t, w.Header().Get(SpanHeader))

	tracer.Close()
	entries := logs.FilterField(zap.String("operation", "GET /examples")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(http.StatusOK), entries[0].ContextMap()["status"])
}
