package tracing

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/TryAutomation/internal/shared/id"
)

const (
	TraceHeader = "X-Trace-ID"
	SpanHeader  = "X-Span-ID"
)

// TraceID ties together everything one request causes
type TraceID string

// SpanID names one timed operation within a trace
type SpanID string

type ctxKey int

const (
	traceKey ctxKey = iota
	spanKey
	tracerKey
)

// Span times one operation. It is logged once, when End is called.
type Span struct {
	Trace  TraceID
	ID     SpanID
	Parent SpanID
	Op     string

	tracer  *Tracer
	start   time.Time
	elapsed time.Duration
	status  int
	err     error
	fields  []zap.Field
	ended   bool
}

// Annotate attaches fields logged with the span
func (s *Span) Annotate(fields ...zap.Field) {
	s.fields = append(s.fields, fields...)
}

// End stops the clock and hands the span to its tracer. A status of 0 means
// the operation has none; an error without a status counts as 500. Only the
// first call has an effect.
func (s *Span) End(status int, err error) {
	if s.ended {
		return
	}
	s.ended = true
	s.elapsed = time.Since(s.start)
	s.status = status
	s.err = err
	if err != nil && status == 0 {
		s.status = 500
	}
	if s.tracer != nil {
		s.tracer.enqueue(s)
	}
}

// Elapsed is the duration measured by End
func (s *Span) Elapsed() time.Duration {
	return s.elapsed
}

// Tracer logs finished spans off the request path
type Tracer struct {
	logger *zap.Logger
	queue  chan *Span

	closeOnce sync.Once
	done      chan struct{}
}

// New creates a tracer and starts its writer. Close stops it.
func New(service string, logger *zap.Logger) *Tracer {
	t := &Tracer{
		logger: logger.With(zap.String("service", service)),
		queue:  make(chan *Span, 1000),
		done:   make(chan struct{}),
	}
	go t.drain()
	return t
}

// Start opens a span below whatever span ctx carries. The returned context
// carries the new span and the tracer, so StartSpan works further down.
func (t *Tracer) Start(ctx context.Context, op string) (*Span, context.Context) {
	trace := GetTraceID(ctx)
	if trace == "" {
		trace = TraceID(id.NewRequestID())
	}

	s := &Span{
		Trace:  trace,
		ID:     SpanID(id.NewSpanID()),
		Parent: GetSpanID(ctx),
		Op:     op,
		tracer: t,
		start:  time.Now(),
	}

	ctx = WithTrace(ctx, trace, s.ID)
	return s, context.WithValue(ctx, tracerKey, t)
}

// StartSpan opens a child span with the tracer ctx carries. Without one the
// span is timed but never logged.
func StartSpan(ctx context.Context, op string) (*Span, context.Context) {
	if t, ok := ctx.Value(tracerKey).(*Tracer); ok {
		return t.Start(ctx, op)
	}
	return &Span{Trace: GetTraceID(ctx), Parent: GetSpanID(ctx), Op: op, start: time.Now()}, ctx
}

func (t *Tracer) enqueue(s *Span) {
	defer func() {
		// send on the closed queue after Close
		_ = recover()
	}()

	select {
	case t.queue <- s:
	default:
		t.logger.Warn("span buffer full, dropping span",
			zap.String("trace_id", string(s.Trace)),
			zap.String("operation", s.Op),
		)
	}
}

func (t *Tracer) drain() {
	defer close(t.done)
	for s := range t.queue {
		t.write(s)
	}
}

func (t *Tracer) write(s *Span) {
	fields := make([]zap.Field, 0, len(s.fields)+6)
	fields = append(fields,
		zap.String("trace_id", string(s.Trace)),
		zap.String("span_id", string(s.ID)),
		zap.String("operation", s.Op),
		zap.Duration("duration", s.elapsed),
	)
	if s.Parent != "" {
		fields = append(fields, zap.String("parent_id", string(s.Parent)))
	}
	if s.status != 0 {
		fields = append(fields, zap.Int("status", s.status))
	}
	fields = append(fields, s.fields...)

	if s.err != nil {
		t.logger.Warn("span completed with error", append(fields, zap.Error(s.err))...)
		return
	}
	t.logger.Debug("span completed", fields...)
}

// Close writes the spans still queued and stops the writer
func (t *Tracer) Close() {
	t.closeOnce.Do(func() {
		close(t.queue)
	})
	<-t.done
}

// WithTrace returns ctx carrying trace and span. Empty ids are not stored.
func WithTrace(ctx context.Context, trace TraceID, span SpanID) context.Context {
	if trace != "" {
		ctx = context.WithValue(ctx, traceKey, trace)
	}
	if span != "" {
		ctx = context.WithValue(ctx, spanKey, span)
	}
	return ctx
}

// GetTraceID returns the trace ctx belongs to, or ""
func GetTraceID(ctx context.Context) TraceID {
	trace, _ := ctx.Value(traceKey).(TraceID)
	return trace
}

// GetSpanID returns the innermost span of ctx, or ""
func GetSpanID(ctx context.Context) SpanID {
	span, _ := ctx.Value(spanKey).(SpanID)
	return span
}
