/*
Package tracing provides lightweight request tracing.

Every HTTP request gets a span. The trace id comes from the X-Trace-ID header
when a caller sends one and is generated otherwise; both ids are echoed back
in the response headers. Handlers open child spans with StartSpan. Finished
spans are logged by a background writer with the trace_id field, so all log
lines of one /run can be found together.

# Usage

	tracer := tracing.New("try-automation", logger.Logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	// inside a handler
	span, ctx := tracing.StartSpan(c.Request.Context(), "sandbox.execute")
	err := work(ctx)
	span.End(0, err)
*/
package tracing
