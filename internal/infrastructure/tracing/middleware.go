package tracing

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// HTTPMiddleware opens a span per request, continuing the caller's trace when
// it sends X-Trace-ID, and echoes both ids in the response headers
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithTrace(c.Request.Context(),
			TraceID(c.GetHeader(TraceHeader)),
			SpanID(c.GetHeader(SpanHeader)),
		)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		span, ctx := tracer.Start(ctx, c.Request.Method+" "+route)
		span.Annotate(zap.String("client_ip", c.ClientIP()))

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, string(span.Trace))
		c.Header(SpanHeader, string(span.ID))

		c.Next()

		var err error
		if last := c.Errors.Last(); last != nil {
			err = last
		}
		span.End(c.Writer.Status(), err)
	}
}
