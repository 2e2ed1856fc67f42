package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/therealutkarshpriyadarshi/mediafetch/internal/tracing"
)

// Tracing starts a server span per request and stores its context on the
// request so handlers and the job manager continue the trace
func Tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		op := c.FullPath()
		if op == "" {
			op = "unmatched"
		}
		span, ctx := tracing.StartServerSpan(c.Request, c.Request.Method+" "+op)
		defer tracing.FinishSpan(span)

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		ext.HTTPStatusCode.Set(span, uint16(status))
		if status >= 500 {
			ext.Error.Set(span, true)
		}
		if len(c.Errors) > 0 {
			span.LogKV("gin.errors", c.Errors.String())
		}
	}
}
