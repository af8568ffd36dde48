package logger

import (
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware logs one line per completed request on the admin surface,
// scoped to the request id assigned upstream. The request-scoped logger
// is stored on the gin context under "logger" for handlers and the
// error middleware.
func Middleware(logger *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLogger := logger.WithRequestID(c.GetString("requestID"))
		c.Set("logger", reqLogger)

		start := time.Now()
		c.Next()

		reqLogger.LogRequest(c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))

		for _, err := range c.Errors {
			reqLogger.LogError(err.Err, "request error",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"error_type", err.Type,
			)
		}
	}
}
