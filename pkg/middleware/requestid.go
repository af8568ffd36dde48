package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type contextKey string

// RequestIDKey carries the per-request correlation id through contexts.
const RequestIDKey contextKey = "requestID"

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware tags every request with a correlation id, reusing
// an upstream-assigned one when the header is already set. The id is
// echoed back in the response and stored on both the gin and request
// contexts so log lines from one admin call can be tied together.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), RequestIDKey, id),
		)
		c.Header(requestIDHeader, id)
		c.Set("requestID", id)

		c.Next()
	}
}

// GetRequestID returns the correlation id stored on ctx, or "".
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}
