package web

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestID reuses the caller's X-Request-ID or generates one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()
	}
}

// Logger writes one access log line per request. Request bodies are never
// logged since they may carry an API key.
func Logger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latencyMs", time.Since(start).Milliseconds(),
			"clientIP", c.ClientIP(),
			"requestID", c.GetString(requestIDKey),
		}

		ctx := c.Request.Context()

		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorContext(ctx, "Request is served with error", attrs...)
		case status >= http.StatusBadRequest:
			log.WarnContext(ctx, "Request is rejected", attrs...)
		default:
			log.InfoContext(ctx, "Request is served", attrs...)
		}
	}
}

// Recovery turns a handler panic into a 500 response.
func Recovery(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(c.Request.Context(), "Handler panicked",
					"panic", r,
					"path", c.Request.URL.Path,
					"requestID", c.GetString(requestIDKey))

				respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
				c.Abort()
			}
		}()

		c.Next()
	}
}
