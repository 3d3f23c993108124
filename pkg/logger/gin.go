package logger

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	loggerKey       = "logger"
)

// Middleware tags every request with a request id and logs one summary
// line when the handler returns. The websocket endpoints carry their
// access token in the query string, so the summary logs the matched
// route, never the raw URL.
func Middleware(l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Writer.Header().Set(headerRequestID, rid)

		reqLogger := l.With("request_id", rid)
		c.Set(loggerKey, reqLogger)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		attrs := []any{
			"method", c.Request.Method,
			"route", route,
			"status", c.Writer.Status(),
			"client_ip", c.ClientIP(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		// Upgraded connections live as long as the socket; flag them so
		// the long durations read correctly.
		if c.GetHeader("Upgrade") == "websocket" {
			attrs = append(attrs, "websocket", true)
		}
		if len(c.Errors) > 0 {
			reqLogger.Error("request", append(attrs, "errors", c.Errors.String())...)
			return
		}
		reqLogger.Info("request", attrs...)
	}
}

// FromGin returns the request-scoped logger, or the default logger when
// the middleware did not run (tests, background work).
func FromGin(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
