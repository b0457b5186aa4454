package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	obscontext "github.com/smallbiznis/redress/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const requestIDHeader = "X-Request-Id"

// MiddlewareConfig controls request logging behavior.
type MiddlewareConfig struct {
	Debug bool
	// ErrorClassifier maps the last handler error to an error type and code.
	ErrorClassifier func(err error) (string, string)
}

// GinMiddleware emits one http_request entry per request. Bodies, letter text
// and tracking identifiers never reach the log.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := requestIDFor(c)
		c.Request = c.Request.WithContext(obscontext.WithRequestID(c.Request.Context(), requestID))

		c.Next()

		entry := requestEntry{
			route:    routeOf(c),
			status:   c.Writer.Status(),
			duration: time.Since(start),
		}
		if last := c.Errors.Last(); last != nil && cfg.ErrorClassifier != nil {
			entry.errorType, entry.errorCode = cfg.ErrorClassifier(last.Err)
		}

		log := FromContext(c.Request.Context())
		if log == nil {
			return
		}
		fields := entry.fields(c)
		if entry.errorType != "" && cfg.Debug {
			fields = append(fields, zap.Stack("stack"))
		}
		if ce := log.Check(entry.level(), "http_request"); ce != nil {
			ce.Write(fields...)
		}
	}
}

type requestEntry struct {
	route     string
	status    int
	duration  time.Duration
	errorType string
	errorCode string
}

func (e requestEntry) fields(c *gin.Context) []zap.Field {
	fields := []zap.Field{
		zap.String("method", c.Request.Method),
		zap.String("route", e.route),
		zap.Int("status", e.status),
		zap.Int64("duration_ms", e.duration.Milliseconds()),
		zap.Int64("bytes_in", max(c.Request.ContentLength, 0)),
		zap.Int("bytes_out", max(c.Writer.Size(), 0)),
	}
	// The pixel path carries a tracking id, so only the route template is logged there.
	if !isTrackingRoute(e.route) {
		fields = append(fields, zap.String("path", c.Request.URL.Path))
	}
	if strings.HasPrefix(e.route, "/api/cases/:id") {
		fields = append(fields, zap.String("case_id", c.Param("id")))
	}
	if e.errorType != "" {
		fields = append(fields,
			zap.String("error_type", e.errorType),
			zap.String("error_code", e.errorCode),
		)
	}
	return fields
}

func (e requestEntry) level() zapcore.Level {
	switch {
	case e.status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case isTrackingRoute(e.route), e.route == "/metrics", e.route == "/health":
		return zapcore.DebugLevel
	case e.errorType == "no_credits", e.errorType == "rate_limited":
		// expected client outcomes
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func requestIDFor(c *gin.Context) string {
	requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set("request_id", requestID)
	c.Header(requestIDHeader, requestID)
	return requestID
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}

func isTrackingRoute(route string) bool {
	return strings.HasPrefix(route, "/t/")
}
