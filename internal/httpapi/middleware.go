package httpapi

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/Iron-Ham/turnq/internal/logging"
	"github.com/Iron-Ham/turnq/internal/slack"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Context keys set by middleware.
const (
	RequestIDHeader = "X-Request-Id"

	requestIDKey = "request_id"
	loggerKey    = "logger"
	bodyKey      = "slack_body"
)

// maxSlackBody caps inbound Slack payloads.
const maxSlackBody = 1 << 20

// RequestID tags each request with an id, reusing the caller's if present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog logs one line per request and makes a request-scoped logger
// available to handlers.
func AccessLog(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := logger.WithRequest(c.GetString(requestIDKey))
		c.Set(loggerKey, reqLog)

		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "errors", c.Errors.String())
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			reqLog.Error("request", attrs...)
		case c.Writer.Status() >= http.StatusBadRequest:
			reqLog.Warn("request", attrs...)
		default:
			reqLog.Debug("request", attrs...)
		}
	}
}

// Recovery converts handler panics into a 500 and logs them.
func Recovery(logger *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, recovered any) {
		requestLogger(c, logger).Error("handler panic", "panic", recovered, "path", c.Request.URL.Path)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"code":    http.StatusInternalServerError,
			"message": "internal error",
		})
	})
}

// VerifySlack buffers the request body and, when enabled, rejects
// requests whose Slack signature does not match. The body is restored so
// form parsing still works downstream.
func VerifySlack(signingSecret string, enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxSlackBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    http.StatusBadRequest,
				"message": "unreadable body",
			})
			return
		}
		_ = c.Request.Body.Close()

		if enabled {
			if err := slack.VerifyRequest(c.Request.Header, body, signingSecret); err != nil {
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"code":    http.StatusUnauthorized,
					"message": "invalid signature",
				})
				return
			}
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Set(bodyKey, body)
		c.Next()
	}
}

func requestLogger(c *gin.Context, fallback *logging.Logger) *logging.Logger {
	if v, ok := c.Get(loggerKey); ok {
		if l, ok := v.(*logging.Logger); ok {
			return l
		}
	}
	return fallback
}
