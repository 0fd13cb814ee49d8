package web

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/fsandov/go-rollbar/pkg/rollbar"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDKey = "request_id"

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// Recovery reports handler panics to Rollbar at critical level and answers 500.
func Recovery(n *rollbar.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			custom := requestFields(c)
			custom["panic"] = fmt.Sprint(rec)
			custom["stack"] = string(debug.Stack())
			if _, err := n.Critical(c.Request.Context(), fmt.Sprintf("panic: %v", rec), custom, rollbar.WithCallSite(callSite(c))); err != nil {
				zap.L().Error("failed to report panic", zap.String("path", c.Request.URL.Path), zap.Error(err))
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}()
		c.Next()
	}
}

// ErrorReporter sends every error attached to the gin context with c.Error.
func ErrorReporter(n *rollbar.Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		for _, ginErr := range c.Errors {
			custom := requestFields(c)
			custom["status"] = c.Writer.Status()
			if ginErr.Meta != nil {
				// Meta is arbitrary; as text it always encodes.
				custom["meta"] = fmt.Sprint(ginErr.Meta)
			}
			if _, err := n.Error(c.Request.Context(), ginErr.Error(), custom, rollbar.WithCallSite(callSite(c))); err != nil {
				zap.L().Error("failed to report request error", zap.String("path", c.Request.URL.Path), zap.Error(err))
			}
		}
	}
}

func requestFields(c *gin.Context) map[string]any {
	fields := map[string]any{
		"method":    c.Request.Method,
		"path":      c.Request.URL.Path,
		"client_ip": c.ClientIP(),
	}
	if route := c.FullPath(); route != "" {
		fields["route"] = route
	}
	if id := c.GetString(requestIDKey); id != "" {
		fields[requestIDKey] = id
	}
	return fields
}

func callSite(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return c.Request.Method + " " + route
	}
	return c.HandlerName()
}
