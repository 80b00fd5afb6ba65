package router

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gin-gonic/gin"
	"github.com/token_locker/handler"
	"github.com/token_locker/service"
)

// RequireSignature verifies the request signature headers and stores the
// recovered caller under handler.CallerKey. The body is restored for handlers.
func RequireSignature(signer *service.SignerService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body []byte
		if c.Request.Body != nil {
			var err error
			body, err = io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
				return
			}
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}
		caller, err := signer.Verify(
			c.GetHeader(service.HeaderAddress),
			c.GetHeader(service.HeaderTimestamp),
			c.GetHeader(service.HeaderSignature),
			c.Request.Method,
			c.Request.URL.RequestURI(),
			body,
		)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(handler.CallerKey, caller)
		c.Next()
	}
}

// RequestLogger logs every request through the process logger.
func RequestLogger() gin.HandlerFunc {
	logger := log.New("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"elapsed", time.Since(start),
		}
		if caller, ok := handler.Caller(c); ok {
			args = append(args, "caller", caller)
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("HTTP request", args...)
			return
		}
		logger.Debug("HTTP request", args...)
	}
}

// DevelopmentOnly rejects the route outside the development environment.
func DevelopmentOnly(enabled bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !enabled {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": service.ErrDevelopmentOnly.Error()})
			return
		}
		c.Next()
	}
}
