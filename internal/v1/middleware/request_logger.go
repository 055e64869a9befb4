// Package middleware contains Gin middleware for the application.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/api"
	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/logging"
)

// RequestLogger emits one telemetry entry per HTTP request, marked for the
// http_requests quickwit index. The private id is resolved from the Passcode
// header when one is present, so per-player request streams can be queried.
func RequestLogger(passcodes *auth.Passcodes) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		privateID := "missing"
		if passcode := c.GetHeader(api.PasscodeHeader); passcode != "" {
			if identity, err := passcodes.Decode(passcode); err == nil {
				privateID = identity.PrivateID
			}
		}

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = c.Request.URL.Path
		}

		logging.Info(c.Request.Context(), "http request",
			zap.String(logging.TaskField, logging.TaskHTTPRequest),
			zap.String("http_method", c.Request.Method),
			zap.String("endpoint", endpoint),
			zap.String("client_ip", c.ClientIP()),
			zap.String("private_id", privateID),
			zap.Int("status", c.Writer.Status()),
			zap.Int64("processing_time_ms", time.Since(start).Milliseconds()),
			zap.Int64("timestamp", start.Unix()))
	}
}
