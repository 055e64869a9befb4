// Package health serves the liveness probe.
package health

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler answers health checks.
type Handler struct{}

// NewHandler returns a Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Check reports the server is up.
func (h *Handler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"error": false})
}
