package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/logging"
)

func TestCorrelationID_GeneratesWhenMissing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())

	var seen string
	router.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logging.CorrelationIDKey).(string)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(HeaderXCorrelationID))
}

func TestCorrelationID_PreservesExisting(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderXCorrelationID, "fixed-id")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "fixed-id", rec.Header().Get(HeaderXCorrelationID))
}

func TestRequestLogger_DoesNotBreakRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	passcodes := auth.NewPasscodes([]byte("test-key"))
	_, passcode, err := passcodes.Issue()
	assert.NoError(t, err)

	router := gin.New()
	router.Use(RequestLogger(passcodes))
	router.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Passcode", passcode)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}
