// Package api is the HTTP control surface. Every mutating room operation
// available over the WebSocket is mirrored here so clients behind broken
// proxies can still play.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eratosthenes-game/server/internal/v1/auth"
	"github.com/eratosthenes-game/server/internal/v1/room"
	"github.com/eratosthenes-game/server/internal/v1/uploads"
)

// PasscodeHeader carries the caller's passcode on every authenticated call.
const PasscodeHeader = "Passcode"

const identityKey = "identity"

// Uploader is the slice of the uploads client the handlers need.
type Uploader interface {
	Enabled() bool
	UploadImage(ctx context.Context, data []byte) (string, error)
	AttachmentLinks(ctx context.Context, ids []string) ([]uploads.Links, error)
}

// Handler serves the REST endpoints.
type Handler struct {
	engine    *room.Engine
	passcodes *auth.Passcodes
	uploads   Uploader
}

// NewHandler wires the handler to its collaborators.
func NewHandler(engine *room.Engine, passcodes *auth.Passcodes, uploads Uploader) *Handler {
	return &Handler{engine: engine, passcodes: passcodes, uploads: uploads}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r gin.IRouter) {
	authGroup := r.Group("/auth")
	authGroup.GET("/passcode", h.IssuePasscode)
	authGroup.GET("/passcode/decode", h.requirePasscode(), h.DecodePasscode)

	rooms := r.Group("/rooms", h.requirePasscode())
	rooms.POST("", h.CreateRoom)
	rooms.GET("/:id/can-connect", h.CanConnect)
	rooms.GET("/:id/am-i-host", h.AmIHost)
	rooms.GET("/:id/users", h.Users)
	rooms.GET("/:id/messages", h.Messages)
	rooms.POST("/:id/save-guess", h.SaveGuess)
	rooms.POST("/:id/submit-guess", h.SubmitGuess)
	rooms.POST("/:id/revoke-guess", h.RevokeGuess)
	rooms.GET("/:id/users/:userId/mute", h.Mute)
	rooms.GET("/:id/users/:userId/unmute", h.Unmute)
	rooms.POST("/:id/users/:userId/ban", h.Ban)
	rooms.POST("/:id/users/:userId/change-score", h.ChangeScore)

	uploads := r.Group("/uploads", h.requirePasscode())
	uploads.POST("/images", h.UploadImage)
	uploads.POST("/attachment-links", h.GetAttachmentLinks)
}

// requirePasscode authenticates the Passcode header and stores the decoded
// identity on the request context.
func (h *Handler) requirePasscode() gin.HandlerFunc {
	return func(c *gin.Context) {
		passcode := c.GetHeader(PasscodeHeader)
		if passcode == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  true,
				"reason": "noPasscodeHeaderProvided",
			})
			return
		}
		identity, err := h.passcodes.Decode(passcode)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":  true,
				"reason": "invalidPasscode",
			})
			return
		}
		c.Set(identityKey, *identity)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) auth.Identity {
	return c.MustGet(identityKey).(auth.Identity)
}

// respondError translates an engine refusal into its HTTP shape.
func respondError(c *gin.Context, err error) {
	var refusal *room.Error
	if !errors.As(err, &refusal) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true})
		return
	}

	status := http.StatusBadRequest
	switch refusal.Code {
	case room.CodeRoomNotFound, room.CodeUserNotFound:
		status = http.StatusNotFound
	case room.CodeYouAreNotTheHost, room.CodeUserBanned:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": true, "errorCode": refusal.Code})
}

func respondOK(c *gin.Context, extra gin.H) {
	body := gin.H{"error": false}
	for k, v := range extra {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}
