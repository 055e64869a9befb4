package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eratosthenes-game/server/internal/v1/geo"
	"github.com/eratosthenes-game/server/internal/v1/room"
)

// IssuePasscode mints a fresh identity and its passcode. This is the entry
// point for a new player; everything else requires the result.
func (h *Handler) IssuePasscode(c *gin.Context) {
	identity, passcode, err := h.passcodes.Issue()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": true})
		return
	}
	respondOK(c, gin.H{"passcode": passcode, "publicId": identity.PublicID})
}

// DecodePasscode echoes the public id inside a valid passcode.
func (h *Handler) DecodePasscode(c *gin.Context) {
	respondOK(c, gin.H{"publicId": callerIdentity(c).PublicID})
}

// CreateRoom makes an empty room.
func (h *Handler) CreateRoom(c *gin.Context) {
	respondOK(c, gin.H{"roomId": h.engine.CreateRoom()})
}

// CanConnect reports whether the caller could join the room under the given
// username, without joining.
func (h *Handler) CanConnect(c *gin.Context) {
	err := h.engine.CanConnect(c.Param("id"), callerIdentity(c), c.Query("username"))
	if err != nil {
		var refusal *room.Error
		if errors.As(err, &refusal) {
			c.JSON(http.StatusOK, gin.H{"canConnect": false, "errorCode": refusal.Code})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"canConnect": true})
}

// AmIHost reports whether the caller holds the host role.
func (h *Handler) AmIHost(c *gin.Context) {
	isHost, err := h.engine.IsHost(c.Param("id"), callerIdentity(c).PrivateID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"isHost": isHost})
}

// Users lists the members sorted by score along with the room status.
func (h *Handler) Users(c *gin.Context) {
	users, status, err := h.engine.Users(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"users": users, "status": status})
}

// Messages returns the retained chat history.
func (h *Handler) Messages(c *gin.Context) {
	messages, err := h.engine.Messages(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, gin.H{"messages": messages})
}

type guessBody struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (h *Handler) bindGuess(c *gin.Context) (geo.LatLng, bool) {
	var body guessBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true})
		return geo.LatLng{}, false
	}
	return geo.LatLng{Lat: body.Lat, Lng: body.Lng}, true
}

// SaveGuess stores the caller's working guess.
func (h *Handler) SaveGuess(c *gin.Context) {
	coord, ok := h.bindGuess(c)
	if !ok {
		return
	}
	if err := h.engine.SaveGuess(c.Param("id"), callerIdentity(c).PrivateID, coord); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// SubmitGuess locks in the caller's guess.
func (h *Handler) SubmitGuess(c *gin.Context) {
	coord, ok := h.bindGuess(c)
	if !ok {
		return
	}
	if err := h.engine.SubmitGuess(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID, coord); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// RevokeGuess takes the caller's submitted guess back.
func (h *Handler) RevokeGuess(c *gin.Context) {
	if err := h.engine.RevokeGuess(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Mute silences a member. Host only.
func (h *Handler) Mute(c *gin.Context) {
	err := h.engine.Mute(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID, c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Unmute lifts a mute. Host only.
func (h *Handler) Unmute(c *gin.Context) {
	err := h.engine.Unmute(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID, c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

// Ban removes a member and bars them from rejoining. Host only.
func (h *Handler) Ban(c *gin.Context) {
	err := h.engine.Ban(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID, c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}

type changeScoreBody struct {
	Amount int64 `json:"amount"`
}

// ChangeScore adjusts a member's score by a signed amount. Host only.
func (h *Handler) ChangeScore(c *gin.Context) {
	var body changeScoreBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true})
		return
	}
	err := h.engine.ChangeScore(c.Request.Context(), c.Param("id"), callerIdentity(c).PrivateID, c.Param("userId"), body.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, nil)
}
