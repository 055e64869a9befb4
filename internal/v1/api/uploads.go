package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/eratosthenes-game/server/internal/v1/logging"
)

// maxImageBytes bounds accepted image uploads.
const maxImageBytes = 10 << 20

// UploadImage stores every image in the multipart body, regardless of the
// field names, and returns the new attachment ids. With object storage
// unconfigured the endpoint degrades to an error body instead of failing the
// whole server.
func (h *Handler) UploadImage(c *gin.Context) {
	if h.uploads == nil || !h.uploads.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": true})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true})
		return
	}

	imageIDs := make([]string, 0)
	for _, files := range form.File {
		for _, file := range files {
			if file.Size > maxImageBytes {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": true})
				return
			}
			src, err := file.Open()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": true})
				return
			}
			data, err := io.ReadAll(io.LimitReader(src, maxImageBytes))
			src.Close()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": true})
				return
			}

			id, err := h.uploads.UploadImage(c.Request.Context(), data)
			if err != nil {
				logging.Error(c.Request.Context(), "image upload failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": true})
				return
			}
			imageIDs = append(imageIDs, id)
		}
	}
	if len(imageIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": true})
		return
	}
	respondOK(c, gin.H{"imageIds": imageIDs})
}

type attachmentLinksBody struct {
	AttachmentIDs []string `json:"attachmentIds"`
}

// GetAttachmentLinks exchanges attachment ids for presigned GET URLs.
func (h *Handler) GetAttachmentLinks(c *gin.Context) {
	if h.uploads == nil || !h.uploads.Enabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": true})
		return
	}

	var body attachmentLinksBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": true})
		return
	}

	links, err := h.uploads.AttachmentLinks(c.Request.Context(), body.AttachmentIDs)
	if err != nil {
		logging.Error(c.Request.Context(), "presigning attachment links failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": true})
		return
	}
	respondOK(c, gin.H{"links": links})
}
