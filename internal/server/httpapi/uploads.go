package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/optimizer"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/gin-gonic/gin"
)

// multipartOverhead is allowed on top of the file limit for form fields and
// boundaries.
const multipartOverhead = 1 << 20

type uploadForm struct {
	Category    string `form:"category" binding:"required"`
	EntityType  string `form:"entityType" binding:"required"`
	EntityID    string `form:"entityId" binding:"required"`
	IsPublic    bool   `form:"isPublic"`
	Author      string `form:"author"`
	Description string `form:"description"`
	AltText     string `form:"altText"`
	Width       int    `form:"width" binding:"gte=0"`
	Height      int    `form:"height" binding:"gte=0"`
}

type uploadResponse struct {
	Success      bool              `json:"success"`
	ID           string            `json:"id"`
	URL          string            `json:"url"`
	FileName     string            `json:"fileName"`
	FileSize     int64             `json:"fileSize"`
	MimeType     string            `json:"mimeType"`
	Optimization *optimizer.Result `json:"optimization,omitempty"`
}

func (s *HTTPServer) upload(c *gin.Context) {
	caller := callerFrom(c)

	if s.options.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.options.MaxUploadBytes+multipartOverhead)
	}

	var form uploadForm
	if err := c.ShouldBind(&form); err != nil {
		if isBodyTooLarge(err) {
			s.writeError(c, common.ErrPayloadTooLarge)
			return
		}
		badRequest(c, "category, entityType and entityId are required")
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		if isBodyTooLarge(err) {
			s.writeError(c, common.ErrPayloadTooLarge)
			return
		}
		badRequest(c, "file is required")
		return
	}
	if s.options.MaxUploadBytes > 0 && fh.Size > s.options.MaxUploadBytes {
		s.writeError(c, common.ErrPayloadTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.writeError(c, err)
		return
	}

	out, err := s.services.Uploads.Upload(c.Request.Context(), caller.TenantID, services.UploadInput{
		FileName:   fh.Filename,
		Data:       data,
		MimeType:   fh.Header.Get("Content-Type"),
		Category:   form.Category,
		EntityType: form.EntityType,
		EntityID:   form.EntityID,
		IsPublic:   form.IsPublic,
		Metadata: models.FileMetadata{
			Author:      form.Author,
			Description: form.Description,
			AltText:     form.AltText,
			Width:       form.Width,
			Height:      form.Height,
		},
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		Success:      true,
		ID:           out.File.ID,
		URL:          out.File.URL,
		FileName:     out.File.FileName,
		FileSize:     out.File.FileSize,
		MimeType:     out.File.MimeType,
		Optimization: out.Optimization,
	})
}

func (s *HTTPServer) deleteUpload(c *gin.Context) {
	caller := callerFrom(c)
	if err := s.services.Uploads.Delete(c.Request.Context(), caller.TenantID, c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}
