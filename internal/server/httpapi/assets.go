package httpapi

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) streamAsset(c *gin.Context) {
	caller := callerFrom(c)

	asset, err := s.services.Delivery.Resolve(c.Request.Context(), caller,
		c.Param("entityType"), c.Param("entityId"), c.Param("fileId"), c.Query("password"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.serveAsset(c, asset, c.Query("download") == "1")
}

func (s *HTTPServer) serveStatic(c *gin.Context) {
	key := strings.TrimPrefix(c.Param("key"), "/")

	asset, err := s.services.Delivery.ResolveStatic(c.Request.Context(), callerFrom(c), key)
	if err != nil {
		s.writeError(c, err)
		return
	}

	s.serveAsset(c, asset, false)
}

// serveAsset writes the protective headers and the body, honoring a single
// byte range. Watermarked images are always sent whole.
func (s *HTTPServer) serveAsset(c *gin.Context, asset *services.Asset, wantDownload bool) {
	ctx := c.Request.Context()
	caller := callerFrom(c)
	head := c.Request.Method == http.MethodHead

	disposition := "inline"
	if asset.AllowDownload && wantDownload {
		disposition = "attachment"
	}
	h := c.Writer.Header()
	h.Set("Content-Type", asset.ContentType)
	h.Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": asset.FileName}))
	h.Set("Cache-Control", "private, no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "SAMEORIGIN")

	if s.services.Delivery.Watermarks(asset) {
		h.Set("Accept-Ranges", "none")
		if head {
			c.Status(http.StatusOK)
			return
		}
		body, err := s.services.Delivery.FullBody(ctx, caller, asset)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, asset.ContentType, body)
		return
	}

	h.Set("Accept-Ranges", "bytes")

	status := http.StatusOK
	var offset, length int64 = 0, asset.Size
	if header := c.GetHeader("Range"); header != "" {
		r, err := parseRange(header, asset.Size)
		switch {
		case errors.Is(err, errRangeUnsatisfiable):
			h.Set("Content-Range", fmt.Sprintf("bytes */%d", asset.Size))
			c.AbortWithStatus(http.StatusRequestedRangeNotSatisfiable)
			return
		case err == nil:
			status = http.StatusPartialContent
			offset, length = r.start, r.length()
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", r.start, r.end, asset.Size))
		}
	}

	if head {
		h.Set("Content-Length", strconv.FormatInt(length, 10))
		c.Status(status)
		return
	}

	rc, err := s.services.Delivery.Open(ctx, asset, offset, length)
	if err != nil {
		s.writeError(c, err)
		return
	}
	defer rc.Close()

	c.DataFromReader(status, length, asset.ContentType, rc, nil)
}
