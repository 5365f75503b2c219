package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/gin-gonic/gin"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type errorMapping struct {
	target  error
	status  int
	code    string
	details string
}

// errorMappings is evaluated in order; the first sentinel matched wins.
var errorMappings = []errorMapping{
	{common.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, "payload_too_large", "file exceeds the size limit"},
	{common.ErrUnsupportedType, http.StatusUnsupportedMediaType, "unsupported_type", "file type is not allowed"},
	{common.ErrValidation, http.StatusBadRequest, "validation_error", "request is invalid"},
	{common.ErrConfiguration, http.StatusBadRequest, "configuration_error", "storage backend is not configured or unreachable"},
	{common.ErrorNotFound, http.StatusNotFound, "not_found", "asset not found"},
	{common.ErrForbidden, http.StatusForbidden, "forbidden", "access denied"},
	{common.ErrTokenExpired, http.StatusUnauthorized, "unauthorized", "token expired"},
	{common.ErrInvalidToken, http.StatusUnauthorized, "unauthorized", "invalid token"},
	{common.ErrorUnauthorized, http.StatusUnauthorized, "unauthorized", "authentication required"},
	{common.ErrMigrationInProgress, http.StatusConflict, "migration_in_progress", "a migration is already running for this tenant"},
}

// errorResponse maps err to a status and a body that never carries internal
// details such as paths or backend messages.
func errorResponse(err error) (int, errorBody) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, errorBody{Error: m.code, Details: m.details}
		}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal_error", Details: "unexpected error"}
}

// writeError logs server-side failures and writes the mapped response.
func (s *HTTPServer) writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
	} else {
		s.logger.Debug(c.Request.Context(), "request rejected", "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

// badRequest reports malformed input with a caller-facing detail.
func badRequest(c *gin.Context, details string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: "validation_error", Details: details})
}
