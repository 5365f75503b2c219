package httpapi

import (
	"errors"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/auth"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/gin-gonic/gin"
)

const callerKey = "caller"

// accessTokenMiddleware authenticates the bearer token and stores the caller
// in the gin context.
func (s *HTTPServer) accessTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, common.ErrorUnauthorized)
			return
		}

		claims, err := auth.ParseToken(strings.TrimSpace(token), s.jwtSecret)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(callerKey, claims.Caller())
		c.Next()
	}
}

// requireElevated lets only admins and owners through.
func requireElevated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !callerFrom(c).Elevated() {
			abortWithError(c, common.ErrForbidden)
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) models.Caller {
	v, ok := c.Get(callerKey)
	if !ok {
		return models.Caller{}
	}
	caller, _ := v.(models.Caller)
	return caller
}

func abortWithError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrInvalidToken) || errors.Is(err, common.ErrTokenExpired) {
		c.Header("WWW-Authenticate", `Bearer realm="mediavault"`)
	}
	c.AbortWithStatusJSON(status, body)
}
