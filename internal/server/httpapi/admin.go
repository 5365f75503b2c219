package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"github.com/dmitrijs2005/mediavault/internal/server/services"
	"github.com/gin-gonic/gin"
)

type migrationRequest struct {
	Direction    string `json:"direction" binding:"required,oneof=local-to-s3 s3-to-local"`
	DeleteSource bool   `json:"deleteSource"`
	SkipExisting bool   `json:"skipExisting"`
}

// estimateMigration sizes a run without touching objects. Without a direction
// the tenant's current backend is the source.
func (s *HTTPServer) estimateMigration(c *gin.Context) {
	est, err := s.services.Migrations.Estimate(c.Request.Context(), callerFrom(c).TenantID, c.Query("direction"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// runMigration blocks until the run ends and returns the final report.
// Dropping the connection cancels the run; re-running with skipExisting
// resumes it.
func (s *HTTPServer) runMigration(c *gin.Context) {
	caller := callerFrom(c)

	var req migrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "direction must be local-to-s3 or s3-to-local")
		return
	}

	ctx := c.Request.Context()
	log := s.logger.With("tenant", caller.TenantID, "direction", req.Direction, "user", caller.UserID)
	log.Info(ctx, "migration requested", "deleteSource", req.DeleteSource, "skipExisting", req.SkipExisting)

	report, err := s.services.Migrations.Run(ctx, caller.TenantID, services.MigrationOptions{
		Direction:    req.Direction,
		DeleteSource: req.DeleteSource,
		SkipExisting: req.SkipExisting,
		Observer: func(p models.MigrationProgress) {
			log.Debug(ctx, "migration progress", "completed", p.Completed, "failed", p.Failed, "total", p.Total)
		},
	})
	if err != nil && report == nil {
		s.writeError(c, err)
		return
	}
	if err != nil {
		s.logger.Error(ctx, "migration aborted", "tenant", caller.TenantID, "error", err)
		c.JSON(http.StatusInternalServerError, report)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *HTTPServer) storageStatus(c *gin.Context) {
	st, err := s.services.Migrations.Status(c.Request.Context(), callerFrom(c).TenantID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
