package services

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/common"
	"github.com/dmitrijs2005/mediavault/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// EnrollmentChecker answers whether a user is enrolled in an entity.
// catalog.Repository satisfies it.
type EnrollmentChecker interface {
	IsEnrolled(ctx context.Context, tenantID, userID, entityType, entityID string) (bool, error)
}

// AccessPolicy decides whether a caller may stream an asset.
type AccessPolicy struct {
	enrollments EnrollmentChecker
}

func NewAccessPolicy(enrollments EnrollmentChecker) *AccessPolicy {
	return &AccessPolicy{enrollments: enrollments}
}

// Decide returns nil when access is granted and an error wrapping
// common.ErrForbidden when it is not. Rules are evaluated in order and the
// first matching one wins:
//
//  1. elevated callers of the owning tenant
//  2. PUBLIC assets and previews
//  3. PASSWORD assets with a matching password
//  4. everything else requires an enrollment
func (p *AccessPolicy) Decide(ctx context.Context, caller models.Caller, d *models.AccessDescriptor, password string) error {
	if d == nil {
		return fmt.Errorf("no access descriptor: %w", common.ErrForbidden)
	}

	if caller.Elevated() && caller.TenantID == d.TenantID {
		return nil
	}

	if d.AccessType == models.AccessPublic || d.IsPreview {
		return nil
	}

	if d.AccessType == models.AccessPassword {
		if !passwordMatches(d.Password, password) {
			return fmt.Errorf("password mismatch: %w", common.ErrForbidden)
		}
		return nil
	}

	if p.enrollments == nil || caller.UserID == "" || caller.TenantID != d.TenantID {
		return fmt.Errorf("enrollment required: %w", common.ErrForbidden)
	}
	ok, err := p.enrollments.IsEnrolled(ctx, d.TenantID, caller.UserID, d.EntityType, d.EntityID)
	if err != nil {
		return fmt.Errorf("enrollment check: %w", err)
	}
	if !ok {
		return fmt.Errorf("not enrolled: %w", common.ErrForbidden)
	}
	return nil
}

// passwordMatches compares against a bcrypt hash when the stored value is
// one, and in constant time otherwise. An empty supplied password never
// matches.
func passwordMatches(stored, supplied string) bool {
	if supplied == "" || stored == "" {
		return false
	}
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

func isBcryptHash(s string) bool {
	for _, p := range []string{"$2a$", "$2b$", "$2y$"} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
