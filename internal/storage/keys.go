package storage

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/mediavault/internal/common"
)

// healthcheckPrefix holds objects written by TestConnection.
const healthcheckPrefix = ".healthcheck/"

var unsafeSegmentChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ValidateKey rejects keys that could escape a backend root or that the two
// backends would interpret differently.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("empty key: %w", common.ErrValidation)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) || strings.ContainsRune(key, 0) {
		return fmt.Errorf("malformed key: %w", common.ErrValidation)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("malformed key segment: %w", common.ErrValidation)
		}
	}
	return nil
}

// TenantPrefix is the key prefix owned by tenantID, with a trailing slash.
func TenantPrefix(tenantID string) string {
	return common.TenantKeyPrefix + "/" + tenantID + "/"
}

// BelongsToTenant reports whether key lives under tenantID's namespace.
// The check is on the cleaned key so "tenants/a/../b/x" does not pass as a.
func BelongsToTenant(key, tenantID string) bool {
	if tenantID == "" || ValidateKey(key) != nil {
		return false
	}
	return strings.HasPrefix(path.Clean(key), TenantPrefix(tenantID))
}

// SanitizeSegment turns arbitrary user input into a single safe key segment.
// It returns "" when nothing usable is left.
func SanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = unsafeSegmentChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "._")
	if len(s) > 128 {
		s = s[:128]
	}
	return s
}

// JoinKey joins segments with "/" after validating each one.
func JoinKey(segments ...string) (string, error) {
	key := strings.Join(segments, "/")
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// escapeKey percent-encodes every segment of key for use in a URL path.
func escapeKey(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
