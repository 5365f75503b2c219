package models

// AccessType controls who may stream an asset.
type AccessType string

const (
	AccessPublic       AccessType = "PUBLIC"
	AccessPassword     AccessType = "PASSWORD"
	AccessPreview      AccessType = "PREVIEW"
	AccessEnrolledOnly AccessType = "ENROLLED_ONLY"
)

// AccessDescriptor is supplied by the catalog for an owning entity
// (for example a lesson).
type AccessDescriptor struct {
	TenantID      string
	EntityType    string
	EntityID      string
	AccessType    AccessType
	IsPreview     bool
	Password      string
	AllowDownload bool
}

// Caller roles that bypass access checks.
const (
	RoleAdmin  = "admin"
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Caller is the authenticated identity behind a request.
type Caller struct {
	UserID   string
	TenantID string
	Role     string
}

// Elevated reports whether the caller administers the tenant.
func (c Caller) Elevated() bool {
	return c.Role == RoleAdmin || c.Role == RoleOwner
}
