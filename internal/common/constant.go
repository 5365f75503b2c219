package common

// TenantKeyPrefix is the first segment of every asset key. Keys look like
// tenants/{tenantId}/{category}/{entityType}/{entityId}/{filename}.
const TenantKeyPrefix = "tenants"

// AuthorizationHeaderName carries the bearer access token on HTTP requests.
const AuthorizationHeaderName = "Authorization"
