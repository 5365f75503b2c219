// Package models defines server-side data models persisted in the database
// or exchanged between services and HTTP handlers.
package models

import "time"

// UploadedFile is the ledger row for one stored object. (TenantID, Key) is
// unique; URL is rewritten whenever the object moves between backends.
type UploadedFile struct {
	ID         string       `json:"id"`
	TenantID   string       `json:"tenantId"`
	Key        string       `json:"key"`
	URL        string       `json:"url"`
	FileName   string       `json:"fileName"`
	MimeType   string       `json:"mimeType"`
	FileSize   int64        `json:"fileSize"`
	Category   string       `json:"category"`
	EntityType string       `json:"entityType"`
	EntityID   string       `json:"entityId"`
	IsPublic   bool         `json:"isPublic"`
	Metadata   FileMetadata `json:"metadata"`
	UploadedAt time.Time    `json:"uploadedAt"`
}

// FileMetadata is optional descriptive data stored as jsonb.
type FileMetadata struct {
	Author      string `json:"author,omitempty"`
	Description string `json:"description,omitempty"`
	AltText     string `json:"altText,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

// StorageStats summarizes a tenant's ledger.
type StorageStats struct {
	TotalFiles int64 `json:"totalFiles"`
	TotalSize  int64 `json:"totalSize"`
}
