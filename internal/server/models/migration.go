package models

import "time"

// Migration directions.
const (
	DirectionLocalToS3 = "local-to-s3"
	DirectionS3ToLocal = "s3-to-local"
)

// MigrationStatus is the lifecycle state of a migration run.
type MigrationStatus string

const (
	MigrationIdle      MigrationStatus = "idle"
	MigrationRunning   MigrationStatus = "running"
	MigrationCompleted MigrationStatus = "completed"
	MigrationFailed    MigrationStatus = "failed"
)

// MigrationError records a single item that could not be moved.
type MigrationError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// MigrationProgress is the report a migration run emits after every item and
// returns when it finishes.
type MigrationProgress struct {
	Total     int              `json:"total"`
	Completed int              `json:"completed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Current   string           `json:"current,omitempty"`
	Status    MigrationStatus  `json:"status"`
	Errors    []MigrationError `json:"errors"`
	StartedAt time.Time        `json:"startedAt"`
	EndedAt   *time.Time       `json:"endedAt,omitempty"`
}

// Clone returns a copy that does not share the Errors slice.
func (p MigrationProgress) Clone() MigrationProgress {
	out := p
	out.Errors = make([]MigrationError, len(p.Errors))
	copy(out.Errors, p.Errors)
	if p.EndedAt != nil {
		t := *p.EndedAt
		out.EndedAt = &t
	}
	return out
}

// MigrationEstimate is the answer to "how big is this migration".
type MigrationEstimate struct {
	Direction     string `json:"direction"`
	TotalFiles    int64  `json:"totalFiles"`
	TotalSize     int64  `json:"totalSize"`
	EstimatedTime string `json:"estimatedTime"`
	// EstimatedSeconds is EstimatedTime in machine-readable form.
	EstimatedSeconds int64 `json:"estimatedSeconds"`
}
