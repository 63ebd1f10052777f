package database

import (
	"time"
)

const (
	MaterialStatusNew       = "new"
	MaterialStatusProcessed = "processed"
	MaterialStatusArchived  = "archived"
)

// Material is the persisted, canonical content record. The
// (source_id, external_id) pair is its natural key: a re-fetch of the same
// external identifier updates fields instead of duplicating the row.
// Materials are never deleted; archival is a status transition.
type Material struct {
	ID                 string // Database UUID
	SourceID           string
	ExternalID         string
	Title              string
	Body               string
	PublishedAt        time.Time
	Status             string
	Category           string
	CategoryConfidence float64
	FirstSeenAt        time.Time
	UpdatedAt          time.Time
}

const (
	DiagCategorySystemError    = "system-error"
	DiagCategoryCategorization = "categorization"
)

// DiagEntry is one append-only diagnostics record. Immutable once written.
type DiagEntry struct {
	ID         string
	CreatedAt  time.Time
	Category   string
	Component  string
	Message    string
	Context    map[string]string
	MaterialID string // categorization entries only
	Decision   string // categorization entries only
}
