package sources

import (
	"context"
	"time"
)

type SourceType string

const (
	SourceTypeFeed    SourceType = "feed"
	SourceTypeChannel SourceType = "channel"
)

// Source is one configured origin of content. Rows are administered
// externally; the ingestion core only reads them and bumps the
// last-fetched timestamp.
type Source struct {
	ID            string
	Type          SourceType
	Address       string // feed URL or channel handle
	Name          string
	Enabled       bool
	Priority      int
	LastFetchedAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RawItem is a fetched, not-yet-persisted candidate. It lives only within
// one ingestion cycle. ExternalID must be stable across re-fetches of the
// same underlying item: it forms the dedup key together with SourceID.
type RawItem struct {
	SourceID    string
	ExternalID  string
	Title       string
	Body        string
	PublishedAt time.Time
	Meta        map[string]string
}

// Adapter fetches a bounded batch of candidate items from one source,
// most-recent-first by the source's own ordering. Absence of new content is
// an empty slice, not an error; a returned error is always a *FetchError.
type Adapter interface {
	Fetch(ctx context.Context, source Source, limit int) ([]RawItem, error)
}
