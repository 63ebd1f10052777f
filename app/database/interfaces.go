package database

import (
	"time"

	"newsriver/app/sources"
)

type SourceRepository interface {
	ListEnabled() ([]sources.Source, error)
	GetSource(id string) (*sources.Source, error)
	GetSourceCount() (int, error)
	GetLastFetchTime() (*time.Time, error)

	UpdateLastFetched(id string, fetchedAt time.Time) error
	UpdateSourceName(id, name string) error
}

type MaterialRepository interface {
	FindByNaturalKey(sourceID, externalID string) (*Material, error)
	CountByStatus() (map[string]int, error)

	InsertMaterial(m Material) (string, error)
	UpdateMaterial(m Material) error
}

type DiagRepository interface {
	InsertEntry(e DiagEntry) error
	GetEntries(category string, limit int) ([]DiagEntry, error)
}
