package database

import (
	"database/sql"
	"fmt"
	"time"

	"newsriver/app/sources"
)

var _ SourceRepository = (*SourceRepositoryImpl)(nil)

// SourceRepositoryImpl reads the admin-owned source rows. The ingestion core
// mutates them only to record fetch progress and backfill display names.
type SourceRepositoryImpl struct {
	db *DB
}

func NewSourceRepository(db *DB) *SourceRepositoryImpl {
	return &SourceRepositoryImpl{db: db}
}

const sourceColumns = `id, type, address, COALESCE(name, ''), enabled, priority,
       last_fetched_at, created_at, updated_at`

// ListEnabled returns enabled sources in scheduling order: priority first,
// id as tie-breaker.
func (r *SourceRepositoryImpl) ListEnabled() ([]sources.Source, error) {
	rows, err := r.db.Query(`
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE enabled = true
		ORDER BY priority DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer rows.Close()

	var result []sources.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		result = append(result, src)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating source rows: %w", err)
	}

	return result, nil
}

// GetSource retrieves a source by id. Returns (nil, nil) when absent.
func (r *SourceRepositoryImpl) GetSource(id string) (*sources.Source, error) {
	row := r.db.QueryRow(`
		SELECT `+sourceColumns+`
		FROM sources
		WHERE id = $1
	`, id)

	src, err := scanSource(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get source: %w", err)
	}

	return &src, nil
}

func (r *SourceRepositoryImpl) GetSourceCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM sources").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get source count: %w", err)
	}
	return count, nil
}

// GetLastFetchTime returns the most recent successful fetch across all
// sources, or nil when nothing has been fetched yet.
func (r *SourceRepositoryImpl) GetLastFetchTime() (*time.Time, error) {
	var last sql.NullTime
	err := r.db.QueryRow("SELECT MAX(last_fetched_at) FROM sources").Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("failed to get last fetch time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

func (r *SourceRepositoryImpl) UpdateLastFetched(id string, fetchedAt time.Time) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET last_fetched_at = $2, updated_at = NOW()
		WHERE id = $1
	`, id, fetchedAt)

	if err != nil {
		return fmt.Errorf("failed to update last fetched time: %w", err)
	}

	return nil
}

// UpdateSourceName backfills the display name from fetched metadata. Only
// sources without an admin-assigned name are touched.
func (r *SourceRepositoryImpl) UpdateSourceName(id, name string) error {
	_, err := r.db.Exec(`
		UPDATE sources
		SET name = $2, updated_at = NOW()
		WHERE id = $1 AND COALESCE(name, '') = ''
	`, id, name)

	if err != nil {
		return fmt.Errorf("failed to update source name: %w", err)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSource(row rowScanner) (sources.Source, error) {
	var src sources.Source
	var srcType string
	var lastFetched sql.NullTime

	err := row.Scan(
		&src.ID, &srcType, &src.Address, &src.Name, &src.Enabled, &src.Priority,
		&lastFetched, &src.CreatedAt, &src.UpdatedAt,
	)
	if err != nil {
		return sources.Source{}, err
	}

	src.Type = sources.SourceType(srcType)
	if lastFetched.Valid {
		t := lastFetched.Time
		src.LastFetchedAt = &t
	}

	return src, nil
}
