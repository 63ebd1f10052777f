package database

import (
	"database/sql"
	"fmt"
	"time"
)

var _ MaterialRepository = (*MaterialRepositoryImpl)(nil)

// MaterialRepositoryImpl handles database operations for materials.
type MaterialRepositoryImpl struct {
	db *DB
}

func NewMaterialRepository(db *DB) *MaterialRepositoryImpl {
	return &MaterialRepositoryImpl{db: db}
}

// FindByNaturalKey looks up a material by (source_id, external_id).
// Returns (nil, nil) when absent.
func (r *MaterialRepositoryImpl) FindByNaturalKey(sourceID, externalID string) (*Material, error) {
	var m Material
	var publishedAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT id, source_id, external_id, COALESCE(title, ''), COALESCE(body, ''),
		       published_at, status, COALESCE(category, ''), category_confidence,
		       first_seen_at, updated_at
		FROM materials
		WHERE source_id = $1 AND external_id = $2
	`, sourceID, externalID).Scan(
		&m.ID, &m.SourceID, &m.ExternalID, &m.Title, &m.Body,
		&publishedAt, &m.Status, &m.Category, &m.CategoryConfidence,
		&m.FirstSeenAt, &m.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find material: %w", err)
	}

	if publishedAt.Valid {
		m.PublishedAt = publishedAt.Time
	}

	return &m, nil
}

// InsertMaterial stores a first-seen material with status "new" and returns
// the generated id.
func (r *MaterialRepositoryImpl) InsertMaterial(m Material) (string, error) {
	var id string
	err := r.db.QueryRow(`
		INSERT INTO materials (source_id, external_id, title, body, published_at,
		                       status, category, category_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, m.SourceID, m.ExternalID, m.Title, m.Body, nullableTime(m.PublishedAt),
		MaterialStatusNew, m.Category, m.CategoryConfidence).Scan(&id)

	if err != nil {
		return "", fmt.Errorf("failed to insert material: %w", err)
	}

	return id, nil
}

// UpdateMaterial rewrites the tracked fields of an existing material.
func (r *MaterialRepositoryImpl) UpdateMaterial(m Material) error {
	result, err := r.db.Exec(`
		UPDATE materials
		SET title = $2, body = $3, published_at = $4, updated_at = NOW()
		WHERE id = $1
	`, m.ID, m.Title, m.Body, nullableTime(m.PublishedAt))

	if err != nil {
		return fmt.Errorf("failed to update material: %w", err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("material %s not found", m.ID)
	}

	return nil
}

// CountByStatus returns material counts grouped by processing status.
func (r *MaterialRepositoryImpl) CountByStatus() (map[string]int, error) {
	rows, err := r.db.Query(`
		SELECT status, COUNT(*)
		FROM materials
		GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count materials: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan count row: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating count rows: %w", err)
	}

	return counts, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
