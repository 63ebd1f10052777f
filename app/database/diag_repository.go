package database

import (
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var _ DiagRepository = (*DiagRepositoryImpl)(nil)

// DiagRepositoryImpl persists the append-only diagnostics log.
type DiagRepositoryImpl struct {
	db      *DB
	builder sq.StatementBuilderType
}

func NewDiagRepository(db *DB) *DiagRepositoryImpl {
	return &DiagRepositoryImpl{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

func (r *DiagRepositoryImpl) InsertEntry(e DiagEntry) error {
	context := e.Context
	if context == nil {
		context = map[string]string{}
	}
	contextJSON, err := json.Marshal(context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}

	query := r.builder.
		Insert("diagnostic_logs").
		Columns("category", "component", "message", "context", "material_id", "decision").
		Values(e.Category, e.Component, e.Message, contextJSON, nullableString(e.MaterialID), e.Decision)

	if _, err := query.RunWith(r.db.DB).Exec(); err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}

	return nil
}

// GetEntries returns entries of one category, most recent first.
func (r *DiagRepositoryImpl) GetEntries(category string, limit int) ([]DiagEntry, error) {
	query := r.builder.
		Select("id", "created_at", "category", "COALESCE(component, '')",
			"COALESCE(message, '')", "context", "material_id", "COALESCE(decision, '')").
		From("diagnostic_logs").
		Where(sq.Eq{"category": category}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))

	rows, err := query.RunWith(r.db.DB).Query()
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	var entries []DiagEntry
	for rows.Next() {
		var e DiagEntry
		var contextJSON []byte
		var materialID sql.NullString

		err := rows.Scan(&e.ID, &e.CreatedAt, &e.Category, &e.Component,
			&e.Message, &contextJSON, &materialID, &e.Decision)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log row: %w", err)
		}

		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &e.Context); err != nil {
				return nil, fmt.Errorf("failed to decode context: %w", err)
			}
		}
		e.MaterialID = materialID.String

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log rows: %w", err)
	}

	return entries, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
