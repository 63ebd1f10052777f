package diag

import (
	"log/slog"

	"newsriver/app/database"
)

const (
	MinLimit     = 1
	MaxLimit     = 500
	DefaultLimit = 100
)

// Log is the append-only diagnostics record shared by the ingestion pipeline
// (writer) and the reporting endpoints (readers). Writes never return an
// error: diagnostics must not crash ingestion, so a failed append is retried
// once and then dropped.
type Log struct {
	repo database.DiagRepository
}

func NewLog(repo database.DiagRepository) *Log {
	return &Log{repo: repo}
}

// Error appends a system-error entry. kv is alternating key/value context.
func (l *Log) Error(component string, err error, kv ...string) {
	message := ""
	if err != nil {
		message = err.Error()
	}

	l.append(database.DiagEntry{
		Category:  database.DiagCategorySystemError,
		Component: component,
		Message:   message,
		Context:   pairsToMap(kv),
	})
}

// Categorization appends a classification decision for one material.
func (l *Log) Categorization(materialID, decision string, kv ...string) {
	l.append(database.DiagEntry{
		Category:   database.DiagCategoryCategorization,
		Component:  "classifier",
		Message:    decision,
		Context:    pairsToMap(kv),
		MaterialID: materialID,
		Decision:   decision,
	})
}

// SystemLogs returns system-error entries, most recent first.
func (l *Log) SystemLogs(limit int) ([]database.DiagEntry, error) {
	return l.repo.GetEntries(database.DiagCategorySystemError, ClampLimit(limit))
}

// CategorizationLogs returns categorization entries, most recent first.
func (l *Log) CategorizationLogs(limit int) ([]database.DiagEntry, error) {
	return l.repo.GetEntries(database.DiagCategoryCategorization, ClampLimit(limit))
}

func (l *Log) append(entry database.DiagEntry) {
	err := l.repo.InsertEntry(entry)
	if err == nil {
		return
	}

	// Retry once to ride out a dropped connection, then give up.
	if err = l.repo.InsertEntry(entry); err != nil {
		slog.Warn("Dropping diagnostics entry", "category", entry.Category, "component", entry.Component, "error", err)
	}
}

// ClampLimit bounds a caller-provided result count to [MinLimit, MaxLimit],
// substituting the default for zero and negatives.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit < MinLimit {
		return MinLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func pairsToMap(kv []string) map[string]string {
	if len(kv) == 0 {
		return nil
	}

	context := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		context[kv[i]] = kv[i+1]
	}
	return context
}
