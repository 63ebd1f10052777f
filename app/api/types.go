package api

import (
	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/fanout"
	"newsriver/app/ingest"
	"newsriver/app/sources"
)

type Handler struct {
	scheduler  *ingest.Scheduler
	session    *sources.SessionManager
	hub        *fanout.Hub
	diagLog    *diag.Log
	materials  database.MaterialRepository
	sourceRepo database.SourceRepository
}

// LogEntryResponse is the wire shape of one diagnostics entry.
type LogEntryResponse struct {
	ID         string            `json:"id"`
	CreatedAt  string            `json:"created_at"`
	Category   string            `json:"category"`
	Component  string            `json:"component"`
	Message    string            `json:"message"`
	Context    map[string]string `json:"context,omitempty"`
	MaterialID string            `json:"material_id,omitempty"`
	Decision   string            `json:"decision,omitempty"`
}
