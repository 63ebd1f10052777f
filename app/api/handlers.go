package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/fanout"
	"newsriver/app/ingest"
	"newsriver/app/sources"
)

func NewHandler(scheduler *ingest.Scheduler, session *sources.SessionManager,
	hub *fanout.Hub, diagLog *diag.Log,
	materials database.MaterialRepository, sourceRepo database.SourceRepository) *Handler {
	return &Handler{
		scheduler:  scheduler,
		session:    session,
		hub:        hub,
		diagLog:    diagLog,
		materials:  materials,
		sourceRepo: sourceRepo,
	}
}

// Sync runs a full sweep over all enabled sources and returns the aggregate
// summary.
func (h *Handler) Sync(c *gin.Context) {
	results := h.scheduler.RunAllSources(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"sources": len(results),
		"result":  ingest.Aggregate(results),
	})
}

// ImportSource runs one on-demand cycle for a single source, with an
// optional item-count limit.
func (h *Handler) ImportSource(c *gin.Context) {
	sourceID := c.Param("id")

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	result, err := h.scheduler.RunSource(c.Request.Context(), sourceID, limit)
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// RefreshChannel runs one on-demand cycle for a single channel source.
func (h *Handler) RefreshChannel(c *gin.Context) {
	result, err := h.scheduler.RunChannel(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.renderRunError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "result": result})
}

// ResetSession drops the cached channel session; the next channel fetch
// re-establishes it from scratch.
func (h *Handler) ResetSession(c *gin.Context) {
	h.session.Reset()
	slog.Info("Channel session reset requested")

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Channel session invalidated; it will be re-established on next use",
	})
}

// Events is the live-update subscription stream. It emits a connected
// event, then ingestion results as they occur, with periodic keep-alives in
// between. Best-effort: a client that stops reading is disconnected.
func (h *Handler) Events(c *gin.Context) {
	conn := h.hub.Register(c.Query("status"))
	defer h.hub.Unregister(conn)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientGone := c.Request.Context().Done()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-conn.Done():
			return false
		case event := <-conn.Events():
			if event.Type == fanout.EventKeepAlive {
				c.SSEvent(event.Type, "ping")
			} else {
				c.SSEvent(event.Type, event.Data)
			}
			return true
		}
	})
}

// SystemLogs returns system-error diagnostics entries, most recent first.
func (h *Handler) SystemLogs(c *gin.Context) {
	h.renderLogs(c, h.diagLog.SystemLogs)
}

// CategorizationLogs returns classification decisions, most recent first.
func (h *Handler) CategorizationLogs(c *gin.Context) {
	h.renderLogs(c, h.diagLog.CategorizationLogs)
}

func (h *Handler) renderLogs(c *gin.Context, fetch func(int) ([]database.DiagEntry, error)) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = parsed
	}

	entries, err := fetch(limit)
	if err != nil {
		slog.Error("Database error", "operation", "get_logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	response := make([]LogEntryResponse, 0, len(entries))
	for _, e := range entries {
		response = append(response, LogEntryResponse{
			ID:         e.ID,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339),
			Category:   e.Category,
			Component:  e.Component,
			Message:    e.Message,
			Context:    e.Context,
			MaterialID: e.MaterialID,
			Decision:   e.Decision,
		})
	}

	c.JSON(http.StatusOK, gin.H{"entries": response, "total": len(response)})
}

// GetStats returns material counts by status and the last completed fetch.
func (h *Handler) GetStats(c *gin.Context) {
	counts, err := h.materials.CountByStatus()
	if err != nil {
		slog.Error("Database error", "operation", "count_materials", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}

	stats := gin.H{
		"materials": gin.H{
			"total":     total,
			"new":       counts[database.MaterialStatusNew],
			"processed": counts[database.MaterialStatusProcessed],
			"archived":  counts[database.MaterialStatusArchived],
		},
	}

	if last, err := h.sourceRepo.GetLastFetchTime(); err == nil && last != nil {
		stats["last_fetch_at"] = last.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"observers": h.hub.ConnectionCount(),
	}

	if sourceCount, err := h.sourceRepo.GetSourceCount(); err == nil {
		health["sources"] = sourceCount
	}

	c.JSON(http.StatusOK, health)
}

// renderRunError maps on-demand cycle failures onto the HTTP surface.
// Scheduled cycles never reach here; their errors stay in the diagnostics
// log.
func (h *Handler) renderRunError(c *gin.Context, err error) {
	var ve *ingest.ValidationError
	if errors.As(err, &ve) {
		status := http.StatusBadRequest
		if ve.NotFound() {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": ve.Error()})
		return
	}

	var fe *sources.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case sources.ErrorKindSession:
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "channel session is invalid",
				"details": fe.Error(),
				"hint":    "POST /api/channels/session/reset and retry",
			})
		default:
			c.JSON(http.StatusBadGateway, gin.H{"error": "source fetch failed", "details": fe.Error()})
		}
		return
	}

	slog.Error("On-demand cycle failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}
