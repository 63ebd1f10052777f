package ingest

import (
	"context"
	"log/slog"

	"newsriver/app/classify"
	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/sources"
)

// Saver is the persistence and dedup layer: it decides the per-item
// disposition (new / updated / unchanged / failed) against the material
// store. Items are processed one by one, never as a single transaction, so
// one bad item cannot abort the batch.
type Saver struct {
	materials  database.MaterialRepository
	classifier *classify.Classifier
	diagLog    *diag.Log
}

func NewSaver(materials database.MaterialRepository, classifier *classify.Classifier, diagLog *diag.Log) *Saver {
	return &Saver{
		materials:  materials,
		classifier: classifier,
		diagLog:    diagLog,
	}
}

// SaveMaterials classifies and stores a batch of fetched items. Running the
// same batch twice yields zero new and zero updated on the second pass. A
// cancelled context stops between items; the item being written finishes.
func (s *Saver) SaveMaterials(ctx context.Context, items []sources.RawItem) Counts {
	var counts Counts

	for _, item := range items {
		select {
		case <-ctx.Done():
			slog.Debug("Save interrupted by shutdown", "remaining", len(items))
			return counts
		default:
		}

		s.saveOne(item, &counts)
	}

	return counts
}

func (s *Saver) saveOne(item sources.RawItem, counts *Counts) {
	if item.ExternalID == "" {
		counts.Errors++
		s.diagLog.Error("saver", NewValidationError("item without external id"), "source_id", item.SourceID, "title", item.Title)
		return
	}

	existing, err := s.materials.FindByNaturalKey(item.SourceID, item.ExternalID)
	if err != nil {
		counts.Errors++
		s.diagLog.Error("saver", err, "source_id", item.SourceID, "external_id", item.ExternalID)
		return
	}

	if existing == nil {
		s.insert(item, counts)
		return
	}

	if !tracked(existing, item) {
		// Unchanged re-sighting, silently skipped.
		return
	}

	existing.Title = item.Title
	existing.Body = item.Body
	existing.PublishedAt = item.PublishedAt

	if err := s.materials.UpdateMaterial(*existing); err != nil {
		counts.Errors++
		s.diagLog.Error("saver", err, "source_id", item.SourceID, "external_id", item.ExternalID)
		return
	}

	counts.Updated++
}

func (s *Saver) insert(item sources.RawItem, counts *Counts) {
	decision := s.classifier.Run(item.Title, item.Body)

	material := database.Material{
		SourceID:           item.SourceID,
		ExternalID:         item.ExternalID,
		Title:              item.Title,
		Body:               item.Body,
		PublishedAt:        item.PublishedAt,
		Category:           decision.Category,
		CategoryConfidence: decision.Confidence,
	}

	id, err := s.materials.InsertMaterial(material)
	if err != nil {
		counts.Errors++
		s.diagLog.Error("saver", err, "source_id", item.SourceID, "external_id", item.ExternalID)
		return
	}

	counts.New++
	s.diagLog.Categorization(id, decision.Reason, "category", decision.Category)
}

// tracked reports whether any tracked field differs. A changed published
// timestamp alone counts as an update.
func tracked(existing *database.Material, item sources.RawItem) bool {
	return existing.Title != item.Title ||
		existing.Body != item.Body ||
		!existing.PublishedAt.Equal(item.PublishedAt)
}
