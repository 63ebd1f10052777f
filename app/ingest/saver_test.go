package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"newsriver/app/classify"
	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/sources"
)

// mockMaterialRepo implements database.MaterialRepository in memory,
// enforcing the (source_id, external_id) natural key the way the schema does.
type mockMaterialRepo struct {
	mu        sync.Mutex
	materials map[string]database.Material // natural key -> material
	nextID    int

	failInsertFor map[string]bool // external ids whose insert fails
	failFindFor   map[string]bool
	failUpdateFor map[string]bool
}

func newMockMaterialRepo() *mockMaterialRepo {
	return &mockMaterialRepo{
		materials:     make(map[string]database.Material),
		failInsertFor: make(map[string]bool),
		failFindFor:   make(map[string]bool),
		failUpdateFor: make(map[string]bool),
	}
}

func naturalKey(sourceID, externalID string) string {
	return sourceID + "|" + externalID
}

func (m *mockMaterialRepo) FindByNaturalKey(sourceID, externalID string) (*database.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFindFor[externalID] {
		return nil, fmt.Errorf("mock find failure")
	}

	mat, ok := m.materials[naturalKey(sourceID, externalID)]
	if !ok {
		return nil, nil
	}
	return &mat, nil
}

func (m *mockMaterialRepo) InsertMaterial(mat database.Material) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failInsertFor[mat.ExternalID] {
		return "", fmt.Errorf("mock insert failure")
	}

	key := naturalKey(mat.SourceID, mat.ExternalID)
	if _, exists := m.materials[key]; exists {
		return "", fmt.Errorf("duplicate key violation")
	}

	m.nextID++
	mat.ID = strconv.Itoa(m.nextID)
	mat.Status = database.MaterialStatusNew
	mat.FirstSeenAt = time.Now().UTC()
	m.materials[key] = mat

	return mat.ID, nil
}

func (m *mockMaterialRepo) UpdateMaterial(mat database.Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failUpdateFor[mat.ExternalID] {
		return fmt.Errorf("mock update failure")
	}

	key := naturalKey(mat.SourceID, mat.ExternalID)
	if _, exists := m.materials[key]; !exists {
		return fmt.Errorf("material not found")
	}
	mat.UpdatedAt = time.Now().UTC()
	m.materials[key] = mat

	return nil
}

func (m *mockMaterialRepo) CountByStatus() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counts := make(map[string]int)
	for _, mat := range m.materials {
		counts[mat.Status]++
	}
	return counts, nil
}

func (m *mockMaterialRepo) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.materials)
}

// mockDiagRepo captures diagnostics entries and can fail the first N writes.
type mockDiagRepo struct {
	mu           sync.Mutex
	entries      []database.DiagEntry
	failuresLeft int
	insertCalls  int
	lastLimit    int
}

func (m *mockDiagRepo) InsertEntry(e database.DiagEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertCalls++
	if m.failuresLeft > 0 {
		m.failuresLeft--
		return fmt.Errorf("mock log failure")
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *mockDiagRepo) GetEntries(category string, limit int) ([]database.DiagEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLimit = limit
	var result []database.DiagEntry
	for i := len(m.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if m.entries[i].Category == category {
			result = append(result, m.entries[i])
		}
	}
	return result, nil
}

func (m *mockDiagRepo) byCategory(category string) []database.DiagEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []database.DiagEntry
	for _, e := range m.entries {
		if e.Category == category {
			result = append(result, e)
		}
	}
	return result
}

func newTestSaver(materials *mockMaterialRepo, diagRepo *mockDiagRepo) *Saver {
	classifier := classify.NewClassifier(&classify.RuleSet{
		Categories: []classify.Rule{
			{Name: "tech", Fields: []string{"title", "body"}, Keywords: []string{"golang"}, Weight: 1.0},
		},
	})
	return NewSaver(materials, classifier, diag.NewLog(diagRepo))
}

func feedBatch(sourceID string) []sources.RawItem {
	published := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []sources.RawItem{
		{SourceID: sourceID, ExternalID: "a", Title: "Golang release", Body: "golang news", PublishedAt: published},
		{SourceID: sourceID, ExternalID: "b", Title: "Second item", Body: "body b", PublishedAt: published.Add(time.Hour)},
		{SourceID: sourceID, ExternalID: "c", Title: "Third item", Body: "body c", PublishedAt: published.Add(2 * time.Hour)},
	}
}

func TestSaveMaterials_Scenario(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	// Three never-seen items
	counts := saver.SaveMaterials(context.Background(), feedBatch("src-1"))
	if counts.New != 3 || counts.Updated != 0 || counts.Errors != 0 {
		t.Errorf("Expected {new: 3, updated: 0, errors: 0}, got %+v", counts)
	}

	// Identical re-fetch is fully skipped
	counts = saver.SaveMaterials(context.Background(), feedBatch("src-1"))
	if counts.New != 0 || counts.Updated != 0 || counts.Errors != 0 {
		t.Errorf("Expected {new: 0, updated: 0, errors: 0} on identical re-run, got %+v", counts)
	}

	// Edit one title and re-fetch
	batch := feedBatch("src-1")
	batch[1].Title = "Second item (edited)"
	counts = saver.SaveMaterials(context.Background(), batch)
	if counts.New != 0 || counts.Updated != 1 || counts.Errors != 0 {
		t.Errorf("Expected {new: 0, updated: 1, errors: 0} after title edit, got %+v", counts)
	}

	if materials.size() != 3 {
		t.Errorf("Expected 3 stored materials after all runs, got %d", materials.size())
	}
}

func TestSaveMaterials_PerItemFailureIsolation(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	batch := feedBatch("src-1")
	batch[1].ExternalID = "" // malformed item in the middle of the batch

	counts := saver.SaveMaterials(context.Background(), batch)

	if counts.New != 2 {
		t.Errorf("Expected 2 successful dispositions, got %d", counts.New)
	}
	if counts.Errors != 1 {
		t.Errorf("Expected exactly 1 error, got %d", counts.Errors)
	}

	if len(diagRepo.byCategory(database.DiagCategorySystemError)) != 1 {
		t.Errorf("Expected 1 system-error entry for the bad item")
	}
}

func TestSaveMaterials_StorageFailureIsolation(t *testing.T) {
	materials := newMockMaterialRepo()
	materials.failInsertFor["b"] = true
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	counts := saver.SaveMaterials(context.Background(), feedBatch("src-1"))

	if counts.New != 2 || counts.Errors != 1 {
		t.Errorf("Expected {new: 2, errors: 1}, got %+v", counts)
	}
}

func TestSaveMaterials_PublishedChangeCountsUpdated(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	saver.SaveMaterials(context.Background(), feedBatch("src-1"))

	// Same content, shifted published timestamp: counts as updated.
	batch := feedBatch("src-1")
	batch[0].PublishedAt = batch[0].PublishedAt.Add(time.Minute)

	counts := saver.SaveMaterials(context.Background(), batch)
	if counts.Updated != 1 {
		t.Errorf("Expected published-timestamp change to count as updated, got %+v", counts)
	}
}

func TestSaveMaterials_NaturalKeyUniqueness(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	for i := 0; i < 5; i++ {
		batch := feedBatch("src-1")
		batch[0].Body = fmt.Sprintf("revision %d", i)
		saver.SaveMaterials(context.Background(), batch)
	}

	if materials.size() != 3 {
		t.Errorf("Expected at most one material per natural key, got %d rows for 3 keys", materials.size())
	}
}

func TestSaveMaterials_CategorizationLogged(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	saver.SaveMaterials(context.Background(), feedBatch("src-1"))

	entries := diagRepo.byCategory(database.DiagCategoryCategorization)
	if len(entries) != 3 {
		t.Fatalf("Expected a categorization entry per new material, got %d", len(entries))
	}

	for _, e := range entries {
		if e.MaterialID == "" {
			t.Errorf("Categorization entry should reference a material id")
		}
		if e.Decision == "" {
			t.Errorf("Categorization entry should record the decision")
		}
	}
}

func TestSaveMaterials_ContextCancelled(t *testing.T) {
	materials := newMockMaterialRepo()
	diagRepo := &mockDiagRepo{}
	saver := newTestSaver(materials, diagRepo)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	counts := saver.SaveMaterials(ctx, feedBatch("src-1"))
	if counts.New != 0 {
		t.Errorf("Expected no writes after cancellation, got %+v", counts)
	}
}
