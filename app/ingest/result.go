package ingest

import (
	"time"
)

// CycleResult summarizes one fetch-then-persist pass. It is ephemeral:
// produced by the scheduler, consumed by the live fanout and by on-demand
// callers, never stored.
type CycleResult struct {
	SourceIDs  []string  `json:"source_ids"`
	Fetched    int       `json:"fetched"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Errors     int       `json:"errors"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Counts is the per-batch disposition summary returned by SaveMaterials.
type Counts struct {
	New     int
	Updated int
	Errors  int
}

// Aggregate folds per-source results into one sweep-level summary.
func Aggregate(results []CycleResult) CycleResult {
	var agg CycleResult

	for i, r := range results {
		agg.SourceIDs = append(agg.SourceIDs, r.SourceIDs...)
		agg.Fetched += r.Fetched
		agg.New += r.New
		agg.Updated += r.Updated
		agg.Errors += r.Errors

		if i == 0 || r.StartedAt.Before(agg.StartedAt) {
			agg.StartedAt = r.StartedAt
		}
		if r.FinishedAt.After(agg.FinishedAt) {
			agg.FinishedAt = r.FinishedAt
		}
	}

	return agg
}
