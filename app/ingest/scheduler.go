package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"newsriver/app/database"
	"newsriver/app/diag"
	"newsriver/app/sources"
)

// Notifier receives cycle results for live fanout. Implemented by
// fanout.Hub; nil disables broadcasting.
type Notifier interface {
	BroadcastIngest(result CycleResult)
}

// Scheduler drives ingestion cycles: a recurring full sweep plus on-demand
// single-source and single-channel runs. At most one cycle per source is in
// flight at any moment; a concurrent request for a busy source waits for and
// shares the in-flight result instead of fetching twice (no Busy rejection).
type Scheduler struct {
	sourceRepo   database.SourceRepository
	adapters     map[sources.SourceType]sources.Adapter
	saver        *Saver
	notifier     Notifier
	diagLog      *diag.Log
	interval     time.Duration
	fetchTimeout time.Duration
	fetchLimit   int

	flight singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(sourceRepo database.SourceRepository, adapters map[sources.SourceType]sources.Adapter,
	saver *Saver, notifier Notifier, diagLog *diag.Log,
	interval, fetchTimeout time.Duration, fetchLimit int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		sourceRepo:   sourceRepo,
		adapters:     adapters,
		saver:        saver,
		notifier:     notifier,
		diagLog:      diagLog,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		fetchLimit:   fetchLimit,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start launches the recurring sweep. One immediate catch-up sweep runs
// before the first tick.
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.RunAllSources(s.ctx)

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.RunAllSources(s.ctx)
			}
		}
	}()
}

// Stop cancels the ticker and waits for the in-flight sweep to wind down.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// RunAllSources sweeps every enabled source in priority order. A failing
// source is recorded to diagnostics and does not abort the rest of the
// sweep; its result carries a non-zero error count.
func (s *Scheduler) RunAllSources(ctx context.Context) []CycleResult {
	enabled, err := s.sourceRepo.ListEnabled()
	if err != nil {
		s.diagLog.Error("scheduler", err)
		return nil
	}

	slog.Debug("Starting sweep", "sources", len(enabled))

	results := make([]CycleResult, 0, len(enabled))
	for _, src := range enabled {
		select {
		case <-ctx.Done():
			return results
		default:
		}

		result, _ := s.runShared(ctx, src, s.fetchLimit)
		results = append(results, result)
	}

	return results
}

// RunSource runs one on-demand cycle for a single source. Unknown or empty
// ids are rejected with a ValidationError before any side effects.
func (s *Scheduler) RunSource(ctx context.Context, sourceID string, limit int) (CycleResult, error) {
	src, err := s.lookupSource(sourceID)
	if err != nil {
		return CycleResult{}, err
	}

	if limit <= 0 {
		limit = s.fetchLimit
	}

	return s.runShared(ctx, *src, limit)
}

// RunChannel is the channel-scoped variant of RunSource.
func (s *Scheduler) RunChannel(ctx context.Context, channelID string) (CycleResult, error) {
	src, err := s.lookupSource(channelID)
	if err != nil {
		return CycleResult{}, err
	}
	if src.Type != sources.SourceTypeChannel {
		return CycleResult{}, NewValidationError("source %s is not a channel", channelID)
	}

	return s.runShared(ctx, *src, s.fetchLimit)
}

func (s *Scheduler) lookupSource(sourceID string) (*sources.Source, error) {
	if sourceID == "" {
		return nil, NewValidationError("source id is required")
	}

	src, err := s.sourceRepo.GetSource(sourceID)
	if err != nil {
		s.diagLog.Error("scheduler", err, "source_id", sourceID)
		return nil, fmt.Errorf("failed to look up source: %w", err)
	}
	if src == nil {
		return nil, NewNotFoundError("unknown source: %s", sourceID)
	}

	return src, nil
}

// runShared serializes cycles per source: concurrent callers for the same
// source id join the in-flight run and observe its result.
func (s *Scheduler) runShared(ctx context.Context, src sources.Source, limit int) (CycleResult, error) {
	type outcome struct {
		result CycleResult
		err    error
	}

	v, _, _ := s.flight.Do(src.ID, func() (interface{}, error) {
		result, err := s.runCycle(ctx, src, limit)
		return outcome{result: result, err: err}, nil
	})

	o := v.(outcome)
	return o.result, o.err
}

func (s *Scheduler) runCycle(ctx context.Context, src sources.Source, limit int) (CycleResult, error) {
	result := CycleResult{
		SourceIDs: []string{src.ID},
		StartedAt: time.Now().UTC(),
	}

	adapter, ok := s.adapters[src.Type]
	if !ok {
		err := fmt.Errorf("no adapter for source type %q", src.Type)
		s.diagLog.Error("scheduler", err, "source_id", src.ID)
		result.Errors = 1
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.fetchTimeout)
	defer cancel()

	items, err := adapter.Fetch(fetchCtx, src, limit)
	if err != nil {
		s.diagLog.Error("scheduler", err, "source_id", src.ID, "address", src.Address)
		result.Errors = 1
		result.FinishedAt = time.Now().UTC()
		return result, err
	}

	result.Fetched = len(items)

	counts := s.saver.SaveMaterials(ctx, items)
	result.New = counts.New
	result.Updated = counts.Updated
	result.Errors = counts.Errors
	result.FinishedAt = time.Now().UTC()

	if err := s.sourceRepo.UpdateLastFetched(src.ID, result.FinishedAt); err != nil {
		s.diagLog.Error("scheduler", err, "source_id", src.ID)
	}

	if src.Name == "" && len(items) > 0 {
		if name := items[0].Meta["source_name"]; name != "" {
			if err := s.sourceRepo.UpdateSourceName(src.ID, name); err != nil {
				s.diagLog.Error("scheduler", err, "source_id", src.ID)
			}
		}
	}

	slog.Info("Cycle completed",
		"source", src.ID,
		"fetched", result.Fetched,
		"new", result.New,
		"updated", result.Updated,
		"errors", result.Errors,
		"duration", result.FinishedAt.Sub(result.StartedAt).String())

	if s.notifier != nil {
		s.notifier.BroadcastIngest(result)
	}

	return result, nil
}
