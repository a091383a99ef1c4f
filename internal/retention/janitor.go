// Package retention expires old evaluation runs. A janitor periodically
// archives runs older than the retention window and then purges them from
// the run history.
//
// Archiving is fail-safe: runs are NOT purged if archiving fails. Without an
// archiver expired runs are purged directly.
package retention

import (
	"context"
	"time"

	"github.com/agentoven/console/pkg/models"
	"github.com/rs/zerolog/log"
)

// DefaultArchiveBatchSize is the max runs per archive write.
const DefaultArchiveBatchSize = 500

// RunStore exposes the run history to the janitor.
type RunStore interface {
	ExpiredRuns(cutoff time.Time) []models.EvaluationRun
	PurgeRuns(ctx context.Context, ids []string) int
}

// Archiver writes runs to durable storage and returns where they went.
type Archiver interface {
	Kind() string
	ArchiveRuns(ctx context.Context, runs []models.EvaluationRun) (string, error)
}

// CycleStats tracks what happened in a single retention cycle.
type CycleStats struct {
	Expired  int
	Archived int
	Purged   int
	URIs     []string
	Errors   []error
}

// Janitor periodically archives and purges expired runs.
type Janitor struct {
	runs     RunStore
	archiver Archiver // optional
	window   time.Duration
	interval time.Duration
	now      func() time.Time
}

// NewJanitor creates a janitor keeping runs for retentionDays. The sweep
// interval is at least a minute.
func NewJanitor(runs RunStore, archiver Archiver, retentionDays int, interval time.Duration) *Janitor {
	if interval < time.Minute {
		interval = time.Hour
	}
	return &Janitor{
		runs:     runs,
		archiver: archiver,
		window:   time.Duration(retentionDays) * 24 * time.Hour,
		interval: interval,
		now:      time.Now,
	}
}

// Start runs the janitor until ctx is canceled. It sweeps once immediately.
func (j *Janitor) Start(ctx context.Context) {
	kind := "none"
	if j.archiver != nil {
		kind = j.archiver.Kind()
	}
	log.Info().
		Dur("interval", j.interval).
		Dur("window", j.window).
		Str("archiver", kind).
		Msg("Retention janitor started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Retention janitor stopped")
			return
		case <-ticker.C:
			j.RunCycle(ctx)
		}
	}
}

// RunCycle performs one sweep.
func (j *Janitor) RunCycle(ctx context.Context) CycleStats {
	start := time.Now()
	expired := j.runs.ExpiredRuns(j.now().Add(-j.window))
	stats := CycleStats{Expired: len(expired)}
	if len(expired) == 0 {
		return stats
	}

	if j.archiver == nil {
		stats.Purged = j.runs.PurgeRuns(ctx, runIDs(expired))
	} else {
		// Each batch is purged only once it is safely archived.
		for i := 0; i < len(expired); i += DefaultArchiveBatchSize {
			batch := expired[i:min(i+DefaultArchiveBatchSize, len(expired))]
			uri, err := j.archiver.ArchiveRuns(ctx, batch)
			if err != nil {
				log.Warn().Err(err).
					Str("archiver", j.archiver.Kind()).
					Int("batch_size", len(batch)).
					Msg("Archive failed; skipping purge")
				stats.Errors = append(stats.Errors, err)
				continue
			}
			stats.Archived += len(batch)
			stats.URIs = append(stats.URIs, uri)
			stats.Purged += j.runs.PurgeRuns(ctx, runIDs(batch))
		}
	}

	log.Info().
		Int("expired", stats.Expired).
		Int("archived", stats.Archived).
		Int("purged", stats.Purged).
		Dur("elapsed", time.Since(start)).
		Msg("Retention cycle complete")
	return stats
}

func runIDs(runs []models.EvaluationRun) []string {
	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	return ids
}
