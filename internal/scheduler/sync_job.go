package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/foliolabs/foliosync/internal/domain"
	"github.com/foliolabs/foliosync/internal/orchestrator"
)

// SyncJob runs the full broker sync on a schedule and persists the warm
// cache snapshot afterwards. Partial failure is normal operation: failed
// connections are logged per-result, the job itself does not fail.
type SyncJob struct {
	orchestrator *orchestrator.Orchestrator
	snapshotPath string
	log          zerolog.Logger
}

// NewSyncJob creates a new sync job
func NewSyncJob(orch *orchestrator.Orchestrator, snapshotPath string, log zerolog.Logger) *SyncJob {
	return &SyncJob{
		orchestrator: orch,
		snapshotPath: snapshotPath,
		log:          log.With().Str("job", "sync").Logger(),
	}
}

// Name returns the job name
func (j *SyncJob) Name() string {
	return "sync"
}

// Run executes a full sync cycle
func (j *SyncJob) Run() error {
	startTime := time.Now()

	results := j.orchestrator.SyncAll()

	failures := 0
	for _, res := range results {
		if res.Status != domain.SyncFailed {
			continue
		}
		failures++
		j.log.Warn().
			Str("connection_id", res.ConnectionID).
			Str("broker_type", string(res.BrokerType)).
			Str("error", res.Error).
			Msg("Connection sync failed")
	}

	if j.snapshotPath != "" {
		if err := j.orchestrator.PersistCache(j.snapshotPath); err != nil {
			j.log.Warn().Err(err).Msg("Failed to persist cache snapshot")
		}
	}

	j.log.Info().
		Int("connections", len(results)).
		Int("failures", failures).
		Dur("duration", time.Since(startTime)).
		Msg("Sync cycle completed")

	return nil
}
