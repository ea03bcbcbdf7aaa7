package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PRUNE SNAPSHOTS JOB
// ══════════════════════════════════════════════════════════════════════════════

// PruneSnapshotsJob drops ranking snapshots older than the retention period.
// Snapshots only feed rank-change computation, so anything beyond the
// retention window is dead weight.
type PruneSnapshotsJob struct {
	snapshotRepo ranking.SnapshotRepository
	retention    time.Duration
	log          *logger.Logger
}

// NewPruneSnapshotsJob creates a new prune job.
func NewPruneSnapshotsJob(snapshotRepo ranking.SnapshotRepository, retention time.Duration, log *logger.Logger) *PruneSnapshotsJob {
	if log == nil {
		log = logger.Default()
	}
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &PruneSnapshotsJob{
		snapshotRepo: snapshotRepo,
		retention:    retention,
		log:          log.With(logger.Component("prune_snapshots")),
	}
}

// Name returns the job name.
func (j *PruneSnapshotsJob) Name() string {
	return "prune_snapshots"
}

// Description returns a human-readable description.
func (j *PruneSnapshotsJob) Description() string {
	return "Removes ranking snapshots older than the retention period"
}

// Run executes the prune.
func (j *PruneSnapshotsJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.retention)

	removed, err := j.snapshotRepo.PruneSnapshots(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if removed > 0 {
		j.log.Info("pruned snapshots",
			logger.Int("removed", removed),
			logger.Time("cutoff", cutoff),
		)
	}
	return nil
}
