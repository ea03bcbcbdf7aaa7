// Package jobs contains the scheduled jobs of Kumotsudai: ranking rebuilds
// and snapshot pruning.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD RANKING JOB
// ══════════════════════════════════════════════════════════════════════════════

// RebuildRankingJob rebuilds every windowed board from the offering store,
// refreshes the board cache, and persists a snapshot per window. Rank changes
// against the previous snapshot are applied before caching, and a
// board_rebuilt event is published so notification handlers can react.
type RebuildRankingJob struct {
	offeringRepo   offering.Repository
	snapshotRepo   ranking.SnapshotRepository
	boardCache     ranking.BoardCache
	eventPublisher shared.EventPublisher
	log            *logger.Logger

	config RebuildRankingConfig

	lastStats atomic.Value // *RebuildStats
}

// RebuildRankingConfig contains settings for the rebuild job.
type RebuildRankingConfig struct {
	// BoardLimit is the number of entries kept per board.
	BoardLimit int

	// CacheTTL is how long cached boards live.
	CacheTTL time.Duration

	// Timeout bounds one full rebuild across all windows.
	Timeout time.Duration
}

// DefaultRebuildRankingConfig returns sensible defaults.
func DefaultRebuildRankingConfig() RebuildRankingConfig {
	return RebuildRankingConfig{
		BoardLimit: 100,
		CacheTTL:   15 * time.Minute,
		Timeout:    5 * time.Minute,
	}
}

// RebuildStats records one rebuild run.
type RebuildStats struct {
	StartedAt        time.Time
	CompletedAt      time.Time
	Duration         time.Duration
	TotalOfferings   int
	WindowsProcessed int
	SnapshotsCreated int
	Errors           []error
}

// NewRebuildRankingJob creates a new rebuild job.
func NewRebuildRankingJob(
	offeringRepo offering.Repository,
	snapshotRepo ranking.SnapshotRepository,
	boardCache ranking.BoardCache,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
	config RebuildRankingConfig,
) *RebuildRankingJob {
	if log == nil {
		log = logger.Default()
	}
	if config.BoardLimit <= 0 {
		config.BoardLimit = 100
	}
	return &RebuildRankingJob{
		offeringRepo:   offeringRepo,
		snapshotRepo:   snapshotRepo,
		boardCache:     boardCache,
		eventPublisher: eventPublisher,
		log:            log.With(logger.Component("rebuild_ranking")),
		config:         config,
	}
}

// Name returns the job name.
func (j *RebuildRankingJob) Name() string {
	return "rebuild_ranking"
}

// Description returns a human-readable description.
func (j *RebuildRankingJob) Description() string {
	return "Rebuilds windowed prayer boards, refreshes the cache, and persists snapshots"
}

// Run executes the rebuild across all windows.
func (j *RebuildRankingJob) Run(ctx context.Context) error {
	startedAt := time.Now()
	stats := &RebuildStats{
		StartedAt: startedAt,
		Errors:    make([]error, 0),
	}

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	now := time.Now().UTC()

	// One fetch per window keeps memory bounded: the widest window needs
	// everything, narrower windows refetch only their span.
	for _, window := range ranking.AllWindows() {
		offerings, err := j.offeringRepo.CreatedSince(ctx, window.Start(now))
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("window %s: %w", window, err))
			j.log.Error("failed to load offerings",
				logger.Window(window.String()),
				logger.Err(err),
			)
			continue
		}
		if window == ranking.WindowAll {
			stats.TotalOfferings = len(offerings)
		}

		if err := j.rebuildWindow(ctx, window, offerings, now); err != nil {
			stats.Errors = append(stats.Errors, fmt.Errorf("window %s: %w", window, err))
			j.log.Error("failed to rebuild board",
				logger.Window(window.String()),
				logger.Err(err),
			)
			continue
		}

		stats.WindowsProcessed++
		stats.SnapshotsCreated++
	}

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(startedAt)
	j.lastStats.Store(stats)

	j.log.Info("ranking rebuild finished",
		logger.Duration("duration", stats.Duration),
		logger.Int("offerings", stats.TotalOfferings),
		logger.Int("windows", stats.WindowsProcessed),
	)

	if len(stats.Errors) > 0 {
		return fmt.Errorf("rebuild completed with %d errors", len(stats.Errors))
	}
	return nil
}

// rebuildWindow builds, caches, and snapshots one window's board.
func (j *RebuildRankingJob) rebuildWindow(
	ctx context.Context,
	window ranking.Window,
	offerings []*offering.Offering,
	now time.Time,
) error {
	board := ranking.BuildBoard(offerings, window, now, j.config.BoardLimit)

	previous, err := j.snapshotRepo.GetLatestSnapshot(ctx, window)
	if err != nil && !errors.Is(err, shared.ErrSnapshotNotFound) {
		return fmt.Errorf("get previous snapshot: %w", err)
	}
	board.ApplyChanges(previous)

	if j.boardCache != nil {
		if err := j.boardCache.SetBoard(ctx, board, j.config.CacheTTL); err != nil {
			// A stale cache self-heals on the next rebuild; keep going.
			j.log.Warn("failed to cache board",
				logger.Window(window.String()),
				logger.Err(err),
			)
		}
	}

	snapshot := ranking.NewSnapshot(uuid.NewString(), board)
	if err := j.snapshotRepo.SaveSnapshot(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	if j.eventPublisher != nil {
		event := shared.NewBoardRebuiltEvent(window.String(), board.Count())
		if err := j.eventPublisher.Publish(event); err != nil {
			j.log.Warn("failed to publish board_rebuilt",
				logger.Window(window.String()),
				logger.Err(err),
			)
		}
	}

	j.log.Debug("board rebuilt",
		logger.Window(window.String()),
		logger.Int("entries", board.Count()),
	)
	return nil
}

// LastStats returns statistics from the most recent run, or nil.
func (j *RebuildRankingJob) LastStats() *RebuildStats {
	stats := j.lastStats.Load()
	if stats == nil {
		return nil
	}
	return stats.(*RebuildStats)
}
