package ranking

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository stores ranking snapshots.
type SnapshotRepository interface {
	// SaveSnapshot persists a snapshot.
	SaveSnapshot(ctx context.Context, s *Snapshot) error

	// GetLatestSnapshot returns the most recent snapshot for a window.
	// Returns shared.ErrSnapshotNotFound when none exists.
	GetLatestSnapshot(ctx context.Context, window Window) (*Snapshot, error)

	// ListSnapshots returns snapshots for a window, newest first.
	ListSnapshots(ctx context.Context, window Window, limit int) ([]*Snapshot, error)

	// PruneSnapshots removes snapshots taken before the cutoff.
	// Returns the number removed.
	PruneSnapshots(ctx context.Context, before time.Time) (int, error)
}

// BoardCache holds hot boards for fast reads. Typically Redis sorted sets.
type BoardCache interface {
	// SetBoard replaces the cached board for its window.
	SetBoard(ctx context.Context, board *Board, ttl time.Duration) error

	// GetBoard returns the cached board for a window.
	// Returns shared.ErrBoardNotFound on a miss.
	GetBoard(ctx context.Context, window Window, limit int) (*Board, error)

	// BumpPrayers adjusts the cached score of an offering on every window
	// the offering appears in. Used on prayer toggles between rebuilds.
	BumpPrayers(ctx context.Context, offeringID string, delta int) error

	// InvalidateBoard drops the cached board for a window.
	InvalidateBoard(ctx context.Context, window Window) error
}
