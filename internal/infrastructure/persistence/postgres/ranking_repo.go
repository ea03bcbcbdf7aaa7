package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RANKING SNAPSHOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SnapshotRepository implements ranking.SnapshotRepository on PostgreSQL.
// A snapshot is one header row plus its entries in rank order.
type SnapshotRepository struct {
	conn *Connection
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(conn *Connection) *SnapshotRepository {
	return &SnapshotRepository{conn: conn}
}

// SaveSnapshot persists a snapshot and its entries in one transaction.
func (r *SnapshotRepository) SaveSnapshot(ctx context.Context, s *ranking.Snapshot) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO ranking_snapshots (id, window, taken_at, entry_count)
			VALUES ($1, $2, $3, $4)`,
			s.ID, s.Window.String(), s.TakenAt, len(s.Entries))
		if err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}

		for _, e := range s.Entries {
			_, err := tx.Exec(ctx, `
				INSERT INTO ranking_snapshot_entries
					(snapshot_id, rank, offering_id, author_id, author_name, title,
					 prayers, guidance_count, offering_created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				s.ID, int(e.Rank), e.OfferingID, e.AuthorID, e.AuthorName, e.Title,
				e.Prayers, e.GuidanceCount, e.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert snapshot entry: %w", err)
			}
		}
		return nil
	})
}

// GetLatestSnapshot returns the most recent snapshot for a window.
func (r *SnapshotRepository) GetLatestSnapshot(ctx context.Context, window ranking.Window) (*ranking.Snapshot, error) {
	s := &ranking.Snapshot{}
	var windowStr string

	err := r.conn.QueryRow(ctx, `
		SELECT id, window, taken_at FROM ranking_snapshots
		WHERE window = $1
		ORDER BY taken_at DESC
		LIMIT 1`, window.String(),
	).Scan(&s.ID, &windowStr, &s.TakenAt)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	s.Window = ranking.Window(windowStr)

	if err := r.loadEntries(ctx, []*ranking.Snapshot{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSnapshots returns snapshots for a window, newest first.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, window ranking.Window, limit int) ([]*ranking.Snapshot, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT id, window, taken_at FROM ranking_snapshots
		WHERE window = $1
		ORDER BY taken_at DESC
		LIMIT $2`, window.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*ranking.Snapshot, 0, limit)
	for rows.Next() {
		s := &ranking.Snapshot{}
		var windowStr string
		if err := rows.Scan(&s.ID, &windowStr, &s.TakenAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		s.Window = ranking.Window(windowStr)
		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadEntries(ctx, snapshots); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// PruneSnapshots removes snapshots taken before the cutoff. Entries cascade.
func (r *SnapshotRepository) PruneSnapshots(ctx context.Context, before time.Time) (int, error) {
	tag, err := r.conn.Exec(ctx, "DELETE FROM ranking_snapshots WHERE taken_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// loadEntries fills entries for a batch of snapshots with one bulk query.
func (r *SnapshotRepository) loadEntries(ctx context.Context, snapshots []*ranking.Snapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	ids := make([]string, 0, len(snapshots))
	byID := make(map[string]*ranking.Snapshot, len(snapshots))
	for _, s := range snapshots {
		ids = append(ids, s.ID)
		byID[s.ID] = s
	}

	rows, err := r.conn.Query(ctx, `
		SELECT snapshot_id, rank, offering_id, author_id, author_name, title,
			prayers, guidance_count, offering_created_at
		FROM ranking_snapshot_entries
		WHERE snapshot_id = ANY($1)
		ORDER BY snapshot_id, rank`, ids)
	if err != nil {
		return fmt.Errorf("load snapshot entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			snapshotID string
			rank       int
			e          ranking.Entry
		)
		err := rows.Scan(&snapshotID, &rank, &e.OfferingID, &e.AuthorID, &e.AuthorName,
			&e.Title, &e.Prayers, &e.GuidanceCount, &e.CreatedAt)
		if err != nil {
			return fmt.Errorf("scan snapshot entry: %w", err)
		}
		e.Rank = ranking.Rank(rank)
		if s, ok := byID[snapshotID]; ok {
			s.Entries = append(s.Entries, &e)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, s := range snapshots {
		s.RebuildIndex()
	}
	return nil
}
