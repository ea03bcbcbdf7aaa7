// Package query contains read operations following CQRS pattern.
// Queries never modify state - they only read and return data.
// Each query is a self-contained use case with its own request/response types.
package query

import (
	"context"
	"errors"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET RANKING QUERY
// Returns the prayer ranking board for a time window. Served from the board
// cache when warm; rebuilt from the offering collection on a miss.
// ══════════════════════════════════════════════════════════════════════════════

// GetRankingQuery contains parameters for a ranking request.
type GetRankingQuery struct {
	// Window selects the time span: all, quarter, month, week.
	Window string

	// Limit is the number of entries (default 20, max 100).
	Limit int

	// Offset for pagination.
	Offset int

	// IncludeRankChange fills rank movement against the previous snapshot.
	IncludeRankChange bool
}

// Validate checks the query parameters and applies defaults.
func (q *GetRankingQuery) Validate() error {
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	if q.Limit == 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	return nil
}

// RankingEntryDTO is a single board row for API responses.
type RankingEntryDTO struct {
	// Rank is the 1-based position.
	Rank int `json:"rank"`

	// OfferingID identifies the offering.
	OfferingID string `json:"offering_id"`

	// AuthorID and AuthorName identify the author.
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`

	// Title of the offering.
	Title string `json:"title"`

	// Prayers is the prayer count.
	Prayers int `json:"prayers"`

	// GuidanceCount is the guidance count.
	GuidanceCount int `json:"guidance_count"`

	// CreatedAt is when the offering was placed.
	CreatedAt time.Time `json:"created_at"`

	// RankChange against the previous snapshot (+ up, - down, 0 stable).
	RankChange int `json:"rank_change"`

	// RankDirection is "up", "down", "stable", or "new".
	RankDirection string `json:"rank_direction"`
}

// GetRankingResult contains the board page.
type GetRankingResult struct {
	// Window the board covers.
	Window string `json:"window"`

	// Entries on this page.
	Entries []RankingEntryDTO `json:"entries"`

	// TotalCount is the full board size before pagination.
	TotalCount int `json:"total_count"`

	// GeneratedAt is when the board was built.
	GeneratedAt time.Time `json:"generated_at"`

	// HasMore reports whether entries remain after this page.
	HasMore bool `json:"has_more"`
}

// GetRankingHandler handles ranking requests.
type GetRankingHandler struct {
	offeringRepo offering.Repository
	snapshotRepo ranking.SnapshotRepository
	boardCache   ranking.BoardCache

	// now is injectable for tests.
	now func() time.Time
}

// NewGetRankingHandler creates a new GetRankingHandler. The board cache may
// be nil; every request then rebuilds from the repository.
func NewGetRankingHandler(
	offeringRepo offering.Repository,
	snapshotRepo ranking.SnapshotRepository,
	boardCache ranking.BoardCache,
) *GetRankingHandler {
	return &GetRankingHandler{
		offeringRepo: offeringRepo,
		snapshotRepo: snapshotRepo,
		boardCache:   boardCache,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Used in tests.
func (h *GetRankingHandler) WithClock(now func() time.Time) *GetRankingHandler {
	h.now = now
	return h
}

// Handle executes the ranking query.
func (h *GetRankingHandler) Handle(ctx context.Context, q GetRankingQuery) (*GetRankingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	window, err := ranking.ParseWindow(q.Window)
	if err != nil {
		return nil, err
	}

	board, err := h.loadBoard(ctx, window)
	if err != nil {
		return nil, err
	}

	if q.IncludeRankChange && h.snapshotRepo != nil {
		snap, err := h.snapshotRepo.GetLatestSnapshot(ctx, window)
		if err != nil && !shared.IsNotFound(err) {
			return nil, err
		}
		board.ApplyChanges(snap)
	}

	page := board.Page(q.Offset, q.Limit)
	entries := make([]RankingEntryDTO, len(page))
	for i, e := range page {
		entries[i] = RankingEntryDTO{
			Rank:          int(e.Rank),
			OfferingID:    e.OfferingID,
			AuthorID:      e.AuthorID,
			AuthorName:    e.AuthorName,
			Title:         e.Title,
			Prayers:       e.Prayers,
			GuidanceCount: e.GuidanceCount,
			CreatedAt:     e.CreatedAt,
			RankChange:    int(e.RankChange),
			RankDirection: string(e.Direction()),
		}
	}

	return &GetRankingResult{
		Window:      window.String(),
		Entries:     entries,
		TotalCount:  board.Count(),
		GeneratedAt: board.GeneratedAt,
		HasMore:     q.Offset+len(page) < board.Count(),
	}, nil
}

// loadBoard serves from the cache when possible and rebuilds on a miss.
// The full board is always loaded; TotalCount and HasMore must reflect the
// whole board, not the requested page.
func (h *GetRankingHandler) loadBoard(ctx context.Context, window ranking.Window) (*ranking.Board, error) {
	if h.boardCache != nil {
		// A miss or cache trouble both fall through to a rebuild.
		if board, err := h.boardCache.GetBoard(ctx, window, 0); err == nil {
			return board, nil
		}
	}

	now := h.now()
	offerings, err := h.offeringRepo.CreatedSince(ctx, window.Start(now))
	if err != nil {
		return nil, err
	}
	return ranking.BuildBoard(offerings, window, now, 0), nil
}
