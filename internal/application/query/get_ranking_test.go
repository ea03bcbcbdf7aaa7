package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/memory"
)

var queryNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func seedOffering(t *testing.T, store *memory.Store, id, authorID string, age time.Duration, prayers int) *offering.Offering {
	t.Helper()
	o, err := offering.NewOffering(offering.NewOfferingParams{
		ID:         id,
		AuthorID:   authorID,
		AuthorName: "Author " + authorID,
		Title:      "Offering " + id,
		Content:    "content",
		Genres:     []offering.Genre{offering.GenreNature},
	})
	require.NoError(t, err)
	o.CreatedAt = queryNow.Add(-age)
	for i := 0; i < prayers; i++ {
		_, err := o.TogglePrayer(fmt.Sprintf("p-%s-%d", id, i))
		require.NoError(t, err)
	}
	require.NoError(t, store.Offerings().Create(context.Background(), o))
	return o
}

// fixedBoardCache serves a single pre-built board, truncating to the
// requested limit the way the real cache does.
type fixedBoardCache struct {
	board *ranking.Board
}

func (c *fixedBoardCache) SetBoard(ctx context.Context, board *ranking.Board, ttl time.Duration) error {
	c.board = board
	return nil
}

func (c *fixedBoardCache) GetBoard(ctx context.Context, window ranking.Window, limit int) (*ranking.Board, error) {
	if c.board == nil || c.board.Window != window {
		return nil, shared.ErrBoardNotFound
	}
	board := *c.board
	if limit > 0 && limit < len(board.Entries) {
		entries := make([]*ranking.Entry, limit)
		copy(entries, board.Entries[:limit])
		board.Entries = entries
	}
	return &board, nil
}

func (c *fixedBoardCache) BumpPrayers(ctx context.Context, offeringID string, delta int) error {
	return nil
}

func (c *fixedBoardCache) InvalidateBoard(ctx context.Context, window ranking.Window) error {
	c.board = nil
	return nil
}

func TestGetRanking(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	seedOffering(t, store, "old", "a1", 60*24*time.Hour, 40)
	seedOffering(t, store, "mid", "a1", 10*24*time.Hour, 20)
	seedOffering(t, store, "new", "a2", 2*24*time.Hour, 30)

	handler := NewGetRankingHandler(store.Offerings(), store.Snapshots(), nil).
		WithClock(func() time.Time { return queryNow })

	t.Run("all window ranks by prayers", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetRankingQuery{Window: "all"})
		require.NoError(t, err)
		require.Len(t, res.Entries, 3)
		assert.Equal(t, "old", res.Entries[0].OfferingID)
		assert.Equal(t, 1, res.Entries[0].Rank)
		assert.Equal(t, "new", res.Entries[1].OfferingID)
		assert.Equal(t, "mid", res.Entries[2].OfferingID)
		assert.False(t, res.HasMore)
	})

	t.Run("week window filters old offerings", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetRankingQuery{Window: "week"})
		require.NoError(t, err)
		require.Len(t, res.Entries, 1)
		assert.Equal(t, "new", res.Entries[0].OfferingID)
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetRankingQuery{Window: "all", Limit: 2})
		require.NoError(t, err)
		assert.Len(t, res.Entries, 2)
		assert.Equal(t, 3, res.TotalCount)
		assert.True(t, res.HasMore)

		res, err = handler.Handle(ctx, GetRankingQuery{Window: "all", Limit: 2, Offset: 2})
		require.NoError(t, err)
		assert.Len(t, res.Entries, 1)
		assert.False(t, res.HasMore)
	})

	t.Run("unknown window", func(t *testing.T) {
		_, err := handler.Handle(ctx, GetRankingQuery{Window: "decade"})
		assert.Error(t, err)
	})

	t.Run("rank changes against latest snapshot", func(t *testing.T) {
		// Snapshot with "mid" ahead of "new", so the live board shows "new"
		// climbing.
		prev := ranking.BuildBoard(nil, ranking.WindowAll, queryNow.Add(-time.Hour), 0)
		prev.Entries = []*ranking.Entry{
			{Rank: 1, OfferingID: "old"},
			{Rank: 2, OfferingID: "mid"},
			{Rank: 3, OfferingID: "new"},
		}
		prev.RebuildIndex()
		snap := ranking.NewSnapshot("snap-1", prev)
		require.NoError(t, store.Snapshots().SaveSnapshot(ctx, snap))

		res, err := handler.Handle(ctx, GetRankingQuery{Window: "all", IncludeRankChange: true})
		require.NoError(t, err)
		require.Len(t, res.Entries, 3)
		assert.Equal(t, "stable", res.Entries[0].RankDirection)
		assert.Equal(t, "up", res.Entries[1].RankDirection)
		assert.Equal(t, 1, res.Entries[1].RankChange)
		assert.Equal(t, "down", res.Entries[2].RankDirection)
	})

	t.Run("cached board keeps full-board totals under pagination", func(t *testing.T) {
		board := ranking.BuildBoard(nil, ranking.WindowAll, queryNow, 0)
		for i := 1; i <= 50; i++ {
			board.Entries = append(board.Entries, &ranking.Entry{
				Rank:       ranking.Rank(i),
				OfferingID: fmt.Sprintf("cached-%d", i),
				Prayers:    100 - i,
			})
		}
		board.RebuildIndex()

		cached := NewGetRankingHandler(store.Offerings(), store.Snapshots(), &fixedBoardCache{board: board}).
			WithClock(func() time.Time { return queryNow })

		res, err := cached.Handle(ctx, GetRankingQuery{Window: "all", Limit: 10})
		require.NoError(t, err)
		require.Len(t, res.Entries, 10)
		assert.Equal(t, 50, res.TotalCount)
		assert.True(t, res.HasMore)

		res, err = cached.Handle(ctx, GetRankingQuery{Window: "all", Limit: 10, Offset: 45})
		require.NoError(t, err)
		assert.Len(t, res.Entries, 5)
		assert.Equal(t, 50, res.TotalCount)
		assert.False(t, res.HasMore)
	})
}

func TestGetUserOfferings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	authored := seedOffering(t, store, "off-1", "hana", time.Hour, 0)
	other := seedOffering(t, store, "off-2", "ren", 2*time.Hour, 0)

	_, err := other.TogglePrayer("hana")
	require.NoError(t, err)
	g, err := offering.NewGuidance("g-1", other.ID, "hana", "Hana", "lovely")
	require.NoError(t, err)
	require.NoError(t, other.AddGuidance(g))
	require.NoError(t, store.Offerings().Update(ctx, other))

	handler := NewGetUserOfferingsHandler(store.Offerings())

	t.Run("author relation is the default", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetUserOfferingsQuery{UserID: "hana"})
		require.NoError(t, err)
		require.Len(t, res.Offerings, 1)
		assert.Equal(t, authored.ID, res.Offerings[0].ID)
		assert.Equal(t, RelationAuthor, res.Relation)
	})

	t.Run("prayed relation", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetUserOfferingsQuery{UserID: "hana", Relation: RelationPrayed})
		require.NoError(t, err)
		require.Len(t, res.Offerings, 1)
		assert.Equal(t, other.ID, res.Offerings[0].ID)
	})

	t.Run("guided relation", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetUserOfferingsQuery{UserID: "hana", Relation: RelationGuided})
		require.NoError(t, err)
		require.Len(t, res.Offerings, 1)
		assert.Equal(t, other.ID, res.Offerings[0].ID)
	})

	t.Run("viewer sees own prayers", func(t *testing.T) {
		res, err := handler.Handle(ctx, GetUserOfferingsQuery{
			UserID:   "ren",
			Relation: RelationAuthor,
			ViewerID: "hana",
		})
		require.NoError(t, err)
		require.Len(t, res.Offerings, 1)
		assert.True(t, res.Offerings[0].HasPrayed)
	})

	t.Run("unknown relation rejected", func(t *testing.T) {
		_, err := handler.Handle(ctx, GetUserOfferingsQuery{UserID: "hana", Relation: "fan"})
		assert.Error(t, err)
	})
}

func TestSearchOfferings(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	o := seedOffering(t, store, "maple", "hana", time.Hour, 5)
	o.Title = "Maple leaves at dusk"
	require.NoError(t, store.Offerings().Update(ctx, o))
	seedOffering(t, store, "bell", "ren", 2*time.Hour, 2)

	handler := NewSearchOfferingsHandler(store.Offerings())

	t.Run("query matches title", func(t *testing.T) {
		res, err := handler.Handle(ctx, SearchOfferingsQuery{Query: "maple"})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		assert.Equal(t, "maple", res.Results[0].OfferingID)
		assert.Positive(t, res.Results[0].Score)
	})

	t.Run("facet only returns newest first", func(t *testing.T) {
		res, err := handler.Handle(ctx, SearchOfferingsQuery{})
		require.NoError(t, err)
		require.Len(t, res.Results, 2)
		assert.Equal(t, "maple", res.Results[0].OfferingID)
	})

	t.Run("min prayers facet", func(t *testing.T) {
		res, err := handler.Handle(ctx, SearchOfferingsQuery{MinPrayers: 3})
		require.NoError(t, err)
		require.Len(t, res.Results, 1)
		assert.Equal(t, "maple", res.Results[0].OfferingID)
	})

	t.Run("unknown genre rejected", func(t *testing.T) {
		_, err := handler.Handle(ctx, SearchOfferingsQuery{Genres: []string{"weather"}})
		assert.Error(t, err)
	})
}
