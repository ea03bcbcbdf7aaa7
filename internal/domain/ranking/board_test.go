package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

var boardNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// makeOffering builds an offering with a fixed creation time and prayer count.
func makeOffering(t *testing.T, id string, age time.Duration, prayers int) *offering.Offering {
	t.Helper()
	o, err := offering.NewOffering(offering.NewOfferingParams{
		ID:         id,
		AuthorID:   "author-" + id,
		AuthorName: "Author " + id,
		Title:      "Offering " + id,
		Content:    "content",
		Genres:     []offering.Genre{offering.GenreNature},
	})
	require.NoError(t, err)
	o.CreatedAt = boardNow.Add(-age)
	for i := 0; i < prayers; i++ {
		_, err := o.TogglePrayer(fmt.Sprintf("prayer-%s-%d", id, i))
		require.NoError(t, err)
	}
	return o
}

func TestParseWindow(t *testing.T) {
	for _, w := range AllWindows() {
		parsed, err := ParseWindow(w.String())
		require.NoError(t, err)
		assert.Equal(t, w, parsed)
	}

	_, err := ParseWindow("decade")
	assert.ErrorIs(t, err, shared.ErrInvalidWindow)
}

func TestWindowStart(t *testing.T) {
	assert.True(t, WindowAll.Start(boardNow).IsZero())
	assert.Equal(t, boardNow.Add(-7*24*time.Hour), WindowWeek.Start(boardNow))
	assert.Equal(t, boardNow.Add(-30*24*time.Hour), WindowMonth.Start(boardNow))
	assert.Equal(t, boardNow.Add(-91*24*time.Hour), WindowQuarter.Start(boardNow))
}

func TestBuildBoard(t *testing.T) {
	offerings := []*offering.Offering{
		makeOffering(t, "old-popular", 100*24*time.Hour, 50),
		makeOffering(t, "month-mid", 20*24*time.Hour, 10),
		makeOffering(t, "week-top", 3*24*time.Hour, 30),
		makeOffering(t, "week-low", 2*24*time.Hour, 5),
		makeOffering(t, "today", 1*time.Hour, 10),
	}

	t.Run("all time includes everything", func(t *testing.T) {
		board := BuildBoard(offerings, WindowAll, boardNow, 0)
		require.Equal(t, 5, board.Count())
		assert.Equal(t, "old-popular", board.Entries[0].OfferingID)
		assert.Equal(t, Rank(1), board.Entries[0].Rank)
		assert.Equal(t, 50, board.Entries[0].Prayers)
	})

	t.Run("week window filters by creation time", func(t *testing.T) {
		board := BuildBoard(offerings, WindowWeek, boardNow, 0)
		require.Equal(t, 3, board.Count())
		assert.Equal(t, "week-top", board.Entries[0].OfferingID)
		assert.Equal(t, "today", board.Entries[1].OfferingID)
		assert.Equal(t, "week-low", board.Entries[2].OfferingID)
	})

	t.Run("month window", func(t *testing.T) {
		board := BuildBoard(offerings, WindowMonth, boardNow, 0)
		require.Equal(t, 4, board.Count())
		assert.Equal(t, Rank(0), board.GetRank("old-popular"))
	})

	t.Run("prayer ties break by newer creation", func(t *testing.T) {
		board := BuildBoard(offerings, WindowAll, boardNow, 0)
		// month-mid and today both have 10 prayers; today is newer.
		assert.Less(t, int(board.GetRank("today")), int(board.GetRank("month-mid")))
	})

	t.Run("limit truncates", func(t *testing.T) {
		board := BuildBoard(offerings, WindowAll, boardNow, 2)
		assert.Equal(t, 2, board.Count())
	})

	t.Run("ranks are sequential from one", func(t *testing.T) {
		board := BuildBoard(offerings, WindowAll, boardNow, 0)
		for i, e := range board.Entries {
			assert.Equal(t, Rank(i+1), e.Rank)
		}
	})

	t.Run("deterministic for identical input", func(t *testing.T) {
		a := BuildBoard(offerings, WindowQuarter, boardNow, 0)
		b := BuildBoard(offerings, WindowQuarter, boardNow, 0)
		require.Equal(t, a.Count(), b.Count())
		for i := range a.Entries {
			assert.Equal(t, a.Entries[i].OfferingID, b.Entries[i].OfferingID)
		}
	})
}

func TestBoardLookups(t *testing.T) {
	offerings := []*offering.Offering{
		makeOffering(t, "a", time.Hour, 3),
		makeOffering(t, "b", time.Hour, 2),
		makeOffering(t, "c", time.Hour, 1),
	}
	board := BuildBoard(offerings, WindowAll, boardNow, 0)

	assert.Equal(t, Rank(1), board.GetRank("a"))
	assert.Nil(t, board.GetByOfferingID("missing"))
	assert.Len(t, board.Top(2), 2)
	assert.Len(t, board.Top(10), 3)
	assert.Len(t, board.Page(1, 1), 1)
	assert.Equal(t, "b", board.Page(1, 1)[0].OfferingID)
	assert.Empty(t, board.Page(5, 10))
}

func TestApplyChanges(t *testing.T) {
	previous := []*offering.Offering{
		makeOffering(t, "a", time.Hour, 10),
		makeOffering(t, "b", time.Hour, 8),
		makeOffering(t, "c", time.Hour, 6),
	}
	prevBoard := BuildBoard(previous, WindowWeek, boardNow, 0)
	snap := NewSnapshot("snap-1", prevBoard)

	// b overtakes a, c holds, d enters.
	current := []*offering.Offering{
		makeOffering(t, "a", time.Hour, 10),
		makeOffering(t, "b", time.Hour, 12),
		makeOffering(t, "c", time.Hour, 6),
		makeOffering(t, "d", time.Hour, 4),
	}
	board := BuildBoard(current, WindowWeek, boardNow, 0)
	board.ApplyChanges(snap)

	b := board.GetByOfferingID("b")
	require.NotNil(t, b)
	assert.Equal(t, RankChange(1), b.RankChange)
	assert.Equal(t, DirectionUp, b.Direction())

	a := board.GetByOfferingID("a")
	require.NotNil(t, a)
	assert.Equal(t, RankChange(-1), a.RankChange)
	assert.Equal(t, DirectionDown, a.Direction())

	c := board.GetByOfferingID("c")
	require.NotNil(t, c)
	assert.Equal(t, DirectionStable, c.Direction())

	d := board.GetByOfferingID("d")
	require.NotNil(t, d)
	assert.True(t, d.IsNew)
	assert.Equal(t, DirectionNew, d.Direction())
}

func TestApplyChangesNilSnapshot(t *testing.T) {
	board := BuildBoard([]*offering.Offering{makeOffering(t, "a", time.Hour, 1)}, WindowWeek, boardNow, 0)
	board.ApplyChanges(nil)
	assert.True(t, board.Entries[0].IsNew)
}

func TestSnapshot(t *testing.T) {
	offerings := []*offering.Offering{
		makeOffering(t, "a", time.Hour, 5),
		makeOffering(t, "b", time.Hour, 3),
	}
	board := BuildBoard(offerings, WindowMonth, boardNow, 0)

	snap := NewSnapshot("snap-1", board)
	assert.Equal(t, WindowMonth, snap.Window)
	assert.Equal(t, 2, snap.Count())
	assert.Equal(t, Rank(1), snap.GetRank("a"))
	assert.Equal(t, Rank(0), snap.GetRank("missing"))
	assert.True(t, snap.Contains("b"))

	// Snapshot entries are copies; mutating the board leaves them alone.
	board.Entries[0].Prayers = 999
	assert.Equal(t, 5, snap.Entries[0].Prayers)
}
