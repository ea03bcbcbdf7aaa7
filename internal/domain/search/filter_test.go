package search

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

var searchNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type offeringSpec struct {
	id      string
	title   string
	content string
	author  string
	genres  []offering.Genre
	age     time.Duration
	prayers int
}

func buildOffering(t *testing.T, spec offeringSpec) *offering.Offering {
	t.Helper()
	o, err := offering.NewOffering(offering.NewOfferingParams{
		ID:         spec.id,
		AuthorID:   "author-" + spec.id,
		AuthorName: spec.author,
		Title:      spec.title,
		Content:    spec.content,
		Genres:     spec.genres,
	})
	require.NoError(t, err)
	o.CreatedAt = searchNow.Add(-spec.age)
	for i := 0; i < spec.prayers; i++ {
		_, err := o.TogglePrayer(fmt.Sprintf("prayer-%s-%d", spec.id, i))
		require.NoError(t, err)
	}
	return o
}

func corpus(t *testing.T) []*offering.Offering {
	t.Helper()
	return []*offering.Offering{
		buildOffering(t, offeringSpec{
			id: "maple", title: "Maple leaves at the mountain shrine",
			content: "Red maple leaves gathered along the pilgrimage path.",
			author:  "Hana", genres: []offering.Genre{offering.GenreNature, offering.GenreSeasonal},
			age: 2 * 24 * time.Hour, prayers: 12,
		}),
		buildOffering(t, offeringSpec{
			id: "neon", title: "Neon reflections after rain",
			content: "The city holds its own kind of maple light.",
			author:  "Ren", genres: []offering.Genre{offering.GenreUrban},
			age: 5 * 24 * time.Hour, prayers: 30,
		}),
		buildOffering(t, offeringSpec{
			id: "bell", title: "The evening bell",
			content: "Silence between the strikes of the temple bell.",
			author:  "Yuki", genres: []offering.Genre{offering.GenreSpiritual},
			age: 40 * 24 * time.Hour, prayers: 4,
		}),
	}
}

func TestFilterValidate(t *testing.T) {
	t.Run("empty filter valid", func(t *testing.T) {
		f := &Filter{}
		assert.NoError(t, f.Validate())
	})

	t.Run("query too long", func(t *testing.T) {
		f := &Filter{Query: strings.Repeat("a", MaxQueryLen+1)}
		assert.ErrorIs(t, f.Validate(), shared.ErrQueryTooLong)
	})

	t.Run("unknown genre", func(t *testing.T) {
		f := &Filter{Genres: []offering.Genre{"weather"}}
		assert.ErrorIs(t, f.Validate(), shared.ErrInvalidGenre)
	})

	t.Run("negative min prayers", func(t *testing.T) {
		f := &Filter{MinPrayers: -1}
		assert.ErrorIs(t, f.Validate(), shared.ErrInvalidFilter)
	})

	t.Run("inverted time range", func(t *testing.T) {
		f := &Filter{From: searchNow, To: searchNow.Add(-time.Hour)}
		assert.ErrorIs(t, f.Validate(), shared.ErrInvalidFilter)
	})
}

func TestFilterMatches(t *testing.T) {
	offerings := corpus(t)
	maple, neon, bell := offerings[0], offerings[1], offerings[2]

	t.Run("author facet", func(t *testing.T) {
		f := &Filter{AuthorID: neon.AuthorID}
		assert.True(t, f.Matches(neon))
		assert.False(t, f.Matches(maple))
	})

	t.Run("genre facet matches any listed genre", func(t *testing.T) {
		f := &Filter{Genres: []offering.Genre{offering.GenreSeasonal, offering.GenreSpiritual}}
		assert.True(t, f.Matches(maple))
		assert.True(t, f.Matches(bell))
		assert.False(t, f.Matches(neon))
	})

	t.Run("time range facet", func(t *testing.T) {
		f := &Filter{From: searchNow.Add(-7 * 24 * time.Hour)}
		assert.True(t, f.Matches(maple))
		assert.True(t, f.Matches(neon))
		assert.False(t, f.Matches(bell))
	})

	t.Run("min prayers facet", func(t *testing.T) {
		f := &Filter{MinPrayers: 10}
		assert.True(t, f.Matches(maple))
		assert.False(t, f.Matches(bell))
	})
}

func TestFilterScore(t *testing.T) {
	offerings := corpus(t)
	maple, neon := offerings[0], offerings[1]

	t.Run("title hit outweighs content hit", func(t *testing.T) {
		f := &Filter{Query: "maple"}
		// "maple" is in maple's title (whole word) and only in neon's content,
		// so text weight favors maple despite neon's higher prayer count.
		assert.Greater(t, f.Score(maple), f.Score(neon))
	})

	t.Run("zero score when nothing matches", func(t *testing.T) {
		f := &Filter{Query: "nonexistent"}
		assert.Zero(t, f.Score(maple))
	})

	t.Run("popularity boost only applies on a match", func(t *testing.T) {
		f := &Filter{Query: "bell"}
		assert.Zero(t, f.Score(maple))
		assert.Positive(t, f.Score(offerings[2]))
	})

	t.Run("genre term matches", func(t *testing.T) {
		f := &Filter{Query: "urban"}
		assert.Positive(t, f.Score(neon))
	})

	t.Run("author name matches", func(t *testing.T) {
		f := &Filter{Query: "yuki"}
		assert.Positive(t, f.Score(offerings[2]))
	})
}

func TestFilterRun(t *testing.T) {
	offerings := corpus(t)

	t.Run("query sorts by score and drops zero scores", func(t *testing.T) {
		f := &Filter{Query: "maple"}
		results := f.Run(offerings)
		require.Len(t, results, 2)
		assert.Equal(t, "maple", results[0].Offering.ID)
		assert.Equal(t, "neon", results[1].Offering.ID)
		assert.Greater(t, results[0].Score, results[1].Score)
	})

	t.Run("facet-only sorts newest first", func(t *testing.T) {
		f := &Filter{}
		results := f.Run(offerings)
		require.Len(t, results, 3)
		assert.Equal(t, "maple", results[0].Offering.ID)
		assert.Equal(t, "neon", results[1].Offering.ID)
		assert.Equal(t, "bell", results[2].Offering.ID)
		for _, r := range results {
			assert.Zero(t, r.Score)
		}
	})

	t.Run("facets and query combine", func(t *testing.T) {
		f := &Filter{Query: "maple", MinPrayers: 20}
		results := f.Run(offerings)
		require.Len(t, results, 1)
		assert.Equal(t, "neon", results[0].Offering.ID)
	})

	t.Run("no matches returns empty", func(t *testing.T) {
		f := &Filter{Query: "nonexistent"}
		assert.Empty(t, f.Run(offerings))
	})
}

func TestSplitTerms(t *testing.T) {
	f := &Filter{Query: "  Maple   SHRINE  "}
	assert.Equal(t, []string{"maple", "shrine"}, f.Terms())
	assert.True(t, f.HasQuery())

	empty := &Filter{Query: "   "}
	assert.Empty(t, empty.Terms())
	assert.False(t, empty.HasQuery())
}

func TestContainsWholeWord(t *testing.T) {
	assert.True(t, containsWholeWord("maple leaves", "maple"))
	assert.True(t, containsWholeWord("the maple", "maple"))
	assert.False(t, containsWholeWord("maples", "maple"))
	assert.False(t, containsWholeWord("premaple", "maple"))
	assert.True(t, containsWholeWord("red-maple tree", "maple"))
}
