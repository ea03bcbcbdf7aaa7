// Package search contains the search view over offerings: faceted filtering
// plus a weighted term-match relevance score. Everything here is a pure
// function over in-memory offerings, so postgres and the memory store can
// share one scoring implementation.
package search

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// MaxQueryLen bounds the free-text query.
const MaxQueryLen = 200

// Term-match weights. Title hits dominate, genre hits count double a plain
// content hit, and popularity gives a small logarithmic boost so a flood of
// prayers cannot drown out textual relevance.
const (
	weightTitle      = 3.0
	weightWholeWord  = 1.5
	weightContent    = 1.0
	weightGenre      = 2.0
	weightAuthor     = 1.5
	weightPopularity = 0.5
)

// Filter describes a search over the offering collection.
type Filter struct {
	// Query is the free-text query. Empty means facet-only search.
	Query string

	// Genres restricts to offerings carrying at least one of these tags.
	Genres []offering.Genre

	// AuthorID restricts to a single author.
	AuthorID string

	// From/To restrict by creation time. Zero values mean unbounded.
	From time.Time
	To   time.Time

	// MinPrayers restricts to offerings with at least this many prayers.
	MinPrayers int
}

// Validate checks the filter.
func (f *Filter) Validate() error {
	if len(f.Query) > MaxQueryLen {
		return shared.ErrQueryTooLong
	}
	for _, g := range f.Genres {
		if !g.IsValid() {
			return shared.ErrInvalidGenre
		}
	}
	if f.MinPrayers < 0 {
		return shared.ErrInvalidFilter
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return shared.ErrInvalidFilter
	}
	return nil
}

// Terms returns the normalized query terms.
func (f *Filter) Terms() []string {
	return splitTerms(f.Query)
}

// HasQuery checks whether the filter carries free-text terms.
func (f *Filter) HasQuery() bool {
	return len(f.Terms()) > 0
}

// Result is a scored offering.
type Result struct {
	// Offering is the matched aggregate.
	Offering *offering.Offering

	// Score is the relevance score. Zero for facet-only searches.
	Score float64
}

// Matches checks the facet filters only; the free-text query does not
// participate here.
func (f *Filter) Matches(o *offering.Offering) bool {
	if o == nil {
		return false
	}
	if f.AuthorID != "" && o.AuthorID != f.AuthorID {
		return false
	}
	if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && o.CreatedAt.After(f.To) {
		return false
	}
	if o.Prayers() < f.MinPrayers {
		return false
	}
	if len(f.Genres) > 0 {
		found := false
		for _, g := range f.Genres {
			if o.HasGenre(g) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Score computes the weighted term-match score of an offering against the
// filter's query terms. Returns 0 when no term matches.
func (f *Filter) Score(o *offering.Offering) float64 {
	terms := f.Terms()
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(o.Title)
	content := strings.ToLower(o.Content)
	author := strings.ToLower(o.AuthorName)

	var score float64
	matched := false

	for _, term := range terms {
		if strings.Contains(title, term) {
			score += weightTitle
			if containsWholeWord(title, term) {
				score += weightWholeWord
			}
			matched = true
		}
		if strings.Contains(content, term) {
			score += weightContent
			matched = true
		}
		for _, g := range o.Genres {
			if strings.Contains(g.String(), term) {
				score += weightGenre
				matched = true
				break
			}
		}
		if author != "" && strings.Contains(author, term) {
			score += weightAuthor
			matched = true
		}
	}

	if !matched {
		return 0
	}

	// Popularity boost is logarithmic so text relevance stays dominant.
	score += math.Log1p(float64(o.Prayers())) * weightPopularity

	return score
}

// Run applies the filter to the given offerings and returns sorted results.
// With query terms present, zero-score offerings are excluded and results
// sort by score; facet-only searches sort by creation time, newest first.
// Ties break by prayer count, then creation time, then ID.
func (f *Filter) Run(offerings []*offering.Offering) []Result {
	hasQuery := f.HasQuery()

	results := make([]Result, 0, len(offerings))
	for _, o := range offerings {
		if !f.Matches(o) {
			continue
		}
		r := Result{Offering: o}
		if hasQuery {
			r.Score = f.Score(o)
			if r.Score == 0 {
				continue
			}
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if hasQuery && a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Offering.Prayers() != b.Offering.Prayers() && hasQuery {
			return a.Offering.Prayers() > b.Offering.Prayers()
		}
		if !a.Offering.CreatedAt.Equal(b.Offering.CreatedAt) {
			return a.Offering.CreatedAt.After(b.Offering.CreatedAt)
		}
		return a.Offering.ID < b.Offering.ID
	})

	return results
}

// splitTerms normalizes a query into lowercase terms, dropping empties.
func splitTerms(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			terms = append(terms, f)
		}
	}
	return terms
}

// containsWholeWord checks whether term appears in text bounded by
// non-alphanumeric runes.
func containsWholeWord(text, term string) bool {
	for i := 0; i+len(term) <= len(text); i++ {
		j := strings.Index(text[i:], term)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(term)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		i = start
	}
	return false
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9' || b == '_'
}
