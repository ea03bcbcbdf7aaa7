package query

import (
	"context"
	"errors"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/search"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEARCH OFFERINGS QUERY
// Free-text and faceted search over the offering collection. Scoring runs in
// the search domain package so every storage backend ranks identically.
// ══════════════════════════════════════════════════════════════════════════════

// SearchOfferingsQuery contains search parameters.
type SearchOfferingsQuery struct {
	// Query is the free-text query. Empty means facet-only search.
	Query string

	// Genres restricts to offerings carrying at least one of these tags.
	Genres []string

	// AuthorID restricts to a single author.
	AuthorID string

	// From/To restrict by creation time (RFC3339 in transport). Zero values
	// mean unbounded.
	From time.Time
	To   time.Time

	// MinPrayers restricts to offerings with at least this many prayers.
	MinPrayers int

	// Limit is the number of results (default 20, max 100).
	Limit int

	// Offset for pagination.
	Offset int
}

// Validate checks the query parameters and applies defaults.
func (q *SearchOfferingsQuery) Validate() error {
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

// SearchResultDTO is a single scored hit.
type SearchResultDTO struct {
	// OfferingID identifies the offering.
	OfferingID string `json:"offering_id"`

	// AuthorID and AuthorName identify the author.
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`

	// Title of the offering.
	Title string `json:"title"`

	// Genres classify the offering.
	Genres []string `json:"genres"`

	// Prayers is the prayer count.
	Prayers int `json:"prayers"`

	// GuidanceCount is the guidance count.
	GuidanceCount int `json:"guidance_count"`

	// CreatedAt is when the offering was placed.
	CreatedAt time.Time `json:"created_at"`

	// Score is the relevance score. Zero for facet-only searches.
	Score float64 `json:"score"`
}

// SearchOfferingsResult contains the search page.
type SearchOfferingsResult struct {
	// Results on this page.
	Results []SearchResultDTO `json:"results"`

	// TotalCount is the number of hits before pagination.
	TotalCount int `json:"total_count"`

	// HasMore reports whether hits remain after this page.
	HasMore bool `json:"has_more"`
}

// SearchOfferingsHandler handles search requests.
type SearchOfferingsHandler struct {
	offeringRepo offering.Repository
}

// NewSearchOfferingsHandler creates a new SearchOfferingsHandler.
func NewSearchOfferingsHandler(offeringRepo offering.Repository) *SearchOfferingsHandler {
	return &SearchOfferingsHandler{offeringRepo: offeringRepo}
}

// Handle executes the search query.
func (h *SearchOfferingsHandler) Handle(ctx context.Context, q SearchOfferingsQuery) (*SearchOfferingsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	genres := make([]offering.Genre, 0, len(q.Genres))
	for _, raw := range q.Genres {
		g, err := offering.ParseGenre(raw)
		if err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}

	filter := &search.Filter{
		Query:      q.Query,
		Genres:     genres,
		AuthorID:   q.AuthorID,
		From:       q.From,
		To:         q.To,
		MinPrayers: q.MinPrayers,
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	// The scorer needs the whole collection; facet pre-filtering happens
	// inside Run.
	offerings, err := h.offeringRepo.CreatedSince(ctx, time.Time{})
	if err != nil {
		return nil, err
	}

	hits := filter.Run(offerings)
	total := len(hits)

	page := paginateResults(hits, q.Offset, q.Limit)
	results := make([]SearchResultDTO, len(page))
	for i, hit := range page {
		o := hit.Offering
		genres := make([]string, len(o.Genres))
		for j, g := range o.Genres {
			genres[j] = g.String()
		}
		results[i] = SearchResultDTO{
			OfferingID:    o.ID,
			AuthorID:      o.AuthorID,
			AuthorName:    o.AuthorName,
			Title:         o.Title,
			Genres:        genres,
			Prayers:       o.Prayers(),
			GuidanceCount: o.GuidanceCount(),
			CreatedAt:     o.CreatedAt,
			Score:         hit.Score,
		}
	}

	return &SearchOfferingsResult{
		Results:    results,
		TotalCount: total,
		HasMore:    q.Offset+len(page) < total,
	}, nil
}

func paginateResults(hits []search.Result, offset, limit int) []search.Result {
	if offset < 0 || offset >= len(hits) {
		return nil
	}
	end := len(hits)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return hits[offset:end]
}
