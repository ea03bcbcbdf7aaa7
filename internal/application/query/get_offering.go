package query

import (
	"context"
	"errors"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET OFFERING QUERY
// Returns a single offering with its prayers and guidance.
// ══════════════════════════════════════════════════════════════════════════════

// GetOfferingQuery contains parameters for a single-offering request.
type GetOfferingQuery struct {
	// OfferingID is the offering to fetch.
	OfferingID string

	// ViewerID is the requesting user (optional). When set, HasPrayed is
	// filled in the response.
	ViewerID string
}

// Validate checks the query parameters.
func (q *GetOfferingQuery) Validate() error {
	if q.OfferingID == "" {
		return errors.New("offering_id is required")
	}
	return nil
}

// GuidanceDTO is a single guidance item for API responses.
type GuidanceDTO struct {
	ID         string    `json:"id"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// OfferingDTO is the full offering view.
type OfferingDTO struct {
	ID            string        `json:"id"`
	AuthorID      string        `json:"author_id"`
	AuthorName    string        `json:"author_name"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Genres        []string      `json:"genres"`
	Prayers       int           `json:"prayers"`
	GuidanceCount int           `json:"guidance_count"`
	Guidances     []GuidanceDTO `json:"guidances"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`

	// HasPrayed is true when the viewer has prayed for this offering.
	HasPrayed bool `json:"has_prayed"`
}

// GetOfferingResult contains the offering view.
type GetOfferingResult struct {
	Offering OfferingDTO `json:"offering"`
}

// GetOfferingHandler handles single-offering requests.
type GetOfferingHandler struct {
	offeringRepo offering.Repository
}

// NewGetOfferingHandler creates a new GetOfferingHandler.
func NewGetOfferingHandler(offeringRepo offering.Repository) *GetOfferingHandler {
	return &GetOfferingHandler{offeringRepo: offeringRepo}
}

// Handle executes the get offering query.
func (h *GetOfferingHandler) Handle(ctx context.Context, q GetOfferingQuery) (*GetOfferingResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	o, err := h.offeringRepo.GetByID(ctx, q.OfferingID)
	if err != nil {
		return nil, err
	}

	return &GetOfferingResult{Offering: toOfferingDTO(o, q.ViewerID)}, nil
}

// toOfferingDTO maps an aggregate to its API view.
func toOfferingDTO(o *offering.Offering, viewerID string) OfferingDTO {
	genres := make([]string, len(o.Genres))
	for i, g := range o.Genres {
		genres[i] = g.String()
	}

	guidances := make([]GuidanceDTO, len(o.Guidances))
	for i, g := range o.Guidances {
		guidances[i] = GuidanceDTO{
			ID:         g.ID,
			AuthorID:   g.AuthorID,
			AuthorName: g.AuthorName,
			Content:    g.Content,
			CreatedAt:  g.CreatedAt,
		}
	}

	return OfferingDTO{
		ID:            o.ID,
		AuthorID:      o.AuthorID,
		AuthorName:    o.AuthorName,
		Title:         o.Title,
		Content:       o.Content,
		Genres:        genres,
		Prayers:       o.Prayers(),
		GuidanceCount: o.GuidanceCount(),
		Guidances:     guidances,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
		HasPrayed:     viewerID != "" && o.HasPrayedBy(viewerID),
	}
}
