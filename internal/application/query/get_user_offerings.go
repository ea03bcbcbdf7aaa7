package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER OFFERINGS QUERY
// Returns offerings related to a user: authored, prayed-for, or guided.
// ══════════════════════════════════════════════════════════════════════════════

// Relation names the link between a user and an offering.
type Relation string

const (
	// RelationAuthor - offerings the user placed.
	RelationAuthor Relation = "author"

	// RelationPrayed - offerings the user prayed for.
	RelationPrayed Relation = "prayed"

	// RelationGuided - offerings the user left guidance on.
	RelationGuided Relation = "guided"
)

// IsValid checks that the relation is a known value.
func (r Relation) IsValid() bool {
	switch r {
	case RelationAuthor, RelationPrayed, RelationGuided:
		return true
	default:
		return false
	}
}

// GetUserOfferingsQuery contains parameters for a user-offerings request.
type GetUserOfferingsQuery struct {
	// UserID is the user whose related offerings are requested.
	UserID string

	// Relation selects the link: author, prayed, guided. Default author.
	Relation Relation

	// ViewerID is the requesting user (optional), for HasPrayed.
	ViewerID string

	// Limit is the number of results (default 20, max 100).
	Limit int

	// Offset for pagination.
	Offset int
}

// Validate checks the query parameters and applies defaults.
func (q *GetUserOfferingsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user_id is required")
	}
	if q.Relation == "" {
		q.Relation = RelationAuthor
	}
	if !q.Relation.IsValid() {
		return fmt.Errorf("unknown relation: %s", q.Relation)
	}
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

// GetUserOfferingsResult contains the related offerings.
type GetUserOfferingsResult struct {
	// UserID the offerings relate to.
	UserID string `json:"user_id"`

	// Relation that was applied.
	Relation Relation `json:"relation"`

	// Offerings on this page, newest first.
	Offerings []OfferingDTO `json:"offerings"`
}

// GetUserOfferingsHandler handles user-offerings requests.
type GetUserOfferingsHandler struct {
	offeringRepo offering.Repository
}

// NewGetUserOfferingsHandler creates a new GetUserOfferingsHandler.
func NewGetUserOfferingsHandler(offeringRepo offering.Repository) *GetUserOfferingsHandler {
	return &GetUserOfferingsHandler{offeringRepo: offeringRepo}
}

// Handle executes the user offerings query.
func (h *GetUserOfferingsHandler) Handle(ctx context.Context, q GetUserOfferingsQuery) (*GetUserOfferingsResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	opts := offering.DefaultListOptions().WithOffset(q.Offset).WithLimit(q.Limit)

	var (
		offerings []*offering.Offering
		err       error
	)
	switch q.Relation {
	case RelationPrayed:
		offerings, err = h.offeringRepo.ListByPrayer(ctx, q.UserID, opts)
	case RelationGuided:
		offerings, err = h.offeringRepo.ListByGuidanceAuthor(ctx, q.UserID, opts)
	default:
		offerings, err = h.offeringRepo.ListByAuthor(ctx, q.UserID, opts)
	}
	if err != nil {
		return nil, err
	}

	dtos := make([]OfferingDTO, len(offerings))
	for i, o := range offerings {
		dtos[i] = toOfferingDTO(o, q.ViewerID)
	}

	return &GetUserOfferingsResult{
		UserID:    q.UserID,
		Relation:  q.Relation,
		Offerings: dtos,
	}, nil
}
