package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADD GUIDANCE COMMAND
// Leaves guidance beneath an offering. Guidance is append-only and keeps
// insertion order.
// ══════════════════════════════════════════════════════════════════════════════

// AddGuidanceCommand contains the data to add guidance.
type AddGuidanceCommand struct {
	// OfferingID is the target offering.
	OfferingID string

	// AuthorID is the user leaving guidance.
	AuthorID string

	// Content is the guidance text.
	Content string
}

// Validate validates the command.
func (c AddGuidanceCommand) Validate() error {
	if c.OfferingID == "" {
		return errors.New("add_guidance: offering_id is required")
	}
	if c.AuthorID == "" {
		return errors.New("add_guidance: author_id is required")
	}
	return nil
}

// AddGuidanceResult contains the result of adding guidance.
type AddGuidanceResult struct {
	// Guidance is the stored guidance.
	Guidance offering.Guidance

	// GuidanceCount is the offering's guidance count afterwards.
	GuidanceCount int
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AddGuidanceHandler handles the AddGuidanceCommand.
type AddGuidanceHandler struct {
	offeringRepo offering.Repository
	userRepo     user.Repository
	publisher    shared.EventPublisher
}

// NewAddGuidanceHandler creates a new AddGuidanceHandler.
func NewAddGuidanceHandler(
	offeringRepo offering.Repository,
	userRepo user.Repository,
	publisher shared.EventPublisher,
) *AddGuidanceHandler {
	return &AddGuidanceHandler{
		offeringRepo: offeringRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// Handle executes the add guidance command.
func (h *AddGuidanceHandler) Handle(ctx context.Context, cmd AddGuidanceCommand) (*AddGuidanceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("add_guidance: validation failed: %w", err)
	}

	author, err := h.userRepo.GetByID(ctx, cmd.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("add_guidance: failed to get author: %w", err)
	}
	if !author.Status.CanParticipate() {
		return nil, shared.ErrUserNotActive
	}

	o, err := h.offeringRepo.GetByID(ctx, cmd.OfferingID)
	if err != nil {
		return nil, fmt.Errorf("add_guidance: failed to get offering: %w", err)
	}

	g, err := offering.NewGuidance(uuid.NewString(), o.ID, author.ID, author.DisplayName, cmd.Content)
	if err != nil {
		return nil, err
	}
	if err := o.AddGuidance(g); err != nil {
		return nil, err
	}

	if err := h.offeringRepo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("add_guidance: failed to store offering: %w", err)
	}

	event := shared.NewGuidanceAddedEvent(o.ID, g.ID, author.ID, o.AuthorID)
	_ = h.publisher.Publish(event)

	return &AddGuidanceResult{
		Guidance:      g,
		GuidanceCount: o.GuidanceCount(),
	}, nil
}
