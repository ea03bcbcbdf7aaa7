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
// CREATE OFFERING COMMAND
// Places a new offering on the altar.
// ══════════════════════════════════════════════════════════════════════════════

// CreateOfferingCommand contains the data to place an offering.
type CreateOfferingCommand struct {
	// AuthorID is the user placing the offering.
	AuthorID string

	// Title of the offering.
	Title string

	// Content is the body text.
	Content string

	// Genres are raw genre tags; they are parsed and deduplicated.
	Genres []string
}

// Validate validates the command. Field-level limits are enforced by the
// offering factory.
func (c CreateOfferingCommand) Validate() error {
	if c.AuthorID == "" {
		return errors.New("create_offering: author_id is required")
	}
	return nil
}

// CreateOfferingResult contains the result of placing an offering.
type CreateOfferingResult struct {
	Offering *offering.Offering
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreateOfferingHandler handles the CreateOfferingCommand.
type CreateOfferingHandler struct {
	offeringRepo offering.Repository
	userRepo     user.Repository
	publisher    shared.EventPublisher
}

// NewCreateOfferingHandler creates a new CreateOfferingHandler.
func NewCreateOfferingHandler(
	offeringRepo offering.Repository,
	userRepo user.Repository,
	publisher shared.EventPublisher,
) *CreateOfferingHandler {
	return &CreateOfferingHandler{
		offeringRepo: offeringRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// Handle executes the create offering command.
func (h *CreateOfferingHandler) Handle(ctx context.Context, cmd CreateOfferingCommand) (*CreateOfferingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_offering: validation failed: %w", err)
	}

	author, err := h.userRepo.GetByID(ctx, cmd.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("create_offering: failed to get author: %w", err)
	}
	if !author.Status.CanParticipate() {
		return nil, shared.ErrUserNotActive
	}

	genres := make([]offering.Genre, 0, len(cmd.Genres))
	for _, raw := range cmd.Genres {
		g, err := offering.ParseGenre(raw)
		if err != nil {
			return nil, err
		}
		genres = append(genres, g)
	}

	o, err := offering.NewOffering(offering.NewOfferingParams{
		ID:         uuid.NewString(),
		AuthorID:   author.ID,
		AuthorName: author.DisplayName,
		Title:      cmd.Title,
		Content:    cmd.Content,
		Genres:     genres,
	})
	if err != nil {
		return nil, err
	}

	if err := h.offeringRepo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("create_offering: failed to store offering: %w", err)
	}

	genreStrings := make([]string, len(o.Genres))
	for i, g := range o.Genres {
		genreStrings[i] = g.String()
	}
	event := shared.NewOfferingCreatedEvent(o.ID, o.AuthorID, o.Title, genreStrings)
	_ = h.publisher.Publish(event)

	return &CreateOfferingResult{Offering: o}, nil
}
