package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// TOGGLE PRAYER COMMAND
// Offers a prayer for an offering, or withdraws an existing one. The same
// operation serves both directions; the aggregate decides which applies.
// ══════════════════════════════════════════════════════════════════════════════

// TogglePrayerCommand contains the data to toggle a prayer.
type TogglePrayerCommand struct {
	// OfferingID is the target offering.
	OfferingID string

	// UserID is the user offering or withdrawing the prayer.
	UserID string
}

// Validate validates the command.
func (c TogglePrayerCommand) Validate() error {
	if c.OfferingID == "" {
		return errors.New("toggle_prayer: offering_id is required")
	}
	if c.UserID == "" {
		return errors.New("toggle_prayer: user_id is required")
	}
	return nil
}

// TogglePrayerResult contains the result of the toggle.
type TogglePrayerResult struct {
	// Offered is true when the toggle added a prayer, false when it
	// withdrew one.
	Offered bool

	// Prayers is the prayer count after the toggle.
	Prayers int

	// Offering is the updated aggregate.
	Offering *offering.Offering
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TogglePrayerHandler handles the TogglePrayerCommand.
type TogglePrayerHandler struct {
	offeringRepo offering.Repository
	userRepo     user.Repository
	publisher    shared.EventPublisher
}

// NewTogglePrayerHandler creates a new TogglePrayerHandler.
func NewTogglePrayerHandler(
	offeringRepo offering.Repository,
	userRepo user.Repository,
	publisher shared.EventPublisher,
) *TogglePrayerHandler {
	return &TogglePrayerHandler{
		offeringRepo: offeringRepo,
		userRepo:     userRepo,
		publisher:    publisher,
	}
}

// Handle executes the toggle prayer command.
func (h *TogglePrayerHandler) Handle(ctx context.Context, cmd TogglePrayerCommand) (*TogglePrayerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("toggle_prayer: validation failed: %w", err)
	}

	u, err := h.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("toggle_prayer: failed to get user: %w", err)
	}
	if !u.Status.CanParticipate() {
		return nil, shared.ErrUserNotActive
	}

	o, err := h.offeringRepo.GetByID(ctx, cmd.OfferingID)
	if err != nil {
		return nil, fmt.Errorf("toggle_prayer: failed to get offering: %w", err)
	}

	offered, err := o.TogglePrayer(cmd.UserID)
	if err != nil {
		return nil, err
	}

	if err := h.offeringRepo.Update(ctx, o); err != nil {
		return nil, fmt.Errorf("toggle_prayer: failed to store offering: %w", err)
	}

	event := shared.NewPrayerToggledEvent(o.ID, cmd.UserID, o.AuthorID, offered, o.Prayers())
	_ = h.publisher.Publish(event)

	return &TogglePrayerResult{
		Offered:  offered,
		Prayers:  o.Prayers(),
		Offering: o,
	}, nil
}
