package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON GUIDANCE ADDED HANDLER
// Reacts to guidance.added: notifies the offering's author.
// ══════════════════════════════════════════════════════════════════════════════

// OnGuidanceAddedHandler handles guidance added events.
type OnGuidanceAddedHandler struct {
	userRepo         user.Repository
	notificationRepo notification.Repository
	log              *logger.Logger
}

// NewOnGuidanceAddedHandler creates a new OnGuidanceAddedHandler.
func NewOnGuidanceAddedHandler(
	userRepo user.Repository,
	notificationRepo notification.Repository,
	log *logger.Logger,
) *OnGuidanceAddedHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnGuidanceAddedHandler{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		log:              log.With(logger.Component("on_guidance_added")),
	}
}

// Handle processes a guidance added event. Implements shared.EventHandler.
func (h *OnGuidanceAddedHandler) Handle(event shared.Event) error {
	guidanceEvent, ok := event.(shared.GuidanceAddedEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	// Guidance on one's own offering produces no notice.
	if guidanceEvent.UserID == guidanceEvent.AuthorID {
		return nil
	}
	if h.notificationRepo == nil {
		return nil
	}

	ctx := context.Background()

	author, err := h.userRepo.GetByID(ctx, guidanceEvent.AuthorID)
	if err != nil {
		h.log.Error("failed to get author", logger.UserID(guidanceEvent.AuthorID), logger.Err(err))
		return fmt.Errorf("get author: %w", err)
	}

	if !author.CanReceiveNotification(string(notification.TypeGuidanceReceived), time.Now().UTC()) {
		return nil
	}

	actor, err := h.userRepo.GetByID(ctx, guidanceEvent.UserID)
	actorName := "Someone"
	if err == nil {
		actorName = actor.DisplayName
	}

	n, err := notification.NewNotification(
		uuid.NewString(),
		author.ID,
		notification.TypeGuidanceReceived,
		guidanceEvent.AggregateID(),
		guidanceEvent.UserID,
		fmt.Sprintf("%s left guidance on your offering", actorName),
	)
	if err != nil {
		return err
	}

	if err := h.notificationRepo.Create(ctx, n); err != nil {
		h.log.Error("failed to store notification", logger.UserID(author.ID), logger.Err(err))
		return fmt.Errorf("store notification: %w", err)
	}

	h.log.Debug("guidance notice created",
		logger.UserID(author.ID),
		logger.OfferingID(guidanceEvent.AggregateID()),
		logger.GuidanceID(guidanceEvent.GuidanceID),
	)
	return nil
}
