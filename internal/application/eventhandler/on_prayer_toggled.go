// Package eventhandler contains domain event handlers. They are the reactive
// part of the system: they keep the ranking cache warm and create in-app
// notices as side effects of commands, without the commands knowing.
package eventhandler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// ON PRAYER TOGGLED HANDLER
// Reacts to prayer.offered and prayer.withdrawn: bumps the cached ranking
// score and notifies the offering's author on new prayers.
// ══════════════════════════════════════════════════════════════════════════════

// OnPrayerToggledHandler handles prayer toggle events.
type OnPrayerToggledHandler struct {
	userRepo         user.Repository
	notificationRepo notification.Repository
	boardCache       ranking.BoardCache
	log              *logger.Logger
}

// NewOnPrayerToggledHandler creates a new OnPrayerToggledHandler. The board
// cache and notification repository may each be nil; the corresponding side
// effect is then skipped.
func NewOnPrayerToggledHandler(
	userRepo user.Repository,
	notificationRepo notification.Repository,
	boardCache ranking.BoardCache,
	log *logger.Logger,
) *OnPrayerToggledHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnPrayerToggledHandler{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		boardCache:       boardCache,
		log:              log.With(logger.Component("on_prayer_toggled")),
	}
}

// Handle processes a prayer toggle event. Implements shared.EventHandler.
func (h *OnPrayerToggledHandler) Handle(event shared.Event) error {
	prayerEvent, ok := event.(shared.PrayerToggledEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}

	ctx := context.Background()

	// Keep the cached boards close to the live counts between rebuilds.
	if h.boardCache != nil {
		delta := 1
		if !prayerEvent.Offered {
			delta = -1
		}
		if err := h.boardCache.BumpPrayers(ctx, prayerEvent.AggregateID(), delta); err != nil {
			h.log.Warn("failed to bump cached prayers",
				logger.OfferingID(prayerEvent.AggregateID()),
				logger.Err(err),
			)
		}
	}

	// Withdrawals and self-prayers produce no notice.
	if !prayerEvent.Offered || prayerEvent.UserID == prayerEvent.AuthorID {
		return nil
	}

	return h.notifyAuthor(ctx, prayerEvent)
}

// notifyAuthor creates a prayer_received notice for the offering's author.
func (h *OnPrayerToggledHandler) notifyAuthor(ctx context.Context, event shared.PrayerToggledEvent) error {
	if h.notificationRepo == nil {
		return nil
	}

	author, err := h.userRepo.GetByID(ctx, event.AuthorID)
	if err != nil {
		h.log.Error("failed to get author", logger.UserID(event.AuthorID), logger.Err(err))
		return fmt.Errorf("get author: %w", err)
	}

	if !author.CanReceiveNotification(string(notification.TypePrayerReceived), time.Now().UTC()) {
		return nil
	}

	actor, err := h.userRepo.GetByID(ctx, event.UserID)
	actorName := "Someone"
	if err == nil {
		actorName = actor.DisplayName
	}

	n, err := notification.NewNotification(
		uuid.NewString(),
		author.ID,
		notification.TypePrayerReceived,
		event.AggregateID(),
		event.UserID,
		fmt.Sprintf("%s prayed for your offering", actorName),
	)
	if err != nil {
		return err
	}

	if err := h.notificationRepo.Create(ctx, n); err != nil {
		h.log.Error("failed to store notification", logger.UserID(author.ID), logger.Err(err))
		return fmt.Errorf("store notification: %w", err)
	}

	h.log.Debug("prayer notice created",
		logger.UserID(author.ID),
		logger.OfferingID(event.AggregateID()),
		logger.Prayers(event.Prayers),
	)
	return nil
}
