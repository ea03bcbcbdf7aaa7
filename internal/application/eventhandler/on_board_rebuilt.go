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
// ON BOARD REBUILT HANDLER
// Reacts to ranking.board_rebuilt: compares the two latest snapshots and
// notifies authors whose offerings entered the top of the board.
// ══════════════════════════════════════════════════════════════════════════════

// TopNThreshold is the board position that counts as "entering the top".
const TopNThreshold = 10

// OnBoardRebuiltHandler handles board rebuilt events.
type OnBoardRebuiltHandler struct {
	userRepo         user.Repository
	notificationRepo notification.Repository
	snapshotRepo     ranking.SnapshotRepository
	log              *logger.Logger
}

// NewOnBoardRebuiltHandler creates a new OnBoardRebuiltHandler.
func NewOnBoardRebuiltHandler(
	userRepo user.Repository,
	notificationRepo notification.Repository,
	snapshotRepo ranking.SnapshotRepository,
	log *logger.Logger,
) *OnBoardRebuiltHandler {
	if log == nil {
		log = logger.Default()
	}
	return &OnBoardRebuiltHandler{
		userRepo:         userRepo,
		notificationRepo: notificationRepo,
		snapshotRepo:     snapshotRepo,
		log:              log.With(logger.Component("on_board_rebuilt")),
	}
}

// Handle processes a board rebuilt event. Implements shared.EventHandler.
func (h *OnBoardRebuiltHandler) Handle(event shared.Event) error {
	boardEvent, ok := event.(shared.BoardRebuiltEvent)
	if !ok {
		h.log.Warn("received unexpected event", logger.String("event_type", string(event.EventType())))
		return nil
	}
	if h.notificationRepo == nil {
		return nil
	}

	window, err := ranking.ParseWindow(boardEvent.Window)
	if err != nil {
		return err
	}

	ctx := context.Background()

	snaps, err := h.snapshotRepo.ListSnapshots(ctx, window, 2)
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	if len(snaps) == 0 {
		return nil
	}

	current := snaps[0]
	var previous *ranking.Snapshot
	if len(snaps) > 1 {
		previous = snaps[1]
	}

	for _, entry := range current.Top(TopNThreshold) {
		// Only entries that were outside the top before get a notice.
		if previous != nil {
			prevRank := previous.GetRank(entry.OfferingID)
			if prevRank != 0 && int(prevRank) <= TopNThreshold {
				continue
			}
		} else {
			// First snapshot for this window; treat nothing as new to avoid
			// a notification storm on the initial rebuild.
			continue
		}

		if err := h.notifyEntry(ctx, window, entry); err != nil {
			h.log.Warn("failed to notify top entry",
				logger.OfferingID(entry.OfferingID),
				logger.Err(err),
			)
		}
	}

	return nil
}

// notifyEntry creates an entered_top_n notice for one board entry.
func (h *OnBoardRebuiltHandler) notifyEntry(ctx context.Context, window ranking.Window, entry *ranking.Entry) error {
	author, err := h.userRepo.GetByID(ctx, entry.AuthorID)
	if err != nil {
		return fmt.Errorf("get author: %w", err)
	}
	if !author.CanReceiveNotification(string(notification.TypeEnteredTopN), time.Now().UTC()) {
		return nil
	}

	n, err := notification.NewNotification(
		uuid.NewString(),
		author.ID,
		notification.TypeEnteredTopN,
		entry.OfferingID,
		"",
		fmt.Sprintf("Your offering entered the top %d of the %s board at %s", TopNThreshold, window, entry.Rank),
	)
	if err != nil {
		return err
	}
	return h.notificationRepo.Create(ctx, n)
}
