package eventhandler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/memory"
)

func seedUser(t *testing.T, store *memory.Store, id, username string) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID:           id,
		Username:     user.Username(username),
		Email:        user.Email(username + "@example.com"),
		PasswordHash: "hash",
		DisplayName:  "User " + username,
	})
	require.NoError(t, err)
	// Quiet hours off so notices are deliverable at any test time.
	prefs := u.Preferences
	prefs.QuietHoursStart = 0
	prefs.QuietHoursEnd = 0
	u.UpdatePreferences(prefs)
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func TestOnPrayerToggled(t *testing.T) {
	ctx := context.Background()

	t.Run("notifies author on new prayer", func(t *testing.T) {
		store := memory.NewStore()
		seedUser(t, store, "author-1", "hana")
		seedUser(t, store, "visitor-1", "ren")
		handler := NewOnPrayerToggledHandler(store.Users(), store.Notifications(), nil, nil)

		event := shared.NewPrayerToggledEvent("off-1", "visitor-1", "author-1", true, 1)
		require.NoError(t, handler.Handle(event))

		notices, err := store.Notifications().ListByUser(ctx, "author-1", 10)
		require.NoError(t, err)
		require.Len(t, notices, 1)
		assert.Equal(t, notification.TypePrayerReceived, notices[0].Type)
		assert.Equal(t, "off-1", notices[0].OfferingID)
		assert.Equal(t, "visitor-1", notices[0].ActorID)
	})

	t.Run("withdrawal produces no notice", func(t *testing.T) {
		store := memory.NewStore()
		seedUser(t, store, "author-1", "hana")
		seedUser(t, store, "visitor-1", "ren")
		handler := NewOnPrayerToggledHandler(store.Users(), store.Notifications(), nil, nil)

		event := shared.NewPrayerToggledEvent("off-1", "visitor-1", "author-1", false, 0)
		require.NoError(t, handler.Handle(event))

		count, err := store.Notifications().CountUnread(ctx, "author-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("self prayer produces no notice", func(t *testing.T) {
		store := memory.NewStore()
		seedUser(t, store, "author-1", "hana")
		handler := NewOnPrayerToggledHandler(store.Users(), store.Notifications(), nil, nil)

		event := shared.NewPrayerToggledEvent("off-1", "author-1", "author-1", true, 1)
		require.NoError(t, handler.Handle(event))

		count, err := store.Notifications().CountUnread(ctx, "author-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("disabled preference suppresses notice", func(t *testing.T) {
		store := memory.NewStore()
		author := seedUser(t, store, "author-1", "hana")
		seedUser(t, store, "visitor-1", "ren")

		prefs := author.Preferences
		prefs.PrayerNotices = false
		author.UpdatePreferences(prefs)
		require.NoError(t, store.Users().Update(ctx, author))

		handler := NewOnPrayerToggledHandler(store.Users(), store.Notifications(), nil, nil)
		event := shared.NewPrayerToggledEvent("off-1", "visitor-1", "author-1", true, 1)
		require.NoError(t, handler.Handle(event))

		count, err := store.Notifications().CountUnread(ctx, "author-1")
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestOnGuidanceAdded(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	seedUser(t, store, "author-1", "hana")
	seedUser(t, store, "visitor-1", "ren")
	handler := NewOnGuidanceAddedHandler(store.Users(), store.Notifications(), nil)

	event := shared.NewGuidanceAddedEvent("off-1", "g-1", "visitor-1", "author-1")
	require.NoError(t, handler.Handle(event))

	notices, err := store.Notifications().ListByUser(ctx, "author-1", 10)
	require.NoError(t, err)
	require.Len(t, notices, 1)
	assert.Equal(t, notification.TypeGuidanceReceived, notices[0].Type)
	assert.Contains(t, notices[0].Message, "User ren")
}
