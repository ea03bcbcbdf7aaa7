package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

func newTestUser(t *testing.T, id, username string) *user.User {
	t.Helper()
	u, err := user.NewUser(user.NewUserParams{
		ID:           id,
		Username:     user.Username(username),
		Email:        user.Email(username + "@example.com"),
		PasswordHash: "hash",
		DisplayName:  "User " + id,
	})
	require.NoError(t, err)
	return u
}

func newTestOffering(t *testing.T, id, authorID string) *offering.Offering {
	t.Helper()
	o, err := offering.NewOffering(offering.NewOfferingParams{
		ID:         id,
		AuthorID:   authorID,
		AuthorName: "Author " + authorID,
		Title:      "Offering " + id,
		Content:    "content",
		Genres:     []offering.Genre{offering.GenreNature},
	})
	require.NoError(t, err)
	return o
}

func TestUserRepo(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Users()

	alice := newTestUser(t, "u-1", "alice")
	require.NoError(t, repo.Create(ctx, alice))

	t.Run("get by id", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, alice.Username, got.Username)
	})

	t.Run("get by username and email", func(t *testing.T) {
		got, err := repo.GetByUsername(ctx, alice.Username)
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.ID)

		got, err = repo.GetByEmail(ctx, alice.Email)
		require.NoError(t, err)
		assert.Equal(t, "u-1", got.ID)
	})

	t.Run("duplicate username rejected", func(t *testing.T) {
		dup := newTestUser(t, "u-2", "alice")
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrUsernameTaken)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		dup := newTestUser(t, "u-3", "alice2")
		dup.Email = alice.Email
		assert.ErrorIs(t, repo.Create(ctx, dup), shared.ErrEmailTaken)
	})

	t.Run("missing user", func(t *testing.T) {
		_, err := repo.GetByID(ctx, "missing")
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("exists checks", func(t *testing.T) {
		ok, err := repo.ExistsByUsername(ctx, alice.Username)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.ExistsByEmail(ctx, user.Email("nobody@example.com"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("update keeps username and email", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		require.NoError(t, got.UpdateProfile(user.ProfileUpdate{DisplayName: ptr("Alice Prime")}))
		require.NoError(t, repo.Update(ctx, got))

		updated, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.Equal(t, "Alice Prime", updated.DisplayName)
		assert.Equal(t, alice.Username, updated.Username)
	})

	t.Run("stored aggregate is isolated from caller", func(t *testing.T) {
		got, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		got.DisplayName = "mutated"

		fresh, err := repo.GetByID(ctx, "u-1")
		require.NoError(t, err)
		assert.NotEqual(t, "mutated", fresh.DisplayName)
	})

	t.Run("delete removes indexes", func(t *testing.T) {
		bob := newTestUser(t, "u-9", "bob")
		require.NoError(t, repo.Create(ctx, bob))
		require.NoError(t, repo.Delete(ctx, "u-9"))
		_, err := repo.GetByUsername(ctx, bob.Username)
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
	})
}

func TestOfferingRepo(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Offerings()

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		o := newTestOffering(t, fmt.Sprintf("off-%d", i), fmt.Sprintf("author-%d", i%2))
		o.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		for p := 0; p < i; p++ {
			_, err := o.TogglePrayer(fmt.Sprintf("p-%d", p))
			require.NoError(t, err)
		}
		require.NoError(t, repo.Create(ctx, o))
	}

	t.Run("duplicate create rejected", func(t *testing.T) {
		assert.ErrorIs(t, repo.Create(ctx, newTestOffering(t, "off-1", "a")), shared.ErrOfferingExists)
	})

	t.Run("list all newest first by default", func(t *testing.T) {
		offerings, err := repo.ListAll(ctx, offering.DefaultListOptions())
		require.NoError(t, err)
		require.Len(t, offerings, 5)
		assert.Equal(t, "off-5", offerings[0].ID)
		assert.Equal(t, "off-1", offerings[4].ID)
	})

	t.Run("sort by prayers", func(t *testing.T) {
		opts := offering.DefaultListOptions()
		opts.SortBy = offering.SortByPrayers
		offerings, err := repo.ListAll(ctx, opts)
		require.NoError(t, err)
		assert.Equal(t, "off-5", offerings[0].ID)
		assert.Equal(t, 5, offerings[0].Prayers())
	})

	t.Run("list by author", func(t *testing.T) {
		offerings, err := repo.ListByAuthor(ctx, "author-1", offering.DefaultListOptions())
		require.NoError(t, err)
		// off-1, off-3, off-5 carry author-1.
		assert.Len(t, offerings, 3)
	})

	t.Run("list by prayer", func(t *testing.T) {
		// p-3 prayed for off-4 and off-5 only.
		offerings, err := repo.ListByPrayer(ctx, "p-3", offering.DefaultListOptions())
		require.NoError(t, err)
		assert.Len(t, offerings, 2)
	})

	t.Run("list by guidance author", func(t *testing.T) {
		o, err := repo.GetByID(ctx, "off-2")
		require.NoError(t, err)
		g, err := offering.NewGuidance("g-1", o.ID, "guide-1", "Guide", "words")
		require.NoError(t, err)
		require.NoError(t, o.AddGuidance(g))
		require.NoError(t, repo.Update(ctx, o))

		offerings, err := repo.ListByGuidanceAuthor(ctx, "guide-1", offering.DefaultListOptions())
		require.NoError(t, err)
		require.Len(t, offerings, 1)
		assert.Equal(t, "off-2", offerings[0].ID)
	})

	t.Run("created since", func(t *testing.T) {
		offerings, err := repo.CreatedSince(ctx, base.Add(3*time.Hour))
		require.NoError(t, err)
		assert.Len(t, offerings, 3)
	})

	t.Run("pagination", func(t *testing.T) {
		opts := offering.DefaultListOptions()
		opts.Offset = 1
		opts.Limit = 2
		offerings, err := repo.ListAll(ctx, opts)
		require.NoError(t, err)
		require.Len(t, offerings, 2)
		assert.Equal(t, "off-4", offerings[0].ID)
	})

	t.Run("counts", func(t *testing.T) {
		total, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, total)

		byAuthor, err := repo.CountByAuthor(ctx, "author-0")
		require.NoError(t, err)
		assert.Equal(t, 2, byAuthor)
	})
}

func TestSnapshotRepo(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Snapshots()

	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	board := ranking.BuildBoard(nil, ranking.WindowWeek, now, 0)

	_, err := repo.GetLatestSnapshot(ctx, ranking.WindowWeek)
	assert.ErrorIs(t, err, shared.ErrSnapshotNotFound)

	first := ranking.NewSnapshot("snap-1", board)
	first.TakenAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.SaveSnapshot(ctx, first))

	second := ranking.NewSnapshot("snap-2", board)
	second.TakenAt = now
	require.NoError(t, repo.SaveSnapshot(ctx, second))

	latest, err := repo.GetLatestSnapshot(ctx, ranking.WindowWeek)
	require.NoError(t, err)
	assert.Equal(t, "snap-2", latest.ID)

	snaps, err := repo.ListSnapshots(ctx, ranking.WindowWeek, 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 2)

	removed, err := repo.PruneSnapshots(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	snaps, err = repo.ListSnapshots(ctx, ranking.WindowWeek, 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "snap-2", snaps[0].ID)

	t.Run("stored snapshot is isolated from caller", func(t *testing.T) {
		withEntries := ranking.BuildBoard(nil, ranking.WindowMonth, now, 0)
		withEntries.Entries = []*ranking.Entry{{Rank: 1, OfferingID: "off-1", Prayers: 3}}
		withEntries.RebuildIndex()
		require.NoError(t, repo.SaveSnapshot(ctx, ranking.NewSnapshot("snap-3", withEntries)))

		got, err := repo.GetLatestSnapshot(ctx, ranking.WindowMonth)
		require.NoError(t, err)
		got.Entries[0].Prayers = 99

		fresh, err := repo.GetLatestSnapshot(ctx, ranking.WindowMonth)
		require.NoError(t, err)
		assert.Equal(t, 3, fresh.Entries[0].Prayers)
	})
}

func TestNotificationRepo(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	repo := store.Notifications()

	for i := 1; i <= 3; i++ {
		n, err := notification.NewNotification(
			fmt.Sprintf("n-%d", i), "u-1", notification.TypePrayerReceived, "off-1", "u-2", "someone prayed")
		require.NoError(t, err)
		require.NoError(t, repo.Create(ctx, n))
	}

	unread, err := repo.CountUnread(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, unread)

	require.NoError(t, repo.MarkRead(ctx, "u-1", "n-1"))
	unread, err = repo.CountUnread(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	assert.ErrorIs(t, repo.MarkRead(ctx, "u-1", "missing"), shared.ErrNotificationNotFound)
	assert.ErrorIs(t, repo.MarkRead(ctx, "u-2", "n-2"), shared.ErrNotificationNotFound)

	require.NoError(t, repo.MarkAllRead(ctx, "u-1"))
	unread, err = repo.CountUnread(ctx, "u-1")
	require.NoError(t, err)
	assert.Zero(t, unread)

	notices, err := repo.ListByUser(ctx, "u-1", 2)
	require.NoError(t, err)
	assert.Len(t, notices, 2)
}

func ptr(s string) *string { return &s }
