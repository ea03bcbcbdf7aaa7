package user

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/pkg/timeutil"
)

func validUserParams() NewUserParams {
	return NewUserParams{
		ID:           "user-1",
		Username:     "Hana_99",
		Email:        "Hana@Kumotsudai.Example",
		PasswordHash: "$2a$10$fakehash",
		DisplayName:  "Hana of the West Gate",
	}
}

func TestNewUsername(t *testing.T) {
	t.Run("normalizes to lowercase", func(t *testing.T) {
		u, err := NewUsername("  Hana_99 ")
		require.NoError(t, err)
		assert.Equal(t, Username("hana_99"), u)
	})

	for _, bad := range []string{"", "ab", "9starts-with-digit", "has space", strings.Repeat("a", 31)} {
		t.Run("rejects "+bad, func(t *testing.T) {
			_, err := NewUsername(bad)
			assert.ErrorIs(t, err, shared.ErrInvalidUsername)
		})
	}
}

func TestNewEmail(t *testing.T) {
	e, err := NewEmail(" Hana@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, Email("hana@example.com"), e)

	for _, bad := range []string{"", "no-at", "two@@example.com", "space in@example.com"} {
		_, err := NewEmail(bad)
		assert.ErrorIs(t, err, shared.ErrInvalidEmail, "input %q", bad)
	}
}

func TestNewUser(t *testing.T) {
	t.Run("valid params", func(t *testing.T) {
		u, err := NewUser(validUserParams())
		require.NoError(t, err)
		assert.Equal(t, Username("hana_99"), u.Username)
		assert.Equal(t, Email("hana@kumotsudai.example"), u.Email)
		assert.Equal(t, StatusActive, u.Status)
		assert.Equal(t, DefaultNotificationPreferences(), u.Preferences)
		assert.False(t, u.JoinedAt.IsZero())
	})

	t.Run("display name falls back to username", func(t *testing.T) {
		p := validUserParams()
		p.DisplayName = "   "
		u, err := NewUser(p)
		require.NoError(t, err)
		assert.Equal(t, "Hana_99", u.DisplayName)
	})

	t.Run("missing password hash", func(t *testing.T) {
		p := validUserParams()
		p.PasswordHash = ""
		_, err := NewUser(p)
		assert.ErrorIs(t, err, shared.ErrEmptyValue)
	})

	t.Run("display name too long", func(t *testing.T) {
		p := validUserParams()
		p.DisplayName = strings.Repeat("x", 101)
		_, err := NewUser(p)
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	})
}

func TestUpdateProfile(t *testing.T) {
	u, err := NewUser(validUserParams())
	require.NoError(t, err)

	name := "The Lantern Keeper"
	bio := "Tends the lights along the mountain path."
	require.NoError(t, u.UpdateProfile(ProfileUpdate{
		DisplayName:    &name,
		Bio:            &bio,
		FavoriteGenres: []string{"nature", "spiritual"},
	}))
	assert.Equal(t, name, u.DisplayName)
	assert.Equal(t, bio, u.Bio)
	assert.Equal(t, []string{"nature", "spiritual"}, u.FavoriteGenres)

	t.Run("nil fields leave values unchanged", func(t *testing.T) {
		require.NoError(t, u.UpdateProfile(ProfileUpdate{}))
		assert.Equal(t, name, u.DisplayName)
		assert.Equal(t, bio, u.Bio)
	})

	t.Run("empty display name rejected", func(t *testing.T) {
		empty := "  "
		err := u.UpdateProfile(ProfileUpdate{DisplayName: &empty})
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
		assert.Equal(t, name, u.DisplayName)
	})

	t.Run("bio too long rejected", func(t *testing.T) {
		long := strings.Repeat("b", 501)
		err := u.UpdateProfile(ProfileUpdate{Bio: &long})
		assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
	})
}

func TestStatusTransitions(t *testing.T) {
	u, err := NewUser(validUserParams())
	require.NoError(t, err)

	assert.ErrorIs(t, u.Reinstate(), shared.ErrStateTransition)

	require.NoError(t, u.Suspend())
	assert.Equal(t, StatusSuspended, u.Status)
	assert.False(t, u.Status.CanParticipate())

	assert.ErrorIs(t, u.Suspend(), shared.ErrInvalidState)

	require.NoError(t, u.Reinstate())
	assert.Equal(t, StatusActive, u.Status)

	require.NoError(t, u.Leave())
	assert.Equal(t, StatusLeft, u.Status)
	assert.ErrorIs(t, u.Leave(), shared.ErrStateTransition)
}

func TestCanReceiveNotification(t *testing.T) {
	u, err := NewUser(validUserParams())
	require.NoError(t, err)
	// 14:00 Tokyo, outside the default 23:00-07:00 quiet window.
	day := timeutil.DateTime(2025, 6, 1, 14, 0, 0)
	night := timeutil.DateTime(2025, 6, 1, 2, 0, 0)

	assert.True(t, u.CanReceiveNotification("prayer_received", day))
	assert.False(t, u.CanReceiveNotification("prayer_received", night), "quiet hours")

	// Quiet hours follow shrine-local time even when the instant arrives in
	// UTC: 14:30 UTC is 23:30 in Tokyo.
	lateTokyo := time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)
	assert.False(t, u.CanReceiveNotification("prayer_received", lateTokyo))

	u.UpdatePreferences(NotificationPreferences{
		PrayerNotices:   false,
		GuidanceNotices: true,
		RankingNotices:  true,
	})
	assert.False(t, u.CanReceiveNotification("prayer_received", day))
	assert.True(t, u.CanReceiveNotification("guidance_received", day))
	assert.True(t, u.CanReceiveNotification("entered_top_n", day))

	require.NoError(t, u.Suspend())
	assert.False(t, u.CanReceiveNotification("guidance_received", day), "suspended users get nothing")
}

func TestIsQuietHour(t *testing.T) {
	at := func(hour int) time.Time {
		return timeutil.DateTime(2025, 6, 1, hour, 30, 0)
	}

	t.Run("window across midnight", func(t *testing.T) {
		p := NotificationPreferences{QuietHoursStart: 23, QuietHoursEnd: 7}
		assert.True(t, p.IsQuietHour(at(23)))
		assert.True(t, p.IsQuietHour(at(3)))
		assert.False(t, p.IsQuietHour(at(7)))
		assert.False(t, p.IsQuietHour(at(12)))
	})

	t.Run("window within one day", func(t *testing.T) {
		p := NotificationPreferences{QuietHoursStart: 13, QuietHoursEnd: 15}
		assert.True(t, p.IsQuietHour(at(13)))
		assert.False(t, p.IsQuietHour(at(15)))
		assert.False(t, p.IsQuietHour(at(3)))
	})

	t.Run("equal bounds disable quiet hours", func(t *testing.T) {
		p := NotificationPreferences{QuietHoursStart: 8, QuietHoursEnd: 8}
		assert.False(t, p.IsQuietHour(at(8)))
	})

	t.Run("instants are converted to shrine-local time", func(t *testing.T) {
		p := NotificationPreferences{QuietHoursStart: 23, QuietHoursEnd: 7}
		// 14:30 UTC = 23:30 Tokyo (quiet); 03:00 UTC = 12:00 Tokyo (not).
		assert.True(t, p.IsQuietHour(time.Date(2025, 6, 1, 14, 30, 0, 0, time.UTC)))
		assert.False(t, p.IsQuietHour(time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)))
	})
}

func TestUserClone(t *testing.T) {
	u, err := NewUser(validUserParams())
	require.NoError(t, err)
	u.FavoriteGenres = []string{"nature"}

	clone := u.Clone()
	clone.FavoriteGenres[0] = "urban"
	clone.DisplayName = "Someone Else"

	assert.Equal(t, "nature", u.FavoriteGenres[0])
	assert.Equal(t, "Hana of the West Gate", u.DisplayName)
}
