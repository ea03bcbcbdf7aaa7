package command

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/infrastructure/persistence/memory"
)

// capturingPublisher records published events for assertions.
type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) lastType() shared.EventType {
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1].EventType()
}

type fixture struct {
	store     *memory.Store
	publisher *capturingPublisher
	register  *RegisterUserHandler
	create    *CreateOfferingHandler
	toggle    *TogglePrayerHandler
	guide     *AddGuidanceHandler
	profile   *UpdateProfileHandler
}

func newFixture() *fixture {
	store := memory.NewStore()
	publisher := &capturingPublisher{}
	return &fixture{
		store:     store,
		publisher: publisher,
		register:  NewRegisterUserHandler(store.Users(), publisher, 4),
		create:    NewCreateOfferingHandler(store.Offerings(), store.Users(), publisher),
		toggle:    NewTogglePrayerHandler(store.Offerings(), store.Users(), publisher),
		guide:     NewAddGuidanceHandler(store.Offerings(), store.Users(), publisher),
		profile:   NewUpdateProfileHandler(store.Users()),
	}
}

func (f *fixture) registerUser(t *testing.T, username string) string {
	t.Helper()
	res, err := f.register.Handle(context.Background(), RegisterUserCommand{
		Username: username,
		Email:    username + "@example.com",
		Password: "correct-horse",
	})
	require.NoError(t, err)
	return res.User.ID
}

func (f *fixture) createOffering(t *testing.T, authorID string) string {
	t.Helper()
	res, err := f.create.Handle(context.Background(), CreateOfferingCommand{
		AuthorID: authorID,
		Title:    "First snow on the torii",
		Content:  "Seen this morning from the office window.",
		Genres:   []string{"seasonal", "urban"},
	})
	require.NoError(t, err)
	return res.Offering.ID
}

func TestRegisterUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	t.Run("creates account and publishes event", func(t *testing.T) {
		res, err := f.register.Handle(ctx, RegisterUserCommand{
			Username: "hana",
			Email:    "hana@example.com",
			Password: "correct-horse",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, res.User.ID)
		assert.Equal(t, "hana", res.User.Username.String())
		assert.NotEqual(t, "correct-horse", res.User.PasswordHash)
		assert.Equal(t, shared.EventUserRegistered, f.publisher.lastType())
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.register.Handle(ctx, RegisterUserCommand{
			Username: "hana",
			Email:    "other@example.com",
			Password: "correct-horse",
		})
		assert.ErrorIs(t, err, shared.ErrUsernameTaken)
	})

	t.Run("short password", func(t *testing.T) {
		_, err := f.register.Handle(ctx, RegisterUserCommand{
			Username: "ren",
			Email:    "ren@example.com",
			Password: "short",
		})
		assert.Error(t, err)
	})
}

func TestAuthenticateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.registerUser(t, "hana")
	auth := NewAuthenticateUserHandler(f.store.Users())

	t.Run("by username", func(t *testing.T) {
		res, err := auth.Handle(ctx, AuthenticateUserCommand{Login: "hana", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, "hana", res.User.Username.String())
	})

	t.Run("by email", func(t *testing.T) {
		_, err := auth.Handle(ctx, AuthenticateUserCommand{Login: "hana@example.com", Password: "correct-horse"})
		require.NoError(t, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := auth.Handle(ctx, AuthenticateUserCommand{Login: "hana", Password: "wrong"})
		assert.ErrorIs(t, err, shared.ErrWrongCredentials)
	})

	t.Run("unknown account maps to same error", func(t *testing.T) {
		_, err := auth.Handle(ctx, AuthenticateUserCommand{Login: "ghost", Password: "whatever"})
		assert.ErrorIs(t, err, shared.ErrWrongCredentials)
	})
}

func TestCreateOffering(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	authorID := f.registerUser(t, "hana")

	t.Run("stores offering with parsed genres", func(t *testing.T) {
		res, err := f.create.Handle(ctx, CreateOfferingCommand{
			AuthorID: authorID,
			Title:    "First snow on the torii",
			Content:  "Seen this morning.",
			Genres:   []string{"Seasonal", "seasonal", "urban"},
		})
		require.NoError(t, err)
		assert.Len(t, res.Offering.Genres, 2)
		assert.Equal(t, shared.EventOfferingCreated, f.publisher.lastType())

		stored, err := f.store.Offerings().GetByID(ctx, res.Offering.ID)
		require.NoError(t, err)
		assert.Equal(t, res.Offering.Title, stored.Title)
	})

	t.Run("unknown author", func(t *testing.T) {
		_, err := f.create.Handle(ctx, CreateOfferingCommand{
			AuthorID: "missing",
			Title:    "t",
			Content:  "c",
			Genres:   []string{"nature"},
		})
		assert.ErrorIs(t, err, shared.ErrUserNotFound)
	})

	t.Run("unknown genre", func(t *testing.T) {
		_, err := f.create.Handle(ctx, CreateOfferingCommand{
			AuthorID: authorID,
			Title:    "t",
			Content:  "c",
			Genres:   []string{"weather"},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidGenre)
	})
}

func TestTogglePrayerCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	authorID := f.registerUser(t, "hana")
	visitorID := f.registerUser(t, "ren")
	offeringID := f.createOffering(t, authorID)

	t.Run("offer then withdraw", func(t *testing.T) {
		res, err := f.toggle.Handle(ctx, TogglePrayerCommand{OfferingID: offeringID, UserID: visitorID})
		require.NoError(t, err)
		assert.True(t, res.Offered)
		assert.Equal(t, 1, res.Prayers)
		assert.Equal(t, shared.EventPrayerOffered, f.publisher.lastType())

		res, err = f.toggle.Handle(ctx, TogglePrayerCommand{OfferingID: offeringID, UserID: visitorID})
		require.NoError(t, err)
		assert.False(t, res.Offered)
		assert.Equal(t, 0, res.Prayers)
		assert.Equal(t, shared.EventPrayerWithdrawn, f.publisher.lastType())
	})

	t.Run("change is persisted", func(t *testing.T) {
		_, err := f.toggle.Handle(ctx, TogglePrayerCommand{OfferingID: offeringID, UserID: visitorID})
		require.NoError(t, err)

		stored, err := f.store.Offerings().GetByID(ctx, offeringID)
		require.NoError(t, err)
		assert.Equal(t, 1, stored.Prayers())
		assert.True(t, stored.HasPrayedBy(visitorID))
	})

	t.Run("unknown offering", func(t *testing.T) {
		_, err := f.toggle.Handle(ctx, TogglePrayerCommand{OfferingID: "missing", UserID: visitorID})
		assert.ErrorIs(t, err, shared.ErrOfferingNotFound)
	})
}

func TestAddGuidanceCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	authorID := f.registerUser(t, "hana")
	visitorID := f.registerUser(t, "ren")
	offeringID := f.createOffering(t, authorID)

	t.Run("appends in order", func(t *testing.T) {
		for _, content := range []string{"first", "second", "third"} {
			res, err := f.guide.Handle(ctx, AddGuidanceCommand{
				OfferingID: offeringID,
				AuthorID:   visitorID,
				Content:    content,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, res.Guidance.ID)
		}
		assert.Equal(t, shared.EventGuidanceAdded, f.publisher.lastType())

		stored, err := f.store.Offerings().GetByID(ctx, offeringID)
		require.NoError(t, err)
		require.Equal(t, 3, stored.GuidanceCount())
		assert.Equal(t, "first", stored.Guidances[0].Content)
		assert.Equal(t, "third", stored.Guidances[2].Content)
	})

	t.Run("empty content", func(t *testing.T) {
		_, err := f.guide.Handle(ctx, AddGuidanceCommand{
			OfferingID: offeringID,
			AuthorID:   visitorID,
			Content:    "   ",
		})
		assert.ErrorIs(t, err, shared.ErrInvalidGuidance)
	})
}

func TestUpdateProfileCommand(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	userID := f.registerUser(t, "hana")

	t.Run("updates fields", func(t *testing.T) {
		name := "Hana of the Hill"
		bio := "I leave offerings on my way to work."
		res, err := f.profile.Handle(ctx, UpdateProfileCommand{
			UserID:         userID,
			DisplayName:    &name,
			Bio:            &bio,
			FavoriteGenres: []string{"nature", "seasonal"},
		})
		require.NoError(t, err)
		assert.Equal(t, name, res.User.DisplayName)
		assert.Equal(t, bio, res.User.Bio)
		assert.Equal(t, []string{"nature", "seasonal"}, res.User.FavoriteGenres)
	})

	t.Run("no fields rejected", func(t *testing.T) {
		_, err := f.profile.Handle(ctx, UpdateProfileCommand{UserID: userID})
		assert.Error(t, err)
	})

	t.Run("display name too long", func(t *testing.T) {
		long := strings.Repeat("x", 101)
		_, err := f.profile.Handle(ctx, UpdateProfileCommand{UserID: userID, DisplayName: &long})
		assert.Error(t, err)
	})
}
