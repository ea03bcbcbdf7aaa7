package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PROFILE COMMAND
// Updates display name, bio, favorite genres, and notification preferences.
// Username and email are immutable after registration.
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileCommand contains the profile fields to change. Nil pointers
// mean "leave unchanged".
type UpdateProfileCommand struct {
	// UserID is the account to update.
	UserID string

	// DisplayName is the new public name.
	DisplayName *string

	// Bio is the new profile text.
	Bio *string

	// FavoriteGenres replaces the favorite genre tags when non-nil.
	FavoriteGenres []string

	// Preferences replaces the notification preferences when non-nil.
	Preferences *user.NotificationPreferences
}

// Validate validates the command.
func (c UpdateProfileCommand) Validate() error {
	if c.UserID == "" {
		return errors.New("update_profile: user_id is required")
	}
	if c.DisplayName == nil && c.Bio == nil && c.FavoriteGenres == nil && c.Preferences == nil {
		return errors.New("update_profile: no fields to update")
	}
	return nil
}

// UpdateProfileResult contains the updated user.
type UpdateProfileResult struct {
	User *user.User
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateProfileHandler handles the UpdateProfileCommand.
type UpdateProfileHandler struct {
	userRepo user.Repository
}

// NewUpdateProfileHandler creates a new UpdateProfileHandler.
func NewUpdateProfileHandler(userRepo user.Repository) *UpdateProfileHandler {
	return &UpdateProfileHandler{userRepo: userRepo}
}

// Handle executes the update profile command.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*UpdateProfileResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_profile: validation failed: %w", err)
	}

	u, err := h.userRepo.GetByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("update_profile: failed to get user: %w", err)
	}

	var genres []string
	if cmd.FavoriteGenres != nil {
		genres = make([]string, 0, len(cmd.FavoriteGenres))
		seen := make(map[offering.Genre]struct{}, len(cmd.FavoriteGenres))
		for _, raw := range cmd.FavoriteGenres {
			g, err := offering.ParseGenre(raw)
			if err != nil {
				return nil, err
			}
			if _, dup := seen[g]; dup {
				continue
			}
			seen[g] = struct{}{}
			genres = append(genres, g.String())
		}
	}

	if err := u.UpdateProfile(user.ProfileUpdate{
		DisplayName:    cmd.DisplayName,
		Bio:            cmd.Bio,
		FavoriteGenres: genres,
	}); err != nil {
		return nil, err
	}

	if cmd.Preferences != nil {
		u.UpdatePreferences(*cmd.Preferences)
	}

	if err := h.userRepo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update_profile: failed to store user: %w", err)
	}

	return &UpdateProfileResult{User: u}, nil
}
