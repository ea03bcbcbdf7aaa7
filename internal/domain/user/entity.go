// Package user contains the domain model of a Kumotsudai devotee.
// This is core business logic - no external dependencies here.
package user

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Username identifies a user publicly. Normalized to lowercase.
type Username string

var usernameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{2,29}$`)

// IsValid checks the username format.
func (u Username) IsValid() bool {
	return usernameRegex.MatchString(string(u))
}

// Normalize returns the lowercase form used for storage and lookups.
func (u Username) Normalize() Username {
	return Username(strings.ToLower(string(u)))
}

// String returns the string representation.
func (u Username) String() string {
	return string(u)
}

// NewUsername creates a Username with validation and normalization.
func NewUsername(raw string) (Username, error) {
	u := Username(strings.TrimSpace(raw))
	if !u.IsValid() {
		return "", shared.ErrInvalidUsername
	}
	return u.Normalize(), nil
}

// Email is a user's contact address.
type Email string

var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// IsValid performs a light-weight format check.
func (e Email) IsValid() bool {
	return len(e) <= 254 && emailRegex.MatchString(string(e))
}

// Normalize returns the lowercase form.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(string(e)))
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// NewEmail creates an Email with validation and normalization.
func NewEmail(raw string) (Email, error) {
	e := Email(strings.TrimSpace(raw))
	if !e.IsValid() {
		return "", shared.ErrInvalidEmail
	}
	return e.Normalize(), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status defines the current standing of a user.
type Status string

const (
	// StatusActive - the user can post, pray, and guide.
	StatusActive Status = "active"
	// StatusSuspended - the user is temporarily barred.
	StatusSuspended Status = "suspended"
	// StatusLeft - the user left the shrine.
	StatusLeft Status = "left"
)

// IsValid checks that the status is a known value.
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusSuspended, StatusLeft:
		return true
	default:
		return false
	}
}

// CanParticipate returns true if the user may create offerings,
// pray, or add guidance.
func (s Status) CanParticipate() bool {
	return s == StatusActive
}

// CanReceiveNotifications returns true if notifications may be delivered.
func (s Status) CanReceiveNotifications() bool {
	return s == StatusActive
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: USER
// ══════════════════════════════════════════════════════════════════════════════

// User is a devotee of the shrine: an account that authors offerings,
// offers prayers, and leaves guidance.
type User struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// Username is the public handle, unique and lowercase.
	Username Username

	// Email is the contact address, unique and lowercase.
	Email Email

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// DisplayName is shown next to offerings and guidance.
	DisplayName string

	// Bio is a short self-description.
	Bio string

	// FavoriteGenres are the genres the user gravitates towards.
	FavoriteGenres []string

	// Status is the current standing.
	Status Status

	// Preferences holds notification settings.
	Preferences NotificationPreferences

	// JoinedAt is when the user registered.
	JoinedAt time.Time

	// CreatedAt is when the record was created.
	CreatedAt time.Time

	// UpdatedAt is when the record was last modified.
	UpdatedAt time.Time
}

// NotificationPreferences holds per-user notification settings.
type NotificationPreferences struct {
	// PrayerNotices - notify when someone prays for one of my offerings.
	PrayerNotices bool

	// GuidanceNotices - notify when someone leaves guidance on my offerings.
	GuidanceNotices bool

	// RankingNotices - notify when one of my offerings enters the top of a board.
	RankingNotices bool

	// QuietHoursStart - start of quiet time (hour, 0-23, shrine-local).
	QuietHoursStart int

	// QuietHoursEnd - end of quiet time (hour, 0-23, shrine-local).
	QuietHoursEnd int
}

// DefaultNotificationPreferences returns the defaults for new users.
func DefaultNotificationPreferences() NotificationPreferences {
	return NotificationPreferences{
		PrayerNotices:   true,
		GuidanceNotices: true,
		RankingNotices:  true,
		QuietHoursStart: 23,
		QuietHoursEnd:   7,
	}
}

// IsQuietHour checks whether the given time falls into quiet hours.
// Quiet hours are defined in shrine-local time, so the instant is converted
// to Tokyo time regardless of the location it arrives in.
func (p NotificationPreferences) IsQuietHour(t time.Time) bool {
	hour := timeutil.ToTokyo(t).Hour()
	if p.QuietHoursStart == p.QuietHoursEnd {
		return false
	}
	if p.QuietHoursStart < p.QuietHoursEnd {
		return hour >= p.QuietHoursStart && hour < p.QuietHoursEnd
	}
	// Across midnight, e.g. 23:00 - 07:00
	return hour >= p.QuietHoursStart || hour < p.QuietHoursEnd
}

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewUserParams contains parameters for creating a new user.
type NewUserParams struct {
	ID           string
	Username     Username
	Email        Email
	PasswordHash string
	DisplayName  string
}

// NewUser creates a new user with validation of all fields.
func NewUser(params NewUserParams) (*User, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("user", "Create", shared.ErrInvalidID, "user id is required")
	}
	if !params.Username.IsValid() {
		return nil, shared.ErrInvalidUsername
	}
	if !params.Email.IsValid() {
		return nil, shared.ErrInvalidEmail
	}
	if params.PasswordHash == "" {
		return nil, shared.NewDomainError("user", "Create", shared.ErrEmptyValue, "password hash is required")
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName = params.Username.String()
	}
	if len(displayName) > 100 {
		return nil, shared.NewDomainError("user", "Create", shared.ErrValueOutOfRange, "display name must be 1-100 chars")
	}

	now := time.Now().UTC()

	return &User{
		ID:             params.ID,
		Username:       params.Username.Normalize(),
		Email:          params.Email.Normalize(),
		PasswordHash:   params.PasswordHash,
		DisplayName:    displayName,
		Bio:            "",
		FavoriteGenres: nil,
		Status:         StatusActive,
		Preferences:    DefaultNotificationPreferences(),
		JoinedAt:       now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// ProfileUpdate carries the mutable profile fields. Nil pointers mean
// "leave unchanged".
type ProfileUpdate struct {
	DisplayName    *string
	Bio            *string
	FavoriteGenres []string
}

// UpdateProfile applies a profile update with validation.
func (u *User) UpdateProfile(update ProfileUpdate) error {
	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || len(name) > 100 {
			return shared.NewDomainError("user", "UpdateProfile", shared.ErrValueOutOfRange, "display name must be 1-100 chars")
		}
		u.DisplayName = name
	}
	if update.Bio != nil {
		bio := strings.TrimSpace(*update.Bio)
		if len(bio) > 500 {
			return shared.NewDomainError("user", "UpdateProfile", shared.ErrValueOutOfRange, "bio must be at most 500 chars")
		}
		u.Bio = bio
	}
	if update.FavoriteGenres != nil {
		u.FavoriteGenres = update.FavoriteGenres
	}
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// UpdatePreferences replaces notification preferences.
func (u *User) UpdatePreferences(prefs NotificationPreferences) {
	u.Preferences = prefs
	u.UpdatedAt = time.Now().UTC()
}

// Suspend temporarily bars the user.
func (u *User) Suspend() error {
	if u.Status != StatusActive {
		return shared.ErrUserNotActive
	}
	u.Status = StatusSuspended
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Reinstate restores a suspended user.
func (u *User) Reinstate() error {
	if u.Status != StatusSuspended {
		return shared.NewDomainError("user", "Reinstate", shared.ErrStateTransition, "can only reinstate suspended users")
	}
	u.Status = StatusActive
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// Leave marks the user as having left the shrine.
func (u *User) Leave() error {
	if u.Status == StatusLeft {
		return shared.NewDomainError("user", "Leave", shared.ErrStateTransition, "user already left")
	}
	u.Status = StatusLeft
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// CanReceiveNotification checks whether a notification of the given type
// may be delivered at the given time.
func (u *User) CanReceiveNotification(notificationType string, at time.Time) bool {
	if !u.Status.CanReceiveNotifications() {
		return false
	}
	if u.Preferences.IsQuietHour(at) {
		return false
	}

	switch notificationType {
	case "prayer_received":
		return u.Preferences.PrayerNotices
	case "guidance_received":
		return u.Preferences.GuidanceNotices
	case "entered_top_n":
		return u.Preferences.RankingNotices
	default:
		return true
	}
}

// String returns a representation for logging.
func (u *User) String() string {
	return fmt.Sprintf("User{ID: %s, Username: %s, Status: %s}", u.ID, u.Username, u.Status)
}

// Clone creates a copy of the user. FavoriteGenres is copied as well so the
// clone can be mutated independently.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.FavoriteGenres != nil {
		clone.FavoriteGenres = make([]string, len(u.FavoriteGenres))
		copy(clone.FavoriteGenres, u.FavoriteGenres)
	}
	return &clone
}
