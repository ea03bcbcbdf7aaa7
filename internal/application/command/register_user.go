// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTER USER COMMAND
// Creates an account: validates the username/email, hashes the password, and
// stores the new user.
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserCommand contains the data to register a new user.
type RegisterUserCommand struct {
	// Username is the requested handle.
	Username string

	// Email is the contact address.
	Email string

	// Password is the plaintext password; it never leaves this handler.
	Password string

	// DisplayName is the optional public name. Defaults to the username.
	DisplayName string
}

// Password length bounds. bcrypt truncates input beyond 72 bytes.
const (
	MinPasswordLen = 8
	MaxPasswordLen = 72
)

// Validate validates the command.
func (c RegisterUserCommand) Validate() error {
	if c.Username == "" {
		return errors.New("register_user: username is required")
	}
	if c.Email == "" {
		return errors.New("register_user: email is required")
	}
	if len(c.Password) < MinPasswordLen {
		return fmt.Errorf("register_user: password must be at least %d characters", MinPasswordLen)
	}
	if len(c.Password) > MaxPasswordLen {
		return fmt.Errorf("register_user: password must be at most %d characters", MaxPasswordLen)
	}
	return nil
}

// RegisterUserResult contains the result of registration.
type RegisterUserResult struct {
	// User is the created account.
	User *user.User
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RegisterUserHandler handles the RegisterUserCommand.
type RegisterUserHandler struct {
	userRepo  user.Repository
	publisher shared.EventPublisher

	// bcrypt cost for password hashing
	bcryptCost int
}

// NewRegisterUserHandler creates a new RegisterUserHandler.
func NewRegisterUserHandler(userRepo user.Repository, publisher shared.EventPublisher, bcryptCost int) *RegisterUserHandler {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &RegisterUserHandler{
		userRepo:   userRepo,
		publisher:  publisher,
		bcryptCost: bcryptCost,
	}
}

// Handle executes the register user command.
func (h *RegisterUserHandler) Handle(ctx context.Context, cmd RegisterUserCommand) (*RegisterUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("register_user: validation failed: %w", err)
	}

	username, err := user.NewUsername(cmd.Username)
	if err != nil {
		return nil, err
	}
	email, err := user.NewEmail(cmd.Email)
	if err != nil {
		return nil, err
	}

	// Early duplicate checks give clean errors; the repository enforces
	// uniqueness again under its own lock.
	if taken, err := h.userRepo.ExistsByUsername(ctx, username); err != nil {
		return nil, fmt.Errorf("register_user: username check: %w", err)
	} else if taken {
		return nil, shared.ErrUsernameTaken
	}
	if taken, err := h.userRepo.ExistsByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("register_user: email check: %w", err)
	} else if taken {
		return nil, shared.ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cmd.Password), h.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("register_user: password hashing: %w", err)
	}

	u, err := user.NewUser(user.NewUserParams{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  cmd.DisplayName,
	})
	if err != nil {
		return nil, err
	}

	if err := h.userRepo.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("register_user: failed to create user: %w", err)
	}

	event := shared.NewUserRegisteredEvent(u.ID, u.Username.String(), u.Email.String(), u.DisplayName)
	_ = h.publisher.Publish(event)

	return &RegisterUserResult{User: u}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATE USER COMMAND
// Verifies credentials at login. Issues no token itself; the interface layer
// mints one from the returned user.
// ══════════════════════════════════════════════════════════════════════════════

// AuthenticateUserCommand contains login credentials.
type AuthenticateUserCommand struct {
	// Username or email of the account.
	Login string

	// Password is the plaintext password to verify.
	Password string
}

// Validate validates the command.
func (c AuthenticateUserCommand) Validate() error {
	if c.Login == "" {
		return errors.New("authenticate_user: login is required")
	}
	if c.Password == "" {
		return errors.New("authenticate_user: password is required")
	}
	return nil
}

// AuthenticateUserResult contains the authenticated user.
type AuthenticateUserResult struct {
	User *user.User
}

// AuthenticateUserHandler handles the AuthenticateUserCommand.
type AuthenticateUserHandler struct {
	userRepo user.Repository
}

// NewAuthenticateUserHandler creates a new AuthenticateUserHandler.
func NewAuthenticateUserHandler(userRepo user.Repository) *AuthenticateUserHandler {
	return &AuthenticateUserHandler{userRepo: userRepo}
}

// Handle executes the authenticate user command.
// Returns shared.ErrWrongCredentials for both unknown accounts and bad
// passwords, so the response does not reveal which usernames exist.
func (h *AuthenticateUserHandler) Handle(ctx context.Context, cmd AuthenticateUserCommand) (*AuthenticateUserResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("authenticate_user: validation failed: %w", err)
	}

	u, err := h.lookup(ctx, cmd.Login)
	if err != nil {
		if shared.IsNotFound(err) {
			return nil, shared.ErrWrongCredentials
		}
		return nil, fmt.Errorf("authenticate_user: lookup: %w", err)
	}

	if !u.Status.CanParticipate() {
		return nil, shared.ErrUserNotActive
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(cmd.Password)); err != nil {
		return nil, shared.ErrWrongCredentials
	}

	return &AuthenticateUserResult{User: u}, nil
}

// lookup resolves the login as an email when it contains '@', otherwise as a
// username.
func (h *AuthenticateUserHandler) lookup(ctx context.Context, login string) (*user.User, error) {
	if email := user.Email(login); email.IsValid() {
		return h.userRepo.GetByEmail(ctx, email.Normalize())
	}
	username, err := user.NewUsername(login)
	if err != nil {
		return nil, shared.ErrWrongCredentials
	}
	return h.userRepo.GetByUsername(ctx, username)
}
