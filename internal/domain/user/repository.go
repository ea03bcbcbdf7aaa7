package user

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract. Implementations live in
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines CRUD operations for users.
type Repository interface {
	// Create stores a new user.
	// Returns shared.ErrUserAlreadyExists when the username or email is taken.
	Create(ctx context.Context, u *User) error

	// GetByID returns a user by internal ID.
	// Returns shared.ErrUserNotFound when absent.
	GetByID(ctx context.Context, id string) (*User, error)

	// GetByUsername returns a user by normalized username.
	GetByUsername(ctx context.Context, username Username) (*User, error)

	// GetByEmail returns a user by normalized email.
	GetByEmail(ctx context.Context, email Email) (*User, error)

	// Update persists changes to an existing user.
	// Returns shared.ErrUserNotFound when absent.
	Update(ctx context.Context, u *User) error

	// Delete removes a user.
	Delete(ctx context.Context, id string) error

	// GetByIDs returns users for the given IDs. Missing IDs are skipped.
	GetByIDs(ctx context.Context, ids []string) ([]*User, error)

	// List returns users with pagination.
	List(ctx context.Context, opts ListOptions) ([]*User, error)

	// Count returns the total number of users.
	Count(ctx context.Context) (int, error)

	// ExistsByUsername checks whether a username is taken.
	ExistsByUsername(ctx context.Context, username Username) (bool, error)

	// ExistsByEmail checks whether an email is registered.
	ExistsByEmail(ctx context.Context, email Email) (bool, error)
}

// ListOptions contains pagination parameters.
type ListOptions struct {
	// Offset for pagination.
	Offset int

	// Limit is the maximum number of records.
	Limit int

	// IncludeInactive includes suspended and departed users.
	IncludeInactive bool
}

// DefaultListOptions returns the defaults.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:          0,
		Limit:           50,
		IncludeInactive: false,
	}
}

// WithOffset sets the offset.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit sets the limit.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}
