package offering

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// These interfaces define the storage contract for offerings.
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository defines CRUD and read-side operations for offerings.
// All read methods return aggregates with the prayed-by set and guidance
// list fully loaded.
type Repository interface {
	// ─────────────────────────────────────────────────────────────────────────
	// CRUD Operations
	// ─────────────────────────────────────────────────────────────────────────

	// Create stores a new offering.
	// Returns shared.ErrOfferingExists when the ID is already taken.
	Create(ctx context.Context, o *Offering) error

	// GetByID returns an offering by ID.
	// Returns shared.ErrOfferingNotFound when absent.
	GetByID(ctx context.Context, id string) (*Offering, error)

	// Update persists changes to an existing offering, including its
	// prayed-by set and guidance list.
	// Returns shared.ErrOfferingNotFound when absent.
	Update(ctx context.Context, o *Offering) error

	// Delete removes an offering together with its prayers and guidance.
	Delete(ctx context.Context, id string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Read-Side Queries
	// ─────────────────────────────────────────────────────────────────────────

	// ListAll returns offerings with pagination and sorting.
	ListAll(ctx context.Context, opts ListOptions) ([]*Offering, error)

	// ListByAuthor returns offerings placed by the given user.
	ListByAuthor(ctx context.Context, authorID string, opts ListOptions) ([]*Offering, error)

	// ListByPrayer returns offerings the given user has prayed for.
	ListByPrayer(ctx context.Context, userID string, opts ListOptions) ([]*Offering, error)

	// ListByGuidanceAuthor returns offerings the given user left guidance on.
	ListByGuidanceAuthor(ctx context.Context, userID string, opts ListOptions) ([]*Offering, error)

	// CreatedSince returns offerings created at or after the given time,
	// without pagination. Used by the ranking rebuild.
	CreatedSince(ctx context.Context, since time.Time) ([]*Offering, error)

	// Count returns the total number of offerings.
	Count(ctx context.Context) (int, error)

	// CountByAuthor returns the number of offerings by the given user.
	CountByAuthor(ctx context.Context, authorID string) (int, error)
}

// SortField names a sortable offering attribute.
type SortField string

const (
	// SortByCreatedAt orders by creation time.
	SortByCreatedAt SortField = "created_at"

	// SortByPrayers orders by prayer count.
	SortByPrayers SortField = "prayers"
)

// ListOptions contains pagination and sorting parameters.
type ListOptions struct {
	// Offset for pagination.
	Offset int

	// Limit is the maximum number of records.
	Limit int

	// SortBy selects the sort field.
	SortBy SortField

	// SortDesc sorts in descending order.
	SortDesc bool
}

// DefaultListOptions returns the defaults: newest first, one page.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    20,
		SortBy:   SortByCreatedAt,
		SortDesc: true,
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

// WithSort sets the sort field and direction.
func (o ListOptions) WithSort(field SortField, desc bool) ListOptions {
	o.SortBy = field
	o.SortDesc = desc
	return o
}
