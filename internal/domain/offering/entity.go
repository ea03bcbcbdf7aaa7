// Package offering contains the central aggregate of Kumotsudai: the
// offering placed on the altar, together with the prayers it has gathered
// and the guidance left beneath it.
//
// The aggregate guards two invariants:
//   - the prayer count always equals the size of the prayed-by set
//   - guidance keeps insertion order
package offering

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Genre classifies an offering.
type Genre string

const (
	GenreNature    Genre = "nature"
	GenreUrban     Genre = "urban"
	GenreSeasonal  Genre = "seasonal"
	GenreSpiritual Genre = "spiritual"
	GenreMemory    Genre = "memory"
	GenreOther     Genre = "other"
)

// AllGenres lists every known genre.
func AllGenres() []Genre {
	return []Genre{GenreNature, GenreUrban, GenreSeasonal, GenreSpiritual, GenreMemory, GenreOther}
}

// IsValid checks that the genre is a known value.
func (g Genre) IsValid() bool {
	switch g {
	case GenreNature, GenreUrban, GenreSeasonal, GenreSpiritual, GenreMemory, GenreOther:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (g Genre) String() string {
	return string(g)
}

// ParseGenre parses a raw string into a Genre.
func ParseGenre(raw string) (Genre, error) {
	g := Genre(strings.ToLower(strings.TrimSpace(raw)))
	if !g.IsValid() {
		return "", shared.ErrInvalidGenre
	}
	return g, nil
}

// Validation limits for offerings and guidance.
const (
	MaxTitleLen    = 120
	MaxContentLen  = 4000
	MaxGenres      = 5
	MaxGuidanceLen = 1000
)

// ══════════════════════════════════════════════════════════════════════════════
// GUIDANCE
// ══════════════════════════════════════════════════════════════════════════════

// Guidance is free-text feedback attached to an offering.
type Guidance struct {
	// ID is the unique identifier of this guidance.
	ID string

	// OfferingID is the offering the guidance belongs to.
	OfferingID string

	// AuthorID is the user who left the guidance.
	AuthorID string

	// AuthorName is the display name at the time of writing.
	AuthorName string

	// Content is the guidance text.
	Content string

	// CreatedAt is when the guidance was left.
	CreatedAt time.Time
}

// NewGuidance creates guidance with validation.
func NewGuidance(id, offeringID, authorID, authorName, content string) (Guidance, error) {
	if id == "" || offeringID == "" || authorID == "" {
		return Guidance{}, shared.NewDomainError("offering", "AddGuidance", shared.ErrInvalidID, "guidance ids are required")
	}
	content = strings.TrimSpace(content)
	if content == "" || len(content) > MaxGuidanceLen {
		return Guidance{}, shared.ErrInvalidGuidance
	}
	return Guidance{
		ID:         id,
		OfferingID: offeringID,
		AuthorID:   authorID,
		AuthorName: authorName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: OFFERING
// ══════════════════════════════════════════════════════════════════════════════

// Offering is a user-authored post: title, content, genre tags, the set of
// users who prayed for it, and the guidance left on it.
type Offering struct {
	// ID is the internal unique identifier (UUID in string form).
	ID string

	// AuthorID is the user who placed the offering.
	AuthorID string

	// AuthorName is the display name at the time of posting.
	AuthorName string

	// Title of the offering.
	Title string

	// Content is the body text.
	Content string

	// Genres classify the offering (1 to MaxGenres tags).
	Genres []Genre

	// PrayedBy is the set of user IDs that have prayed for this offering.
	// The prayer count is always derived from this set.
	PrayedBy map[string]struct{}

	// Guidances in insertion order.
	Guidances []Guidance

	// CreatedAt is when the offering was placed.
	CreatedAt time.Time

	// UpdatedAt is when the offering last changed.
	UpdatedAt time.Time
}

// NewOfferingParams contains parameters for placing a new offering.
type NewOfferingParams struct {
	ID         string
	AuthorID   string
	AuthorName string
	Title      string
	Content    string
	Genres     []Genre
}

// NewOffering creates a new offering with validation of all fields.
func NewOffering(params NewOfferingParams) (*Offering, error) {
	if params.ID == "" {
		return nil, shared.NewDomainError("offering", "Create", shared.ErrInvalidID, "offering id is required")
	}
	if params.AuthorID == "" {
		return nil, shared.NewDomainError("offering", "Create", shared.ErrInvalidID, "author id is required")
	}

	title := strings.TrimSpace(params.Title)
	if title == "" || len(title) > MaxTitleLen {
		return nil, shared.ErrInvalidTitle
	}

	content := strings.TrimSpace(params.Content)
	if content == "" || len(content) > MaxContentLen {
		return nil, shared.ErrInvalidContent
	}

	if len(params.Genres) == 0 {
		return nil, shared.ErrNoGenres
	}
	if len(params.Genres) > MaxGenres {
		return nil, shared.ErrTooManyGenres
	}
	genres := make([]Genre, 0, len(params.Genres))
	seen := make(map[Genre]struct{}, len(params.Genres))
	for _, g := range params.Genres {
		if !g.IsValid() {
			return nil, shared.ErrInvalidGenre
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		genres = append(genres, g)
	}

	now := time.Now().UTC()

	return &Offering{
		ID:         params.ID,
		AuthorID:   params.AuthorID,
		AuthorName: params.AuthorName,
		Title:      title,
		Content:    content,
		Genres:     genres,
		PrayedBy:   make(map[string]struct{}),
		Guidances:  make([]Guidance, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Prayers returns the prayer count. It is derived from the prayed-by set,
// which keeps the count and the set consistent without extra bookkeeping.
func (o *Offering) Prayers() int {
	return len(o.PrayedBy)
}

// HasPrayedBy checks whether the given user has prayed for this offering.
func (o *Offering) HasPrayedBy(userID string) bool {
	_, ok := o.PrayedBy[userID]
	return ok
}

// TogglePrayer adds the user's prayer if absent and withdraws it if present.
// It returns true when the toggle resulted in an offered prayer.
func (o *Offering) TogglePrayer(userID string) (offered bool, err error) {
	if userID == "" {
		return false, shared.NewDomainError("offering", "TogglePrayer", shared.ErrInvalidID, "user id is required")
	}
	if o.PrayedBy == nil {
		o.PrayedBy = make(map[string]struct{})
	}

	if _, ok := o.PrayedBy[userID]; ok {
		delete(o.PrayedBy, userID)
		offered = false
	} else {
		o.PrayedBy[userID] = struct{}{}
		offered = true
	}

	o.UpdatedAt = time.Now().UTC()
	return offered, nil
}

// AddGuidance appends guidance, preserving insertion order.
func (o *Offering) AddGuidance(g Guidance) error {
	if g.OfferingID != o.ID {
		return shared.NewDomainError("offering", "AddGuidance", shared.ErrInvalidInput, "guidance belongs to a different offering")
	}
	for _, existing := range o.Guidances {
		if existing.ID == g.ID {
			return shared.ErrDuplicateGuidance
		}
	}
	o.Guidances = append(o.Guidances, g)
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// GuidanceCount returns the number of guidances.
func (o *Offering) GuidanceCount() int {
	return len(o.Guidances)
}

// HasGuidanceBy checks whether the given user left guidance on this offering.
func (o *Offering) HasGuidanceBy(userID string) bool {
	for _, g := range o.Guidances {
		if g.AuthorID == userID {
			return true
		}
	}
	return false
}

// HasGenre checks whether the offering carries the given genre tag.
func (o *Offering) HasGenre(genre Genre) bool {
	for _, g := range o.Genres {
		if g == genre {
			return true
		}
	}
	return false
}

// PrayedByIDs returns the prayed-by set as a sorted slice, for stable
// serialization and tests.
func (o *Offering) PrayedByIDs() []string {
	ids := make([]string, 0, len(o.PrayedBy))
	for id := range o.PrayedBy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// String returns a representation for logging.
func (o *Offering) String() string {
	return fmt.Sprintf(
		"Offering{ID: %s, Author: %s, Title: %q, Prayers: %d, Guidances: %d}",
		o.ID, o.AuthorID, o.Title, o.Prayers(), o.GuidanceCount(),
	)
}

// Clone creates a deep copy of the offering.
func (o *Offering) Clone() *Offering {
	if o == nil {
		return nil
	}
	clone := *o

	clone.Genres = make([]Genre, len(o.Genres))
	copy(clone.Genres, o.Genres)

	clone.PrayedBy = make(map[string]struct{}, len(o.PrayedBy))
	for id := range o.PrayedBy {
		clone.PrayedBy[id] = struct{}{}
	}

	clone.Guidances = make([]Guidance, len(o.Guidances))
	copy(clone.Guidances, o.Guidances)

	return &clone
}
