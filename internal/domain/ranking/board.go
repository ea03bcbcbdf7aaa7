// Package ranking contains the time-windowed prayer ranking of offerings.
// A board is a sorted projection of the offering collection; building one is
// a pure function so the same inputs always produce the same board.
package ranking

import (
	"fmt"
	"sort"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Window selects the trailing time span a board covers.
type Window string

const (
	// WindowAll covers every offering ever placed.
	WindowAll Window = "all"
	// WindowQuarter covers the trailing 91 days.
	WindowQuarter Window = "quarter"
	// WindowMonth covers the trailing 30 days.
	WindowMonth Window = "month"
	// WindowWeek covers the trailing 7 days.
	WindowWeek Window = "week"
)

// AllWindows lists every known window.
func AllWindows() []Window {
	return []Window{WindowAll, WindowQuarter, WindowMonth, WindowWeek}
}

// IsValid checks that the window is a known value.
func (w Window) IsValid() bool {
	switch w {
	case WindowAll, WindowQuarter, WindowMonth, WindowWeek:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (w Window) String() string {
	return string(w)
}

// Duration returns the window length. Zero means all-time.
func (w Window) Duration() time.Duration {
	switch w {
	case WindowQuarter:
		return timeutil.QuarterWindow
	case WindowMonth:
		return timeutil.MonthWindow
	case WindowWeek:
		return timeutil.WeekWindow
	default:
		return 0
	}
}

// Start returns the inclusive lower bound of the window ending at now.
func (w Window) Start(now time.Time) time.Time {
	return timeutil.WindowStart(now, w.Duration())
}

// ParseWindow parses a raw string into a Window.
func ParseWindow(raw string) (Window, error) {
	w := Window(raw)
	if !w.IsValid() {
		return "", shared.ErrInvalidWindow
	}
	return w, nil
}

// Rank is a 1-based position on a board.
type Rank int

// IsValid checks that the rank is positive.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsTop10 checks if the rank is in the top 10.
func (r Rank) IsTop10() bool {
	return r >= 1 && r <= 10
}

// String returns the string representation.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", int(r))
}

// RankChange is the difference against the previous snapshot.
// Positive means the offering climbed.
type RankChange int

// Direction returns the movement direction.
func (rc RankChange) Direction() Direction {
	switch {
	case rc > 0:
		return DirectionUp
	case rc < 0:
		return DirectionDown
	default:
		return DirectionStable
	}
}

// Abs returns the absolute change.
func (rc RankChange) Abs() int {
	if rc < 0 {
		return int(-rc)
	}
	return int(rc)
}

// Direction describes rank movement between snapshots.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
	DirectionNew    Direction = "new"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOARD
// ══════════════════════════════════════════════════════════════════════════════

// Entry is a single row on a ranking board.
type Entry struct {
	// Rank is the 1-based position.
	Rank Rank

	// OfferingID identifies the offering.
	OfferingID string

	// AuthorID and AuthorName identify the offering's author.
	AuthorID   string
	AuthorName string

	// Title of the offering.
	Title string

	// Prayers is the prayer count at build time.
	Prayers int

	// GuidanceCount is the guidance count at build time.
	GuidanceCount int

	// CreatedAt is when the offering was placed.
	CreatedAt time.Time

	// RankChange against the previous snapshot.
	RankChange RankChange

	// IsNew marks entries absent from the previous snapshot.
	IsNew bool
}

// Direction returns the movement direction, honoring IsNew.
func (e *Entry) Direction() Direction {
	if e.IsNew {
		return DirectionNew
	}
	return e.RankChange.Direction()
}

// Clone creates a copy of the entry.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// Board is a sorted, time-windowed projection of offerings by prayer count.
type Board struct {
	// Window the board covers.
	Window Window

	// Entries in rank order.
	Entries []*Entry

	// GeneratedAt is when the board was built.
	GeneratedAt time.Time

	// index maps offering ID to position in Entries.
	index map[string]int
}

// BuildBoard filters offerings by the window ending at now, sorts them by
// prayer count, and assigns ranks. Ties are broken by newer CreatedAt, then
// by ID, so the order is deterministic. A non-positive limit means no limit.
func BuildBoard(offerings []*offering.Offering, window Window, now time.Time, limit int) *Board {
	start := window.Start(now)

	candidates := make([]*offering.Offering, 0, len(offerings))
	for _, o := range offerings {
		if o == nil {
			continue
		}
		if !start.IsZero() && o.CreatedAt.Before(start) {
			continue
		}
		candidates = append(candidates, o)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Prayers() != b.Prayers() {
			return a.Prayers() > b.Prayers()
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	board := &Board{
		Window:      window,
		Entries:     make([]*Entry, len(candidates)),
		GeneratedAt: now,
		index:       make(map[string]int, len(candidates)),
	}
	for i, o := range candidates {
		board.Entries[i] = &Entry{
			Rank:          Rank(i + 1),
			OfferingID:    o.ID,
			AuthorID:      o.AuthorID,
			AuthorName:    o.AuthorName,
			Title:         o.Title,
			Prayers:       o.Prayers(),
			GuidanceCount: o.GuidanceCount(),
			CreatedAt:     o.CreatedAt,
		}
		board.index[o.ID] = i
	}
	return board
}

// Count returns the number of entries.
func (b *Board) Count() int {
	return len(b.Entries)
}

// GetByOfferingID returns the entry for the given offering, or nil.
func (b *Board) GetByOfferingID(offeringID string) *Entry {
	if i, ok := b.index[offeringID]; ok {
		return b.Entries[i]
	}
	return nil
}

// GetRank returns the rank for the given offering, or 0 when absent.
func (b *Board) GetRank(offeringID string) Rank {
	if e := b.GetByOfferingID(offeringID); e != nil {
		return e.Rank
	}
	return 0
}

// Top returns the first n entries.
func (b *Board) Top(n int) []*Entry {
	if n > len(b.Entries) {
		n = len(b.Entries)
	}
	if n < 0 {
		n = 0
	}
	return b.Entries[:n]
}

// Page returns a slice of entries for the given offset and limit.
func (b *Board) Page(offset, limit int) []*Entry {
	if offset < 0 || offset >= len(b.Entries) {
		return []*Entry{}
	}
	end := offset + limit
	if limit <= 0 || end > len(b.Entries) {
		end = len(b.Entries)
	}
	return b.Entries[offset:end]
}

// ApplyChanges fills RankChange and IsNew against a previous snapshot.
// A nil previous snapshot marks every entry as new.
func (b *Board) ApplyChanges(previous *Snapshot) {
	for _, e := range b.Entries {
		if previous == nil {
			e.IsNew = true
			continue
		}
		prevRank := previous.GetRank(e.OfferingID)
		if prevRank == 0 {
			e.IsNew = true
			continue
		}
		e.IsNew = false
		e.RankChange = RankChange(int(prevRank) - int(e.Rank))
	}
}

// RebuildIndex restores the internal index after deserialization.
func (b *Board) RebuildIndex() {
	b.index = make(map[string]int, len(b.Entries))
	for i, e := range b.Entries {
		b.index[e.OfferingID] = i
	}
}

// String returns a representation for logging.
func (b *Board) String() string {
	return fmt.Sprintf("Board{Window: %s, Entries: %d, GeneratedAt: %s}",
		b.Window, len(b.Entries), b.GeneratedAt.Format(time.RFC3339))
}
