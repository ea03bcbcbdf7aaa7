package ranking

import (
	"fmt"
	"time"
)

// Snapshot is a persisted copy of a board at a point in time. Snapshots feed
// rank-change computation on the next rebuild and keep a short history of
// how offerings moved.
type Snapshot struct {
	// ID is the unique identifier (UUID in string form).
	ID string

	// Window the snapshot covers.
	Window Window

	// Entries in rank order at snapshot time.
	Entries []*Entry

	// TakenAt is when the snapshot was taken.
	TakenAt time.Time

	// index maps offering ID to position in Entries.
	index map[string]int
}

// NewSnapshot captures the given board.
func NewSnapshot(id string, board *Board) *Snapshot {
	entries := make([]*Entry, len(board.Entries))
	index := make(map[string]int, len(board.Entries))
	for i, e := range board.Entries {
		entries[i] = e.Clone()
		index[e.OfferingID] = i
	}
	return &Snapshot{
		ID:      id,
		Window:  board.Window,
		Entries: entries,
		TakenAt: time.Now().UTC(),
		index:   index,
	}
}

// GetRank returns the rank of the offering at snapshot time, or 0 when absent.
func (s *Snapshot) GetRank(offeringID string) Rank {
	if s == nil {
		return 0
	}
	if i, ok := s.index[offeringID]; ok {
		return s.Entries[i].Rank
	}
	return 0
}

// Contains checks whether the offering was on the board.
func (s *Snapshot) Contains(offeringID string) bool {
	return s.GetRank(offeringID) != 0
}

// Count returns the number of entries.
func (s *Snapshot) Count() int {
	if s == nil {
		return 0
	}
	return len(s.Entries)
}

// IsEmpty checks whether the snapshot has no entries.
func (s *Snapshot) IsEmpty() bool {
	return s.Count() == 0
}

// Top returns the first n entries.
func (s *Snapshot) Top(n int) []*Entry {
	if n > len(s.Entries) {
		n = len(s.Entries)
	}
	if n < 0 {
		n = 0
	}
	return s.Entries[:n]
}

// TopOfferingIDs returns the offering IDs of the first n entries.
func (s *Snapshot) TopOfferingIDs(n int) []string {
	top := s.Top(n)
	ids := make([]string, len(top))
	for i, e := range top {
		ids[i] = e.OfferingID
	}
	return ids
}

// Clone creates a deep copy of the snapshot. Entries are copied so the
// clone can be mutated independently.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	clone := &Snapshot{
		ID:      s.ID,
		Window:  s.Window,
		Entries: make([]*Entry, len(s.Entries)),
		TakenAt: s.TakenAt,
	}
	for i, e := range s.Entries {
		clone.Entries[i] = e.Clone()
	}
	clone.RebuildIndex()
	return clone
}

// RebuildIndex restores the internal index after deserialization.
func (s *Snapshot) RebuildIndex() {
	s.index = make(map[string]int, len(s.Entries))
	for i, e := range s.Entries {
		s.index[e.OfferingID] = i
	}
}

// String returns a representation for logging.
func (s *Snapshot) String() string {
	return fmt.Sprintf("Snapshot{ID: %s, Window: %s, Entries: %d, TakenAt: %s}",
		s.ID, s.Window, len(s.Entries), s.TakenAt.Format(time.RFC3339))
}
