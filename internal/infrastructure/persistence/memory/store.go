// Package memory implements the persistence interfaces on top of in-memory
// maps. It is the storage used in development mode and in tests, and it is
// where the repository contracts are easiest to read: every method holds the
// store lock and works on deep copies, so aggregates handed out can never
// corrupt stored state.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/notification"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// Store holds the entire application state in memory.
type Store struct {
	mu sync.RWMutex

	users         map[string]*user.User
	usersByName   map[user.Username]string
	usersByEmail  map[user.Email]string
	offerings     map[string]*offering.Offering
	snapshots     map[ranking.Window][]*ranking.Snapshot
	notifications map[string]*notification.Notification
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:         make(map[string]*user.User),
		usersByName:   make(map[user.Username]string),
		usersByEmail:  make(map[user.Email]string),
		offerings:     make(map[string]*offering.Offering),
		snapshots:     make(map[ranking.Window][]*ranking.Snapshot),
		notifications: make(map[string]*notification.Notification),
	}
}

// Users returns the user repository view of the store.
func (s *Store) Users() user.Repository { return (*userRepo)(s) }

// Offerings returns the offering repository view of the store.
func (s *Store) Offerings() offering.Repository { return (*offeringRepo)(s) }

// Snapshots returns the ranking snapshot repository view of the store.
func (s *Store) Snapshots() ranking.SnapshotRepository { return (*snapshotRepo)(s) }

// Notifications returns the notification repository view of the store.
func (s *Store) Notifications() notification.Repository { return (*notificationRepo)(s) }

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type userRepo Store

func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[u.ID]; ok {
		return shared.ErrUserAlreadyExists
	}
	if _, ok := r.usersByName[u.Username]; ok {
		return shared.ErrUsernameTaken
	}
	if _, ok := r.usersByEmail[u.Email]; ok {
		return shared.ErrEmailTaken
	}

	clone := u.Clone()
	r.users[clone.ID] = clone
	r.usersByName[clone.Username] = clone.ID
	r.usersByEmail[clone.Email] = clone.ID
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return u.Clone(), nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username user.Username) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByName[username.Normalize()]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email user.Email) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.usersByEmail[email.Normalize()]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	return r.users[id].Clone(), nil
}

func (r *userRepo) Update(ctx context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.users[u.ID]
	if !ok {
		return shared.ErrUserNotFound
	}

	// Username and email are immutable after registration; the secondary
	// indexes stay valid without rebuilds.
	clone := u.Clone()
	clone.Username = existing.Username
	clone.Email = existing.Email
	r.users[clone.ID] = clone
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return shared.ErrUserNotFound
	}
	delete(r.usersByName, u.Username)
	delete(r.usersByEmail, u.Email)
	delete(r.users, id)
	return nil
}

func (r *userRepo) GetByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*user.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			users = append(users, u.Clone())
		}
	}
	return users, nil
}

func (r *userRepo) List(ctx context.Context, opts user.ListOptions) ([]*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*user.User, 0, len(r.users))
	for _, u := range r.users {
		if !opts.IncludeInactive && !u.Status.CanParticipate() {
			continue
		}
		users = append(users, u.Clone())
	}

	sort.Slice(users, func(i, j int) bool {
		if !users[i].JoinedAt.Equal(users[j].JoinedAt) {
			return users[i].JoinedAt.Before(users[j].JoinedAt)
		}
		return users[i].ID < users[j].ID
	})

	return paginate(users, opts.Offset, opts.Limit), nil
}

func (r *userRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users), nil
}

func (r *userRepo) ExistsByUsername(ctx context.Context, username user.Username) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.usersByName[username.Normalize()]
	return ok, nil
}

func (r *userRepo) ExistsByEmail(ctx context.Context, email user.Email) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.usersByEmail[email.Normalize()]
	return ok, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFERING REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type offeringRepo Store

func (r *offeringRepo) Create(ctx context.Context, o *offering.Offering) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.offerings[o.ID]; ok {
		return shared.ErrOfferingExists
	}
	r.offerings[o.ID] = o.Clone()
	return nil
}

func (r *offeringRepo) GetByID(ctx context.Context, id string) (*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.offerings[id]
	if !ok {
		return nil, shared.ErrOfferingNotFound
	}
	return o.Clone(), nil
}

func (r *offeringRepo) Update(ctx context.Context, o *offering.Offering) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.offerings[o.ID]; !ok {
		return shared.ErrOfferingNotFound
	}
	r.offerings[o.ID] = o.Clone()
	return nil
}

func (r *offeringRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.offerings[id]; !ok {
		return shared.ErrOfferingNotFound
	}
	delete(r.offerings, id)
	return nil
}

func (r *offeringRepo) ListAll(ctx context.Context, opts offering.ListOptions) ([]*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(opts, func(o *offering.Offering) bool { return true }), nil
}

func (r *offeringRepo) ListByAuthor(ctx context.Context, authorID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(opts, func(o *offering.Offering) bool { return o.AuthorID == authorID }), nil
}

func (r *offeringRepo) ListByPrayer(ctx context.Context, userID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(opts, func(o *offering.Offering) bool { return o.HasPrayedBy(userID) }), nil
}

func (r *offeringRepo) ListByGuidanceAuthor(ctx context.Context, userID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(opts, func(o *offering.Offering) bool { return o.HasGuidanceBy(userID) }), nil
}

func (r *offeringRepo) CreatedSince(ctx context.Context, since time.Time) ([]*offering.Offering, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	offerings := make([]*offering.Offering, 0)
	for _, o := range r.offerings {
		if since.IsZero() || !o.CreatedAt.Before(since) {
			offerings = append(offerings, o.Clone())
		}
	}
	sortOfferings(offerings, offering.SortByCreatedAt, true)
	return offerings, nil
}

func (r *offeringRepo) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.offerings), nil
}

func (r *offeringRepo) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, o := range r.offerings {
		if o.AuthorID == authorID {
			count++
		}
	}
	return count, nil
}

// collect filters, sorts, and paginates under the read lock.
func (r *offeringRepo) collect(opts offering.ListOptions, match func(*offering.Offering) bool) []*offering.Offering {
	offerings := make([]*offering.Offering, 0)
	for _, o := range r.offerings {
		if match(o) {
			offerings = append(offerings, o.Clone())
		}
	}
	sortOfferings(offerings, opts.SortBy, opts.SortDesc)
	return paginate(offerings, opts.Offset, opts.Limit)
}

func sortOfferings(offerings []*offering.Offering, field offering.SortField, desc bool) {
	sort.SliceStable(offerings, func(i, j int) bool {
		a, b := offerings[i], offerings[j]
		var less bool
		switch field {
		case offering.SortByPrayers:
			if a.Prayers() == b.Prayers() {
				less = a.CreatedAt.Before(b.CreatedAt)
			} else {
				less = a.Prayers() < b.Prayers()
			}
		default:
			if a.CreatedAt.Equal(b.CreatedAt) {
				less = a.ID < b.ID
			} else {
				less = a.CreatedAt.Before(b.CreatedAt)
			}
		}
		if desc {
			return !less && !equalKey(a, b, field)
		}
		return less
	})
}

// equalKey reports whether two offerings compare equal on the sort key, so
// descending sorts stay stable.
func equalKey(a, b *offering.Offering, field offering.SortField) bool {
	switch field {
	case offering.SortByPrayers:
		return a.Prayers() == b.Prayers() && a.CreatedAt.Equal(b.CreatedAt)
	default:
		return a.CreatedAt.Equal(b.CreatedAt) && a.ID == b.ID
	}
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 || offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING SNAPSHOT REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type snapshotRepo Store

func (r *snapshotRepo) SaveSnapshot(ctx context.Context, s *ranking.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Newest first.
	r.snapshots[s.Window] = append([]*ranking.Snapshot{s.Clone()}, r.snapshots[s.Window]...)
	return nil
}

func (r *snapshotRepo) GetLatestSnapshot(ctx context.Context, window ranking.Window) (*ranking.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := r.snapshots[window]
	if len(snaps) == 0 {
		return nil, shared.ErrSnapshotNotFound
	}
	return snaps[0].Clone(), nil
}

func (r *snapshotRepo) ListSnapshots(ctx context.Context, window ranking.Window, limit int) ([]*ranking.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := r.snapshots[window]
	if limit > 0 && len(snaps) > limit {
		snaps = snaps[:limit]
	}
	result := make([]*ranking.Snapshot, len(snaps))
	for i, s := range snaps {
		result[i] = s.Clone()
	}
	return result, nil
}

func (r *snapshotRepo) PruneSnapshots(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for window, snaps := range r.snapshots {
		kept := snaps[:0]
		for _, s := range snaps {
			if s.TakenAt.Before(before) {
				removed++
			} else {
				kept = append(kept, s)
			}
		}
		r.snapshots[window] = kept
	}
	return removed, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type notificationRepo Store

func (r *notificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *n
	r.notifications[n.ID] = &clone
	return nil
}

func (r *notificationRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notices := make([]*notification.Notification, 0)
	for _, n := range r.notifications {
		if n.UserID == userID {
			clone := *n
			notices = append(notices, &clone)
		}
	}
	sort.Slice(notices, func(i, j int) bool {
		if !notices[i].CreatedAt.Equal(notices[j].CreatedAt) {
			return notices[i].CreatedAt.After(notices[j].CreatedAt)
		}
		return notices[i].ID < notices[j].ID
	})
	if limit > 0 && len(notices) > limit {
		notices = notices[:limit]
	}
	return notices, nil
}

func (r *notificationRepo) CountUnread(ctx context.Context, userID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, n := range r.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) MarkRead(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return shared.ErrNotificationNotFound
	}
	n.Read = true
	return nil
}

func (r *notificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range r.notifications {
		if n.UserID == userID {
			n.Read = true
		}
	}
	return nil
}
