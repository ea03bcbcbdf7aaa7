package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// UserRepository implements user.Repository on PostgreSQL.
type UserRepository struct {
	conn *Connection
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(conn *Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

// prefsRecord is the JSONB shape of notification preferences.
type prefsRecord struct {
	PrayerNotices   bool `json:"prayer_notices"`
	GuidanceNotices bool `json:"guidance_notices"`
	RankingNotices  bool `json:"ranking_notices"`
	QuietHoursStart int  `json:"quiet_hours_start"`
	QuietHoursEnd   int  `json:"quiet_hours_end"`
}

func marshalPrefs(p user.NotificationPreferences) ([]byte, error) {
	return json.Marshal(prefsRecord{
		PrayerNotices:   p.PrayerNotices,
		GuidanceNotices: p.GuidanceNotices,
		RankingNotices:  p.RankingNotices,
		QuietHoursStart: p.QuietHoursStart,
		QuietHoursEnd:   p.QuietHoursEnd,
	})
}

func unmarshalPrefs(data []byte) (user.NotificationPreferences, error) {
	var rec prefsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return user.NotificationPreferences{}, err
	}
	return user.NotificationPreferences{
		PrayerNotices:   rec.PrayerNotices,
		GuidanceNotices: rec.GuidanceNotices,
		RankingNotices:  rec.RankingNotices,
		QuietHoursStart: rec.QuietHoursStart,
		QuietHoursEnd:   rec.QuietHoursEnd,
	}, nil
}

const userColumns = `id, username, email, password_hash, display_name, bio,
	favorite_genres, status, preferences, joined_at, created_at, updated_at`

// scanUser scans a single user row.
func scanUser(row interface{ Scan(dest ...interface{}) error }) (*user.User, error) {
	var (
		u         user.User
		username  string
		email     string
		status    string
		genres    []string
		prefsJSON []byte
	)

	err := row.Scan(
		&u.ID,
		&username,
		&email,
		&u.PasswordHash,
		&u.DisplayName,
		&u.Bio,
		&genres,
		&status,
		&prefsJSON,
		&u.JoinedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	u.Username = user.Username(username)
	u.Email = user.Email(email)
	u.Status = user.Status(status)
	u.FavoriteGenres = genres

	prefs, err := unmarshalPrefs(prefsJSON)
	if err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	u.Preferences = prefs

	return &u, nil
}

// Create stores a new user.
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	prefsJSON, err := marshalPrefs(u.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	query := `
		INSERT INTO users (id, username, email, password_hash, display_name, bio,
			favorite_genres, status, preferences, joined_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	genres := u.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}

	_, err = r.conn.Exec(ctx, query,
		u.ID,
		u.Username.String(),
		u.Email.String(),
		u.PasswordHash,
		u.DisplayName,
		u.Bio,
		genres,
		string(u.Status),
		prefsJSON,
		u.JoinedAt,
		u.CreatedAt,
		u.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrUserAlreadyExists
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID returns a user by internal ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)

	u, err := scanUser(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// GetByUsername returns a user by normalized username.
func (r *UserRepository) GetByUsername(ctx context.Context, username user.Username) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE username = $1", userColumns)

	u, err := scanUser(r.conn.QueryRow(ctx, query, username.Normalize().String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

// GetByEmail returns a user by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email user.Email) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)

	u, err := scanUser(r.conn.QueryRow(ctx, query, email.Normalize().String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// Update persists changes to an existing user. Username and email are
// immutable and intentionally excluded.
func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	prefsJSON, err := marshalPrefs(u.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	query := `
		UPDATE users
		SET password_hash = $2,
			display_name = $3,
			bio = $4,
			favorite_genres = $5,
			status = $6,
			preferences = $7,
			updated_at = $8
		WHERE id = $1
	`
	genres := u.FavoriteGenres
	if genres == nil {
		genres = []string{}
	}

	tag, err := r.conn.Exec(ctx, query,
		u.ID,
		u.PasswordHash,
		u.DisplayName,
		u.Bio,
		genres,
		string(u.Status),
		prefsJSON,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}

	return nil
}

// Delete removes a user.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrUserNotFound
	}
	return nil
}

// GetByIDs returns users for the given IDs. Missing IDs are skipped.
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) ([]*user.User, error) {
	if len(ids) == 0 {
		return []*user.User{}, nil
	}

	query := fmt.Sprintf("SELECT %s FROM users WHERE id = ANY($1)", userColumns)

	rows, err := r.conn.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get users by ids: %w", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// List returns users with pagination.
func (r *UserRepository) List(ctx context.Context, opts user.ListOptions) ([]*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users", userColumns)
	args := []interface{}{}

	if !opts.IncludeInactive {
		query += " WHERE status = 'active'"
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0, opts.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// Count returns the total number of users.
func (r *UserRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// ExistsByUsername checks whether a username is taken.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username user.Username) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)",
		username.Normalize().String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail checks whether an email is registered.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email user.Email) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)",
		email.Normalize().String(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return exists, nil
}
