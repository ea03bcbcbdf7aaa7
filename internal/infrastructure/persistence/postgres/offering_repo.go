package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/offering"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// OFFERING REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// OfferingRepository implements offering.Repository on PostgreSQL.
//
// The aggregate spans three tables: offerings, offering_prayers, and
// guidances. Reads load the prayed-by set and guidance list in bulk per
// page; writes replace both inside a transaction.
type OfferingRepository struct {
	conn *Connection
}

// NewOfferingRepository creates a new OfferingRepository.
func NewOfferingRepository(conn *Connection) *OfferingRepository {
	return &OfferingRepository{conn: conn}
}

const offeringColumns = `o.id, o.author_id, o.author_name, o.title, o.content, o.genres, o.created_at, o.updated_at`

// prayerCountExpr derives the prayer count for sorting without denormalizing it.
const prayerCountExpr = `(SELECT COUNT(*) FROM offering_prayers p WHERE p.offering_id = o.id)`

func scanOffering(row interface{ Scan(dest ...interface{}) error }) (*offering.Offering, error) {
	var (
		o      offering.Offering
		genres []string
	)

	err := row.Scan(
		&o.ID,
		&o.AuthorID,
		&o.AuthorName,
		&o.Title,
		&o.Content,
		&genres,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Genres = make([]offering.Genre, 0, len(genres))
	for _, g := range genres {
		o.Genres = append(o.Genres, offering.Genre(g))
	}
	o.PrayedBy = make(map[string]struct{})
	o.Guidances = make([]offering.Guidance, 0)

	return &o, nil
}

// Create stores a new offering together with its prayers and guidance.
func (r *OfferingRepository) Create(ctx context.Context, o *offering.Offering) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO offerings (id, author_id, author_name, title, content, genres, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		genres := make([]string, 0, len(o.Genres))
		for _, g := range o.Genres {
			genres = append(genres, g.String())
		}

		_, err := tx.Exec(ctx, query,
			o.ID, o.AuthorID, o.AuthorName, o.Title, o.Content, genres, o.CreatedAt, o.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return shared.ErrOfferingExists
			}
			return fmt.Errorf("insert offering: %w", err)
		}

		return r.insertAssociations(ctx, tx, o)
	})
}

// GetByID returns a fully loaded offering.
func (r *OfferingRepository) GetByID(ctx context.Context, id string) (*offering.Offering, error) {
	query := fmt.Sprintf("SELECT %s FROM offerings o WHERE o.id = $1", offeringColumns)

	o, err := scanOffering(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrOfferingNotFound
		}
		return nil, fmt.Errorf("get offering by id: %w", err)
	}

	if err := r.loadAssociations(ctx, r.conn, []*offering.Offering{o}); err != nil {
		return nil, err
	}
	return o, nil
}

// Update persists the offering row and replaces its prayers and guidance.
// Replacing is simpler than diffing and the sets stay small per aggregate.
func (r *OfferingRepository) Update(ctx context.Context, o *offering.Offering) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			UPDATE offerings
			SET author_name = $2, title = $3, content = $4, genres = $5, updated_at = $6
			WHERE id = $1
		`
		genres := make([]string, 0, len(o.Genres))
		for _, g := range o.Genres {
			genres = append(genres, g.String())
		}

		tag, err := tx.Exec(ctx, query, o.ID, o.AuthorName, o.Title, o.Content, genres, o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update offering: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrOfferingNotFound
		}

		if _, err := tx.Exec(ctx, "DELETE FROM offering_prayers WHERE offering_id = $1", o.ID); err != nil {
			return fmt.Errorf("clear prayers: %w", err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM guidances WHERE offering_id = $1", o.ID); err != nil {
			return fmt.Errorf("clear guidances: %w", err)
		}

		return r.insertAssociations(ctx, tx, o)
	})
}

// Delete removes an offering; prayers and guidance cascade.
func (r *OfferingRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.conn.Exec(ctx, "DELETE FROM offerings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete offering: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrOfferingNotFound
	}
	return nil
}

// ListAll returns offerings with pagination and sorting.
func (r *OfferingRepository) ListAll(ctx context.Context, opts offering.ListOptions) ([]*offering.Offering, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM offerings o %s LIMIT $1 OFFSET $2",
		offeringColumns, orderClause(opts),
	)
	return r.queryPage(ctx, query, opts.Limit, opts.Offset)
}

// ListByAuthor returns offerings placed by the given user.
func (r *OfferingRepository) ListByAuthor(ctx context.Context, authorID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM offerings o WHERE o.author_id = $1 %s LIMIT $2 OFFSET $3",
		offeringColumns, orderClause(opts),
	)
	return r.queryPage(ctx, query, authorID, opts.Limit, opts.Offset)
}

// ListByPrayer returns offerings the given user has prayed for.
func (r *OfferingRepository) ListByPrayer(ctx context.Context, userID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM offerings o
		WHERE EXISTS (SELECT 1 FROM offering_prayers p WHERE p.offering_id = o.id AND p.user_id = $1)
		%s LIMIT $2 OFFSET $3`,
		offeringColumns, orderClause(opts),
	)
	return r.queryPage(ctx, query, userID, opts.Limit, opts.Offset)
}

// ListByGuidanceAuthor returns offerings the given user left guidance on.
func (r *OfferingRepository) ListByGuidanceAuthor(ctx context.Context, userID string, opts offering.ListOptions) ([]*offering.Offering, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM offerings o
		WHERE EXISTS (SELECT 1 FROM guidances g WHERE g.offering_id = o.id AND g.author_id = $1)
		%s LIMIT $2 OFFSET $3`,
		offeringColumns, orderClause(opts),
	)
	return r.queryPage(ctx, query, userID, opts.Limit, opts.Offset)
}

// CreatedSince returns all offerings created at or after the given time.
func (r *OfferingRepository) CreatedSince(ctx context.Context, since time.Time) ([]*offering.Offering, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM offerings o WHERE o.created_at >= $1 ORDER BY o.created_at DESC, o.id",
		offeringColumns,
	)
	return r.queryPage(ctx, query, since)
}

// Count returns the total number of offerings.
func (r *OfferingRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM offerings").Scan(&count); err != nil {
		return 0, fmt.Errorf("count offerings: %w", err)
	}
	return count, nil
}

// CountByAuthor returns the number of offerings by the given user.
func (r *OfferingRepository) CountByAuthor(ctx context.Context, authorID string) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM offerings WHERE author_id = $1", authorID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count offerings by author: %w", err)
	}
	return count, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Internals
// ──────────────────────────────────────────────────────────────────────────────

func orderClause(opts offering.ListOptions) string {
	dir := "ASC"
	if opts.SortDesc {
		dir = "DESC"
	}
	switch opts.SortBy {
	case offering.SortByPrayers:
		return fmt.Sprintf("ORDER BY %s %s, o.created_at DESC, o.id", prayerCountExpr, dir)
	default:
		return fmt.Sprintf("ORDER BY o.created_at %s, o.id", dir)
	}
}

func (r *OfferingRepository) queryPage(ctx context.Context, query string, args ...interface{}) ([]*offering.Offering, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list offerings: %w", err)
	}
	defer rows.Close()

	offerings := make([]*offering.Offering, 0)
	for rows.Next() {
		o, err := scanOffering(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offering: %w", err)
		}
		offerings = append(offerings, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadAssociations(ctx, r.conn, offerings); err != nil {
		return nil, err
	}
	return offerings, nil
}

// loadAssociations fills the prayed-by sets and guidance lists for a page
// of offerings with two bulk queries.
func (r *OfferingRepository) loadAssociations(ctx context.Context, q Querier, offerings []*offering.Offering) error {
	if len(offerings) == 0 {
		return nil
	}

	ids := make([]string, 0, len(offerings))
	byID := make(map[string]*offering.Offering, len(offerings))
	for _, o := range offerings {
		ids = append(ids, o.ID)
		byID[o.ID] = o
	}

	prayerRows, err := q.Query(ctx,
		"SELECT offering_id, user_id FROM offering_prayers WHERE offering_id = ANY($1)", ids)
	if err != nil {
		return fmt.Errorf("load prayers: %w", err)
	}
	defer prayerRows.Close()

	for prayerRows.Next() {
		var offeringID, userID string
		if err := prayerRows.Scan(&offeringID, &userID); err != nil {
			return fmt.Errorf("scan prayer: %w", err)
		}
		if o, ok := byID[offeringID]; ok {
			o.PrayedBy[userID] = struct{}{}
		}
	}
	if err := prayerRows.Err(); err != nil {
		return err
	}

	guidanceRows, err := q.Query(ctx, `
		SELECT id, offering_id, author_id, author_name, content, created_at
		FROM guidances
		WHERE offering_id = ANY($1)
		ORDER BY ordinal`, ids)
	if err != nil {
		return fmt.Errorf("load guidances: %w", err)
	}
	defer guidanceRows.Close()

	for guidanceRows.Next() {
		var g offering.Guidance
		if err := guidanceRows.Scan(&g.ID, &g.OfferingID, &g.AuthorID, &g.AuthorName, &g.Content, &g.CreatedAt); err != nil {
			return fmt.Errorf("scan guidance: %w", err)
		}
		if o, ok := byID[g.OfferingID]; ok {
			o.Guidances = append(o.Guidances, g)
		}
	}
	return guidanceRows.Err()
}

func (r *OfferingRepository) insertAssociations(ctx context.Context, tx Querier, o *offering.Offering) error {
	for _, userID := range o.PrayedByIDs() {
		_, err := tx.Exec(ctx,
			"INSERT INTO offering_prayers (offering_id, user_id) VALUES ($1, $2)",
			o.ID, userID)
		if err != nil {
			return fmt.Errorf("insert prayer: %w", err)
		}
	}

	// The slice index becomes the ordinal: guidance lists are append-only,
	// so the in-memory order is the insertion order.
	for i, g := range o.Guidances {
		_, err := tx.Exec(ctx, `
			INSERT INTO guidances (id, offering_id, author_id, author_name, content, ordinal, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			g.ID, g.OfferingID, g.AuthorID, g.AuthorName, g.Content, i, g.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert guidance: %w", err)
		}
	}
	return nil
}
