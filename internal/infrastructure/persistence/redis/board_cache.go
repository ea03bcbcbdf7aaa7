package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kumotsudai/kumotsudai-hub/internal/domain/ranking"
	"github.com/kumotsudai/kumotsudai-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOARD CACHE
// ══════════════════════════════════════════════════════════════════════════════

// BoardCache holds hot ranking boards in Redis. Implements ranking.BoardCache.
//
// Architecture:
//   - Sorted set "ranking:prayers:{window}" stores offeringID -> prayer count
//   - Hash "ranking:info:{window}" stores offeringID -> entry details JSON
//   - String "ranking:meta:{window}" stores board metadata
//
// The sorted set score is the live prayer count: BumpPrayers adjusts it
// between rebuilds, and GetBoard reads ranks and counts from it, so a cached
// board tracks prayer toggles without a full rebuild.
type BoardCache struct {
	cache *Cache
	ttl   time.Duration
}

// Key patterns for the board cache.
const (
	keyBoardPrayers = PrefixRanking + "prayers:"
	keyBoardInfo    = PrefixRanking + "info:"
	keyBoardMeta    = PrefixRanking + "meta:"
)

// boardEntryRecord is the hash value for one board entry.
type boardEntryRecord struct {
	OfferingID    string    `json:"offering_id"`
	AuthorID      string    `json:"author_id"`
	AuthorName    string    `json:"author_name"`
	Title         string    `json:"title"`
	GuidanceCount int       `json:"guidance_count"`
	CreatedAt     time.Time `json:"created_at"`
}

// boardMetaRecord is the metadata value for one cached board.
type boardMetaRecord struct {
	Window      string    `json:"window"`
	GeneratedAt time.Time `json:"generated_at"`
	Entries     int       `json:"entries"`
}

// NewBoardCache creates a new BoardCache. A non-positive ttl falls back to
// TTLBoardCache.
func NewBoardCache(cache *Cache, ttl time.Duration) *BoardCache {
	if ttl <= 0 {
		ttl = TTLBoardCache
	}
	return &BoardCache{cache: cache, ttl: ttl}
}

// SetBoard replaces the cached board for its window.
func (b *BoardCache) SetBoard(ctx context.Context, board *ranking.Board, ttl time.Duration) error {
	if board == nil {
		return ErrCacheNilValue
	}
	if ttl <= 0 {
		ttl = b.ttl
	}

	prayersKey := keyBoardPrayers + board.Window.String()
	infoKey := keyBoardInfo + board.Window.String()
	metaKey := keyBoardMeta + board.Window.String()

	pipe := b.cache.Client().TxPipeline()
	pipe.Del(ctx, prayersKey, infoKey)

	if len(board.Entries) > 0 {
		members := make([]redis.Z, 0, len(board.Entries))
		infos := make(map[string]interface{}, len(board.Entries))
		for _, e := range board.Entries {
			members = append(members, redis.Z{
				Score:  float64(e.Prayers),
				Member: e.OfferingID,
			})
			data, err := json.Marshal(boardEntryRecord{
				OfferingID:    e.OfferingID,
				AuthorID:      e.AuthorID,
				AuthorName:    e.AuthorName,
				Title:         e.Title,
				GuidanceCount: e.GuidanceCount,
				CreatedAt:     e.CreatedAt,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
			}
			infos[e.OfferingID] = data
		}
		pipe.ZAdd(ctx, prayersKey, members...)
		pipe.HSet(ctx, infoKey, infos)
		pipe.Expire(ctx, prayersKey, ttl)
		pipe.Expire(ctx, infoKey, ttl)
	}

	meta, err := json.Marshal(boardMetaRecord{
		Window:      board.Window.String(),
		GeneratedAt: board.GeneratedAt,
		Entries:     len(board.Entries),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}
	pipe.Set(ctx, metaKey, meta, ttl)

	_, err = pipe.Exec(ctx)
	return err
}

// GetBoard returns the cached board for a window, at most limit entries.
// Returns shared.ErrBoardNotFound on a miss. A non-positive limit means all
// cached entries.
func (b *BoardCache) GetBoard(ctx context.Context, window ranking.Window, limit int) (*ranking.Board, error) {
	metaKey := keyBoardMeta + window.String()

	data, err := b.cache.Client().Get(ctx, metaKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, shared.ErrBoardNotFound
		}
		return nil, err
	}

	var meta boardMetaRecord
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCacheSerialization, err)
	}

	board := &ranking.Board{
		Window:      window,
		Entries:     []*ranking.Entry{},
		GeneratedAt: meta.GeneratedAt,
	}
	if meta.Entries == 0 {
		board.RebuildIndex()
		return board, nil
	}

	end := int64(-1)
	if limit > 0 {
		end = int64(limit) - 1
	}

	prayersKey := keyBoardPrayers + window.String()
	members, err := b.cache.Client().ZRevRangeWithScores(ctx, prayersKey, 0, end).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		// Meta survived the sorted set's expiry; treat as a miss.
		return nil, shared.ErrBoardNotFound
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.Member.(string)
	}

	infoKey := keyBoardInfo + window.String()
	infos, err := b.cache.Client().HMGet(ctx, infoKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	board.Entries = make([]*ranking.Entry, 0, len(members))
	for i, m := range members {
		entry := &ranking.Entry{
			Rank:       ranking.Rank(i + 1),
			OfferingID: ids[i],
			Prayers:    int(m.Score),
		}
		if raw, ok := infos[i].(string); ok {
			var rec boardEntryRecord
			if err := json.Unmarshal([]byte(raw), &rec); err == nil {
				entry.AuthorID = rec.AuthorID
				entry.AuthorName = rec.AuthorName
				entry.Title = rec.Title
				entry.GuidanceCount = rec.GuidanceCount
				entry.CreatedAt = rec.CreatedAt
			}
		}
		board.Entries = append(board.Entries, entry)
	}
	board.RebuildIndex()

	return board, nil
}

// BumpPrayers adjusts the cached score of an offering on every window the
// offering appears in. Windows that do not contain the offering are left
// untouched so a bump never inserts a stale entry.
func (b *BoardCache) BumpPrayers(ctx context.Context, offeringID string, delta int) error {
	if offeringID == "" {
		return ErrCacheKeyEmpty
	}

	for _, window := range ranking.AllWindows() {
		prayersKey := keyBoardPrayers + window.String()

		_, err := b.cache.Client().ZScore(ctx, prayersKey, offeringID).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return err
		}

		if err := b.cache.Client().ZIncrBy(ctx, prayersKey, float64(delta), offeringID).Err(); err != nil {
			return err
		}
	}

	return nil
}

// InvalidateBoard drops the cached board for a window.
func (b *BoardCache) InvalidateBoard(ctx context.Context, window ranking.Window) error {
	return b.cache.Delete(ctx,
		keyBoardPrayers+window.String(),
		keyBoardInfo+window.String(),
		keyBoardMeta+window.String(),
	)
}

// InvalidateAll drops every cached board.
func (b *BoardCache) InvalidateAll(ctx context.Context) error {
	for _, window := range ranking.AllWindows() {
		if err := b.InvalidateBoard(ctx, window); err != nil {
			return err
		}
	}
	return nil
}
