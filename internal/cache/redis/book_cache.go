package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/polysync/internal/domain"
	"github.com/redis/go-redis/v9"
)

const bookTTL = 2 * time.Minute

// BookCache implements domain.BookCache: the most recent normalized snapshot
// per outcome token, JSON-serialized under a short TTL. The durable history
// lives in PostgreSQL; this is only a hot read path.
//
// Key schema:
//
//	book:latest:{tokenID} - JSON-encoded BookSnapshot
type BookCache struct {
	rdb *redis.Client
}

// NewBookCache creates a BookCache backed by the given Client.
func NewBookCache(c *Client) *BookCache {
	return &BookCache{rdb: c.rdb}
}

func bookLatestKey(tokenID string) string { return "book:latest:" + tokenID }

// SetLatest stores the snapshot as the current book for its token.
func (bc *BookCache) SetLatest(ctx context.Context, snap domain.BookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot token=%s: %w", snap.TokenID, err)
	}

	if err := bc.rdb.Set(ctx, bookLatestKey(snap.TokenID), data, bookTTL).Err(); err != nil {
		return fmt.Errorf("redis: set latest book token=%s: %w", snap.TokenID, err)
	}
	return nil
}

// GetLatest retrieves the cached current book for a token.
// It returns domain.ErrNotFound when no snapshot is cached.
func (bc *BookCache) GetLatest(ctx context.Context, tokenID string) (domain.BookSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookLatestKey(tokenID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.BookSnapshot{}, domain.ErrNotFound
		}
		return domain.BookSnapshot{}, fmt.Errorf("redis: get latest book token=%s: %w", tokenID, err)
	}

	var snap domain.BookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.BookSnapshot{}, fmt.Errorf("redis: unmarshal snapshot token=%s: %w", tokenID, err)
	}
	return snap, nil
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
