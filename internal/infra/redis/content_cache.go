package redis

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// ContentCache remembers the content hash last indexed per document, so a
// re-run over unchanged content can skip the embed and upsert stages.
// A cache miss (or an unreachable Redis) just means the work is redone.
type ContentCache struct {
	client RedisClient
	ttl    time.Duration
	log    *zerolog.Logger
}

func NewContentCache(client RedisClient, ttl time.Duration, log *zerolog.Logger) *ContentCache {
	return &ContentCache{client: client, ttl: ttl, log: log}
}

func (c *ContentCache) key(documentID string) string {
	return "ingest_hash:" + documentID
}

// Hash returns the stored content hash for a document, or "" when unknown.
// A plain miss is silent; a reachability failure is logged since it degrades
// dedup for every document until Redis recovers.
func (c *ContentCache) Hash(ctx context.Context, documentID string) string {
	v, err := c.client.Get(ctx, c.key(documentID))
	if err != nil {
		if !IsNil(err) {
			c.log.Warn().Err(err).Str("document_id", documentID).Msg("content hash lookup failed")
		}
		return ""
	}
	return v
}

func (c *ContentCache) StoreHash(ctx context.Context, documentID, hash string) error {
	return c.client.Set(ctx, c.key(documentID), hash, c.ttl)
}

func (c *ContentCache) Forget(ctx context.Context, documentID string) error {
	return c.client.Del(ctx, c.key(documentID))
}
