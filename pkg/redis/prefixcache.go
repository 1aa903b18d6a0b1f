package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Ramsey-B/banyan/pkg/models"
)

// PrefixCache caches resolved relationship prefixes per user. Entries
// expire on TTL; tree changes are picked up on the next recompute.
type PrefixCache struct {
	client *Client
	ttl    time.Duration
}

// NewPrefixCache creates a prefix cache backed by the given client
func NewPrefixCache(client *Client, ttl time.Duration) *PrefixCache {
	return &PrefixCache{
		client: client,
		ttl:    ttl,
	}
}

func prefixKey(userID string) string {
	return "prefixes:" + userID
}

// Get returns the cached prefixes for a user, if present
func (p *PrefixCache) Get(ctx context.Context, userID string) ([]models.FamilyPrefix, bool) {
	raw, err := p.client.Get(ctx, prefixKey(userID))
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			p.client.logger.WithContext(ctx).WithError(err).Warn("Failed to read prefix cache")
		}
		return nil, false
	}

	var prefixes []models.FamilyPrefix
	if err := json.Unmarshal([]byte(raw), &prefixes); err != nil {
		return nil, false
	}
	return prefixes, true
}

// Set stores the prefixes for a user. Cache write failures are logged
// and otherwise ignored.
func (p *PrefixCache) Set(ctx context.Context, userID string, prefixes []models.FamilyPrefix) {
	data, err := json.Marshal(prefixes)
	if err != nil {
		return
	}
	if err := p.client.Set(ctx, prefixKey(userID), data, p.ttl); err != nil {
		p.client.logger.WithContext(ctx).WithError(err).Warn("Failed to write prefix cache")
	}
}

// Invalidate drops the cached prefixes for the given users
func (p *PrefixCache) Invalidate(ctx context.Context, userIDs ...string) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, prefixKey(id))
	}
	if err := p.client.Del(ctx, keys...); err != nil {
		p.client.logger.WithContext(ctx).WithError(err).Warn("Failed to invalidate prefix cache")
	}
}
