package identity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"custodia/pkg/domain"
)

const profileKeyPrefix = "custodia:profile:"

// ProfileCache is a redis-backed read replica for profile point queries.
// Committed state stays authoritative: entries carry a short TTL and are
// invalidated whenever a command touches the subject.
type ProfileCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewProfileCache(client *redis.Client, ttl time.Duration) *ProfileCache {
	return &ProfileCache{client: client, ttl: ttl}
}

// Get returns the cached identity, or (nil, nil) on a miss.
func (c *ProfileCache) Get(ctx context.Context, principal domain.Principal) (*Identity, error) {
	raw, err := c.client.Get(ctx, profileKeyPrefix+principal.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ident Identity
	if err := json.Unmarshal(raw, &ident); err != nil {
		// Treat a corrupt entry as a miss; the next Set overwrites it.
		return nil, nil
	}
	return &ident, nil
}

// Set caches an identity snapshot with the configured TTL.
func (c *ProfileCache) Set(ctx context.Context, ident *Identity) error {
	raw, err := json.Marshal(ident)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, profileKeyPrefix+ident.Principal.String(), raw, c.ttl).Err()
}

// Invalidate drops the cached snapshot for a subject. The sequencer calls
// this after every committed command touching the subject.
func (c *ProfileCache) Invalidate(ctx context.Context, principal domain.Principal) error {
	return c.client.Del(ctx, profileKeyPrefix+principal.String()).Err()
}
