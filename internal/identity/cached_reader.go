package identity

import (
	"context"
	"log/slog"

	"custodia/pkg/domain"
)

// ProfileReader is the uncached read surface CachedProfiles wraps.
type ProfileReader interface {
	GetProfile(ctx context.Context, principal domain.Principal) (*Identity, error)
	HasValidCredential(ctx context.Context, principal domain.Principal, hash string) (bool, error)
	CheckEstateMode(ctx context.Context, principal domain.Principal) (bool, error)
}

// CachedProfiles is a read-through layer over profile point queries. Cache
// failures degrade to direct reads; a populated cache never substitutes for
// committed state on the mutation path.
type CachedProfiles struct {
	reader ProfileReader
	cache  *ProfileCache
	logger *slog.Logger
}

func NewCachedProfiles(reader ProfileReader, cache *ProfileCache, logger *slog.Logger) *CachedProfiles {
	return &CachedProfiles{reader: reader, cache: cache, logger: logger}
}

func (c *CachedProfiles) GetProfile(ctx context.Context, principal domain.Principal) (*Identity, error) {
	cached, err := c.cache.Get(ctx, principal)
	if err != nil {
		c.logger.WarnContext(ctx, "profile cache read failed",
			"principal", principal.String(),
			"error", err.Error(),
		)
	} else if cached != nil {
		return cached, nil
	}

	ident, err := c.reader.GetProfile(ctx, principal)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, ident); err != nil {
		c.logger.WarnContext(ctx, "profile cache write failed",
			"principal", principal.String(),
			"error", err.Error(),
		)
	}
	return ident, nil
}

// HasValidCredential bypasses the cache: validity depends on the clock and
// a stale answer here is an access control bug, not a latency win.
func (c *CachedProfiles) HasValidCredential(ctx context.Context, principal domain.Principal, hash string) (bool, error) {
	return c.reader.HasValidCredential(ctx, principal, hash)
}

// CheckEstateMode bypasses the cache for the same reason.
func (c *CachedProfiles) CheckEstateMode(ctx context.Context, principal domain.Principal) (bool, error) {
	return c.reader.CheckEstateMode(ctx, principal)
}
