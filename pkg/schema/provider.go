package schema

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const cacheKey = "schema"

// Provider serves cached schema snapshots. Introspection runs at most once
// per TTL window; concurrent requests share the cached snapshot.
type Provider struct {
	log   *slog.Logger
	cache *ttlcache.Cache[string, Schema]
	load  func(ctx context.Context) (Schema, error)
}

// NewProvider creates a Provider that introspects db and caches the result
// for ttl.
func NewProvider(log *slog.Logger, db *sql.DB, ttl time.Duration) *Provider {
	return newProvider(log, ttl, func(ctx context.Context) (Schema, error) {
		return Introspect(ctx, db)
	})
}

func newProvider(log *slog.Logger, ttl time.Duration, load func(ctx context.Context) (Schema, error)) *Provider {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Provider{
		log: log,
		cache: ttlcache.New(
			ttlcache.WithTTL[string, Schema](ttl),
			ttlcache.WithDisableTouchOnHit[string, Schema](),
		),
		load: load,
	}
}

// FetchSchema returns the cached snapshot, introspecting on a cache miss.
func (p *Provider) FetchSchema(ctx context.Context) (Schema, error) {
	if item := p.cache.Get(cacheKey); item != nil {
		return item.Value(), nil
	}

	start := time.Now()
	s, err := p.load(ctx)
	if err != nil {
		return Schema{}, err
	}
	p.log.Info("schema: snapshot refreshed", "tables", len(s.Tables), "duration", time.Since(start))

	p.cache.Set(cacheKey, s, ttlcache.DefaultTTL)
	return s, nil
}

// Invalidate drops the cached snapshot, forcing the next fetch to
// re-introspect. Used after an ETL load.
func (p *Provider) Invalidate() {
	p.cache.Delete(cacheKey)
}
