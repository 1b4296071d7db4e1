package checklist

import (
	"context"
	"time"

	"github.com/dukerupert/checkmate"
	"github.com/patrickmn/go-cache"
)

// Compile-time check that Cache implements checkmate.TemplateProvider.
var _ checkmate.TemplateProvider = (*Cache)(nil)

const currentKey = "\x00current"

// Cache is a read-through cache in front of a TemplateProvider.
//
// Templates are immutable per version, so entries only leave the cache when
// they expire or are invalidated explicitly after a template file changes.
// Lookup failures are never cached.
type Cache struct {
	next  checkmate.TemplateProvider
	cache *cache.Cache
}

// NewCache wraps next. A ttl of zero keeps entries until invalidated.
func NewCache(next checkmate.TemplateProvider, ttl time.Duration) *Cache {
	expiration := cache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = 2 * ttl
	}
	return &Cache{
		next:  next,
		cache: cache.New(expiration, cleanup),
	}
}

func (c *Cache) Template(ctx context.Context, version string) (*checkmate.Template, error) {
	if cached, found := c.cache.Get(version); found {
		if t, ok := cached.(*checkmate.Template); ok {
			return t, nil
		}
	}

	t, err := c.next.Template(ctx, version)
	if err != nil {
		return nil, err
	}
	c.cache.Set(version, t, cache.DefaultExpiration)
	return t, nil
}

func (c *Cache) CurrentVersion(ctx context.Context) (string, error) {
	if cached, found := c.cache.Get(currentKey); found {
		if v, ok := cached.(string); ok {
			return v, nil
		}
	}

	v, err := c.next.CurrentVersion(ctx)
	if err != nil {
		return "", err
	}
	c.cache.Set(currentKey, v, cache.DefaultExpiration)
	return v, nil
}

// Invalidate drops the cached template for one version.
func (c *Cache) Invalidate(version string) {
	c.cache.Delete(version)
}

// InvalidateAll drops every cached template and the current version.
func (c *Cache) InvalidateAll() {
	c.cache.Flush()
}
