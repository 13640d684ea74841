package transformcache

import (
	"github.com/always-cache/transform-cache/cache"

	"github.com/rs/zerolog"
)

// AssetCache holds the assets of one middleware instance.
// Provider failures never fail a request: they are logged and read as misses.
type AssetCache struct {
	provider cache.Provider
	log      zerolog.Logger
}

// Stats describes the contents of an AssetCache.
type Stats struct {
	Assets  int
	Initial int
	Bytes   int64
}

// Get returns the asset stored under key.
// Incomplete assets are purged and reported as missing.
func (c AssetCache) Get(key string) (cache.Asset, bool) {
	asset, ok, err := c.provider.Get(key)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not read from cache")
		return cache.Asset{}, false
	}
	if !ok {
		return cache.Asset{}, false
	}
	if !asset.Valid() {
		c.log.Warn().Str("key", key).Msg("Incomplete cache entry, treating as miss")
		c.Purge(key)
		return cache.Asset{}, false
	}
	return asset, true
}

func (c AssetCache) Put(asset cache.Asset) {
	if err := c.provider.Put(asset); err != nil {
		c.log.Error().Err(err).Str("key", asset.Key).Msg("Could not write to cache")
		return
	}
	c.log.Trace().
		Str("key", asset.Key).
		Bool("initial", asset.IsInitial).
		Int("bytes", len(asset.Bytes)).
		Msg("Cache write")
}

func (c AssetCache) Purge(key string) {
	if err := c.provider.Purge(key); err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Could not purge cache entry")
		return
	}
	c.log.Trace().Str("key", key).Msg("Cache purge")
}

// PurgeIfUnchanged purges the entry for seen.Key only if it is still the record
// that was seen, so that a newer write by a concurrent request survives.
func (c AssetCache) PurgeIfUnchanged(seen cache.Asset) {
	current, ok, err := c.provider.Get(seen.Key)
	if err != nil || !ok || !current.Same(seen) {
		return
	}
	c.Purge(seen.Key)
}

func (c AssetCache) Stats() (Stats, error) {
	var stats Stats
	err := c.provider.Keys(func(key string) {
		if asset, ok, err := c.provider.Get(key); err == nil && ok {
			stats.Assets++
			stats.Bytes += int64(len(asset.Bytes))
			if asset.IsInitial {
				stats.Initial++
			}
		}
	})
	return stats, err
}
