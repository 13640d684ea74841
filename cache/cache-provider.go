package cache

import (
	"sync"
	"time"
)

// Provider is an interface for an asset store.
// It stores and retrieves transformed assets keyed by their canonical URL.
// There is no expiry and no eviction: entries live until they are overwritten
// or purged, for as long as the provider itself lives.
//
// Implementations must be thread-safe!
type Provider interface {
	// Get returns the asset stored under the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	Get(key string) (Asset, bool, error)
	// Put stores the asset under its key, replacing any previous asset.
	Put(asset Asset) error
	// Purge removes the asset stored under the given key.
	// Purging a missing key is not an error.
	Purge(key string) error
	// Keys calls the given callback for each stored key.
	Keys(cb func(string)) error
}

// Asset is a single cached asset.
// Bytes are never mutated after the asset has been stored.
type Asset struct {
	Key         string
	Bytes       []byte
	ContentType string
	Encoding    string
	IsText      bool
	// IsInitial is set only for the root document of a request path.
	// Initial assets are revalidated against the origin, others are served from memory.
	IsInitial    bool
	ETag         string
	Date         time.Time
	Expires      time.Time
	CacheControl string
	// MaxAge is the freshness lifetime in seconds. It may be negative.
	MaxAge   int64
	CachedAt time.Time
}

// Valid reports whether the asset has all the fields needed to serve it.
// Incomplete assets must be treated as absent.
func (a Asset) Valid() bool {
	if a.Key == "" || a.ContentType == "" || a.Bytes == nil {
		return false
	}
	if a.IsText && a.Encoding == "" {
		return false
	}
	if a.IsInitial && a.CachedAt.IsZero() {
		return false
	}
	return true
}

// FullContentType returns the content type with the charset appended for text assets.
func (a Asset) FullContentType() string {
	if a.IsText && a.Encoding != "" {
		return a.ContentType + "; charset=" + a.Encoding
	}
	return a.ContentType
}

// Same reports whether b is the very same stored record as a,
// i.e. it has not been overwritten in between.
func (a Asset) Same(b Asset) bool {
	return a.Key == b.Key && a.ETag == b.ETag && a.CachedAt.Equal(b.CachedAt) && len(a.Bytes) == len(b.Bytes)
}

type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]Asset
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]Asset),
	}
}

func (m MemCache) Get(key string) (Asset, bool, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	asset, ok := m.db[key]
	return asset, ok, nil
}

func (m MemCache) Put(asset Asset) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[asset.Key] = asset
	return nil
}

func (m MemCache) Purge(key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

func (m MemCache) Keys(cb func(string)) error {
	m.mutex.RLock()
	keys := make([]string, 0, len(m.db))
	for key := range m.db {
		keys = append(keys, key)
	}
	m.mutex.RUnlock()
	// callback runs unlocked so it may call back into the cache
	for _, key := range keys {
		cb(key)
	}
	return nil
}
