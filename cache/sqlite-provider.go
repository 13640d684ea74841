package cache

import (
	"database/sql"
	"errors"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/rs/xid"
)

// SQLiteCache stores assets in a private in-memory SQLite database.
// Every instance gets its own database, which disappears with the process.
type SQLiteCache struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteCache creates a new cache backed by a fresh in-memory db.
func NewSQLiteCache() (SQLiteCache, error) {
	dsn := "file:" + xid.New().String() + "?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return SQLiteCache{}, err
	}
	// the database lives only as long as a connection to it is open
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS assets (
		key TEXT PRIMARY KEY,
		bytes BLOB NOT NULL,
		content_type TEXT,
		encoding TEXT,
		is_text INTEGER,
		is_initial INTEGER,
		etag TEXT,
		date INTEGER,
		expires INTEGER,
		cache_control TEXT,
		max_age INTEGER,
		cached_at INTEGER
	)`)
	if err != nil {
		db.Close()
		return SQLiteCache{}, err
	}
	return SQLiteCache{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s SQLiteCache) Get(key string) (Asset, bool, error) {
	var (
		asset                             Asset
		isText, isInitial                 int
		date, expires, cachedAt           int64
		contentType, encoding, etag, ccHd sql.NullString
	)
	err := s.db.QueryRow(`SELECT
		key, bytes, content_type, encoding, is_text, is_initial, etag,
		date, expires, cache_control, max_age, cached_at
		FROM assets WHERE key = ?`, key).Scan(
		&asset.Key, &asset.Bytes, &contentType, &encoding, &isText, &isInitial, &etag,
		&date, &expires, &ccHd, &asset.MaxAge, &cachedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Asset{}, false, nil
	}
	if err != nil {
		return Asset{}, false, err
	}
	if asset.Bytes == nil {
		asset.Bytes = []byte{}
	}
	asset.ContentType = contentType.String
	asset.Encoding = encoding.String
	asset.ETag = etag.String
	asset.CacheControl = ccHd.String
	asset.IsText = isText != 0
	asset.IsInitial = isInitial != 0
	asset.Date = fromUnixNano(date)
	asset.Expires = fromUnixNano(expires)
	asset.CachedAt = fromUnixNano(cachedAt)
	return asset, true, nil
}

func (s SQLiteCache) Put(asset Asset) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	bts := asset.Bytes
	if bts == nil {
		bts = []byte{}
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO assets
		(key, bytes, content_type, encoding, is_text, is_initial, etag,
		date, expires, cache_control, max_age, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.Key, bts, asset.ContentType, asset.Encoding, boolToInt(asset.IsText), boolToInt(asset.IsInitial),
		asset.ETag, toUnixNano(asset.Date), toUnixNano(asset.Expires), asset.CacheControl,
		asset.MaxAge, toUnixNano(asset.CachedAt))
	return err
}

func (s SQLiteCache) Purge(key string) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()
	_, err := s.db.Exec("DELETE FROM assets WHERE key = ?", key)
	return err
}

func (s SQLiteCache) Keys(cb func(string)) error {
	rows, err := s.db.Query("SELECT key FROM assets")
	if err != nil {
		return err
	}
	// collect first: the single connection is busy until rows are closed
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			rows.Close()
			return err
		}
		keys = append(keys, key)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return err
	}
	for _, key := range keys {
		cb(key)
	}
	return nil
}

// Close releases the database, dropping all stored assets.
func (s SQLiteCache) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// zero times are stored as 0 so they read back as zero times
func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
