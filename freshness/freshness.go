// Package freshness derives and evaluates the freshness window of cached documents.
//
// Freshness information that cannot be parsed never fails a request: it degrades
// to "no freshness", which makes the cache revalidate with the origin.
package freshness

import (
	"math"
	"net/http"
	"strings"
	"time"
)

// Metadata is the freshness-related information of an origin response.
type Metadata struct {
	ETag         string
	Date         time.Time
	Expires      time.Time
	CacheControl string
	// MaxAge is the freshness lifetime in whole seconds.
	// Zero means no freshness, negative means already stale.
	MaxAge int64
	// CachedAt is the reference time the lifetime counts from:
	// the Date header if valid, the time of receipt otherwise.
	CachedAt time.Time
}

// Derive computes the freshness metadata of a response with the given headers,
// received at the given time.
//
// The lifetime is taken from the first match of:
//   - the max-age Cache-Control directive,
//   - the Expires header minus the reference time,
//   - zero.
func Derive(header http.Header, received time.Time) Metadata {
	md := Metadata{
		ETag:         header.Get("ETag"),
		CacheControl: strings.Join(header.Values("Cache-Control"), ", "),
		CachedAt:     received,
	}
	if date, err := HttpDate(header.Get("Date")); err == nil {
		md.Date = date
		md.CachedAt = date
	}
	if expires, err := HttpDate(header.Get("Expires")); err == nil {
		md.Expires = expires
	}

	if maxAge, ok := ParseCacheControl(header.Values("Cache-Control")...).MaxAge(); ok {
		md.MaxAge = maxAge
	} else if !md.Expires.IsZero() {
		md.MaxAge = int64(math.Floor(md.Expires.Sub(md.CachedAt).Seconds()))
	}
	return md
}

// Remaining returns the number of whole seconds left of a freshness lifetime
// that started at cachedAt, and whether the lifetime still holds at now.
// A lifetime of zero or less is never fresh.
func Remaining(maxAge int64, cachedAt, now time.Time) (int64, bool) {
	if maxAge <= 0 || cachedAt.IsZero() {
		return 0, false
	}
	elapsed := now.Sub(cachedAt).Seconds()
	// a Date from a skewed origin clock must not extend the lifetime
	if elapsed < 0 {
		elapsed = 0
	}
	if elapsed >= float64(maxAge) {
		return 0, false
	}
	return int64(math.Floor(float64(maxAge) - elapsed)), true
}
