package transformcache

import (
	"fmt"
	"time"

	"github.com/always-cache/transform-cache/cache"
	"github.com/always-cache/transform-cache/freshness"
	assetkey "github.com/always-cache/transform-cache/pkg/asset-key"
	interceptor "github.com/always-cache/transform-cache/pkg/response-interceptor"

	"github.com/cespare/xxhash/v2"
)

// input builds the transform input from a captured origin response.
func (t *TransformCache) input(ic *interceptor.ResponseInterceptor, p pending) (Input, error) {
	u, err := assetkey.Resolve(t.root, p.key)
	if err != nil {
		return Input{}, err
	}
	body := ic.Body()
	if body == nil {
		body = []byte{}
	}
	return Input{
		Bytes:       body,
		URL:         u.String(),
		Charset:     p.charset,
		ContentType: "text/html",
		IsInitial:   true,
		Metadata:    freshness.Derive(ic.Header(), t.now()),
	}, nil
}

// store registers the assets of a transform result.
// Derived assets are stored under their path relative to the root, the initial
// document under the request key together with the freshness of the origin response.
// It returns the stored initial document.
func (t *TransformCache) store(key string, in Input, graph *Graph) cache.Asset {
	now := t.now()
	for _, a := range graph.Assets {
		if a.IsInline || a.IsInitial {
			continue
		}
		assetKey, ok := assetkey.FromAssetURL(t.root, a.URL)
		if !ok {
			t.log.Trace().Str("url", a.URL).Msg("Derived asset outside root, not stored")
			continue
		}
		t.assets.Put(derived(assetKey, a, now))
	}

	initial, _ := graph.Initial()
	stored := cache.Asset{
		Key:          key,
		Bytes:        initial.Bytes,
		ContentType:  orDefault(initial.ContentType, in.ContentType),
		Encoding:     orDefault(initial.Encoding, in.Charset),
		IsText:       true,
		IsInitial:    true,
		ETag:         in.ETag,
		Date:         in.Date,
		Expires:      in.Expires,
		CacheControl: in.CacheControl,
		MaxAge:       in.MaxAge,
		CachedAt:     in.CachedAt,
	}
	if stored.Bytes == nil {
		stored.Bytes = []byte{}
	}
	t.assets.Put(stored)
	return stored
}

func derived(key string, a Asset, now time.Time) cache.Asset {
	asset := cache.Asset{
		Key:          key,
		Bytes:        a.Bytes,
		ContentType:  orDefault(a.ContentType, "application/octet-stream"),
		IsText:       a.IsText,
		ETag:         a.ETag,
		CacheControl: a.CacheControl,
		CachedAt:     now,
	}
	if asset.Bytes == nil {
		asset.Bytes = []byte{}
	}
	if asset.IsText {
		asset.Encoding = orDefault(a.Encoding, "utf-8")
	}
	if asset.ETag == "" {
		asset.ETag = contentETag(asset.Bytes)
	}
	return asset
}

// contentETag returns a strong ETag computed from the content.
func contentETag(b []byte) string {
	return fmt.Sprintf("\"%016x\"", xxhash.Sum64(b))
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
