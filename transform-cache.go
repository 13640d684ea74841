package transformcache

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/always-cache/transform-cache/cache"
	"github.com/always-cache/transform-cache/freshness"
	assetkey "github.com/always-cache/transform-cache/pkg/asset-key"
	urlfilter "github.com/always-cache/transform-cache/pkg/url-filter"

	"github.com/rs/zerolog"
)

type Config struct {
	// Base URL that request and asset URLs are resolved against.
	// A filesystem path is accepted as well. Mandatory.
	Root string
	// Transform run for every document fetched from the origin. Mandatory.
	Transform TransformFunc
	// Add the outcome header to responses.
	Debug bool
	// Optional filter restricting which URLs are transformed.
	// All URLs are transformed if nil.
	Filter urlfilter.Filter
	// Storage for assets. An in-memory map is used if nil.
	Cache cache.Provider
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// Optional handler for failed transforms. Nothing has been written to the client when it is called.
	// The default logs the error and responds with 502 Bad Gateway.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)
}

// TransformCache is an HTTP middleware running a transform on HTML documents
// and keeping the results in memory.
type TransformCache struct {
	root         *url.URL
	transform    TransformFunc
	debug        bool
	filter       urlfilter.Filter
	assets       AssetCache
	log          zerolog.Logger
	errorHandler func(http.ResponseWriter, *http.Request, error)
	now          func() time.Time
}

// New creates a transform cache instance.
// Every instance has its own store.
func New(config Config) (*TransformCache, error) {
	if config.Root == "" {
		return nil, ErrMissingRoot
	}
	if config.Transform == nil {
		return nil, ErrMissingTransform
	}
	root, err := assetkey.ParseRoot(config.Root)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidRoot, config.Root, err)
	}

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	logger = logger.With().
		Str("root", root.String()).
		Logger()

	provider := config.Cache
	if provider == nil {
		provider = cache.NewMemCache()
	}

	t := &TransformCache{
		root:      root,
		transform: config.Transform,
		debug:     config.Debug,
		filter:    config.Filter,
		assets:    AssetCache{provider: provider, log: logger},
		log:       logger,
		now:       time.Now,
	}
	t.errorHandler = config.ErrorHandler
	if t.errorHandler == nil {
		t.errorHandler = t.defaultErrorHandler
	}
	return t, nil
}

// Middleware wraps next, which acts as the origin.
func (t *TransformCache) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.serve(w, r, next)
	})
}

// Purge removes the asset stored under key, e.g. "/index.html".
func (t *TransformCache) Purge(key string) {
	t.assets.Purge(key)
}

func (t *TransformCache) Stats() (Stats, error) {
	return t.assets.Stats()
}

func (t *TransformCache) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	key := assetkey.FromRequest(r)
	stored, cached := t.assets.Get(key)

	// derived assets are served regardless of the filter
	if cached && !stored.IsInitial {
		t.serveFromMemory(w, r, stored)
		return
	}

	if reason := t.shouldBypass(r); reason != "" {
		t.log.Trace().Str("key", key).Str("reason", reason).Msg("Bypassing")
		next.ServeHTTP(w, r)
		return
	}

	if cached {
		if remaining, fresh := freshness.Remaining(stored.MaxAge, stored.CachedAt, t.now()); fresh {
			t.serveFresh(w, r, stored, remaining)
			return
		}
	}

	// the forwarded request gets rewritten conditional headers
	fwd := r.Clone(r.Context())
	// transforms need an identity body
	fwd.Header.Del("Accept-Encoding")
	synthetic := rewriteConditional(fwd, stored, cached)
	t.forward(w, fwd, next, pending{
		key:       key,
		stored:    stored,
		cached:    cached,
		synthetic: synthetic,
	})
}

func (t *TransformCache) shouldBypass(r *http.Request) string {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return "method"
	}
	if t.filter != nil && !t.filter.Match(r.URL) {
		return "filter"
	}
	if !acceptsHTML(r) {
		return "accept"
	}
	return ""
}

// serveFromMemory serves a derived asset.
func (t *TransformCache) serveFromMemory(w http.ResponseWriter, r *http.Request, asset cache.Asset) {
	h := w.Header()
	h.Set("Content-Type", asset.FullContentType())
	if asset.ETag != "" {
		h.Set("ETag", asset.ETag)
	}
	if asset.CacheControl != "" {
		h.Set("Cache-Control", asset.CacheControl)
	}
	t.log.Trace().Str("key", asset.Key).Msg("Serving derived asset")
	if etagMatches(r, asset.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeBody(w, r, http.StatusOK, asset.Bytes)
}

// serveFresh serves a stored document without contacting the origin.
func (t *TransformCache) serveFresh(w http.ResponseWriter, r *http.Request, asset cache.Asset, remaining int64) {
	h := w.Header()
	h.Set("Content-Type", asset.FullContentType())
	if !asset.Expires.IsZero() {
		h.Set("Expires", freshness.ToHttpDate(asset.Expires))
	}
	if asset.CacheControl != "" {
		h.Set("Cache-Control", freshness.ReplaceMaxAge(asset.CacheControl, remaining))
	}
	if asset.ETag != "" {
		h.Set("ETag", asset.ETag)
	}
	t.tag(h, OutcomeHit)
	if etagMatches(r, asset.ETag) {
		t.logResponse(r, OutcomeHit, http.StatusNotModified)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	t.logResponse(r, OutcomeHit, http.StatusOK)
	writeBody(w, r, http.StatusOK, asset.Bytes)
}

func (t *TransformCache) defaultErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	t.log.Error().Err(err).Str("url", r.URL.String()).Msg("Could not transform response")
	http.Error(w, "Could not transform response", http.StatusBadGateway)
}

// writeBody writes a complete response. HEAD responses get no body.
func writeBody(w http.ResponseWriter, r *http.Request, status int, body []byte) {
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(body)
	}
}

// copyHeader adds all headers from src to dst.
func copyHeader(dst, src http.Header) {
	for k, vv := range src {
		for _, v := range vv {
			dst.Add(k, v)
		}
	}
}
