package main

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	transformcache "github.com/always-cache/transform-cache"
	"github.com/always-cache/transform-cache/cache"
	htmltransform "github.com/always-cache/transform-cache/pkg/html-transform"
	rootwatcher "github.com/always-cache/transform-cache/pkg/root-watcher"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// adminPath serves cache statistics (GET) and purges keys (DELETE).
const adminPath = "/.transform-cache"

type server struct {
	http.Handler
	tc      *transformcache.TransformCache
	closers []func() error
}

// newServer wires the transform cache in front of the configured origin.
func newServer(config Config, logger zerolog.Logger) (*server, error) {
	s := &server{}

	var origin http.Handler
	var loader htmltransform.Loader
	if config.Dir != "" {
		origin = fileOrigin(config.Dir, config.Files.CacheControl)
		loader = htmltransform.FileLoader{}
	} else {
		proxy, transport, err := reverseProxy(config.Origin, config.Host)
		if err != nil {
			return nil, err
		}
		origin = proxy
		loader = htmltransform.SchemeLoader{
			"http":  htmltransform.HTTPLoader{Client: &http.Client{Transport: transport}},
			"https": htmltransform.HTTPLoader{Client: &http.Client{Transport: transport}},
		}
	}

	var provider cache.Provider
	if config.Provider == providerSQLite {
		sqlite, err := cache.NewSQLiteCache()
		if err != nil {
			return nil, err
		}
		provider = sqlite
		s.closers = append(s.closers, sqlite.Close)
	}

	transformer, err := htmltransform.New(htmltransform.Options{
		Root:         config.Root,
		Loader:       loader,
		StaticDir:    config.Transform.StaticDir,
		CacheControl: config.Transform.CacheControl,
		Marker:       config.Transform.Marker,
		Logger:       &logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}

	tcConfig := transformcache.Config{
		Root:      config.Root,
		Transform: transformer.Transform,
		Debug:     config.Debug,
		Cache:     provider,
		Logger:    &logger,
	}
	if len(config.Filter) > 0 {
		tcConfig.Filter = config.Filter
	}
	s.tc, err = transformcache.New(tcConfig)
	if err != nil {
		s.Close()
		return nil, err
	}

	if config.Files.Watch {
		watcher, err := rootwatcher.New(config.Dir, s.tc.Purge, logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, watcher.Close)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(logger))
	r.Use(hlog.RequestIDHandler("req_id", "X-Request-Id"))
	r.Use(hlog.AccessHandler(logRequest))
	r.Get(adminPath, s.stats)
	r.Delete(adminPath, s.purge)
	r.Group(func(r chi.Router) {
		r.Use(s.tc.Middleware)
		r.Handle("/*", origin)
	})
	s.Handler = r
	return s, nil
}

// Close releases the provider and stops watching.
func (s *server) Close() error {
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tc.Stats()
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Could not read stats")
		http.Error(w, "Could not read stats", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"assets":    stats.Assets,
		"documents": stats.Initial,
		"bytes":     stats.Bytes,
		"size":      humanize.Bytes(uint64(stats.Bytes)),
	})
}

func (s *server) purge(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "Missing key", http.StatusBadRequest)
		return
	}
	s.tc.Purge(key)
	hlog.FromRequest(r).Info().Str("key", key).Msg("Purged")
	w.WriteHeader(http.StatusNoContent)
}

func logRequest(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Debug().
		Str("method", r.Method).
		Str("url", r.URL.String()).
		Str("sourceIp", r.RemoteAddr).
		Int("status", status).
		Str("size", humanize.Bytes(uint64(size))).
		Dur("duration", duration).
		Msg("Request")
}

func reverseProxy(origin, host string) (*httputil.ReverseProxy, http.RoundTripper, error) {
	originURL, err := url.Parse(origin)
	if err != nil {
		return nil, nil, err
	}
	if originURL.Host == "" {
		return nil, nil, fmt.Errorf("Origin %s has no host", origin)
	}
	hostHeader := originURL.Host
	transport := http.DefaultTransport
	if host != "" {
		hostHeader = host
		transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				ServerName: host,
			},
		}
	}
	return &httputil.ReverseProxy{
		Director:  createDirector(originURL.Scheme, originURL.Host, hostHeader),
		Transport: transport,
	}, transport, nil
}

func createDirector(scheme, host, hostHeader string) func(req *http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = scheme
		req.URL.Host = host
		if hostHeader != "" {
			req.Host = hostHeader
		}
	}
}

// fileOrigin serves a directory, with ETags so that stored documents can be revalidated.
func fileOrigin(dir, cacheControl string) http.Handler {
	files := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := filepath.Join(dir, filepath.FromSlash(path.Clean("/"+r.URL.Path)))
		info, err := os.Stat(name)
		if err == nil && info.IsDir() {
			info, err = os.Stat(filepath.Join(name, "index.html"))
		}
		if err == nil {
			w.Header().Set("ETag", fmt.Sprintf(`"%x-%x"`, info.ModTime().UnixNano(), info.Size()))
			if cacheControl != "" {
				w.Header().Set("Cache-Control", cacheControl)
			}
		}
		files.ServeHTTP(w, r)
	})
}
