package transformcache

import (
	"net/http"
	"strings"

	"github.com/always-cache/transform-cache/cache"
	interceptor "github.com/always-cache/transform-cache/pkg/response-interceptor"
)

// pending holds what is known about a request on its way to the origin.
type pending struct {
	key       string
	stored    cache.Asset
	cached    bool
	synthetic bool
	charset   string
}

// forward sends the request to next and handles its response.
func (t *TransformCache) forward(w http.ResponseWriter, r *http.Request, next http.Handler, p pending) {
	ic := interceptor.New(w, func(status int, h http.Header) interceptor.Action {
		return t.classify(r, &p, status, h)
	})
	next.ServeHTTP(ic, r)

	action := ic.Finish()
	t.log.Trace().Str("key", p.key).Int("status", ic.StatusCode()).Stringer("action", action).Msg("Origin responded")
	switch action {
	case interceptor.Discard:
		t.serveRevalidated(w, r, ic.Header(), p)
	case interceptor.Capture:
		t.transformAndServe(w, r, ic, p)
	}
}

// classify decides what to do with the origin response once its header is known.
func (t *TransformCache) classify(r *http.Request, p *pending, status int, h http.Header) interceptor.Action {
	if etag := h.Get("ETag"); p.cached && etag != "" && etag != p.stored.ETag {
		t.log.Trace().Str("key", p.key).Str("etag", etag).Msg("Document changed at origin, purging")
		t.assets.PurgeIfUnchanged(p.stored)
	}

	if status == http.StatusNotModified {
		if p.synthetic {
			return interceptor.Discard
		}
		t.tag(h, OutcomePassThroughHit)
		t.logResponse(r, OutcomePassThroughHit, status)
		return interceptor.PassThrough
	}

	// only complete documents are transformed
	if status != http.StatusOK || r.Method == http.MethodHead {
		return interceptor.PassThrough
	}
	if ce := h.Get("Content-Encoding"); ce != "" && !strings.EqualFold(ce, "identity") {
		t.log.Trace().Str("key", p.key).Str("encoding", ce).Msg("Encoded response, not transforming")
		return interceptor.PassThrough
	}
	if charset, ok := htmlCharset(h.Get("Content-Type")); ok {
		p.charset = charset
		h.Del("Content-Length")
		return interceptor.Capture
	}
	return interceptor.PassThrough
}

// serveRevalidated serves the stored document after the origin confirmed it with a 304.
func (t *TransformCache) serveRevalidated(w http.ResponseWriter, r *http.Request, origin http.Header, p pending) {
	h := w.Header()
	copyHeader(h, origin)
	h.Del("Content-Length")
	h.Set("Content-Type", p.stored.FullContentType())
	t.tag(h, OutcomeRevalidatedHit)
	t.logResponse(r, OutcomeRevalidatedHit, http.StatusOK)
	writeBody(w, r, http.StatusOK, p.stored.Bytes)
}

// transformAndServe runs the transform on a captured document,
// stores the results and serves the transformed document.
func (t *TransformCache) transformAndServe(w http.ResponseWriter, r *http.Request, ic *interceptor.ResponseInterceptor, p pending) {
	origin := ic.Header()
	in, err := t.input(ic, p)
	if err != nil {
		t.errorHandler(w, r, &TransformError{URL: p.key, Err: err})
		return
	}

	t.log.Trace().Str("url", in.URL).Int("bytes", len(in.Bytes)).Msg("Transforming")
	graph, err := t.transform(r.Context(), in)
	if err == nil {
		if _, ok := graph.Initial(); !ok {
			err = ErrNoInitialAsset
		}
	}
	if err != nil {
		t.errorHandler(w, r, &TransformError{URL: in.URL, Err: err})
		return
	}

	stored := t.store(p.key, in, graph)

	h := w.Header()
	copyHeader(h, origin)
	// the origin content type is kept unless the transform changed the encoding
	if !strings.EqualFold(stored.Encoding, in.Charset) {
		h.Set("Content-Type", stored.FullContentType())
	}
	t.tag(h, OutcomeMiss)
	t.logResponse(r, OutcomeMiss, http.StatusOK)
	writeBody(w, r, http.StatusOK, stored.Bytes)
}
