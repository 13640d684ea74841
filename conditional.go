package transformcache

import (
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/always-cache/transform-cache/cache"
)

const defaultCharset = "iso-8859-1"

// acceptsHTML reports whether the client accepts an HTML document.
// A request without an Accept header accepts anything.
func acceptsHTML(r *http.Request) bool {
	values := r.Header.Values("Accept")
	if len(values) == 0 {
		return true
	}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			mediaRange, params, err := mime.ParseMediaType(strings.TrimSpace(part))
			if err != nil {
				continue
			}
			if q, ok := params["q"]; ok {
				if weight, err := strconv.ParseFloat(q, 64); err != nil || weight <= 0 {
					continue
				}
			}
			switch mediaRange {
			case "text/html", "text/*", "*/*":
				return true
			}
		}
	}
	return false
}

// htmlCharset returns the charset of an HTML content type.
// The second return value is false for anything that is not HTML.
func htmlCharset(contentType string) (string, bool) {
	if contentType == "" {
		return "", false
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "text/html" {
		return "", false
	}
	if charset := params["charset"]; charset != "" {
		return charset, true
	}
	return defaultCharset, true
}

// rewriteConditional prepares the forwarded request.
// If-Modified-Since is always removed since stored documents carry no Last-Modified.
// If a stored document has an ETag and the client did not send its own If-None-Match,
// one is added and true is returned.
func rewriteConditional(r *http.Request, stored cache.Asset, cached bool) bool {
	r.Header.Del("If-Modified-Since")
	if !cached || stored.ETag == "" || r.Header.Get("If-None-Match") != "" {
		return false
	}
	r.Header.Set("If-None-Match", stored.ETag)
	return true
}

// etagMatches compares the If-None-Match values of a request to an ETag,
// using the weak comparison function.
func etagMatches(r *http.Request, etag string) bool {
	if etag == "" {
		return false
	}
	for _, value := range r.Header.Values("If-None-Match") {
		for _, tag := range strings.Split(value, ",") {
			tag = strings.TrimSpace(tag)
			if tag == "*" || weak(tag) == weak(etag) {
				return true
			}
		}
	}
	return false
}

func weak(etag string) string {
	return strings.TrimPrefix(etag, "W/")
}
