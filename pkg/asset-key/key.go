package assetkey

import (
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

var (
	ErrorEmptyRoot   = fmt.Errorf("Root is empty")
	ErrorOutsideRoot = fmt.Errorf("URL is outside of root")
)

// ParseRoot parses the root that request and asset URLs are resolved against.
// The root is either an absolute URL or a filesystem path, which is turned into a `file:` URL.
// The returned URL always has a path ending in a slash.
func ParseRoot(root string) (*url.URL, error) {
	if root == "" {
		return nil, ErrorEmptyRoot
	}
	u, err := url.Parse(root)
	// a one-letter scheme is a windows drive letter
	if err != nil || len(u.Scheme) < 2 {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		u = &url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	} else if u.Scheme != "file" && u.Host == "" {
		return nil, fmt.Errorf("Root %s has no host", root)
	}
	u.RawQuery = ""
	u.Fragment = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.RawPath = ""
	return u, nil
}

// FromRequest returns the cache key for an incoming request.
// The key is the request URI, so query strings make distinct entries.
func FromRequest(r *http.Request) string {
	return r.URL.RequestURI()
}

// Resolve returns the absolute URL of a request URI below the root.
// The URI is taken as relative to the root even when it starts with a slash,
// so that roots with a path (like directories) keep it.
func Resolve(root *url.URL, requestURI string) (*url.URL, error) {
	ref, err := url.Parse("./" + strings.TrimLeft(requestURI, "/"))
	if err != nil {
		return nil, err
	}
	resolved := root.ResolveReference(ref)
	if !strings.HasPrefix(resolved.String(), root.String()) {
		return nil, ErrorOutsideRoot
	}
	return resolved, nil
}

// FromAssetURL returns the cache key of an asset produced by a transform,
// which is its path relative to the root, starting with a slash.
// The boolean is false for assets outside of the root; those cannot be served.
func FromAssetURL(root *url.URL, assetURL string) (string, bool) {
	prefix := root.String()
	if !strings.HasPrefix(assetURL, prefix) {
		return "", false
	}
	return "/" + strings.TrimPrefix(assetURL, prefix), true
}
