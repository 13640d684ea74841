package transformcache

import (
	"context"

	"github.com/always-cache/transform-cache/freshness"
)

// TransformFunc runs the expensive transformation of a document.
// It is called at most once per cache miss, from the goroutine serving the request.
// It must return a graph containing the (possibly rewritten) initial document,
// or an error.
type TransformFunc func(ctx context.Context, in Input) (*Graph, error)

// Input is the document handed to a transform.
type Input struct {
	Bytes []byte
	// Absolute URL of the document, resolved against the root.
	URL string
	// Charset from the origin Content-Type, iso-8859-1 if none was given.
	Charset     string
	ContentType string
	IsInitial   bool
	// Freshness information of the origin response.
	freshness.Metadata
}

// Asset returns the input as an unmodified initial asset,
// as a starting point for transforms.
func (in Input) Asset() Asset {
	return Asset{
		URL:         in.URL,
		IsInitial:   true,
		Bytes:       in.Bytes,
		ContentType: in.ContentType,
		IsText:      true,
		Encoding:    in.Charset,
	}
}

// Asset is an asset produced by a transform.
type Asset struct {
	// Absolute URL of the asset. Assets are served from memory under their path
	// relative to the root, so derived assets outside the root are not served.
	URL string
	// Inline assets live inside another asset and are not served on their own.
	IsInline  bool
	IsInitial bool
	Bytes     []byte
	// Media type without parameters.
	ContentType string
	IsText      bool
	// Charset of text assets.
	Encoding string
	// Optional. Derived assets without an ETag get one computed from their content.
	ETag string
	// Optional Cache-Control header for derived assets.
	CacheControl string
}

// Graph is the result of a transform.
type Graph struct {
	Assets []Asset
}

// Initial returns the initial document of the graph.
func (g *Graph) Initial() (Asset, bool) {
	if g == nil {
		return Asset{}, false
	}
	for _, a := range g.Assets {
		if a.IsInitial {
			return a, true
		}
	}
	return Asset{}, false
}
