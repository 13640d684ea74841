// Package htmltransform is a transform for the transform cache.
// It moves the stylesheets, scripts and images a document references into
// content-addressed files that can be cached forever, rewrites the references,
// and re-encodes the document as UTF-8.
package htmltransform

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	transformcache "github.com/always-cache/transform-cache"
	assetkey "github.com/always-cache/transform-cache/pkg/asset-key"

	"github.com/cespare/xxhash/v2"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	DefaultStaticDir    = "static"
	DefaultCacheControl = "public, max-age=31536000"
)

type Options struct {
	// Root the documents are served from. Fingerprinted assets are placed below it. Mandatory.
	Root string
	// Loader for referenced assets. DefaultLoader is used if nil.
	Loader Loader
	// Directory below the root for fingerprinted assets.
	StaticDir string
	// Cache-Control of fingerprinted assets.
	CacheControl string
	// Optional text of a comment appended to every document.
	Marker string
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
}

type Transformer struct {
	root         *url.URL
	loader       Loader
	staticDir    string
	cacheControl string
	marker       string
	log          zerolog.Logger
}

func New(opts Options) (*Transformer, error) {
	root, err := assetkey.ParseRoot(opts.Root)
	if err != nil {
		return nil, err
	}
	var logger zerolog.Logger
	if opts.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *opts.Logger
	}
	tr := &Transformer{
		root:         root,
		loader:       opts.Loader,
		staticDir:    strings.Trim(opts.StaticDir, "/"),
		cacheControl: opts.CacheControl,
		marker:       opts.Marker,
		log:          logger.With().Str("component", "html-transform").Logger(),
	}
	if tr.loader == nil {
		tr.loader = DefaultLoader()
	}
	if tr.staticDir == "" {
		tr.staticDir = DefaultStaticDir
	}
	if tr.cacheControl == "" {
		tr.cacheControl = DefaultCacheControl
	}
	return tr, nil
}

// Transform implements transformcache.TransformFunc.
func (tr *Transformer) Transform(ctx context.Context, in transformcache.Input) (*transformcache.Graph, error) {
	text := tr.decode(in.Bytes, in.Charset)
	doc, err := html.Parse(bytes.NewReader(text))
	if err != nil {
		return nil, fmt.Errorf("Could not parse %s: %w", in.URL, err)
	}
	base, err := url.Parse(in.URL)
	if err != nil {
		return nil, err
	}

	w := &walker{
		tr:     tr,
		ctx:    ctx,
		doc:    in.URL,
		base:   base,
		loaded: map[string]transformcache.Asset{},
		failed: map[string]bool{},
	}
	w.walk(doc)
	if tr.marker != "" {
		doc.AppendChild(&html.Node{Type: html.CommentNode, Data: " " + tr.marker + " "})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	initial := in.Asset()
	initial.Bytes = buf.Bytes()
	initial.Encoding = "utf-8"

	graph := &transformcache.Graph{Assets: []transformcache.Asset{initial}}
	for _, src := range w.order {
		graph.Assets = append(graph.Assets, w.loaded[src])
	}
	graph.Assets = append(graph.Assets, w.inline...)

	tr.log.Debug().
		Str("url", in.URL).
		Str("in", humanize.Bytes(uint64(len(in.Bytes)))).
		Str("out", humanize.Bytes(uint64(len(initial.Bytes)))).
		Int("assets", len(w.order)).
		Msg("Transformed document")
	return graph, nil
}

// decode converts a document to UTF-8.
// Unknown charsets are read as UTF-8.
func (tr *Transformer) decode(b []byte, charset string) []byte {
	if charset == "" || strings.EqualFold(charset, "utf-8") {
		return b
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		tr.log.Warn().Str("charset", charset).Msg("Unknown charset, reading as UTF-8")
		return b
	}
	text, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		tr.log.Warn().Err(err).Str("charset", charset).Msg("Could not decode, reading as UTF-8")
		return b
	}
	return text
}

// fingerprint turns loaded content into an asset named after its hash.
func (tr *Transformer) fingerprint(src *url.URL, body []byte, contentType string) transformcache.Asset {
	ext := path.Ext(src.Path)
	if contentType == "" {
		contentType = mime.TypeByExtension(ext)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "application/octet-stream"
	}
	hash := fmt.Sprintf("%016x", xxhash.Sum64(body))
	asset := transformcache.Asset{
		URL:          tr.root.ResolveReference(&url.URL{Path: tr.staticDir + "/" + hash + ext}).String(),
		Bytes:        body,
		ContentType:  mediaType,
		IsText:       isText(mediaType),
		ETag:         `"` + hash + `"`,
		CacheControl: tr.cacheControl,
	}
	if asset.IsText {
		asset.Encoding = params["charset"]
		if asset.Encoding == "" {
			asset.Encoding = "utf-8"
		}
	}
	return asset
}

// reference returns the path a document uses to refer to an asset.
func (tr *Transformer) reference(asset transformcache.Asset) string {
	key, _ := assetkey.FromAssetURL(tr.root, asset.URL)
	return key
}

func isText(mediaType string) bool {
	switch mediaType {
	case "application/javascript", "application/json", "image/svg+xml":
		return true
	}
	return strings.HasPrefix(mediaType, "text/")
}

type walker struct {
	tr      *Transformer
	ctx     context.Context
	doc     string
	base    *url.URL
	hasBase bool
	loaded  map[string]transformcache.Asset
	failed  map[string]bool
	order   []string
	inline  []transformcache.Asset
}

func (w *walker) walk(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Base:
			w.setBase(n)
		case atom.Meta:
			rewriteCharset(n)
		case atom.Link:
			if rel := strings.ToLower(attr(n, "rel")); strings.Contains(rel, "stylesheet") || strings.Contains(rel, "icon") {
				w.rewrite(n, "href")
			}
		case atom.Script:
			if attr(n, "src") != "" {
				w.rewrite(n, "src")
			} else {
				w.addInline(n, "text/javascript")
			}
		case atom.Img:
			w.rewrite(n, "src")
		case atom.Style:
			w.addInline(n, "text/css")
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c)
	}
}

// setBase applies the first <base href>.
func (w *walker) setBase(n *html.Node) {
	if w.hasBase {
		return
	}
	if ref, err := url.Parse(strings.TrimSpace(attr(n, "href"))); err == nil && attr(n, "href") != "" {
		w.base = w.resolve(ref)
		w.hasBase = true
	}
}

// resolve resolves a reference against the document.
// Root-absolute paths are taken relative to the root, like request paths.
func (w *walker) resolve(ref *url.URL) *url.URL {
	if ref.Scheme == "" && ref.Host == "" && strings.HasPrefix(ref.Path, "/") {
		if u, err := assetkey.Resolve(w.tr.root, ref.String()); err == nil {
			return u
		}
	}
	return w.base.ResolveReference(ref)
}

// rewrite replaces a reference to an asset below the root with its fingerprinted path.
func (w *walker) rewrite(n *html.Node, key string) {
	i := attrIndex(n, key)
	if i < 0 {
		return
	}
	ref, err := url.Parse(strings.TrimSpace(n.Attr[i].Val))
	if err != nil || ref.Scheme == "data" || n.Attr[i].Val == "" {
		return
	}
	src := w.resolve(ref)
	src.Fragment = ""
	if !strings.HasPrefix(src.String(), w.tr.root.String()) {
		w.tr.log.Trace().Str("src", src.String()).Msg("Asset outside root, not rewritten")
		return
	}

	id := src.String()
	if w.failed[id] {
		return
	}
	asset, ok := w.loaded[id]
	if !ok {
		body, contentType, err := w.tr.loader.Load(w.ctx, src)
		if err != nil {
			w.tr.log.Warn().Err(err).Str("src", id).Str("document", w.doc).Msg("Could not load asset")
			w.failed[id] = true
			return
		}
		asset = w.tr.fingerprint(src, body, contentType)
		w.loaded[id] = asset
		w.order = append(w.order, id)
	}
	n.Attr[i].Val = w.tr.reference(asset)
}

func (w *walker) addInline(n *html.Node, contentType string) {
	if n.FirstChild == nil || n.FirstChild.Type != html.TextNode {
		return
	}
	w.inline = append(w.inline, transformcache.Asset{
		URL:         fmt.Sprintf("%s#inline-%d", w.doc, len(w.inline)),
		IsInline:    true,
		Bytes:       []byte(n.FirstChild.Data),
		ContentType: contentType,
		IsText:      true,
		Encoding:    "utf-8",
	})
}

// rewriteCharset makes <meta> charset declarations match the UTF-8 output.
func rewriteCharset(n *html.Node) {
	if i := attrIndex(n, "charset"); i >= 0 {
		n.Attr[i].Val = "utf-8"
		return
	}
	if strings.EqualFold(attr(n, "http-equiv"), "content-type") {
		if i := attrIndex(n, "content"); i >= 0 {
			n.Attr[i].Val = "text/html; charset=utf-8"
		}
	}
}

func attrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, key) {
			return i
		}
	}
	return -1
}

func attr(n *html.Node, key string) string {
	if i := attrIndex(n, key); i >= 0 {
		return n.Attr[i].Val
	}
	return ""
}
