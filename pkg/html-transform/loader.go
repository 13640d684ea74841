package htmltransform

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// Loader fetches the assets referenced by a document.
// It returns the content and its content type, which may be empty.
type Loader interface {
	Load(ctx context.Context, u *url.URL) ([]byte, string, error)
}

// FileLoader loads `file:` URLs from the local filesystem.
type FileLoader struct{}

func (FileLoader) Load(ctx context.Context, u *url.URL) ([]byte, string, error) {
	if u.Scheme != "file" {
		return nil, "", fmt.Errorf("FileLoader cannot load %s", u)
	}
	b, err := os.ReadFile(filepath.FromSlash(u.Path))
	if err != nil {
		return nil, "", err
	}
	return b, mime.TypeByExtension(path.Ext(u.Path)), nil
}

// HTTPLoader loads assets with GET requests.
type HTTPLoader struct {
	// The default client is used if nil.
	Client *http.Client
}

func (l HTTPLoader) Load(ctx context.Context, u *url.URL) ([]byte, string, error) {
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, "", err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("Unexpected status %d for %s", res.StatusCode, u)
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, "", err
	}
	return b, res.Header.Get("Content-Type"), nil
}

// SchemeLoader picks a loader by URL scheme.
type SchemeLoader map[string]Loader

func (s SchemeLoader) Load(ctx context.Context, u *url.URL) ([]byte, string, error) {
	if l, ok := s[u.Scheme]; ok {
		return l.Load(ctx, u)
	}
	return nil, "", fmt.Errorf("No loader for scheme %q", u.Scheme)
}

// DefaultLoader loads `file:`, `http:` and `https:` URLs.
func DefaultLoader() Loader {
	return SchemeLoader{
		"file":  FileLoader{},
		"http":  HTTPLoader{},
		"https": HTTPLoader{},
	}
}
