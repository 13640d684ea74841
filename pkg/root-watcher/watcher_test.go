package rootwatcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitForKey(t *testing.T, keys <-chan string, want string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case key := <-keys:
			if key == want {
				return
			}
		case <-timeout:
			t.Fatalf("No change reported for %s", want)
		}
	}
}

func TestKeys(t *testing.T) {
	w := &Watcher{rootDir: "/srv/www"}
	tests := []struct {
		file string
		keys []string
	}{
		{"/srv/www/a.html", []string{"/a.html"}},
		{"/srv/www/docs/index.html", []string{"/docs/index.html", "/docs/"}},
		{"/srv/www/index.html", []string{"/index.html", "/"}},
		{"/srv/other/a.html", nil},
		{"/srv/www", nil},
	}
	for _, tt := range tests {
		keys := w.Keys(tt.file)
		if len(keys) != len(tt.keys) {
			t.Fatalf("Keys for %s are %v", tt.file, keys)
		}
		for i := range keys {
			if keys[i] != tt.keys[i] {
				t.Fatalf("Keys for %s are %v", tt.file, keys)
			}
		}
	}
}

func TestReportsChanges(t *testing.T) {
	dir := t.TempDir()
	keys := make(chan string, 100)
	w, err := New(dir, func(key string) { keys <- key }, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForKey(t, keys, "/")

	sub := filepath.Join(dir, "docs")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// give the watcher time to pick up the new directory
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(sub, "page.html"), []byte("b"), 0o644); err != nil {
		t.Fatal(err)
	}
	waitForKey(t, keys, "/docs/page.html")
}

func TestMissingRoot(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "nope"), func(string) {}, zerolog.Nop()); err == nil {
		t.Fatal("Missing root accepted")
	}
}
