// Package rootwatcher reports files changing below a directory root,
// by the key the transform cache stores them under.
package rootwatcher

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher monitors a directory tree and calls a function for every changed file.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	rootDir   string
	onChange  func(key string)
	log       zerolog.Logger
	stop      chan struct{}
	done      chan struct{}
}

// New starts watching rootDir and all its subdirectories.
// onChange is called from the watcher goroutine.
func New(rootDir string, onChange func(key string), logger zerolog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsWatcher: fsw,
		rootDir:   abs,
		onChange:  onChange,
		log:       logger.With().Str("component", "root-watcher").Logger(),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	// fsnotify does not watch subdirectories
	if err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	go w.run()
	return w, nil
}

func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(p)
	})
}

func (w *Watcher) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
					continue
				}
			}
			for _, key := range w.Keys(event.Name) {
				w.log.Debug().Str("file", event.Name).Str("key", key).Msg("File changed")
				w.onChange(key)
			}
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("Watch error")
		}
	}
}

// Keys returns the cache keys a file is served under:
// its path relative to the root, and the directory path for index files.
func (w *Watcher) Keys(file string) []string {
	rel, err := filepath.Rel(w.rootDir, file)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return nil
	}
	key := "/" + filepath.ToSlash(rel)
	keys := []string{key}
	if path.Base(key) == "index.html" {
		keys = append(keys, strings.TrimSuffix(key, "index.html"))
	}
	return keys
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.stop)
	err := w.fsWatcher.Close()
	<-w.done
	return err
}
