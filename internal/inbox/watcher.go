package inbox

import (
	"context"
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultExts are the photo types picked up from an inbox (lowercase, no dot)
var DefaultExts = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"gif":  {},
	"heic": {},
	"heif": {},
	"pdf":  {},
}

// DefaultDebounce is how long a file must stay quiet before it is emitted.
// Phones and sync clients write photos in several chunks.
const DefaultDebounce = 500 * time.Millisecond

// WatchConfig configures an inbox watcher
type WatchConfig struct {
	Roots       []string // directories to watch, recursively
	AllowedExts map[string]struct{}
	InitialScan bool          // emit files already present at start
	Debounce    time.Duration // zero means DefaultDebounce
}

// Watch emits the path of every photo created or written under the roots.
// A file rewritten with the same content is not emitted again.
// Both channels are closed once ctx is cancelled.
func Watch(ctx context.Context, cfg WatchConfig) (<-chan string, <-chan error, error) {
	if len(cfg.Roots) == 0 {
		return nil, nil, errors.New("no roots provided")
	}
	if cfg.AllowedExts == nil {
		cfg.AllowedExts = DefaultExts
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	var existing []string
	for _, root := range cfg.Roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return w.Add(path)
			}
			if cfg.InitialScan && allowed(path, cfg.AllowedExts) {
				existing = append(existing, path)
			}
			return nil
		})
		if err != nil {
			slog.Error("Failed to watch inbox", "root", root, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	paths := make(chan string, 64)
	errs := make(chan error, 1)

	go func() {
		defer close(paths)
		defer close(errs)
		defer w.Close()

		// last emitted content digest per path
		emitted := map[string][sha256.Size]byte{}

		emit := func(p string) bool {
			sum, err := digest(p)
			if err != nil {
				slog.Warn("Failed to read inbox file", "path", p, "error", err)
				return true
			}
			if prev, ok := emitted[p]; ok && prev == sum {
				slog.Debug("Skipping unchanged inbox file", "path", p)
				return true
			}
			emitted[p] = sum

			select {
			case paths <- p:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for _, p := range existing {
			if !emit(p) {
				return
			}
		}

		pending := map[string]time.Time{}
		ticker := time.NewTicker(cfg.Debounce / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) {
					if info, err := os.Stat(e.Name); err == nil && info.IsDir() {
						if err := w.Add(e.Name); err != nil {
							slog.Warn("Failed to watch new directory", "path", e.Name, "error", err)
						}
						continue
					}
				}
				if allowed(e.Name, cfg.AllowedExts) && (e.Has(fsnotify.Create) || e.Has(fsnotify.Write)) {
					pending[e.Name] = time.Now()
				}
			case <-ticker.C:
				for p, last := range pending {
					if time.Since(last) < cfg.Debounce {
						continue
					}
					delete(pending, p)
					if !emit(p) {
						return
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Error("Inbox watcher error", "error", err)
				select {
				case errs <- err:
				default:
				}
			}
		}
	}()

	return paths, errs, nil
}

func digest(path string) ([sha256.Size]byte, error) {
	var sum [sha256.Size]byte
	f, err := os.Open(path)
	if err != nil {
		return sum, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return sum, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

func allowed(path string, exts map[string]struct{}) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false // editor and sync temp files
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	_, ok := exts[ext]
	return ok
}
