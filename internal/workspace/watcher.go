package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for activity to settle.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reports batches of changed workspace paths.
type Watcher struct {
	ws       *Local
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger
}

// NewWatcher registers every non-ignored directory under the root.
func NewWatcher(ws *Local, debounce time.Duration) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w := &Watcher{
		ws:       ws,
		watcher:  fw,
		debounce: debounce,
		logger:   ws.logger.Named("watcher"),
	}

	if err := w.addTree(ws.Root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.ws.Root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.ws.ShouldIgnore(rel) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return fmt.Errorf("adding directory to watcher: %w", err)
		}
		return nil
	})
}

// Run delivers debounced batches of root-relative paths to handle until ctx
// is done. Paths in a batch are sorted and unique.
func (w *Watcher) Run(ctx context.Context, handle func(paths []string)) error {
	pending := make(map[string]bool)
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			rel, keep := w.handleEvent(event)
			if !keep {
				continue
			}
			pending[rel] = true
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := make([]string, 0, len(pending))
			for p := range pending {
				batch = append(batch, p)
			}
			sort.Strings(batch)
			pending = make(map[string]bool)
			handle(batch)
		}
	}
}

// handleEvent filters one fsnotify event and starts watching new directories.
func (w *Watcher) handleEvent(event fsnotify.Event) (string, bool) {
	rel, err := filepath.Rel(w.ws.Root, event.Name)
	if err != nil {
		w.logger.Error("getting relative path", zap.Error(err))
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || w.ws.ShouldIgnore(rel) {
		return "", false
	}

	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watching new directory", zap.String("path", rel), zap.Error(err))
			}
		}
	}

	w.logger.Debug("workspace event", zap.String("path", rel), zap.String("op", event.Op.String()))
	return rel, true
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
