package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce absorbs the burst of events editors emit for one save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher re-ingests pages under root as they change. Events are handled on
// a single goroutine, so the pipeline never runs concurrently with itself.
type Watcher struct {
	p        *Pipeline
	root     string
	debounce time.Duration
	log      *slog.Logger
	// OnIngest, when set, observes every re-ingested or removed page.
	OnIngest func(path string, s Summary, err error)
}

// MinTick bounds how often pending pages are checked, whatever the debounce.
const MinTick = time.Millisecond

// NewWatcher returns a Watcher that waits debounce after the last event on a
// page before re-ingesting it. A non-positive debounce uses DefaultDebounce.
func NewWatcher(p *Pipeline, root string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{p: p, root: root, debounce: debounce, log: p.log}
}

// Run blocks until ctx is cancelled or the watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.log.Info("ingest watch start", "root", w.root, "debounce", w.debounce)

	tick := time.NewTicker(w.tickInterval())
	defer tick.Stop()
	pending := make(map[string]time.Time)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("ingest watch stop")
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, fw, ev, pending)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("ingest watch error", "error", err)

		case now := <-tick.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.debounce {
					continue
				}
				delete(pending, path)
				s, err := w.p.IngestFile(ctx, w.root, path)
				w.report(path, s, err)
			}
		}
	}
}

func (w *Watcher) tickInterval() time.Duration {
	return max(w.debounce/2, MinTick)
}

func (w *Watcher) handle(ctx context.Context, fw *fsnotify.Watcher, ev fsnotify.Event, pending map[string]time.Time) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(fw, ev.Name); err != nil {
				w.log.Warn("ingest watch: add dir", "path", ev.Name, "error", err)
			}
			return
		}
	}
	if !isMarkdown(ev.Name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
		pending[ev.Name] = time.Now()
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		delete(pending, ev.Name)
		w.report(ev.Name, Summary{Root: w.root}, w.p.RemoveFile(ctx, w.root, ev.Name))
	}
}

func (w *Watcher) report(path string, s Summary, err error) {
	switch {
	case err != nil:
		w.log.Error("ingest watch: page failed", "path", path, "error", err)
	case s.Errors > 0:
		w.log.Warn("ingest watch: page skipped", "path", path, "failures", s.Failures)
	default:
		w.log.Info("ingest watch: page synced", "path", path, "chunks", s.ChunksUpserted)
	}
	if w.OnIngest != nil {
		w.OnIngest(path, s, err)
	}
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ingest: watch %s: %w", dir, err)
	}
	return nil
}
