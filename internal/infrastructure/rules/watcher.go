package rules

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/macrolens/grocer/internal/domain"
)

// defaultDebounce collapses the burst of events one editor save produces.
const defaultDebounce = 200 * time.Millisecond

// Watcher serves the rule set from a file and reloads it when the file
// changes. A reload that fails to parse or validate keeps the previous set.
type Watcher struct {
	path     string
	current  atomic.Pointer[domain.RuleSet]
	watcher  *fsnotify.Watcher
	debounce time.Duration
	reloads  atomic.Int64
	onReload func(domain.RuleSet, error)
}

// NewWatcher loads path once and starts watching its directory. Editors
// often replace files rather than write them, so the directory is watched
// and events are filtered by name.
func NewWatcher(path string) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving rule file path: %w", err)
	}
	set, err := Load(abs)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(abs), err)
	}

	w := &Watcher{path: abs, watcher: fw, debounce: defaultDebounce}
	w.current.Store(&set)
	return w, nil
}

// Current returns the latest valid rule set
func (w *Watcher) Current() domain.RuleSet {
	return *w.current.Load()
}

// Reloads returns how many successful reloads happened
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Run processes file events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[RULES] watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	set, err := Load(w.path)
	if err != nil {
		log.Printf("[RULES] reload of %s rejected, keeping previous rules: %v", w.path, err)
	} else {
		w.current.Store(&set)
		w.reloads.Add(1)
		log.Printf("[RULES] reloaded %s: %d rules", w.path, len(set.Spec.Rules))
	}
	if w.onReload != nil {
		w.onReload(set, err)
	}
}
