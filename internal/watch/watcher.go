// Package watch monitors shader sources and their resolved includes for
// changes and triggers debounced rebuilds.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/spp/internal/config"
	"github.com/standardbeagle/spp/internal/debug"
)

// Watcher monitors the file system and invokes a callback with the batch of
// changed paths once events settle.
type Watcher struct {
	watcher   *fsnotify.Watcher
	cfg       *config.Config
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	onChanged func(paths []string)

	mu      sync.Mutex
	watched map[string]bool // directories with active watches
}

// New creates a watcher. onChanged receives each settled batch of changed
// file paths.
func New(cfg *config.Config, onChanged func(paths []string)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		watcher:   fsw,
		cfg:       cfg,
		debouncer: newEventDebouncer(cfg.Debounce()),
		ctx:       ctx,
		cancel:    cancel,
		onChanged: onChanged,
		watched:   make(map[string]bool),
	}
	return w, nil
}

// Add starts watching the directory containing path. Watching the directory
// rather than the file survives editors that replace files on save.
func (w *Watcher) Add(path string) error {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watched[dir] {
		return nil
	}
	if err := w.watcher.Add(dir); err != nil {
		return err
	}
	w.watched[dir] = true
	debug.Logf("watch: added %s", dir)
	return nil
}

// Start begins processing events. Call after the initial Add calls.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go w.processEvents()
	w.wg.Add(1)
	go w.debouncer.run(w.ctx, &w.wg, w.onChanged)
}

// Stop shuts the watcher down and waits for its goroutines to finish.
func (w *Watcher) Stop() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// processEvents drains fsnotify events into the debouncer.
func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			debug.Logf("watch: error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !w.shouldProcessPath(event.Name) {
		return
	}
	debug.Logf("watch: event %v for %s", event.Op, event.Name)
	w.debouncer.addEvent(event.Name)
}

// shouldProcessPath filters events through the configured glob patterns.
// Empty include list matches everything; excludes always win.
func (w *Watcher) shouldProcessPath(path string) bool {
	rel := path
	if r, err := filepath.Rel(w.cfg.Project.Root, path); err == nil {
		rel = filepath.ToSlash(r)
	}
	for _, pattern := range w.cfg.Watch.Exclude {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return false
		}
	}
	if len(w.cfg.Watch.Include) == 0 {
		return true
	}
	for _, pattern := range w.cfg.Watch.Include {
		if matched, err := doublestar.Match(pattern, rel); err == nil && matched {
			return true
		}
	}
	return false
}

// eventDebouncer coalesces bursts of events into one batch per quiet period.
type eventDebouncer struct {
	mu       sync.Mutex
	pending  map[string]bool
	interval time.Duration
	kick     chan struct{}
}

func newEventDebouncer(interval time.Duration) *eventDebouncer {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &eventDebouncer{
		pending:  make(map[string]bool),
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
}

func (d *eventDebouncer) addEvent(path string) {
	d.mu.Lock()
	d.pending[path] = true
	d.mu.Unlock()
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

func (d *eventDebouncer) run(ctx context.Context, wg *sync.WaitGroup, flush func(paths []string)) {
	defer wg.Done()
	timer := time.NewTimer(d.interval)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-d.kick:
			timer.Reset(d.interval)
		case <-timer.C:
			d.mu.Lock()
			if len(d.pending) == 0 {
				d.mu.Unlock()
				continue
			}
			batch := make([]string, 0, len(d.pending))
			for path := range d.pending {
				batch = append(batch, path)
			}
			d.pending = make(map[string]bool)
			d.mu.Unlock()
			flush(batch)
		}
	}
}
