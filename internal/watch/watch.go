// Package watch turns raw filesystem change events into batches of
// Events for a ChangeHandler, debounced the way ckb's own
// internal/watcher.Debouncer coalesces a burst of edits into one
// (spec.md §9's "no fast/slow-path logic in the watcher itself" --
// classification stays the edit committer's job).
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"gemcheck/internal/logging"
)

// EventType mirrors ckb's own watcher event taxonomy.
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// Event is one filesystem change.
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// ChangeHandler receives a debounced batch of events.
type ChangeHandler func(events []Event)

// Config controls debounce delay and path filtering.
type Config struct {
	DebounceDelay  time.Duration
	IgnorePatterns []string
}

// DefaultConfig mirrors ckb's own watcher defaults.
func DefaultConfig() Config {
	return Config{
		DebounceDelay: 500 * time.Millisecond,
		IgnorePatterns: []string{
			"*.log", "*.tmp", "node_modules/**", ".git/**", "vendor/**",
		},
	}
}

// Watcher is the interface a caller can depend on, so it can be
// swapped for a fake in tests without pulling in fsnotify.
type Watcher interface {
	Watch(roots []string) error
	Close() error
}

// FSNotifyWatcher watches a set of directory trees with fsnotify,
// debouncing bursts of events into a single ChangeHandler call
// (grounded on michaelbomholt665-code-watch's internal/watcher.Watcher,
// which wraps fsnotify the same way).
type FSNotifyWatcher struct {
	fsw     *fsnotify.Watcher
	config  Config
	handler ChangeHandler
	logger  *logging.Logger

	mu      sync.Mutex
	pending map[string]Event
	timer   *time.Timer

	done chan struct{}
	wg   sync.WaitGroup
}

// NewFSNotifyWatcher constructs a watcher that calls handler with a
// debounced batch of events whenever the watched trees change.
func NewFSNotifyWatcher(config Config, logger *logging.Logger, handler ChangeHandler) (*FSNotifyWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FSNotifyWatcher{
		fsw:     fsw,
		config:  config,
		handler: handler,
		logger:  logger,
		pending: make(map[string]Event),
		done:    make(chan struct{}),
	}, nil
}

// Watch recursively adds every directory under each root to the
// underlying fsnotify watch set and starts the event loop.
func (w *FSNotifyWatcher) Watch(roots []string) error {
	for _, root := range roots {
		if err := w.watchRecursive(root); err != nil {
			return err
		}
	}
	w.wg.Add(1)
	go w.run()
	return nil
}

func (w *FSNotifyWatcher) watchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *FSNotifyWatcher) shouldIgnore(path string) bool {
	for _, pattern := range w.config.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
			return true
		}
		if strings.Contains(path, strings.TrimSuffix(pattern, "/**")) && strings.HasSuffix(pattern, "/**") {
			return true
		}
	}
	return false
}

func (w *FSNotifyWatcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(ev.Name) {
				continue
			}
			w.schedule(toEvent(ev))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", map[string]interface{}{"error": err.Error()})
		case <-w.done:
			return
		}
	}
}

func toEvent(ev fsnotify.Event) Event {
	var t EventType
	switch {
	case ev.Op&fsnotify.Create != 0:
		t = EventCreate
	case ev.Op&fsnotify.Remove != 0:
		t = EventDelete
	case ev.Op&fsnotify.Rename != 0:
		t = EventRename
	default:
		t = EventModify
	}
	return Event{Type: t, Path: ev.Name, Timestamp: time.Now()}
}

// schedule coalesces same-path events and resets the debounce timer,
// the same single-in-flight-closure pattern as ckb's
// internal/watcher.Debouncer.Trigger.
func (w *FSNotifyWatcher) schedule(ev Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[ev.Path] = ev
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.config.DebounceDelay, w.flush)
}

func (w *FSNotifyWatcher) flush() {
	w.mu.Lock()
	events := make([]Event, 0, len(w.pending))
	for _, ev := range w.pending {
		events = append(events, ev)
	}
	w.pending = make(map[string]Event)
	w.timer = nil
	w.mu.Unlock()

	if len(events) > 0 && w.handler != nil {
		w.handler(events)
	}
}

// Close stops the event loop and releases the underlying fsnotify
// watcher.
func (w *FSNotifyWatcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}
