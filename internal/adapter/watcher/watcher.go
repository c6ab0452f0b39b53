package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lgreg1908/papa-rag/internal/logger"
)

// EventKind classifies a settled filesystem change.
type EventKind int

const (
	// EventUpsert means a file was created or modified and should be
	// (re-)ingested.
	EventUpsert EventKind = iota
	// EventRemove means a file was deleted or renamed away and its chunks
	// should be dropped.
	EventRemove
)

// Event is one settled change for a path.
type Event struct {
	Path string
	Kind EventKind
}

// Handler consumes settled events. A failing handler is logged; it never
// stops the watch loop.
type Handler func(ctx context.Context, ev Event) error

// Watcher observes a directory tree, coalesces rapid successive writes to
// the same path with a per-path debounce timer, and dispatches one event
// per settled change. Raw fsnotify events go through an internal queue so
// debounce logic stays out of the fsnotify callback path.
type Watcher struct {
	debounce  time.Duration
	supported func(path string) bool
	handler   Handler

	fsw    *fsnotify.Watcher
	events chan Event

	timerMu sync.Mutex
	timers  map[string]*time.Timer

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// New creates a watcher. supported filters paths by file type; handler
// receives settled events.
func New(debounce time.Duration, supported func(path string) bool, handler Handler) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &Watcher{
		debounce:  debounce,
		supported: supported,
		handler:   handler,
		fsw:       fsw,
		events:    make(chan Event, 64),
		timers:    make(map[string]*time.Timer),
		stopped:   make(chan struct{}),
	}, nil
}

// Watch observes root and all its subdirectories until ctx is canceled or
// Stop is called. In-flight dispatches finish before Watch returns.
func (w *Watcher) Watch(ctx context.Context, root string) error {
	if err := w.addRecursive(root); err != nil {
		return err
	}

	w.wg.Add(1)
	go w.dispatchLoop(ctx)

	defer func() {
		w.Stop()
		w.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.stopped:
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleRawEvent(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// Stop terminates the watch loop. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		w.fsw.Close()

		w.timerMu.Lock()
		for path, timer := range w.timers {
			timer.Stop()
			delete(w.timers, path)
		}
		w.timerMu.Unlock()
	})
}

// addRecursive registers root and every subdirectory with fsnotify.
func (w *Watcher) addRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if err := w.fsw.Add(path); err != nil {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}
		}
		return nil
	})
}

// handleRawEvent routes one fsnotify event: new directories extend the
// watch, supported files are debounced, everything else is ignored.
func (w *Watcher) handleRawEvent(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(ev.Name); err != nil {
				logger.Warn("failed to watch new directory %s: %v", ev.Name, err)
			}
			return
		}
	}

	if w.supported != nil && !w.supported(ev.Name) {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		// Deletions are not debounced; there is nothing to coalesce and a
		// pending upsert timer for the path is obsolete. Enqueued off the
		// event loop so a saturated queue never stalls fsnotify intake.
		w.cancelTimer(ev.Name)
		go w.enqueue(Event{Path: ev.Name, Kind: EventRemove})
	case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
		w.debouncePath(ev.Name)
	}
}

// debouncePath (re)arms the path's timer; the event is enqueued only after
// writes to the path settle for the debounce interval. Timers are per path
// and independent.
func (w *Watcher) debouncePath(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if timer, ok := w.timers[path]; ok {
		timer.Reset(w.debounce)
		return
	}

	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.timerMu.Lock()
		delete(w.timers, path)
		w.timerMu.Unlock()

		w.enqueue(Event{Path: path, Kind: EventUpsert})
	})
}

func (w *Watcher) cancelTimer(path string) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if timer, ok := w.timers[path]; ok {
		timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) enqueue(ev Event) {
	select {
	case w.events <- ev:
	case <-w.stopped:
	}
}

// dispatchLoop consumes settled events and invokes the handler. Handler
// failures are logged and the loop keeps observing; an in-flight handler
// call always runs to completion before shutdown.
func (w *Watcher) dispatchLoop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopped:
			return
		case ev := <-w.events:
			if err := w.handler(ctx, ev); err != nil {
				logger.Error("failed to process %s: %v", ev.Path, err)
			}
		}
	}
}
