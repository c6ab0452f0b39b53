package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects dispatched events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []Event
	fail   func(Event) error
}

func (r *recorder) handle(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	if r.fail != nil {
		return r.fail(ev)
	}
	return nil
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) count(kind EventKind) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

func isTxt(path string) bool {
	return strings.HasSuffix(path, ".txt")
}

func startWatcher(t *testing.T, root string, supported func(string) bool, handler Handler) {
	t.Helper()

	w, err := New(80*time.Millisecond, supported, handler)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := w.Watch(ctx, root); err != nil {
			t.Errorf("watch failed: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// Let fsnotify finish registering before the test mutates the tree.
	time.Sleep(50 * time.Millisecond)
}

func TestWatcherDebounceCoalesces(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, isTxt, rec.handle)

	path := filepath.Join(root, "doc.txt")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		return rec.count(EventUpsert) == 1
	}, 2*time.Second, 20*time.Millisecond, "rapid writes must settle into one upsert")

	// No further writes: still exactly one event after the debounce window.
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, 1, rec.count(EventUpsert))

	events := rec.snapshot()
	require.NotEmpty(t, events)
	assert.Equal(t, path, events[0].Path)
}

func TestWatcherSeparatePathsSeparateTimers(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, isTxt, rec.handle)

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("b"), 0644))

	require.Eventually(t, func() bool {
		return rec.count(EventUpsert) == 2
	}, 2*time.Second, 20*time.Millisecond, "each path settles independently")
}

func TestWatcherRemoveDispatchedImmediately(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "doomed.txt")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0644))

	rec := &recorder{}
	startWatcher(t, root, isTxt, rec.handle)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ev.Kind == EventRemove && ev.Path == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatcherUnsupportedIgnored(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, isTxt, rec.handle)

	require.NoError(t, os.WriteFile(filepath.Join(root, "binary.dat"), []byte{0, 1, 2}, 0644))

	time.Sleep(300 * time.Millisecond)
	assert.Empty(t, rec.snapshot(), "unsupported extensions never reach the handler")
}

func TestWatcherHandlerErrorKeepsRunning(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{fail: func(ev Event) error {
		if strings.HasSuffix(ev.Path, "bad.txt") {
			return errors.New("ingest failed")
		}
		return nil
	}}
	startWatcher(t, root, isTxt, rec.handle)

	require.NoError(t, os.WriteFile(filepath.Join(root, "bad.txt"), []byte("x"), 0644))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "good.txt"), []byte("y"), 0644))
	require.Eventually(t, func() bool {
		return len(rec.snapshot()) == 2
	}, 2*time.Second, 20*time.Millisecond, "a failing handler must not stop the loop")
}

func TestWatcherSaturatedQueueDoesNotStallRemoves(t *testing.T) {
	w, err := New(50*time.Millisecond, isTxt, func(context.Context, Event) error { return nil })
	require.NoError(t, err)
	defer w.Stop()

	// Fill the queue with no dispatcher draining it.
	for i := 0; i < cap(w.events); i++ {
		w.events <- Event{Path: "fill.txt", Kind: EventUpsert}
	}

	done := make(chan struct{})
	go func() {
		w.handleRawEvent(fsnotify.Event{Name: "gone.txt", Op: fsnotify.Remove})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("remove handling blocked the event loop on a saturated queue")
	}
}

func TestWatcherPicksUpNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	rec := &recorder{}
	startWatcher(t, root, isTxt, rec.handle)

	sub := filepath.Join(root, "nested")
	require.NoError(t, os.Mkdir(sub, 0755))
	time.Sleep(150 * time.Millisecond)

	path := filepath.Join(sub, "inner.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	require.Eventually(t, func() bool {
		for _, ev := range rec.snapshot() {
			if ev.Kind == EventUpsert && ev.Path == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond, "files in directories created after startup are watched")
}
