package signin

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// watchers fans machine snapshots out to every open Watch call. Each watcher
// holds at most the latest snapshot, older undelivered ones are dropped.
type watchers struct {
	// channels maps a watcher id to its channel. Entries are removed, and
	// their channel closed, once the watcher's context is done.
	channels map[string]chan Snapshot

	// Adding/removing a watcher grabs the write lock, pushing grabs the read
	// lock.
	mu sync.RWMutex
}

func newWatchers() *watchers {
	return &watchers{channels: make(map[string]chan Snapshot)}
}

func (w *watchers) cleanUp(ctx context.Context, id string) {
	<-ctx.Done()

	w.mu.Lock()
	defer w.mu.Unlock()

	if ch, ok := w.channels[id]; ok {
		delete(w.channels, id)
		close(ch)
	}
}

// Thread-safe
func (w *watchers) add(ctx context.Context, initial Snapshot) <-chan Snapshot {
	id := "signin_watcher_" + uuid.New().String()
	ch := make(chan Snapshot, 1)
	ch <- initial

	w.mu.Lock()
	defer w.mu.Unlock()
	w.channels[id] = ch

	go w.cleanUp(ctx, id)
	return ch
}

// Thread-safe
func (w *watchers) count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.channels)
}

// push must be called with the machine lock held so that pushes are ordered.
func (w *watchers) push(s Snapshot) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	for _, ch := range w.channels {
		select {
		case ch <- s:
			continue
		default:
		}
		// Replace the stale snapshot nobody has read yet.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}
