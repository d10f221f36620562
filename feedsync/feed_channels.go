package feedsync

import (
	"context"
	"sync"

	"github.com/Luismorlan/hexfeed/model"
	"github.com/google/uuid"
)

// FeedChannels contains every open feed watcher. Each watcher holds at most
// the latest state, an older undelivered one is replaced.
type FeedChannels struct {
	// connectionMap maps a watcher id to its channel. Entries are deleted and
	// their channel closed once the watcher's context is done or the feed
	// subscription failed.
	connectionMap map[string]chan model.FeedState

	// Adding/Removing a watcher must grab the write lock, pushing a state
	// grabs the read lock.
	mu sync.RWMutex

	// onEmpty runs, without any lock held, after a context cleanup removed
	// the last watcher.
	onEmpty func()
}

func NewFeedChannels(onEmpty func()) *FeedChannels {
	return &FeedChannels{
		connectionMap: make(map[string]chan model.FeedState),
		onEmpty:       onEmpty,
	}
}

// cleanUp a single watcher when its context terminates.
func (fc *FeedChannels) cleanUp(ctx context.Context, chId string) {
	<-ctx.Done()

	fc.mu.Lock()
	ch, ok := fc.connectionMap[chId]
	if ok {
		delete(fc.connectionMap, chId)
		close(ch)
	}
	empty := len(fc.connectionMap) == 0
	fc.mu.Unlock()

	if ok && empty && fc.onEmpty != nil {
		fc.onEmpty()
	}
}

// Thread-safe
func (fc *FeedChannels) AddNewConnection(ctx context.Context) (<-chan model.FeedState, string) {
	chId := "feed_channel_" + uuid.New().String()
	ch := make(chan model.FeedState, 1)

	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.connectionMap[chId] = ch

	// Spin up a background garbage collector.
	go fc.cleanUp(ctx, chId)

	return ch, chId
}

// Thread-safe
func (fc *FeedChannels) GetActiveConnectionsCount() int {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	return len(fc.connectionMap)
}

func replaceLatest(ch chan model.FeedState, state model.FeedState) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- state:
	default:
	}
}

// PushToAll delivers state to every watcher. Callers serialize pushes.
func (fc *FeedChannels) PushToAll(state model.FeedState) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	for _, ch := range fc.connectionMap {
		replaceLatest(ch, state)
	}
}

// Thread-safe
func (fc *FeedChannels) PushToSingleChannel(state model.FeedState, chId string) {
	fc.mu.RLock()
	defer fc.mu.RUnlock()
	if ch, ok := fc.connectionMap[chId]; ok {
		replaceLatest(ch, state)
	}
}

// CloseAll pushes a final state and detaches every watcher.
func (fc *FeedChannels) CloseAll(final model.FeedState) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	for chId, ch := range fc.connectionMap {
		replaceLatest(ch, final)
		close(ch)
		delete(fc.connectionMap, chId)
	}
}
