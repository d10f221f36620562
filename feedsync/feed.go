package feedsync

import (
	"context"
	"sync"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
)

var feedOrder = gateway.OrderBy{Field: model.TimestampField, Direction: gateway.Desc}

// Feed keeps the home feed in sync with the posts collection. It holds a
// single live subscription, shared by every watcher: the first Watch opens it
// and it is released once the last watcher is gone.
//
// Each store snapshot replaces the list wholesale. A failed subscription is
// not retried, watchers receive the error state and their channel is closed.
// Watching again opens a new subscription.
type Feed struct {
	store gateway.DocumentStore
	posts gateway.CollectionPath

	mu sync.Mutex
	// state is meaningful only when loaded is set.
	state  model.FeedState
	loaded bool
	// cancel is non-nil while a subscription is open.
	cancel context.CancelFunc
	// gen identifies the current subscription, snapshots of older ones are
	// ignored.
	gen uint64

	channels *FeedChannels
}

func NewFeed(store gateway.DocumentStore) *Feed {
	f := &Feed{
		store: store,
		posts: gateway.Collection(model.PostsCollection),
	}
	f.channels = NewFeedChannels(f.release)
	return f
}

// Watch streams the feed state until ctx is done or the subscription fails.
func (f *Feed) Watch(ctx context.Context) <-chan model.FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch, chId := f.channels.AddNewConnection(ctx)
	if f.cancel == nil {
		f.subscribeLocked()
	} else if f.loaded {
		f.channels.PushToSingleChannel(f.state, chId)
	}
	return ch
}

// Subscribed reports whether a live subscription is open.
func (f *Feed) Subscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

func (f *Feed) ActiveWatchers() int {
	return f.channels.GetActiveConnectionsCount()
}

// Snapshot returns the live state when a subscription has delivered one, and
// otherwise reads the collection once.
func (f *Feed) Snapshot(ctx context.Context) model.FeedState {
	f.mu.Lock()
	if f.cancel != nil && f.loaded {
		defer f.mu.Unlock()
		return f.state
	}
	f.mu.Unlock()

	docs, err := f.store.Query(ctx, f.posts, feedOrder)
	if err != nil {
		Logger.Log.Warnf("one-shot feed read failed: %v", err)
		return model.FeedState{Posts: []*model.Post{}, Error: feedError(err)}
	}
	return feedState(docs)
}

// subscribeLocked must be called with mu held.
func (f *Feed) subscribeLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	f.gen++
	f.cancel = cancel
	f.loaded = false

	snapshots, err := f.store.Listen(ctx, f.posts, feedOrder)
	if err != nil {
		f.failLocked(err)
		return
	}
	go f.consume(f.gen, snapshots)
	Logger.Log.Infoln("feed subscription opened")
}

func (f *Feed) consume(gen uint64, snapshots <-chan gateway.Snapshot) {
	for snapshot := range snapshots {
		f.mu.Lock()
		if gen != f.gen {
			f.mu.Unlock()
			return
		}
		if snapshot.Err != nil {
			f.failLocked(snapshot.Err)
			f.mu.Unlock()
			return
		}
		f.state = feedState(snapshot.Documents)
		f.loaded = true
		f.channels.PushToAll(f.state)
		f.mu.Unlock()
	}
}

// failLocked surfaces err to every watcher and closes the subscription.
func (f *Feed) failLocked(err error) {
	Logger.Log.Errorf("feed subscription failed: %v", err)
	f.closeLocked()
	f.state.Error = feedError(err)
	if f.state.Posts == nil {
		f.state.Posts = []*model.Post{}
	}
	f.channels.CloseAll(f.state)
}

func (f *Feed) closeLocked() {
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
	f.gen++
	f.loaded = false
}

// release closes the subscription once nobody watches anymore.
func (f *Feed) release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.channels.GetActiveConnectionsCount() > 0 || f.cancel == nil {
		return
	}
	f.closeLocked()
	Logger.Log.Infoln("feed subscription released")
}

// feedState decodes a snapshot. Documents that fail to decode are skipped.
func feedState(docs []gateway.Document) model.FeedState {
	posts := make([]*model.Post, 0, len(docs))
	for _, doc := range docs {
		post, err := decodePost(doc)
		if err != nil {
			Logger.Log.Warnf("skipping undecodable post %s: %v", doc.Id(), err)
			continue
		}
		posts = append(posts, post)
	}
	state := model.FeedState{Posts: posts}
	if len(posts) == 0 {
		state.Error = model.FeedErrorNoPublication
	}
	return state
}

func decodePost(doc gateway.Document) (*model.Post, error) {
	var post model.Post
	if err := doc.DataTo(&post); err != nil {
		return nil, err
	}
	if post.Id == "" {
		post.Id = doc.Id()
	}
	return &post, nil
}
