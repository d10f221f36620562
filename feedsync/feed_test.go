package feedsync

import (
	"context"
	"testing"
	"time"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postTitles(posts []*model.Post) []string {
	res := []string{}
	for _, p := range posts {
		res = append(res, p.Title)
	}
	return res
}

func TestFeedEmptySnapshotIsNoPublication(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	feed := NewFeed(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	state := receiveState(t, feed.Watch(ctx))
	assert.Equal(t, model.FeedErrorNoPublication, state.Error)
	assert.Empty(t, state.Posts)
}

func TestFeedSnapshotReplacesListInDescendingOrder(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	feed := NewFeed(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := feed.Watch(ctx)
	assert.Equal(t, model.FeedErrorNoPublication, receiveState(t, ch).Error)

	seedPost(t, store, "a", "first", 100)
	state := receiveState(t, ch)
	assert.Equal(t, model.FeedErrorNone, state.Error)
	assert.Equal(t, []string{"first"}, postTitles(state.Posts))

	seedPost(t, store, "c", "third", 300)
	seedPost(t, store, "b", "second", 200)
	// Conflated snapshots may skip the intermediate list.
	for len(state.Posts) != 3 {
		state = receiveState(t, ch)
	}
	assert.Equal(t, model.FeedErrorNone, state.Error)
	assert.Equal(t, []string{"third", "second", "first"}, postTitles(state.Posts))
}

func TestFeedSubscriptionFailure(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want model.FeedError
	}{
		{"network", errors.Wrap(gateway.ErrUnavailable, "listen"), model.FeedErrorNoNetwork},
		{"unknown", errors.New("internal"), model.FeedErrorUnknown},
		{"permission", gateway.ErrPermissionDenied, model.FeedErrorUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := gateway.NewFakeDocumentStore()
			seedPost(t, store, "a", "first", 100)
			feed := NewFeed(store)

			ch := feed.Watch(context.Background())
			assert.Len(t, receiveState(t, ch).Posts, 1)

			store.BreakListeners(c.err)
			state := receiveState(t, ch)
			assert.Equal(t, c.want, state.Error)

			// The stream is closed and not retried.
			_, open := <-ch
			assert.False(t, open)
			assert.False(t, feed.Subscribed())
			assert.Eventually(t, func() bool { return store.ActiveListeners() == 0 }, time.Second, 10*time.Millisecond)
		})
	}
}

func TestFeedListenFailure(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	store.Fail(gateway.OpListen, gateway.ErrUnavailable)
	feed := NewFeed(store)

	ch := feed.Watch(context.Background())
	assert.Equal(t, model.FeedErrorNoNetwork, receiveState(t, ch).Error)
	_, open := <-ch
	assert.False(t, open)

	// Watching again is the retry.
	store.Fail(gateway.OpListen, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Equal(t, model.FeedErrorNoPublication, receiveState(t, feed.Watch(ctx)).Error)
	assert.True(t, feed.Subscribed())
}

func TestFeedSubscriptionIsSharedAndReleased(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	seedPost(t, store, "a", "first", 100)
	feed := NewFeed(store)

	ctx1, cancel1 := context.WithCancel(context.Background())
	ctx2, cancel2 := context.WithCancel(context.Background())

	receiveState(t, feed.Watch(ctx1))
	// A late watcher gets the current state right away.
	late := receiveState(t, feed.Watch(ctx2))
	assert.Equal(t, []string{"first"}, postTitles(late.Posts))

	assert.Equal(t, 2, feed.ActiveWatchers())
	assert.Equal(t, 1, store.ActiveListeners())

	cancel1()
	assert.Eventually(t, func() bool { return feed.ActiveWatchers() == 1 }, time.Second, 10*time.Millisecond)
	assert.True(t, feed.Subscribed())

	cancel2()
	assert.Eventually(t, func() bool { return !feed.Subscribed() }, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return store.ActiveListeners() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFeedOneShotSnapshot(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	feed := NewFeed(store)
	ctx := context.Background()

	assert.Equal(t, model.FeedErrorNoPublication, feed.Snapshot(ctx).Error)

	seedPost(t, store, "a", "old", 1)
	seedPost(t, store, "b", "new", 2)
	state := feed.Snapshot(ctx)
	assert.Equal(t, []string{"new", "old"}, postTitles(state.Posts))
	assert.Equal(t, 0, store.ActiveListeners())

	store.Fail(gateway.OpQuery, gateway.ErrUnavailable)
	state = feed.Snapshot(ctx)
	assert.Equal(t, model.FeedErrorNoNetwork, state.Error)
	require.NotNil(t, state.Posts)
	assert.Empty(t, state.Posts)
}

func TestFeedSnapshotUsesLiveState(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	seedPost(t, store, "a", "first", 1)
	feed := NewFeed(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	receiveState(t, feed.Watch(ctx))
	// Queries fail but the subscription already holds the state.
	store.Fail(gateway.OpQuery, gateway.ErrUnavailable)
	assert.Equal(t, []string{"first"}, postTitles(feed.Snapshot(context.Background()).Posts))
}
