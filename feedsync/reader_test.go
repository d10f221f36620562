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

func TestGetPost(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	reader := NewReader(store)
	ctx := context.Background()

	post, found, err := reader.GetPost(ctx, "missing")
	assert.Nil(t, err)
	assert.False(t, found)
	assert.Nil(t, post)

	seeded := seedPost(t, store, "p1", "hello", 42)
	post, found, err = reader.GetPost(ctx, "p1")
	require.Nil(t, err)
	assert.True(t, found)
	assert.Equal(t, seeded, post)

	store.Fail(gateway.OpGet, gateway.ErrUnavailable)
	_, found, err = reader.GetPost(ctx, "p1")
	assert.False(t, found)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, gateway.NetworkUnavailable, failure.Kind)
}

func TestComments(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	reader := NewReader(store)
	ctx := context.Background()

	comments, err := reader.Comments(ctx, "p1")
	require.Nil(t, err)
	require.NotNil(t, comments)
	assert.Empty(t, comments)

	path := gateway.Collection(model.PostsCollection).Doc("p1").Sub(model.CommentsCollection)
	require.Nil(t, store.Set(ctx, path.Doc("c2"), model.Comment{Id: "c2", PostId: "p1", Text: "second", Timestamp: 20}))
	require.Nil(t, store.Set(ctx, path.Doc("c1"), model.Comment{Id: "c1", PostId: "p1", Text: "first", Timestamp: 10}))

	comments, err = reader.Comments(ctx, "p1")
	require.Nil(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)

	store.Fail(gateway.OpQuery, errors.New("boom"))
	comments, err = reader.Comments(ctx, "p1")
	require.NotNil(t, comments)
	assert.Empty(t, comments)
	var failure *Failure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, gateway.Unknown, failure.Kind)
	assert.Equal(t, "boom", failure.Message)
}

func TestWatchPost(t *testing.T) {
	store := gateway.NewFakeDocumentStore()
	reader := NewReader(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := reader.WatchPost(ctx, "p1")
	require.Nil(t, err)

	update := <-ch
	assert.Nil(t, update.Post)
	assert.Nil(t, update.Failure)

	seedPost(t, store, "p1", "hello", 1)
	select {
	case update = <-ch:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "post update not delivered")
	}
	require.NotNil(t, update.Post)
	assert.Equal(t, "hello", update.Post.Title)

	store.BreakListeners(gateway.ErrUnavailable)
	update = <-ch
	require.NotNil(t, update.Failure)
	assert.Equal(t, gateway.NetworkUnavailable, update.Failure.Kind)
	_, open := <-ch
	assert.False(t, open)
}
