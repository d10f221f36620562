package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Title     string `json:"title"`
	Timestamp int64  `json:"timestamp"`
}

func receiveSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "listener closed unexpectedly")
		return s
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no snapshot received")
	}
	return Snapshot{}
}

func titles(t *testing.T, docs []Document) []string {
	res := []string{}
	for _, d := range docs {
		var r testRecord
		require.Nil(t, d.DataTo(&r))
		res = append(res, r.Title)
	}
	return res
}

func TestFakeDocumentStoreSetGet(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx := context.Background()
	path := Collection("posts").Doc("p1")

	_, err := store.Get(ctx, path)
	assert.True(t, errors.Is(err, ErrNotFound))

	require.Nil(t, store.Set(ctx, path, testRecord{Title: "hello", Timestamp: 1}))
	doc, err := store.Get(ctx, path)
	require.Nil(t, err)
	assert.Equal(t, "p1", doc.Id())

	var r testRecord
	require.Nil(t, doc.DataTo(&r))
	assert.Equal(t, "hello", r.Title)
	assert.Equal(t, []DocPath{path}, store.Writes())
}

func TestFakeDocumentStoreQueryOrdering(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx := context.Background()
	posts := Collection("posts")

	require.Nil(t, store.Set(ctx, posts.Doc("a"), testRecord{Title: "old", Timestamp: 100}))
	require.Nil(t, store.Set(ctx, posts.Doc("b"), testRecord{Title: "new", Timestamp: 300}))
	require.Nil(t, store.Set(ctx, posts.Doc("c"), testRecord{Title: "mid", Timestamp: 200}))

	docs, err := store.Query(ctx, posts, OrderBy{Field: "timestamp", Direction: Desc})
	require.Nil(t, err)
	assert.Equal(t, []string{"new", "mid", "old"}, titles(t, docs))

	docs, err = store.Query(ctx, posts, OrderBy{Field: "timestamp", Direction: Asc})
	require.Nil(t, err)
	assert.Equal(t, []string{"old", "mid", "new"}, titles(t, docs))
}

func TestFakeDocumentStoreSubCollections(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx := context.Background()
	comments := Collection("posts").Doc("p1").Sub("comments")
	assert.Equal(t, CollectionPath("posts/p1/comments"), comments)

	require.Nil(t, store.Set(ctx, comments.Doc("c1"), testRecord{Title: "first"}))
	assert.Equal(t, 1, store.Count(comments))
	assert.Equal(t, 0, store.Count(Collection("posts")))
}

func TestFakeDocumentStoreListen(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx, cancel := context.WithCancel(context.Background())
	posts := Collection("posts")

	ch, err := store.Listen(ctx, posts, OrderBy{Field: "timestamp", Direction: Desc})
	require.Nil(t, err)

	first := receiveSnapshot(t, ch)
	assert.Nil(t, first.Err)
	assert.Empty(t, first.Documents)

	require.Nil(t, store.Set(context.Background(), posts.Doc("a"), testRecord{Title: "a", Timestamp: 1}))
	second := receiveSnapshot(t, ch)
	assert.Equal(t, []string{"a"}, titles(t, second.Documents))

	// Writes elsewhere do not wake the listener up.
	require.Nil(t, store.Set(context.Background(), Collection("users").Doc("u"), testRecord{}))
	select {
	case s := <-ch:
		assert.Failf(t, "unexpected snapshot", "%v", s)
	case <-time.After(100 * time.Millisecond):
	}

	assert.Equal(t, 1, store.ActiveListeners())
	cancel()
	assert.Eventually(t, func() bool { return store.ActiveListeners() == 0 }, time.Second, 10*time.Millisecond)
}

func TestFakeDocumentStoreBreakListeners(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx := context.Background()

	ch, err := store.Listen(ctx, Collection("posts"), OrderBy{Field: "timestamp"})
	require.Nil(t, err)
	receiveSnapshot(t, ch)

	store.BreakListeners(ErrUnavailable)
	last := receiveSnapshot(t, ch)
	assert.True(t, errors.Is(last.Err, ErrUnavailable))

	_, open := <-ch
	assert.False(t, open)
}

func TestFakeDocumentStoreListenDocument(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	path := Collection("posts").Doc("p1")

	ch, err := store.ListenDocument(ctx, path)
	require.Nil(t, err)

	s := <-ch
	assert.Nil(t, s.Err)
	assert.Nil(t, s.Document)

	require.Nil(t, store.Set(ctx, path, testRecord{Title: "now exists"}))
	s = <-ch
	require.NotNil(t, s.Document)
	var r testRecord
	require.Nil(t, s.Document.DataTo(&r))
	assert.Equal(t, "now exists", r.Title)
}

func TestFakeDocumentStoreFail(t *testing.T) {
	store := NewFakeDocumentStore()
	ctx := context.Background()
	store.Fail(OpSet, ErrPermissionDenied)

	err := store.Set(ctx, Collection("posts").Doc("p1"), testRecord{})
	assert.Equal(t, PermissionDenied, Classify(err))
	assert.Empty(t, store.Writes())

	store.Fail(OpSet, nil)
	assert.Nil(t, store.Set(ctx, Collection("posts").Doc("p1"), testRecord{}))
}
