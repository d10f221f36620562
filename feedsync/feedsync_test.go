package feedsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	"github.com/stretchr/testify/require"
)

type recordedEvents struct {
	mu       sync.Mutex
	posts    []*model.Post
	comments []*model.Comment
}

func (r *recordedEvents) PostCreated(ctx context.Context, post *model.Post) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.posts = append(r.posts, post)
}

func (r *recordedEvents) CommentAdded(ctx context.Context, comment *model.Comment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.comments = append(r.comments, comment)
}

func seedPost(t *testing.T, store gateway.DocumentStore, id, title string, timestamp int64) *model.Post {
	t.Helper()
	post := &model.Post{Id: id, Title: title, Timestamp: timestamp}
	require.Nil(t, store.Set(context.Background(), gateway.Collection(model.PostsCollection).Doc(id), post))
	return post
}

func receiveState(t *testing.T, ch <-chan model.FeedState) model.FeedState {
	t.Helper()
	select {
	case s, ok := <-ch:
		require.True(t, ok, "feed watcher closed unexpectedly")
		return s
	case <-time.After(2 * time.Second):
		require.FailNow(t, "no feed state received")
	}
	return model.FeedState{}
}

func signedInSession(t *testing.T, displayName string) (*gateway.Session, *gateway.Account) {
	t.Helper()
	creds := gateway.NewFakeCredentialGateway()
	creds.Register("ada@x.com", "analytical", displayName)
	session := gateway.NewSession(creds)
	account, err := session.SignIn(context.Background(), "ada@x.com", "analytical")
	require.Nil(t, err)
	return session, account
}
