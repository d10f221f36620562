package feedsync

import (
	"context"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	"github.com/pkg/errors"
)

var commentOrder = gateway.OrderBy{Field: model.TimestampField, Direction: gateway.Asc}

// Reader serves one-shot reads of single posts and their comments.
type Reader struct {
	store gateway.DocumentStore
	posts gateway.CollectionPath
}

func NewReader(store gateway.DocumentStore) *Reader {
	return &Reader{store: store, posts: gateway.Collection(model.PostsCollection)}
}

func (r *Reader) commentsOf(postId string) gateway.CollectionPath {
	return r.posts.Doc(postId).Sub(model.CommentsCollection)
}

// GetPost reads a post once. A missing post is not an error: it returns
// (nil, false, nil).
func (r *Reader) GetPost(ctx context.Context, id string) (*model.Post, bool, error) {
	doc, err := r.store.Get(ctx, r.posts.Doc(id))
	if errors.Is(err, gateway.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, newFailure(err)
	}
	post, err := decodePost(doc)
	if err != nil {
		return nil, false, newFailure(err)
	}
	return post, true, nil
}

// PostUpdate is one state of a watched post. Post is nil while the post does
// not exist.
type PostUpdate struct {
	Post    *model.Post `json:"post"`
	Failure *Failure    `json:"failure,omitempty"`
}

// WatchPost streams a single post until ctx is done. Like the feed, a failed
// subscription delivers one update carrying the failure and closes.
func (r *Reader) WatchPost(ctx context.Context, id string) (<-chan PostUpdate, error) {
	snapshots, err := r.store.ListenDocument(ctx, r.posts.Doc(id))
	if err != nil {
		return nil, newFailure(err)
	}

	out := make(chan PostUpdate)
	go func() {
		defer close(out)
		for snapshot := range snapshots {
			var update PostUpdate
			switch {
			case snapshot.Err != nil:
				update.Failure = newFailure(snapshot.Err)
			case snapshot.Document != nil:
				post, err := decodePost(snapshot.Document)
				if err != nil {
					update.Failure = newFailure(err)
				}
				update.Post = post
			}
			select {
			case out <- update:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Comments reads the comments of a post once, oldest first. On failure it
// returns an empty list together with the failure.
func (r *Reader) Comments(ctx context.Context, postId string) ([]*model.Comment, error) {
	docs, err := r.store.Query(ctx, r.commentsOf(postId), commentOrder)
	if err != nil {
		return []*model.Comment{}, newFailure(err)
	}

	comments := make([]*model.Comment, 0, len(docs))
	for _, doc := range docs {
		var comment model.Comment
		if err := doc.DataTo(&comment); err != nil {
			return []*model.Comment{}, newFailure(err)
		}
		if comment.Id == "" {
			comment.Id = doc.Id()
		}
		if comment.PostId == "" {
			comment.PostId = postId
		}
		comments = append(comments, &comment)
	}
	return comments, nil
}
