package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/Luismorlan/hexfeed/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	posts, err := bus.Subscribe(ctx, TOPIC_POST_CREATED)
	require.Nil(t, err)
	comments, err := bus.Subscribe(ctx, TOPIC_COMMENT_ADDED)
	require.Nil(t, err)

	publisher := NewPublisher(bus)
	publisher.PostCreated(ctx, &model.Post{Id: "p1", Title: "hello", Timestamp: 1})
	publisher.CommentAdded(ctx, &model.Comment{Id: "c1", PostId: "p1", Text: "hi"})

	select {
	case msg := <-posts:
		msg.Ack()
		var post model.Post
		require.Nil(t, json.Unmarshal(msg.Payload, &post))
		assert.Equal(t, "hello", post.Title)
	case <-time.After(time.Second):
		require.FailNow(t, "post event not delivered")
	}

	select {
	case msg := <-comments:
		msg.Ack()
		var comment model.Comment
		require.Nil(t, json.Unmarshal(msg.Payload, &comment))
		assert.Equal(t, "p1", comment.PostId)
	case <-time.After(time.Second):
		require.FailNow(t, "comment event not delivered")
	}
}
