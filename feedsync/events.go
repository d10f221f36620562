package feedsync

import (
	"context"

	"github.com/Luismorlan/hexfeed/model"
)

// Events is told about every successful write. Implementations must not block
// for long, they run on the writer's goroutine.
type Events interface {
	PostCreated(ctx context.Context, post *model.Post)
	CommentAdded(ctx context.Context, comment *model.Comment)
}

type noopEvents struct{}

func (noopEvents) PostCreated(context.Context, *model.Post)     {}
func (noopEvents) CommentAdded(context.Context, *model.Comment) {}
