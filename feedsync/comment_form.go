package feedsync

import (
	"context"
	"strings"
	"sync"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	EmptyCommentMessage        = "Comment cannot be empty."
	AddCommentFailedMessage    = "Failed to add comment."
	FetchCommentsFailedMessage = "Failed to fetch comments."
)

var ErrEmptyComment = errors.New(EmptyCommentMessage)

// CommentFormState is what the comment screen renders.
type CommentFormState struct {
	PostId       string           `json:"postId"`
	Text         string           `json:"text"`
	Submitting   bool             `json:"submitting"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
	Comments     []*model.Comment `json:"comments"`
}

// CommentForm holds the pending comment of one post and the comments fetched
// for it.
type CommentForm struct {
	session *gateway.Session
	store   gateway.DocumentStore
	reader  *Reader
	events  Events
	postId  string

	mu    sync.Mutex
	state CommentFormState
}

// NewCommentForm creates the form of postId. events may be nil.
func NewCommentForm(session *gateway.Session, store gateway.DocumentStore, events Events, postId string) *CommentForm {
	if events == nil {
		events = noopEvents{}
	}
	return &CommentForm{
		session: session,
		store:   store,
		reader:  NewReader(store),
		events:  events,
		postId:  postId,
		state:   CommentFormState{PostId: postId, Comments: []*model.Comment{}},
	}
}

func (f *CommentForm) State() CommentFormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	s.Comments = append([]*model.Comment{}, f.state.Comments...)
	return s
}

func (f *CommentForm) SetText(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.Text = text
}

// Fetch reloads the comments. On failure the previous list is kept and the
// error message set.
func (f *CommentForm) Fetch(ctx context.Context) error {
	comments, err := f.reader.Comments(ctx, f.postId)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err != nil {
		f.state.ErrorMessage = FetchCommentsFailedMessage
		return err
	}
	f.state.Comments = comments
	return nil
}

// Submit writes the pending text as a new comment. Blank text is rejected
// without calling the store. The pending text is cleared only on success.
func (f *CommentForm) Submit(ctx context.Context) (*model.Comment, error) {
	f.mu.Lock()
	text := strings.TrimSpace(f.state.Text)
	if text == "" {
		defer f.mu.Unlock()
		f.state.ErrorMessage = EmptyCommentMessage
		return nil, ErrEmptyComment
	}
	if f.state.Submitting {
		f.mu.Unlock()
		return nil, ErrSubmitting
	}
	f.state.Submitting = true
	f.state.ErrorMessage = ""
	f.mu.Unlock()

	comment := &model.Comment{
		Id:        uuid.New().String(),
		PostId:    f.postId,
		Text:      text,
		Timestamp: model.NowMillis(),
	}
	if account := f.session.CurrentUser(); account != nil {
		comment.Author = resolveAuthor(ctx, f.store, account)
	}

	err := f.store.Set(ctx, f.reader.commentsOf(f.postId).Doc(comment.Id), comment)

	f.mu.Lock()
	f.state.Submitting = false
	if err != nil {
		defer f.mu.Unlock()
		Logger.Log.Errorf("fail to add comment to post %s: %v", f.postId, err)
		f.state.ErrorMessage = AddCommentFailedMessage
		return nil, newFailure(err)
	}
	f.state.Text = ""
	f.state.Comments = append(f.state.Comments, comment)
	f.mu.Unlock()

	f.events.CommentAdded(ctx, comment)
	return comment, nil
}
