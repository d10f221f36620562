package feedsync

import (
	"bytes"
	"context"
	"strings"
	"sync"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

const DefaultPhotoContentType = "image/jpeg"

var (
	ErrEmptyTitle = errors.New("title must not be empty")
	// ErrSubmitting is returned while the previous submission of the same
	// form is in flight.
	ErrSubmitting = errors.New("a submission is already in flight")
)

// Draft is the post being edited. Field names match model.Post so the draft
// can be copied onto it.
type Draft struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	Photo            []byte `json:"-"`
	PhotoContentType string `json:"photoContentType,omitempty"`
}

func (d Draft) HasPhoto() bool {
	return len(d.Photo) > 0
}

// Composer holds a post draft and commits it.
type Composer struct {
	session *gateway.Session
	store   gateway.DocumentStore
	blobs   gateway.BlobStore
	events  Events
	posts   gateway.CollectionPath

	mu         sync.Mutex
	draft      Draft
	submitting bool
}

// NewComposer creates an empty composer. events may be nil.
func NewComposer(session *gateway.Session, store gateway.DocumentStore, blobs gateway.BlobStore, events Events) *Composer {
	if events == nil {
		events = noopEvents{}
	}
	return &Composer{
		session: session,
		store:   store,
		blobs:   blobs,
		events:  events,
		posts:   gateway.Collection(model.PostsCollection),
	}
}

func (c *Composer) SetTitle(title string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Title = title
}

func (c *Composer) SetDescription(description string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Description = description
}

// AttachPhoto replaces the attached photo, nil detaches it.
func (c *Composer) AttachPhoto(photo []byte, contentType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if contentType == "" {
		contentType = DefaultPhotoContentType
	}
	c.draft.Photo = photo
	c.draft.PhotoContentType = contentType
	if photo == nil {
		c.draft.PhotoContentType = ""
	}
}

func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func titleError(d Draft) error {
	if strings.TrimSpace(d.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// TitleError returns ErrEmptyTitle while the title is empty.
func (c *Composer) TitleError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return titleError(c.draft)
}

// CanSave reports whether the save action should be enabled.
func (c *Composer) CanSave() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return titleError(c.draft) == nil && !c.submitting
}

// Submit writes the draft as a new post. An empty title is rejected before
// any remote call. When a photo is attached it is uploaded, and its url
// resolved, before the post document is written. The draft is cleared on
// success and kept on failure.
func (c *Composer) Submit(ctx context.Context) (*model.Post, error) {
	return c.submit(ctx, nil)
}

// SubmitDraft commits d the way Submit commits the edited draft, leaving the
// edited draft untouched.
func (c *Composer) SubmitDraft(ctx context.Context, d Draft) (*model.Post, error) {
	if d.HasPhoto() && d.PhotoContentType == "" {
		d.PhotoContentType = DefaultPhotoContentType
	}
	return c.submit(ctx, &d)
}

// submit commits d, or the edited draft when d is nil.
func (c *Composer) submit(ctx context.Context, d *Draft) (*model.Post, error) {
	c.mu.Lock()
	draft := c.draft
	if d != nil {
		draft = *d
	}
	if err := titleError(draft); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	account := c.session.CurrentUser()
	if account == nil {
		c.mu.Unlock()
		return nil, newFailure(gateway.ErrNoCurrentUser)
	}
	c.submitting = true
	c.mu.Unlock()

	post, err := c.commit(ctx, account, draft)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		return nil, err
	}
	if d == nil {
		c.draft = Draft{}
	}
	return post, nil
}

func (c *Composer) commit(ctx context.Context, account *gateway.Account, draft Draft) (*model.Post, error) {
	post := &model.Post{}
	if err := copier.Copy(post, &draft); err != nil {
		return nil, newFailure(errors.Wrap(err, "fail to copy draft"))
	}
	post.Id = uuid.New().String()
	post.Timestamp = model.NowMillis()
	post.Author = resolveAuthor(ctx, c.store, account)

	if draft.HasPhoto() {
		path := gateway.PostPhotoPath(post.Id)
		if err := c.blobs.Put(ctx, path, bytes.NewReader(draft.Photo), draft.PhotoContentType); err != nil {
			Logger.Log.Errorf("fail to upload photo of post %s: %v", post.Id, err)
			return nil, newFailure(err)
		}
		url, err := c.blobs.DownloadUrl(ctx, path)
		if err != nil {
			Logger.Log.Errorf("fail to resolve photo url of post %s: %v", post.Id, err)
			return nil, newFailure(err)
		}
		post.PhotoUrl = url
	}

	if err := c.store.Set(ctx, c.posts.Doc(post.Id), post); err != nil {
		Logger.Log.Errorf("fail to write post %s: %v", post.Id, err)
		return nil, newFailure(err)
	}

	Logger.Log.Infof("post %s created by %s", post.Id, account.Uid)
	c.events.PostCreated(ctx, post)
	return post, nil
}
