package server

import (
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Luismorlan/hexfeed/feedsync"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	MaxPhotoBytes = 10 << 20

	writeWait = 10 * time.Second
)

func (s *Server) getFeed(c *gin.Context) {
	c.JSON(http.StatusOK, s.feed.Snapshot(c.Request.Context()))
}

// stream upgrades the request to a websocket and writes every value next
// yields until it reports false or the peer goes away. cancel is called once
// the peer closes the socket. When next runs dry on its own the socket is
// closed normally, the client reconnects to retry.
func (s *Server) stream(ctx context.Context, cancel context.CancelFunc, c *gin.Context, name string, next func() (interface{}, bool)) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		Logger.Log.Errorf("fail to upgrade %s subscription: %v", name, err)
		return
	}
	defer conn.Close()

	// The read loop only detects the peer closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		v, ok := next()
		if !ok {
			break
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(v); err != nil {
			Logger.Log.Infof("%s subscriber of session %s went away: %v", name, clientOf(c).Id, err)
			return
		}
	}

	if ctx.Err() == nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription ended"),
			time.Now().Add(writeWait))
	}
}

// subscribeFeed streams every feed state. A failed subscription sends its
// final state and closes the socket.
func (s *Server) subscribeFeed(c *gin.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	states := s.feed.Watch(ctx)
	s.stream(ctx, cancel, c, "feed", func() (interface{}, bool) {
		state, ok := <-states
		return state, ok
	})
}

// subscribePost streams every state of one post. The update carries a nil
// post while the post does not exist.
func (s *Server) subscribePost(c *gin.Context) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := s.reader.WatchPost(ctx, c.Param("id"))
	if err != nil {
		respondFailure(c, err, "")
		return
	}
	s.stream(ctx, cancel, c, "post", func() (interface{}, bool) {
		update, ok := <-updates
		return update, ok
	})
}

func (s *Server) getPost(c *gin.Context) {
	post, found, err := s.reader.GetPost(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondFailure(c, err, "")
		return
	}
	if !found {
		abortWithError(c, http.StatusNotFound, "not_found", "post not found")
		return
	}
	c.JSON(http.StatusOK, post)
}

func (s *Server) getComments(c *gin.Context) {
	form := clientOf(c).CommentForm(c.Param("id"))
	if err := form.Fetch(c.Request.Context()); err != nil {
		respondFailure(c, err, feedsync.FetchCommentsFailedMessage)
		return
	}
	c.JSON(http.StatusOK, form.State())
}

func readPhoto(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// createPost takes a multipart form with title, description and an optional
// photo file.
func (s *Server) createPost(c *gin.Context) {
	draft := feedsync.Draft{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
	}
	if header, err := c.FormFile("photo"); err == nil {
		if header.Size > MaxPhotoBytes {
			abortWithError(c, http.StatusRequestEntityTooLarge, ErrorBadRequest, "photo is too large")
			return
		}
		if draft.Photo, err = readPhoto(header); err != nil {
			abortWithError(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
			return
		}
		draft.PhotoContentType = header.Header.Get("Content-Type")
	} else if !errors.Is(err, http.ErrMissingFile) {
		abortWithError(c, http.StatusBadRequest, ErrorBadRequest, err.Error())
		return
	}

	post, err := clientOf(c).Composer().SubmitDraft(c.Request.Context(), draft)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, post)
	case errors.Is(err, feedsync.ErrEmptyTitle):
		abortWithError(c, http.StatusUnprocessableEntity, ErrorEmptyTitle, err.Error())
	case errors.Is(err, feedsync.ErrSubmitting):
		abortWithError(c, http.StatusConflict, ErrorBusy, err.Error())
	default:
		respondFailure(c, err, "")
	}
}

type commentRequest struct {
	Text string `json:"text"`
}

func (s *Server) addComment(c *gin.Context) {
	var req commentRequest
	if !bind(c, &req) {
		return
	}
	form := clientOf(c).CommentForm(c.Param("id"))
	form.SetText(req.Text)

	comment, err := form.Submit(c.Request.Context())
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, comment)
	case errors.Is(err, feedsync.ErrEmptyComment):
		abortWithError(c, http.StatusUnprocessableEntity, ErrorEmptyComment, feedsync.EmptyCommentMessage)
	case errors.Is(err, feedsync.ErrSubmitting):
		abortWithError(c, http.StatusConflict, ErrorBusy, err.Error())
	default:
		respondFailure(c, err, form.State().ErrorMessage)
	}
}
