package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	"github.com/Luismorlan/hexfeed/notify"
	"github.com/Luismorlan/hexfeed/signin"
	"github.com/Luismorlan/hexfeed/utils/dotenv"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ada@example.com"
	testPassword = "secret1"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type fixture struct {
	server   *Server
	router   *gin.Engine
	creds    *gateway.FakeCredentialGateway
	store    *gateway.FakeDocumentStore
	blobs    *gateway.FakeBlobStore
	settings *notify.MemorySettingsStore
}

func newFixture() *fixture {
	f := &fixture{
		creds:    gateway.NewFakeCredentialGateway(),
		store:    gateway.NewFakeDocumentStore(),
		blobs:    gateway.NewFakeBlobStore(),
		settings: notify.NewMemorySettingsStore(),
	}
	f.server = NewServer(Deps{
		Credentials: f.creds,
		Store:       f.store,
		Blobs:       f.blobs,
		Settings:    f.settings,
	})
	f.router = gin.New()
	f.server.RegisterRoutes(f.router)
	return f
}

func (f *fixture) do(method, path, session string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) newSession(t *testing.T) string {
	w := f.do(http.MethodPost, "/sessions", "", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	var res struct {
		SessionId string `json:"sessionId"`
	}
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotEmpty(t, res.SessionId)
	return res.SessionId
}

// signedIn registers an account and walks a new session through sign in.
func (f *fixture) signedIn(t *testing.T) (string, *gateway.Account) {
	account := f.creds.Register(testEmail, testPassword, "Ada Lovelace")
	session := f.newSession(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/signin/email", session, gin.H{"email": testEmail}).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/signin/password", session, gin.H{"password": testPassword}).Code)
	return session, account
}

type snapshotBody struct {
	State signin.State `json:"state"`
	Email string       `json:"email"`
	Error *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
	Account *gateway.Account `json:"account"`
}

func decodeSnapshot(t *testing.T, w *httptest.ResponseRecorder) snapshotBody {
	var s snapshotBody
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &s), w.Body.String())
	return s
}

type errorBody struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	var e errorBody
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestSessionIsRequired(t *testing.T) {
	f := newFixture()

	w := f.do(http.MethodGet, "/signin", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrorSessionRequired, decodeError(t, w).Code)

	w = f.do(http.MethodGet, "/signin", "no-such-session", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, ErrorSessionNotFound, decodeError(t, w).Code)

	session := f.newSession(t)
	w = f.do(http.MethodGet, "/signin", session, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, signin.EmailEntry, decodeSnapshot(t, w).State)
}

func TestSignUpFlow(t *testing.T) {
	f := newFixture()
	session := f.newSession(t)

	w := f.do(http.MethodPost, "/signin/email", session, gin.H{"email": "not-an-email"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, signin.InvalidEmailFormat.String(), decodeError(t, w).Code)

	w = f.do(http.MethodPost, "/signin/email", session, gin.H{"email": "grace@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, signin.NameSurnameEntry, decodeSnapshot(t, w).State)

	w = f.do(http.MethodPost, "/signin/name", session, gin.H{"firstName": "Grace", "lastName": "Hopper"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, signin.PasswordEntry, decodeSnapshot(t, w).State)

	w = f.do(http.MethodPost, "/signin/password", session, gin.H{"password": "abc"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, signin.PasswordTooShort.String(), decodeError(t, w).Code)

	w = f.do(http.MethodPost, "/signin/password", session, gin.H{"password": "abcdef"})
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decodeSnapshot(t, w)
	assert.Equal(t, signin.Authenticated, snapshot.State)
	require.NotNil(t, snapshot.Account)

	doc, err := f.store.Get(context.Background(), gateway.Collection(model.UsersCollection).Doc(snapshot.Account.Uid))
	require.Nil(t, err)
	var user model.User
	require.Nil(t, doc.DataTo(&user))
	assert.Equal(t, "Hopper", user.LastName)
}

func TestBackAndWrongState(t *testing.T) {
	f := newFixture()
	f.creds.Register(testEmail, testPassword, "")
	session := f.newSession(t)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/signin/email", session, gin.H{"email": testEmail}).Code)

	w := f.do(http.MethodPut, "/signin/email", session, gin.H{"email": "other@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, ErrorWrongState, decodeError(t, w).Code)

	w = f.do(http.MethodPost, "/signin/back", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decodeSnapshot(t, w)
	assert.Equal(t, signin.EmailEntry, snapshot.State)
	assert.Equal(t, testEmail, snapshot.Email)
}

func TestWrongPasswordStaysOnPasswordStep(t *testing.T) {
	f := newFixture()
	f.creds.Register(testEmail, testPassword, "")
	session := f.newSession(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/signin/email", session, gin.H{"email": testEmail}).Code)

	w := f.do(http.MethodPost, "/signin/password", session, gin.H{"password": "wrong-password"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, signin.SignInFailed.String(), decodeError(t, w).Code)

	w = f.do(http.MethodGet, "/signin", session, nil)
	assert.Equal(t, signin.PasswordEntry, decodeSnapshot(t, w).State)
}

func TestPasswordReset(t *testing.T) {
	f := newFixture()
	f.creds.Register(testEmail, testPassword, "")
	session := f.newSession(t)

	w := f.do(http.MethodPost, "/signin/reset", session, gin.H{"email": "nobody@example.com"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, signin.NoAccountMessage, decodeError(t, w).Msg)

	w = f.do(http.MethodPost, "/signin/reset", session, gin.H{"email": testEmail})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{testEmail}, f.creds.Resets())
}

func TestContentRequiresAuthentication(t *testing.T) {
	f := newFixture()
	session := f.newSession(t)

	for _, path := range []string{"/feed", "/posts/p1", "/posts/p1/comments", "/settings/notifications"} {
		w := f.do(http.MethodGet, path, session, nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Equal(t, ErrorNotAuthenticated, decodeError(t, w).Code)
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/feed", session, nil).Code)

	w := f.do(http.MethodPost, "/signout", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, signin.EmailEntry, decodeSnapshot(t, w).State)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/feed", session, nil).Code)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/account", session, nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(http.MethodGet, "/feed", session, nil).Code)

	_, err := f.creds.SignIn(context.Background(), testEmail, testPassword)
	assert.Error(t, err)
}

func multipartPost(t *testing.T, fields map[string]string, photo []byte) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.Nil(t, writer.WriteField(k, v))
	}
	if photo != nil {
		part, err := writer.CreateFormFile("photo", "photo.jpg")
		require.Nil(t, err)
		_, err = part.Write(photo)
		require.Nil(t, err)
	}
	require.Nil(t, writer.Close())
	return body, writer.FormDataContentType()
}

func (f *fixture) createPost(t *testing.T, session string, fields map[string]string, photo []byte) *httptest.ResponseRecorder {
	body, contentType := multipartPost(t, fields, photo)
	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(SessionHeader, session)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestCreatePostAndRead(t *testing.T) {
	f := newFixture()
	session, account := f.signedIn(t)

	w := f.createPost(t, session, map[string]string{"title": "Hello", "description": "first"}, []byte("jpeg"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var post model.Post
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &post))
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, gateway.FakeBlobUrlPrefix+gateway.PostPhotoPath(post.Id), post.PhotoUrl)
	require.NotNil(t, post.Author)
	assert.Equal(t, account.Uid, post.Author.Id)

	w = f.do(http.MethodGet, "/feed", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state model.FeedState
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Posts, 1)
	assert.Equal(t, post.Id, state.Posts[0].Id)

	w = f.do(http.MethodGet, "/posts/"+post.Id, session, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/posts/missing", session, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decodeError(t, w).Code)
}

func TestCreatePostRejectsEmptyTitle(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)

	w := f.createPost(t, session, map[string]string{"title": "  ", "description": "x"}, []byte("jpeg"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, ErrorEmptyTitle, decodeError(t, w).Code)
	assert.Equal(t, 0, f.blobs.Count())
	assert.Equal(t, 0, f.store.Count(gateway.Collection(model.PostsCollection)))
}

func TestCreatePostUploadFailure(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	f.blobs.Fail(gateway.OpPut, gateway.ErrUnavailable)

	w := f.createPost(t, session, map[string]string{"title": "Hello"}, []byte("jpeg"))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, gateway.NetworkUnavailable.String(), decodeError(t, w).Code)
	assert.Equal(t, 0, f.store.Count(gateway.Collection(model.PostsCollection)))
}

func TestComments(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	path := "/posts/p1/comments"

	w := f.do(http.MethodPost, path, session, gin.H{"text": "   "})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, feedsync.EmptyCommentMessage, decodeError(t, w).Msg)

	w = f.do(http.MethodPost, path, session, gin.H{"text": "first!"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodGet, path, session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state feedsync.CommentFormState
	require.Nil(t, json.Unmarshal(w.Body.Bytes(), &state))
	require.Len(t, state.Comments, 1)
	assert.Equal(t, "first!", state.Comments[0].Text)
	assert.Equal(t, "", state.Text)

	f.store.Fail(gateway.OpSet, gateway.ErrUnavailable)
	w = f.do(http.MethodPost, path, session, gin.H{"text": "second"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, feedsync.AddCommentFailedMessage, decodeError(t, w).Msg)

	f.store.Fail(gateway.OpQuery, gateway.ErrUnavailable)
	w = f.do(http.MethodGet, path, session, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, feedsync.FetchCommentsFailedMessage, decodeError(t, w).Msg)
}

func TestNotificationSettings(t *testing.T) {
	f := newFixture()
	session, account := f.signedIn(t)

	w := f.do(http.MethodGet, "/settings/notifications", session, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"enabled":false}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/settings/notifications", session, gin.H{}).Code)

	w = f.do(http.MethodPut, "/settings/notifications", session, gin.H{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/settings/notifications", session, nil)
	assert.JSONEq(t, `{"enabled":true}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/devices", session, gin.H{"token": " "}).Code)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/devices", session, gin.H{"token": "phone"}).Code)
	tokens, err := f.settings.DeviceTokens(context.Background(), account.Uid)
	require.Nil(t, err)
	assert.Equal(t, []string{"phone"}, tokens)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/devices/phone", session, nil).Code)
	tokens, err = f.settings.DeviceTokens(context.Background(), account.Uid)
	require.Nil(t, err)
	assert.Empty(t, tokens)
}

func readFeedState(t *testing.T, conn *websocket.Conn) model.FeedState {
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var state model.FeedState
	require.Nil(t, conn.ReadJSON(&state))
	return state
}

func TestFeedSubscription(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/feed/subscription?" + SessionQueryParam + "=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)

	state := readFeedState(t, conn)
	assert.Empty(t, state.Posts)
	assert.Equal(t, model.FeedErrorNoPublication, state.Error)

	post := model.Post{Id: "p1", Title: "live", Timestamp: model.NowMillis()}
	require.Nil(t, f.store.Set(context.Background(), gateway.Collection(model.PostsCollection).Doc(post.Id), post))

	state = readFeedState(t, conn)
	require.Len(t, state.Posts, 1)
	assert.Equal(t, "live", state.Posts[0].Title)
	assert.True(t, f.server.Feed().Subscribed())

	conn.Close()
	assert.Eventually(t, func() bool { return !f.server.Feed().Subscribed() }, 2*time.Second, 10*time.Millisecond)
}

type postUpdateBody struct {
	Post    *model.Post `json:"post"`
	Failure *struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"failure"`
}

func readPostUpdate(t *testing.T, conn *websocket.Conn) postUpdateBody {
	require.Nil(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var update postUpdateBody
	require.Nil(t, conn.ReadJSON(&update))
	return update
}

func TestPostSubscription(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	path := gateway.Collection(model.PostsCollection).Doc("p1")
	post := model.Post{Id: "p1", Title: "draft title", Timestamp: model.NowMillis()}
	require.Nil(t, f.store.Set(context.Background(), path, post))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/posts/p1/subscription?" + SessionQueryParam + "=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)

	update := readPostUpdate(t, conn)
	require.NotNil(t, update.Post)
	assert.Equal(t, "draft title", update.Post.Title)
	assert.Nil(t, update.Failure)

	post.Title = "final title"
	require.Nil(t, f.store.Set(context.Background(), path, post))

	update = readPostUpdate(t, conn)
	require.NotNil(t, update.Post)
	assert.Equal(t, "final title", update.Post.Title)

	conn.Close()
	assert.Eventually(t, func() bool { return f.store.ActiveListeners() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPostSubscriptionOfMissingPost(t *testing.T) {
	f := newFixture()
	session, _ := f.signedIn(t)
	ts := httptest.NewServer(f.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/posts/missing/subscription?" + SessionQueryParam + "=" + session
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.Nil(t, err)
	defer conn.Close()

	update := readPostUpdate(t, conn)
	assert.Nil(t, update.Post)
	assert.Nil(t, update.Failure)
}

func TestPostSubscriptionRequiresAuthentication(t *testing.T) {
	f := newFixture()
	session := f.newSession(t)
	w := f.do(http.MethodGet, "/posts/p1/subscription", session, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, 0, f.store.ActiveListeners())
}

func TestSessionsExpire(t *testing.T) {
	f := newFixture()
	f.newSession(t)
	f.newSession(t)
	assert.Equal(t, 2, f.server.Sessions.Count())

	assert.Equal(t, 0, f.server.Sessions.Expire(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 2, f.server.Sessions.Expire(time.Millisecond))
	assert.Equal(t, 0, f.server.Sessions.Count())
}

func TestDeleteSession(t *testing.T) {
	f := newFixture()
	session := f.newSession(t)
	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/sessions", session, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodGet, "/signin", session, nil).Code)
}
