package server

import (
	"net/http"

	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/notify"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	SessionHeader     = "X-Session-Id"
	SessionQueryParam = "session"

	clientKey  = "client"
	accountKey = "account"
)

// Deps are the backends every client of the API shares.
type Deps struct {
	Credentials gateway.CredentialGateway
	Store       gateway.DocumentStore
	Blobs       gateway.BlobStore
	Settings    notify.SettingsStore
	// Events may be nil, nothing is published then.
	Events feedsync.Events
}

// Server serves the sign in flow and the post feed over HTTP. The feed
// subscription is shared by every connected client.
type Server struct {
	Sessions *Sessions

	deps     *Deps
	feed     *feedsync.Feed
	reader   *feedsync.Reader
	upgrader websocket.Upgrader
}

func NewServer(deps Deps) *Server {
	return &Server{
		Sessions: NewSessions(&deps),
		deps:     &deps,
		feed:     feedsync.NewFeed(deps.Store),
		reader:   feedsync.NewReader(deps.Store),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Feed is exposed for observability of the shared subscription.
func (s *Server) Feed() *feedsync.Feed {
	return s.feed
}

// RegisterRoutes binds every route of the API onto r.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.POST("/sessions", s.createSession)

	withSession := r.Group("/", s.sessionRequired())
	withSession.DELETE("/sessions", s.deleteSession)
	withSession.GET("/signin", s.getSignin)
	withSession.PUT("/signin/email", s.editEmail)
	withSession.POST("/signin/email", s.submitEmail)
	withSession.POST("/signin/name", s.submitName)
	withSession.POST("/signin/password", s.submitPassword)
	withSession.POST("/signin/back", s.back)
	withSession.POST("/signin/reset", s.requestPasswordReset)
	withSession.POST("/signout", s.signOut)

	authenticated := withSession.Group("/", authenticationRequired())
	authenticated.DELETE("/account", s.deleteAccount)
	authenticated.GET("/feed", s.getFeed)
	authenticated.GET("/feed/subscription", s.subscribeFeed)
	authenticated.GET("/posts/:id", s.getPost)
	authenticated.GET("/posts/:id/subscription", s.subscribePost)
	authenticated.GET("/posts/:id/comments", s.getComments)
	authenticated.POST("/posts", s.createPost)
	authenticated.POST("/posts/:id/comments", s.addComment)
	authenticated.GET("/settings/notifications", s.getNotificationSettings)
	authenticated.PUT("/settings/notifications", s.putNotificationSettings)
	authenticated.POST("/devices", s.registerDevice)
	authenticated.DELETE("/devices/:token", s.unregisterDevice)
}

// sessionRequired resolves the session id from the X-Session-Id header, or
// the session query parameter for websocket clients that cannot set headers.
func (s *Server) sessionRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(SessionHeader)
		if id == "" {
			id = c.Query(SessionQueryParam)
		}
		if id == "" {
			abortWithError(c, http.StatusUnauthorized, ErrorSessionRequired, "missing session id")
			return
		}
		client, ok := s.Sessions.Get(id)
		if !ok {
			abortWithError(c, http.StatusUnauthorized, ErrorSessionNotFound, "unknown or expired session")
			return
		}
		c.Set(clientKey, client)
		c.Next()
	}
}

func authenticationRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		account := clientOf(c).Account()
		if account == nil {
			abortWithError(c, http.StatusForbidden, ErrorNotAuthenticated, "sign in first")
			return
		}
		c.Set(accountKey, account)
		c.Next()
	}
}

func clientOf(c *gin.Context) *Client {
	return c.MustGet(clientKey).(*Client)
}

// accountOf returns the account the request was authenticated as.
func accountOf(c *gin.Context) *gateway.Account {
	return c.MustGet(accountKey).(*gateway.Account)
}

func (s *Server) createSession(c *gin.Context) {
	client := s.Sessions.Create()
	c.JSON(http.StatusCreated, gin.H{
		"sessionId": client.Id,
		"signin":    client.Machine.Snapshot(),
	})
}

func (s *Server) deleteSession(c *gin.Context) {
	client := clientOf(c)
	client.SignOut()
	s.Sessions.Remove(client.Id)
	c.Status(http.StatusNoContent)
}
