package server

import (
	"context"
	"sync"
	"time"

	"github.com/Luismorlan/hexfeed/feedsync"
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/signin"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/google/uuid"
)

// Client is everything the API keeps for one app install: who is signed in,
// where the sign in flow is, the post draft and the comment forms opened so
// far.
type Client struct {
	Id      string
	Session *gateway.Session
	Machine *signin.Machine

	deps *Deps

	mu       sync.Mutex
	composer *feedsync.Composer
	forms    map[string]*feedsync.CommentForm
	lastSeen time.Time
}

func newClient(deps *Deps) *Client {
	session := gateway.NewSession(deps.Credentials)
	return &Client{
		Id:       uuid.New().String(),
		Session:  session,
		Machine:  signin.NewMachine(session, deps.Store),
		deps:     deps,
		composer: feedsync.NewComposer(session, deps.Store, deps.Blobs, deps.Events),
		forms:    make(map[string]*feedsync.CommentForm),
		lastSeen: time.Now(),
	}
}

// Account returns the signed in account, or nil until the sign in flow has
// reached Authenticated.
func (c *Client) Account() *gateway.Account {
	if c.Machine.State() != signin.Authenticated {
		return nil
	}
	return c.Session.CurrentUser()
}

func (c *Client) Composer() *feedsync.Composer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composer
}

// CommentForm returns the form of postId, creating it on first use.
func (c *Client) CommentForm(postId string) *feedsync.CommentForm {
	c.mu.Lock()
	defer c.mu.Unlock()
	form, ok := c.forms[postId]
	if !ok {
		form = feedsync.NewCommentForm(c.Session, c.deps.Store, c.deps.Events, postId)
		c.forms[postId] = form
	}
	return form
}

// SignOut forgets the account along with every draft made with it.
func (c *Client) SignOut() {
	c.Session.SignOut()
	c.Machine.Reset()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.composer = feedsync.NewComposer(c.Session, c.deps.Store, c.deps.Blobs, c.deps.Events)
	c.forms = make(map[string]*feedsync.CommentForm)
}

func (c *Client) touch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastSeen = time.Now()
}

func (c *Client) idleSince(now time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return now.Sub(c.lastSeen)
}

// Sessions is the registry of live clients keyed by session id.
type Sessions struct {
	deps *Deps

	lock    sync.RWMutex
	clients map[string]*Client
}

func NewSessions(deps *Deps) *Sessions {
	return &Sessions{deps: deps, clients: make(map[string]*Client)}
}

func (s *Sessions) Create() *Client {
	client := newClient(s.deps)
	s.lock.Lock()
	defer s.lock.Unlock()
	s.clients[client.Id] = client
	return client
}

func (s *Sessions) Get(id string) (*Client, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	client, ok := s.clients[id]
	if ok {
		client.touch()
	}
	return client, ok
}

func (s *Sessions) Remove(id string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	delete(s.clients, id)
}

func (s *Sessions) Count() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return len(s.clients)
}

// Expire drops every client idle for longer than ttl and returns how many
// were dropped.
func (s *Sessions) Expire(ttl time.Duration) int {
	now := time.Now()
	s.lock.Lock()
	defer s.lock.Unlock()
	expired := 0
	for id, client := range s.clients {
		if client.idleSince(now) > ttl {
			delete(s.clients, id)
			expired++
		}
	}
	return expired
}

// RunSweeper expires idle clients every interval until ctx is done.
func (s *Sessions) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Expire(ttl); n > 0 {
				Logger.Log.Infof("expired %d idle sessions", n)
			}
		}
	}
}
