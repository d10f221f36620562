package gateway

import (
	"context"
	"sync"
)

// Account is an authenticated identity as returned by a credential provider.
type Account struct {
	Uid         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	// Tokens are provider specific and never serialized to clients.
	IdToken     string `json:"-"`
	AccessToken string `json:"-"`
}

// CredentialGateway is the boundary to the vendor authentication service. It
// is stateless, Session keeps track of who is signed in.
type CredentialGateway interface {
	SignIn(ctx context.Context, email, password string) (*Account, error)
	CreateAccount(ctx context.Context, email, password string) (*Account, error)
	// FetchSignInMethods returns the sign in methods registered for email. An
	// unknown email yields an empty list, not an error.
	FetchSignInMethods(ctx context.Context, email string) ([]string, error)
	SendPasswordReset(ctx context.Context, email string) error
	DeleteAccount(ctx context.Context, account *Account) error
}

// Session is one client's view of the credential gateway: the same calls plus
// the currently signed in account. Thread-safe.
type Session struct {
	gateway CredentialGateway

	mu      sync.RWMutex
	current *Account
}

func NewSession(gateway CredentialGateway) *Session {
	return &Session{gateway: gateway}
}

func (s *Session) setCurrent(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = account
}

func (s *Session) SignIn(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.gateway.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setCurrent(account)
	return account, nil
}

// CreateAccount creates the account and signs it in.
func (s *Session) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	account, err := s.gateway.CreateAccount(ctx, email, password)
	if err != nil {
		return nil, err
	}
	s.setCurrent(account)
	return account, nil
}

func (s *Session) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	return s.gateway.FetchSignInMethods(ctx, email)
}

func (s *Session) SendPasswordReset(ctx context.Context, email string) error {
	return s.gateway.SendPasswordReset(ctx, email)
}

// CurrentUser returns nil when nobody is signed in.
func (s *Session) CurrentUser() *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

func (s *Session) SignOut() {
	s.setCurrent(nil)
}

// DeleteAccount deletes the signed in account and signs out.
func (s *Session) DeleteAccount(ctx context.Context) error {
	account := s.CurrentUser()
	if account == nil {
		return ErrNoCurrentUser
	}
	if err := s.gateway.DeleteAccount(ctx, account); err != nil {
		return err
	}
	s.SignOut()
	return nil
}
