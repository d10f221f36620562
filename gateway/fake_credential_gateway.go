package gateway

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const PasswordSignInMethod = "password"

var (
	ErrEmailAlreadyInUse = errors.New("The email address is already in use by another account.")
	ErrWrongPassword     = errors.New("The password is invalid or the user does not have a password.")
	ErrUserNotFound      = errors.New("There is no user record corresponding to this identifier.")
)

type fakeAccount struct {
	account  Account
	password string
}

// FakeCredentialGateway is an in-memory CredentialGateway. Calls are counted
// per operation and failures can be injected per operation.
type FakeCredentialGateway struct {
	mu       sync.Mutex
	accounts map[string]*fakeAccount
	failures map[string]error
	calls    map[string]int
	resets   []string

	// OnFetch, when set, runs at the start of FetchSignInMethods. Tests use it
	// to hold a check in flight.
	OnFetch func(ctx context.Context, email string)
	// OnCreate, when set, runs at the start of CreateAccount.
	OnCreate func(ctx context.Context, email string)
}

// Operations of FakeCredentialGateway, used for Fail and Calls.
const (
	OpSignIn        = "sign_in"
	OpCreateAccount = "create_account"
	OpFetchMethods  = "fetch_sign_in_methods"
	OpPasswordReset = "password_reset"
	OpDeleteAccount = "delete_account"
)

func NewFakeCredentialGateway() *FakeCredentialGateway {
	return &FakeCredentialGateway{
		accounts: make(map[string]*fakeAccount),
		failures: make(map[string]error),
		calls:    make(map[string]int),
	}
}

// Register seeds an existing account.
func (f *FakeCredentialGateway) Register(email, password, displayName string) *Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := &fakeAccount{
		account: Account{
			Uid:         uuid.New().String(),
			Email:       email,
			DisplayName: displayName,
		},
		password: password,
	}
	f.accounts[email] = a
	copied := a.account
	return &copied
}

func (f *FakeCredentialGateway) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, op)
		return
	}
	f.failures[op] = err
}

func (f *FakeCredentialGateway) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Resets returns the emails a password reset was sent to.
func (f *FakeCredentialGateway) Resets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.resets...)
}

func (f *FakeCredentialGateway) begin(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.failures[op]
}

func (f *FakeCredentialGateway) signedIn(a *fakeAccount) *Account {
	copied := a.account
	copied.IdToken = "id-token-" + uuid.New().String()
	copied.AccessToken = "access-token-" + uuid.New().String()
	return &copied
}

func (f *FakeCredentialGateway) SignIn(ctx context.Context, email, password string) (*Account, error) {
	if err := f.begin(OpSignIn); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	if a.password != password {
		return nil, ErrWrongPassword
	}
	return f.signedIn(a), nil
}

func (f *FakeCredentialGateway) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	if f.OnCreate != nil {
		f.OnCreate(ctx, email)
	}
	if err := f.begin(OpCreateAccount); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return nil, ErrEmailAlreadyInUse
	}
	a := &fakeAccount{
		account:  Account{Uid: uuid.New().String(), Email: email},
		password: password,
	}
	f.accounts[email] = a
	return f.signedIn(a), nil
}

func (f *FakeCredentialGateway) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	if f.OnFetch != nil {
		f.OnFetch(ctx, email)
	}
	if err := f.begin(OpFetchMethods); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; ok {
		return []string{PasswordSignInMethod}, nil
	}
	return []string{}, nil
}

func (f *FakeCredentialGateway) SendPasswordReset(ctx context.Context, email string) error {
	if err := f.begin(OpPasswordReset); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[email]; !ok {
		return ErrUserNotFound
	}
	f.resets = append(f.resets, email)
	return nil
}

func (f *FakeCredentialGateway) DeleteAccount(ctx context.Context, account *Account) error {
	if err := f.begin(OpDeleteAccount); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for email, a := range f.accounts {
		if a.account.Uid == account.Uid {
			delete(f.accounts, email)
			return nil
		}
	}
	return ErrUserNotFound
}
