package signin

import (
	"context"
	"strings"
	"sync"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
)

// Machine walks one client through sign up or sign in. It asks for the email
// first and branches on whether an account already exists: new users enter
// their name before the password, existing users go straight to the password.
//
// Every method is safe for concurrent use. Remote calls are made without
// holding the lock, so a screen stays responsive while a check is in flight.
type Machine struct {
	session *gateway.Session
	store   gateway.DocumentStore
	users   gateway.CollectionPath

	mu         sync.Mutex
	state      State
	email      string
	firstName  string
	lastName   string
	newUser    bool
	lastErr    *Error
	account    *gateway.Account
	submitting bool

	// checkGen increases whenever the email is edited or submitted. A check
	// only applies its answer if the generation is unchanged.
	checkGen    uint64
	cancelCheck context.CancelFunc

	// submitGen increases on Reset. A password submission started under an
	// older generation drops its result and signs the session out again.
	submitGen    uint64
	cancelSubmit context.CancelFunc

	watchers *watchers
}

func NewMachine(session *gateway.Session, store gateway.DocumentStore) *Machine {
	return &Machine{
		session:  session,
		store:    store,
		users:    gateway.Collection(model.UsersCollection),
		state:    EmailEntry,
		watchers: newWatchers(),
	}
}

// snapshotLocked must be called with mu held.
func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:      m.state,
		Email:      m.email,
		FirstName:  m.firstName,
		LastName:   m.lastName,
		NewUser:    m.newUser,
		Checking:   m.cancelCheck != nil,
		Submitting: m.submitting,
		Error:      m.lastErr,
		Account:    m.account,
	}
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watch streams a snapshot after every change, starting with the current one.
// The channel is closed once ctx is done.
func (m *Machine) Watch(ctx context.Context) <-chan Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchers.add(ctx, m.snapshotLocked())
}

// publishLocked must be called with mu held.
func (m *Machine) publishLocked() {
	m.watchers.push(m.snapshotLocked())
}

// failLocked records err as the visible error and returns it.
func (m *Machine) failLocked(err *Error) error {
	m.lastErr = err
	m.publishLocked()
	return err
}

// supersedeLocked invalidates the in-flight email check, if any.
func (m *Machine) supersedeLocked() {
	m.checkGen++
	if m.cancelCheck != nil {
		m.cancelCheck()
		m.cancelCheck = nil
	}
}

// EditEmail records a new email while on the email step. Any check still in
// flight for the previous value is superseded.
func (m *Machine) EditEmail(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != EmailEntry {
		return ErrWrongState
	}
	m.supersedeLocked()
	m.email = email
	m.lastErr = nil
	m.publishLocked()
	return nil
}

// SubmitEmail validates email and asks the credential gateway whether an
// account exists for it. It returns ErrSuperseded if the email was edited or
// submitted again before the answer arrived, in which case the answer is
// dropped without touching the state.
func (m *Machine) SubmitEmail(ctx context.Context, email string) error {
	m.mu.Lock()
	if m.state != EmailEntry {
		m.mu.Unlock()
		return ErrWrongState
	}
	m.supersedeLocked()
	m.email = email
	if err := validateEmail(email); err != nil {
		defer m.mu.Unlock()
		return m.failLocked(err)
	}

	checkCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gen := m.checkGen
	m.cancelCheck = cancel
	m.lastErr = nil
	m.publishLocked()
	m.mu.Unlock()

	methods, err := m.session.FetchSignInMethods(checkCtx, strings.TrimSpace(email))

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.checkGen || m.state != EmailEntry {
		Logger.Log.Debugf("dropping stale email check for %s", email)
		return ErrSuperseded
	}
	m.cancelCheck = nil

	if err != nil {
		Logger.Log.Warnf("email check failed for %s: %v", email, err)
		return m.failLocked(remoteError(EmailCheckFailed, err))
	}

	m.lastErr = nil
	if len(methods) > 0 {
		m.newUser = false
		m.state = PasswordEntry
	} else {
		m.newUser = true
		m.state = NameSurnameEntry
	}
	m.publishLocked()
	return nil
}

// SubmitName records the name and surname of a new user.
func (m *Machine) SubmitName(firstName, lastName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != NameSurnameEntry {
		return ErrWrongState
	}
	m.firstName = firstName
	m.lastName = lastName
	if err := validateName(firstName, lastName); err != nil {
		return m.failLocked(err)
	}
	m.lastErr = nil
	m.state = PasswordEntry
	m.publishLocked()
	return nil
}

// SubmitPassword creates the account, or signs in when creation fails. Exactly
// one creation attempt and at most one sign in attempt are made per call.
func (m *Machine) SubmitPassword(ctx context.Context, password string) error {
	m.mu.Lock()
	if m.state != PasswordEntry {
		m.mu.Unlock()
		return ErrWrongState
	}
	if m.submitting {
		m.mu.Unlock()
		return ErrBusy
	}
	if err := validatePassword(password); err != nil {
		defer m.mu.Unlock()
		return m.failLocked(err)
	}

	email := strings.TrimSpace(m.email)
	newUser := m.newUser
	firstName := strings.TrimSpace(m.firstName)
	lastName := strings.TrimSpace(m.lastName)
	m.submitting = true
	m.lastErr = nil
	gen := m.submitGen
	ctx, cancel := context.WithCancel(ctx)
	m.cancelSubmit = cancel
	m.publishLocked()
	m.mu.Unlock()
	defer cancel()

	account, createErr := m.session.CreateAccount(ctx, email, password)
	if createErr == nil {
		if m.submitStale(gen, account) {
			return ErrSuperseded
		}
		if newUser && (firstName != "" || lastName != "") {
			m.saveProfile(ctx, account, firstName, lastName)
		}
	} else {
		Logger.Log.Infof("account creation for %s failed, trying sign in: %v", email, createErr)
		var signInErr error
		account, signInErr = m.session.SignIn(ctx, email, password)
		if signInErr != nil {
			m.mu.Lock()
			defer m.mu.Unlock()
			if gen != m.submitGen {
				return ErrSuperseded
			}
			m.submitting = false
			m.cancelSubmit = nil
			if newUser {
				return m.failLocked(remoteError(AccountCreationFailed, createErr))
			}
			return m.failLocked(remoteError(SignInFailed, signInErr))
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.submitGen {
		m.signOutStale(account)
		return ErrSuperseded
	}
	m.submitting = false
	m.cancelSubmit = nil
	m.account = account
	m.state = Authenticated
	m.lastErr = nil
	m.publishLocked()
	Logger.Log.Infof("user %s authenticated", account.Uid)
	return nil
}

// submitStale reports whether the submission of generation gen was reset
// while in flight, signing account out again if so.
func (m *Machine) submitStale(gen uint64, account *gateway.Account) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.submitGen {
		return false
	}
	m.signOutStale(account)
	return true
}

// signOutStale undoes the sign in of a reset submission unless somebody else
// signed in since. Must be called with mu held.
func (m *Machine) signOutStale(account *gateway.Account) {
	Logger.Log.Infof("dropping sign in of %s, the flow was reset", account.Uid)
	if m.session.CurrentUser() == account {
		m.session.SignOut()
	}
}

// saveProfile persists the entered names. A failure does not undo the sign
// up, posts then fall back to the display name.
func (m *Machine) saveProfile(ctx context.Context, account *gateway.Account, firstName, lastName string) {
	profile := model.User{
		Id:        account.Uid,
		FirstName: firstName,
		LastName:  lastName,
	}
	if err := m.store.Set(ctx, m.users.Doc(account.Uid), profile); err != nil {
		Logger.Log.Warnf("fail to persist profile of user %s: %v", account.Uid, err)
	}
}

// Back returns to the previous step keeping everything entered so far. It is
// a no-op on the first step and once authenticated.
func (m *Machine) Back() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return ErrBusy
	}

	switch m.state {
	case NameSurnameEntry:
		m.state = EmailEntry
	case PasswordEntry:
		if m.newUser {
			m.state = NameSurnameEntry
		} else {
			m.state = EmailEntry
		}
	default:
		return nil
	}
	m.lastErr = nil
	m.publishLocked()
	return nil
}

// RequestPasswordReset sends a reset email. It does not change the step.
func (m *Machine) RequestPasswordReset(ctx context.Context, email string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	if err := m.session.SendPasswordReset(ctx, strings.TrimSpace(email)); err != nil {
		Logger.Log.Warnf("fail to send password reset to %s: %v", email, err)
		return passwordResetError(err)
	}
	return nil
}

// Reset starts over from the email step, used after sign out.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.supersedeLocked()
	m.submitGen++
	if m.cancelSubmit != nil {
		m.cancelSubmit()
		m.cancelSubmit = nil
	}
	m.state = EmailEntry
	m.email = ""
	m.firstName = ""
	m.lastName = ""
	m.newUser = false
	m.lastErr = nil
	m.account = nil
	m.submitting = false
	m.publishLocked()
}
