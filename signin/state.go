package signin

import (
	"fmt"

	"github.com/Luismorlan/hexfeed/gateway"
)

type State int

const (
	EmailEntry State = iota
	NameSurnameEntry
	PasswordEntry
	Authenticated
)

var AllState = []State{
	EmailEntry,
	NameSurnameEntry,
	PasswordEntry,
	Authenticated,
}

func (s State) String() string {
	switch s {
	case EmailEntry:
		return "email_entry"
	case NameSurnameEntry:
		return "name_surname_entry"
	case PasswordEntry:
		return "password_entry"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, candidate := range AllState {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("%s is not a valid sign in state", string(text))
}

// Snapshot is an immutable copy of everything a screen needs to render the
// current step.
type Snapshot struct {
	State     State  `json:"state"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	// NewUser is set once the email check found no account.
	NewUser bool `json:"newUser"`
	// Checking is set while the email check is in flight, Submitting while
	// the password step is.
	Checking   bool             `json:"checking"`
	Submitting bool             `json:"submitting"`
	Error      *Error           `json:"error,omitempty"`
	Account    *gateway.Account `json:"account,omitempty"`
}
