package signin

import (
	"fmt"
	"strings"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/pkg/errors"
)

type ErrorKind int

const (
	EmptyField ErrorKind = iota
	InvalidEmailFormat
	PasswordTooShort
	EmailCheckFailed
	AccountCreationFailed
	SignInFailed
	PasswordResetFailed
)

func (k ErrorKind) String() string {
	switch k {
	case EmptyField:
		return "empty_field"
	case InvalidEmailFormat:
		return "invalid_email_format"
	case PasswordTooShort:
		return "password_too_short"
	case EmailCheckFailed:
		return "email_check_failed"
	case AccountCreationFailed:
		return "account_creation_failed"
	case SignInFailed:
		return "sign_in_failed"
	case PasswordResetFailed:
		return "password_reset_failed"
	}
	return fmt.Sprintf("error_kind(%d)", int(k))
}

func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Field names carried by validation errors.
const (
	FieldEmail     = "email"
	FieldFirstName = "firstName"
	FieldLastName  = "lastName"
	FieldPassword  = "password"
)

// Error is what every failed step surfaces. None of them is fatal, the user
// can always fix the input and submit again.
type Error struct {
	Kind ErrorKind `json:"kind"`
	// Field is set for validation errors only.
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return e.Kind.String() + ": " + e.Message
}

var (
	// ErrSuperseded is returned by an email check whose answer arrived after
	// the email was edited or submitted again, and by a password submission
	// whose flow was reset meanwhile. Their answers are dropped.
	ErrSuperseded = errors.New("superseded by newer input")
	// ErrBusy is returned when a password is submitted while the previous
	// submission is still in flight.
	ErrBusy = errors.New("a submission is already in flight")
	// ErrWrongState is returned when an action does not apply to the
	// current step.
	ErrWrongState = errors.New("action not allowed in the current state")
)

const NoAccountMessage = "No account found with this email address."

func validationError(kind ErrorKind, field, message string) *Error {
	return &Error{Kind: kind, Field: field, Message: message}
}

func remoteError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Message: err.Error()}
}

// passwordResetError maps the vendor "no such user" failures onto a message
// a user can act on.
func passwordResetError(err error) *Error {
	msg := strings.ToLower(err.Error())
	if errors.Is(err, gateway.ErrUserNotFound) ||
		gateway.Classify(err) == gateway.NotFound ||
		strings.Contains(msg, "no user record") ||
		strings.Contains(msg, "email_not_found") ||
		strings.Contains(msg, "usernotfoundexception") {
		return &Error{Kind: PasswordResetFailed, Field: FieldEmail, Message: NoAccountMessage}
	}
	return &Error{Kind: PasswordResetFailed, Message: "Failed to send reset email. Error: " + err.Error()}
}
