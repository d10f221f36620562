package gateway

import (
	"net"

	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUnavailable      = errors.New("backend unavailable")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNoCurrentUser    = errors.New("no user is currently signed in")
)

// FailureKind is the coarse classification every remote failure is reduced to
// before it is surfaced to a caller.
type FailureKind int

const (
	Unknown FailureKind = iota
	NetworkUnavailable
	PermissionDenied
	NotFound
)

func (k FailureKind) String() string {
	switch k {
	case NetworkUnavailable:
		return "network_unavailable"
	case PermissionDenied:
		return "permission_denied"
	case NotFound:
		return "not_found"
	}
	return "unknown"
}

// Classify maps an error returned by any adapter onto a FailureKind. Sentinel
// errors win, then grpc status codes (Firestore), then net.Error.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, ErrNotFound):
		return NotFound
	case errors.Is(err, ErrUnavailable):
		return NetworkUnavailable
	case errors.Is(err, ErrPermissionDenied):
		return PermissionDenied
	}

	switch status.Code(errors.Cause(err)) {
	case codes.NotFound:
		return NotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return NetworkUnavailable
	case codes.PermissionDenied, codes.Unauthenticated:
		return PermissionDenied
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return NetworkUnavailable
	}
	return Unknown
}

func (k FailureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}
