package feedsync

import (
	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
)

// Failure is the only error type returned by this package. Every failure is
// recoverable, the caller may simply retry.
type Failure struct {
	Kind    gateway.FailureKind `json:"kind"`
	Message string              `json:"message"`
	cause   error
}

func (f *Failure) Error() string {
	return f.Kind.String() + ": " + f.Message
}

func (f *Failure) Unwrap() error {
	return f.cause
}

func newFailure(err error) *Failure {
	if f, ok := err.(*Failure); ok {
		return f
	}
	return &Failure{Kind: gateway.Classify(err), Message: err.Error(), cause: err}
}

// feedError reduces a listing failure to what a list view shows.
func feedError(err error) model.FeedError {
	if gateway.Classify(err) == gateway.NetworkUnavailable {
		return model.FeedErrorNoNetwork
	}
	return model.FeedErrorUnknown
}
