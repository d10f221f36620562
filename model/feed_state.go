package model

import "fmt"

// FeedError is the error state of a list view. The zero value means the list
// loaded and is not empty.
type FeedError string

const (
	FeedErrorNone FeedError = ""
	// The store answered, but there is nothing to show yet.
	FeedErrorNoPublication FeedError = "no_publication"
	// The store could not be reached.
	FeedErrorNoNetwork FeedError = "no_network"
	FeedErrorUnknown   FeedError = "unknown_error"
)

var AllFeedError = []FeedError{
	FeedErrorNone,
	FeedErrorNoPublication,
	FeedErrorNoNetwork,
	FeedErrorUnknown,
}

func (e FeedError) IsValid() bool {
	switch e {
	case FeedErrorNone, FeedErrorNoPublication, FeedErrorNoNetwork, FeedErrorUnknown:
		return true
	}
	return false
}

func (e FeedError) String() string {
	return string(e)
}

func (e *FeedError) UnmarshalText(text []byte) error {
	*e = FeedError(text)
	if !e.IsValid() {
		return fmt.Errorf("%s is not a valid FeedError", string(text))
	}
	return nil
}

// FeedState is what feed watchers receive on every snapshot.
type FeedState struct {
	Posts []*Post   `json:"posts"`
	Error FeedError `json:"error"`
}
