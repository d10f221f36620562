package feedsync

import (
	"context"

	"github.com/Luismorlan/hexfeed/gateway"
	"github.com/Luismorlan/hexfeed/model"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
)

const (
	defaultFirstName = "Anonymous"
	defaultLastName  = "User"
)

// resolveAuthor builds the author snapshot embedded in new posts and comments.
// It never fails: a missing or unreadable profile falls back to the display
// name of the account, then to placeholders.
func resolveAuthor(ctx context.Context, store gateway.DocumentStore, account *gateway.Account) *model.User {
	fallback := &model.User{
		Id:        account.Uid,
		FirstName: defaultFirstName,
		LastName:  defaultLastName,
	}
	if account.DisplayName != "" {
		fallback.FirstName = account.DisplayName
	}

	doc, err := store.Get(ctx, gateway.Collection(model.UsersCollection).Doc(account.Uid))
	if err != nil {
		Logger.Log.Warnf("profile of %s unavailable, using fallback author: %v", account.Uid, err)
		return fallback
	}

	var profile model.User
	if err := doc.DataTo(&profile); err != nil {
		Logger.Log.Warnf("profile of %s undecodable, using fallback author: %v", account.Uid, err)
		return fallback
	}
	author := &model.User{
		Id:        account.Uid,
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
	}
	if author.FirstName == "" {
		author.FirstName = defaultFirstName
	}
	if author.LastName == "" {
		author.LastName = defaultLastName
	}
	return author
}
