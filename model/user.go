package model

/*
User is the profile of an authenticated account.

Id: the account uid assigned by the credential provider
FirstName: given name entered during registration
LastName: family name entered during registration

Stored under users/{Id}. Posts and comments embed a copy of it as their author
at creation time, they never reference it live.
*/
type User struct {
	Id        string `json:"id" firestore:"id"`
	FirstName string `json:"firstName" firestore:"firstName"`
	LastName  string `json:"lastName" firestore:"lastName"`
}

// DisplayName joins first and last name with a single space, skipping empty
// parts.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
