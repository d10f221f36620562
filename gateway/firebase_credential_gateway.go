package gateway

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/pkg/errors"
	identitytoolkit "google.golang.org/api/identitytoolkit/v3"
	"google.golang.org/api/option"
)

const passwordResetRequestType = "PASSWORD_RESET"

// FirebaseCredentialGateway uses the admin SDK for account management and
// the identity toolkit endpoints for everything that needs the password.
type FirebaseCredentialGateway struct {
	admin   *auth.Client
	toolkit *identitytoolkit.Service
}

func NewFirebaseCredentialGateway(ctx context.Context, app *firebase.App, apiKey string) (*FirebaseCredentialGateway, error) {
	admin, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to get firebase auth client")
	}
	toolkit, err := identitytoolkit.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, errors.Wrap(err, "fail to create identity toolkit service")
	}
	return &FirebaseCredentialGateway{admin: admin, toolkit: toolkit}, nil
}

func (g *FirebaseCredentialGateway) SignIn(ctx context.Context, email, password string) (*Account, error) {
	resp, err := g.toolkit.Relyingparty.VerifyPassword(&identitytoolkit.IdentitytoolkitRelyingpartyVerifyPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return &Account{
		Uid:         resp.LocalId,
		Email:       resp.Email,
		DisplayName: resp.DisplayName,
		IdToken:     resp.IdToken,
	}, nil
}

// CreateAccount creates the user with the admin SDK and then signs it in so
// the returned account carries an id token, like the client SDK does.
func (g *FirebaseCredentialGateway) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	record, err := g.admin.CreateUser(ctx, (&auth.UserToCreate{}).Email(email).Password(password))
	if err != nil {
		return nil, err
	}

	account, err := g.SignIn(ctx, email, password)
	if err != nil {
		Logger.Log.Warnf("account %s created but sign in failed: %v", record.UID, err)
		return &Account{Uid: record.UID, Email: record.Email, DisplayName: record.DisplayName}, nil
	}
	return account, nil
}

func (g *FirebaseCredentialGateway) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	record, err := g.admin.GetUserByEmail(ctx, email)
	if auth.IsUserNotFound(err) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	methods := []string{}
	for _, info := range record.ProviderUserInfo {
		methods = append(methods, info.ProviderID)
	}
	if len(methods) == 0 {
		// A user record without linked providers still blocks the email.
		methods = append(methods, PasswordSignInMethod)
	}
	return methods, nil
}

func (g *FirebaseCredentialGateway) SendPasswordReset(ctx context.Context, email string) error {
	_, err := g.toolkit.Relyingparty.GetOobConfirmationCode(&identitytoolkit.Relyingparty{
		Email:       email,
		RequestType: passwordResetRequestType,
	}).Context(ctx).Do()
	return err
}

func (g *FirebaseCredentialGateway) DeleteAccount(ctx context.Context, account *Account) error {
	return g.admin.DeleteUser(ctx, account.Uid)
}
