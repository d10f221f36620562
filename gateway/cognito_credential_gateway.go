package gateway

import (
	"context"
	"strings"

	Logger "github.com/Luismorlan/hexfeed/utils/log"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/pkg/errors"
)

const (
	cognitoSubAttribute  = "sub"
	cognitoNameAttribute = "name"
)

// cognitoAPI is the subset of the Cognito client this gateway uses.
type cognitoAPI interface {
	InitiateAuth(ctx context.Context, params *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
	SignUp(ctx context.Context, params *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	ListUsers(ctx context.Context, params *cognitoidentityprovider.ListUsersInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ListUsersOutput, error)
	ForgotPassword(ctx context.Context, params *cognitoidentityprovider.ForgotPasswordInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ForgotPasswordOutput, error)
	DeleteUser(ctx context.Context, params *cognitoidentityprovider.DeleteUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.DeleteUserOutput, error)
	GetUser(ctx context.Context, params *cognitoidentityprovider.GetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.GetUserOutput, error)
}

// CognitoCredentialGateway is the CredentialGateway backed by a Cognito user
// pool. The pool uses the email as the username.
type CognitoCredentialGateway struct {
	client     cognitoAPI
	userPoolId string
	clientId   string
}

// NewCognitoCredentialGateway creates a client with the aws config located in
// ~/.aws/config or the environment.
func NewCognitoCredentialGateway(ctx context.Context, userPoolId, clientId string) (*CognitoCredentialGateway, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "fail to load aws config")
	}
	return newCognitoCredentialGateway(cognitoidentityprovider.NewFromConfig(cfg), userPoolId, clientId), nil
}

func newCognitoCredentialGateway(client cognitoAPI, userPoolId, clientId string) *CognitoCredentialGateway {
	return &CognitoCredentialGateway{client: client, userPoolId: userPoolId, clientId: clientId}
}

func (g *CognitoCredentialGateway) SignIn(ctx context.Context, email, password string) (*Account, error) {
	out, err := g.client.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		ClientId: aws.String(g.clientId),
		AuthParameters: map[string]string{
			"USERNAME": email,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return nil, err
	}
	if out.AuthenticationResult == nil || out.AuthenticationResult.AccessToken == nil {
		return nil, errors.Errorf("sign in for %s requires challenge %s", email, out.ChallengeName)
	}

	account := &Account{
		Email:       email,
		IdToken:     aws.ToString(out.AuthenticationResult.IdToken),
		AccessToken: aws.ToString(out.AuthenticationResult.AccessToken),
	}

	user, err := g.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{
		AccessToken: out.AuthenticationResult.AccessToken,
	})
	if err != nil {
		return nil, errors.Wrap(err, "fail to get signed in user")
	}
	account.Uid = aws.ToString(user.Username)
	for _, attr := range user.UserAttributes {
		switch aws.ToString(attr.Name) {
		case cognitoSubAttribute:
			account.Uid = aws.ToString(attr.Value)
		case cognitoNameAttribute:
			account.DisplayName = aws.ToString(attr.Value)
		}
	}
	return account, nil
}

// CreateAccount signs the user up and signs it in right away. Pools that
// require confirmation fail the sign in and so fail the creation, the user
// stays in the pool unconfirmed.
func (g *CognitoCredentialGateway) CreateAccount(ctx context.Context, email, password string) (*Account, error) {
	out, err := g.client.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(g.clientId),
		Username: aws.String(email),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	if err != nil {
		return nil, err
	}

	account, err := g.SignIn(ctx, email, password)
	if err != nil {
		Logger.Log.Warnf("cognito user %s signed up but sign in failed: %v", aws.ToString(out.UserSub), err)
		return nil, errors.Wrapf(err, "account %s was created but cannot sign in", email)
	}
	return account, nil
}

func (g *CognitoCredentialGateway) FetchSignInMethods(ctx context.Context, email string) ([]string, error) {
	out, err := g.client.ListUsers(ctx, &cognitoidentityprovider.ListUsersInput{
		UserPoolId: aws.String(g.userPoolId),
		Filter:     aws.String(`email = "` + strings.ReplaceAll(email, `"`, "") + `"`),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Users) == 0 {
		return []string{}, nil
	}
	return []string{PasswordSignInMethod}, nil
}

func (g *CognitoCredentialGateway) SendPasswordReset(ctx context.Context, email string) error {
	_, err := g.client.ForgotPassword(ctx, &cognitoidentityprovider.ForgotPasswordInput{
		ClientId: aws.String(g.clientId),
		Username: aws.String(email),
	})
	return err
}

func (g *CognitoCredentialGateway) DeleteAccount(ctx context.Context, account *Account) error {
	if account.AccessToken == "" {
		return errors.Errorf("account %s has no access token", account.Uid)
	}
	_, err := g.client.DeleteUser(ctx, &cognitoidentityprovider.DeleteUserInput{
		AccessToken: aws.String(account.AccessToken),
	})
	return err
}

// VerifyAccessToken resolves the account owning an access token.
func (g *CognitoCredentialGateway) VerifyAccessToken(ctx context.Context, token string) (*Account, error) {
	user, err := g.client.GetUser(ctx, &cognitoidentityprovider.GetUserInput{AccessToken: aws.String(token)})
	if err != nil {
		return nil, err
	}
	account := &Account{Uid: aws.ToString(user.Username), AccessToken: token}
	for _, attr := range user.UserAttributes {
		switch aws.ToString(attr.Name) {
		case cognitoSubAttribute:
			account.Uid = aws.ToString(attr.Value)
		case cognitoNameAttribute:
			account.DisplayName = aws.ToString(attr.Value)
		case "email":
			account.Email = aws.ToString(attr.Value)
		}
	}
	return account, nil
}
