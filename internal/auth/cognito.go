// Package auth handles user identity: Cognito sign-up and sign-in flows,
// and JWT verification for the API routes.
package auth

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

// cognitoAPI is the subset of the Cognito IdP client used here.
type cognitoAPI interface {
	SignUp(ctx context.Context, in *cognitoidentityprovider.SignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.SignUpOutput, error)
	ConfirmSignUp(ctx context.Context, in *cognitoidentityprovider.ConfirmSignUpInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.ConfirmSignUpOutput, error)
	InitiateAuth(ctx context.Context, in *cognitoidentityprovider.InitiateAuthInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.InitiateAuthOutput, error)
}

// Tokens holds the credentials issued on a successful sign-in.
type Tokens struct {
	IDToken      string `json:"id_token"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Cognito wraps the user pool operations the chat service needs.
type Cognito struct {
	api      cognitoAPI
	clientID string
}

// NewCognito creates a Cognito auth client for the given app client.
func NewCognito(api cognitoAPI, clientID string) (*Cognito, error) {
	if api == nil {
		return nil, fmt.Errorf("auth: cognito api must not be nil")
	}
	if clientID == "" {
		return nil, fmt.Errorf("auth: client id must not be empty")
	}
	return &Cognito{api: api, clientID: clientID}, nil
}

// SignUp registers a new user with an email attribute.
func (c *Cognito) SignUp(ctx context.Context, username, password, email string) error {
	_, err := c.api.SignUp(ctx, &cognitoidentityprovider.SignUpInput{
		ClientId: aws.String(c.clientID),
		Username: aws.String(username),
		Password: aws.String(password),
		UserAttributes: []types.AttributeType{
			{Name: aws.String("email"), Value: aws.String(email)},
		},
	})
	if err != nil {
		return fmt.Errorf("auth: sign up %s: %w", username, err)
	}
	return nil
}

// ConfirmSignUp completes registration with the emailed confirmation code.
func (c *Cognito) ConfirmSignUp(ctx context.Context, username, code string) error {
	_, err := c.api.ConfirmSignUp(ctx, &cognitoidentityprovider.ConfirmSignUpInput{
		ClientId:         aws.String(c.clientID),
		Username:         aws.String(username),
		ConfirmationCode: aws.String(code),
	})
	if err != nil {
		return fmt.Errorf("auth: confirm sign up %s: %w", username, err)
	}
	return nil
}

// SignIn authenticates with username and password.
func (c *Cognito) SignIn(ctx context.Context, username, password string) (Tokens, error) {
	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeUserPasswordAuth,
		AuthParameters: map[string]string{
			"USERNAME": username,
			"PASSWORD": password,
		},
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("auth: sign in %s: %w", username, err)
	}
	return tokensFromResult(out.AuthenticationResult)
}

// Refresh exchanges a refresh token for fresh ID and access tokens.
func (c *Cognito) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	out, err := c.api.InitiateAuth(ctx, &cognitoidentityprovider.InitiateAuthInput{
		ClientId: aws.String(c.clientID),
		AuthFlow: types.AuthFlowTypeRefreshTokenAuth,
		AuthParameters: map[string]string{
			"REFRESH_TOKEN": refreshToken,
		},
	})
	if err != nil {
		return Tokens{}, fmt.Errorf("auth: refresh: %w", err)
	}
	tokens, err := tokensFromResult(out.AuthenticationResult)
	if err != nil {
		return Tokens{}, err
	}
	// Cognito does not rotate refresh tokens on this flow.
	if tokens.RefreshToken == "" {
		tokens.RefreshToken = refreshToken
	}
	return tokens, nil
}

func tokensFromResult(result *types.AuthenticationResultType) (Tokens, error) {
	if result == nil {
		return Tokens{}, fmt.Errorf("auth: no authentication result returned")
	}
	return Tokens{
		IDToken:      aws.ToString(result.IdToken),
		AccessToken:  aws.ToString(result.AccessToken),
		RefreshToken: aws.ToString(result.RefreshToken),
	}, nil
}
