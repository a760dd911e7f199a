package domain

import (
	"context"
	"time"
)

// ProviderCredentials is the email and password provider.
const ProviderCredentials = "credentials"

// Request metadata stored on the session. The HTTP layer sets these from the
// connection, never from submitted form fields.
const (
	MetaUserAgent = "user_agent"
	MetaIPAddress = "ip_address"
)

// IdentityProvider verifies credentials and opens a session.
type IdentityProvider interface {
	SignIn(ctx context.Context, provider string, credentials map[string]string) (*SignInResult, error)
}

type Service interface {
	IdentityProvider
	CreateUser(ctx context.Context, req CreateUserRequest) (*User, error)
	SignOut(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
}

type CreateUserRequest struct {
	ID       string
	Name     string
	Email    string
	Password string
	Role     string
}

type SignInResult struct {
	Identity  Identity
	RawToken  string
	ExpiresAt time.Time
}
