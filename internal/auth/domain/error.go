package domain

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("user already exists")
	ErrInvalidUser     = errors.New("invalid user")
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionRevoked  = errors.New("session revoked")
	ErrInvalidSession  = errors.New("invalid session")
)

type AuthErrorKind string

const (
	KindCredentialsSignin   AuthErrorKind = "CredentialsSignin"
	KindUnsupportedProvider AuthErrorKind = "UnsupportedProvider"
	KindAccessDenied        AuthErrorKind = "AccessDenied"
)

// AuthError is a sign-in failure the identity provider understood. Store
// and network faults are never wrapped in an AuthError.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return "auth: " + string(e.Kind)
	}
	return "auth: " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
