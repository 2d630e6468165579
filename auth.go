package server

import (
	"context"
	"errors"
)

// ErrUnauthenticated is returned when a join token does not resolve to an
// account.
var ErrUnauthenticated = errors.New("unauthenticated")

// Principal is the verified identity behind a session. Account identity
// comes from outside; the game core only consumes it.
type Principal struct {
	AccountID   string
	CharacterID string
	DisplayName string
}

// Authenticator resolves opaque join tokens into principals.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Principal, error)
}

// AllowAllAuthenticator accepts any non-empty token and derives the identity
// from it. Used in development and tests.
type AllowAllAuthenticator struct{}

func (AllowAllAuthenticator) Authenticate(_ context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{
		AccountID:   "acct-" + token,
		CharacterID: "char-" + token,
		DisplayName: token,
	}, nil
}
