package core

import (
	"context"

	"backoffice/internal/types"
)

// Authenticator resolves a bearer token to the acting user.
//
// Implementations return ErrCodeAuthTokenExpired for expired tokens and
// ErrCodeAuthTokenInvalid for anything else they reject.
type Authenticator interface {
	ResolveToken(ctx context.Context, token string) (*types.Actor, error)
}
