package core

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"backoffice/internal/types"
)

// Claims are the JWT claims accepted by JWTAuthenticator. The subject holds
// the numeric user id.
type Claims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthenticator verifies HS256 bearer tokens.
type JWTAuthenticator struct {
	secret []byte
	issuer string
	leeway time.Duration
	clock  types.Clock
}

// NewJWTAuthenticator creates an authenticator for tokens signed with secret.
// An empty issuer disables the iss check. clock may be nil.
func NewJWTAuthenticator(secret []byte, issuer string, leeway time.Duration, clock types.Clock) *JWTAuthenticator {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &JWTAuthenticator{secret: secret, issuer: issuer, leeway: leeway, clock: clock}
}

// ResolveToken implements Authenticator.
func (a *JWTAuthenticator) ResolveToken(_ context.Context, token string) (*types.Actor, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.clock.Now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, types.NewAppError(types.ErrCodeAuthTokenExpired, "token expired", err)
		}
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", err)
	}
	if !parsed.Valid {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token", nil)
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid token subject", err)
	}

	return &types.Actor{UserID: userID, Username: claims.Username}, nil
}

// IssueToken signs a token for the given user valid for ttl.
func (a *JWTAuthenticator) IssueToken(userID int64, username string, ttl time.Duration) (string, error) {
	now := a.clock.Now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			Issuer:    a.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}
