// Package platformauth verifies the user token the hosting platform attaches
// to every embedded request and extracts the external user id from it.
package platformauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/requestcontext"
)

// Claims are the fields read from a platform user token. Subject is the
// external user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Caller is a verified token holder.
type Caller struct {
	ExternalUserID id.ExternalUserID
	DisplayName    string
}

// Verifier checks HS256 platform tokens.
type Verifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

type Option func(*Verifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(issuer string) Option {
	return func(v *Verifier) {
		v.issuer = issuer
	}
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) Option {
	return func(v *Verifier) {
		v.leeway = d
	}
}

func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{secret: []byte(secret), leeway: 30 * time.Second}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses and validates tokenString. Every failure is CodeUnauthorized;
// the cause is kept for logs only.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (*Caller, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing platform token")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return requestcontext.Now(ctx) }),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "platform token expired")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid platform token")
	}

	userID, err := id.ParseExternalUserID(claims.Subject)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "platform token has no subject")
	}
	return &Caller{ExternalUserID: userID, DisplayName: strings.TrimSpace(claims.Name)}, nil
}

// Sign issues a token the Verifier accepts. Used by streakctl and tests to
// act as the platform in local environments.
func (v *Verifier) Sign(userID id.ExternalUserID, name string, now time.Time, ttl time.Duration) (string, error) {
	claims := Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
