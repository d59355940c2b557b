package platformauth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	dErrors "streak/pkg/domain-errors"
	"streak/pkg/requestcontext"
)

type VerifierSuite struct {
	suite.Suite
	verifier *Verifier
	now      time.Time
	ctx      context.Context
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.verifier = NewVerifier("test-secret", WithIssuer("platform"))
	s.now = time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *VerifierSuite) TestValidToken() {
	token, err := s.verifier.Sign("user_abc", " Dana ", s.now, time.Hour)
	s.Require().NoError(err)

	caller, err := s.verifier.Verify(s.ctx, token)
	s.Require().NoError(err)
	s.Equal("user_abc", caller.ExternalUserID.String())
	s.Equal("Dana", caller.DisplayName)
}

func (s *VerifierSuite) TestRejections() {
	expired, err := s.verifier.Sign("user_abc", "", s.now.Add(-2*time.Hour), time.Hour)
	s.Require().NoError(err)

	otherSecret, err := NewVerifier("other", WithIssuer("platform")).Sign("user_abc", "", s.now, time.Hour)
	s.Require().NoError(err)

	otherIssuer, err := NewVerifier("test-secret", WithIssuer("someone-else")).Sign("user_abc", "", s.now, time.Hour)
	s.Require().NoError(err)

	noSubject, err := s.verifier.Sign("", "", s.now, time.Hour)
	s.Require().NoError(err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user_abc",
		Issuer:    "platform",
		ExpiresAt: jwt.NewNumericDate(s.now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	s.Require().NoError(err)

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong secret": otherSecret,
		"wrong issuer": otherIssuer,
		"no subject":   noSubject,
		"alg none":     noneAlg,
	}
	for name, token := range cases {
		s.Run(name, func() {
			caller, err := s.verifier.Verify(s.ctx, token)
			s.Nil(caller)
			s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		})
	}
}
