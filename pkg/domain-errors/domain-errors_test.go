package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite covers the primitives every service and handler relies on
// when translating failures across layers.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorString() {
	s.Equal("challenge not found", New(CodeNotFound, "challenge not found").Error())
	s.Equal("identity_unresolved", (&Error{Code: CodeIdentityUnresolved}).Error())
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	s.Run("same code, different message", func() {
		s.True(errors.Is(New(CodeForbidden, "owner role required"), &Error{Code: CodeForbidden}))
	})

	s.Run("different code", func() {
		s.False(errors.Is(New(CodeForbidden, "x"), &Error{Code: CodeNotFound}))
	})

	s.Run("plain errors never match", func() {
		s.False((&Error{Code: CodeNotFound}).Is(errors.New("not found")))
	})

	s.Run("through fmt wrapping", func() {
		err := fmt.Errorf("load: %w", New(CodeNotFound, "tenant not found"))
		s.True(errors.Is(err, &Error{Code: CodeNotFound}))
	})
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("keeps the original domain code", func() {
		wrapped := Wrap(New(CodeUnauthorized, "missing user"), CodeInternal, "resolve failed")
		s.True(HasCode(wrapped, CodeUnauthorized))
		s.Equal("resolve failed", wrapped.Error())
	})

	s.Run("assigns the code to plain errors and keeps the cause", func() {
		cause := errors.New("connection reset")
		wrapped := Wrap(cause, CodeInternal, "failed to load challenge")
		s.True(HasCode(wrapped, CodeInternal))
		s.ErrorIs(wrapped, cause)
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("plain"), CodeNotFound))
	s.True(HasCode(New(CodeIdentityUnresolved, "no context"), CodeIdentityUnresolved))
}

func (s *DomainErrorsSuite) TestHintSurvivesWrapping() {
	base := WithHint(CodeIdentityUnresolved, "no context", "send a company id")
	s.Equal("send a company id", HintOf(base))

	wrapped := Wrap(base, CodeInternal, "resolve failed")
	s.True(HasCode(wrapped, CodeIdentityUnresolved))
	s.Equal("send a company id", HintOf(wrapped))

	s.Empty(HintOf(New(CodeNotFound, "missing")))
	s.Empty(HintOf(errors.New("plain")))
}
