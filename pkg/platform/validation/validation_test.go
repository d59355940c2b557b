package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "streak/pkg/domain-errors"
)

type ValidationSuite struct {
	suite.Suite
}

func TestValidationSuite(t *testing.T) {
	suite.Run(t, new(ValidationSuite))
}

type sampleRequest struct {
	Title     string    `json:"title" validate:"notblank,max=200"`
	Cadence   string    `json:"cadence" validate:"oneof=daily weekly"`
	StartsAt  time.Time `json:"startsAt" validate:"required"`
	EndsAt    time.Time `json:"endsAt" validate:"required,gtfield=StartsAt"`
	MinProofs int       `json:"minProofs" validate:"gte=0"`
}

func (s *ValidationSuite) valid() sampleRequest {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return sampleRequest{Title: "30 days", Cadence: "daily", StartsAt: start, EndsAt: start.Add(24 * time.Hour)}
}

func (s *ValidationSuite) TestValidate() {
	s.Run("valid request passes", func() {
		s.NoError(Validate(s.valid()))
	})

	s.Run("blank title reports json name", func() {
		req := s.valid()
		req.Title = "   "
		err := Validate(req)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		s.Contains(err.Error(), "title must not be blank")
	})

	s.Run("unknown cadence", func() {
		req := s.valid()
		req.Cadence = "hourly"
		s.Contains(Validate(req).Error(), "cadence must be one of [daily weekly]")
	})

	s.Run("end before start", func() {
		req := s.valid()
		req.EndsAt = req.StartsAt.Add(-time.Hour)
		s.Contains(Validate(req).Error(), "endsAt must be after")
	})
}

func (s *ValidationSuite) TestLimits() {
	s.NoError(CheckStringLength("title", strings.Repeat("a", MaxTitleLength), MaxTitleLength))
	s.Error(CheckStringLength("title", strings.Repeat("a", MaxTitleLength+1), MaxTitleLength))
	s.NoError(CheckSliceCount("winners", MaxWinners, MaxWinners))
	s.Error(CheckSliceCount("winners", MaxWinners+1, MaxWinners))

	s.Equal(DefaultPageSize, ClampPageSize(0))
	s.Equal(MaxPageSize, ClampPageSize(MaxPageSize+1))
	s.Equal(7, ClampPageSize(7))
}
