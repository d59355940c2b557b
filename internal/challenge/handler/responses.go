package handler

import (
	"time"

	"streak/internal/challenge/models"
)

// ChallengeResponse adds the derived status to the stored challenge.
type ChallengeResponse struct {
	*models.Challenge
	Status models.Status `json:"status"`
}

func toChallengeResponse(c *models.Challenge, now time.Time) *ChallengeResponse {
	return &ChallengeResponse{Challenge: c, Status: c.Status(now)}
}

type ChallengeListResponse struct {
	Challenges []*ChallengeResponse `json:"challenges"`
	Limit      int                  `json:"limit"`
	Offset     int                  `json:"offset"`
}

type ProofListResponse struct {
	Proofs []*models.Proof `json:"proofs"`
}

type WinnerListResponse struct {
	Winners []*models.Winner `json:"winners"`
}

type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}
