package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"streak/contracts/identity"
	"streak/internal/challenge/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/httputil"
	"streak/pkg/platform/validation"
	"streak/pkg/requestcontext"
)

// Service defines the challenge operations exposed over HTTP.
// Returns domain objects, not HTTP response DTOs.
type Service interface {
	CreateChallenge(ctx context.Context, p identity.Principal, req *models.CreateChallengeRequest) (*models.Challenge, error)
	UpdateChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.UpdateChallengeRequest) (*models.Challenge, error)
	DeleteChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) error
	GetChallenge(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Challenge, error)
	ListChallenges(ctx context.Context, p identity.Principal, status models.Status, page models.Page) ([]*models.Challenge, error)
	GetChallengeStats(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.ChallengeStats, error)
	Enroll(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) (*models.Enrollment, bool, error)
	SubmitProof(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.SubmitProofRequest) (*models.Proof, error)
	ListProofs(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, page models.Page) ([]*models.Proof, error)
	SetWinners(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.SetWinnersRequest) ([]*models.Winner, error)
	ListWinners(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Winner, error)
	Leaderboard(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]models.LeaderboardEntry, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the challenge routes. The router must already run the
// identity middleware.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/challenges", h.HandleList)
	r.Post("/v1/challenges", h.HandleCreate)
	r.Get("/v1/challenges/{id}", h.HandleGet)
	r.Patch("/v1/challenges/{id}", h.HandleUpdate)
	r.Delete("/v1/challenges/{id}", h.HandleDelete)
	r.Get("/v1/challenges/{id}/stats", h.HandleStats)
	r.Post("/v1/challenges/{id}/enroll", h.HandleEnroll)
	r.Get("/v1/challenges/{id}/proofs", h.HandleListProofs)
	r.Post("/v1/challenges/{id}/proofs", h.HandleSubmitProof)
	r.Get("/v1/challenges/{id}/winners", h.HandleListWinners)
	r.Put("/v1/challenges/{id}/winners", h.HandleSetWinners)
	r.Get("/v1/challenges/{id}/leaderboard", h.HandleLeaderboard)
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateChallengeRequest](w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.service.CreateChallenge(ctx, p, req)
	if err != nil {
		h.fail(ctx, w, "create challenge failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toChallengeResponse(c, requestcontext.Now(ctx)))
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, ok := h.principal(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.service.ListChallenges(ctx, p, models.Status(r.URL.Query().Get("status")), page)
	if err != nil {
		h.fail(ctx, w, "list challenges failed", err)
		return
	}
	now := requestcontext.Now(ctx)
	out := make([]*ChallengeResponse, 0, len(list))
	for _, c := range list {
		out = append(out, toChallengeResponse(c, now))
	}
	httputil.WriteJSON(w, http.StatusOK, &ChallengeListResponse{Challenges: out, Limit: page.Limit, Offset: page.Offset})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	c, err := h.service.GetChallenge(ctx, p, challengeID)
	if err != nil {
		h.fail(ctx, w, "get challenge failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toChallengeResponse(c, requestcontext.Now(ctx)))
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateChallengeRequest](w, r, h.logger)
	if !ok {
		return
	}
	c, err := h.service.UpdateChallenge(ctx, p, challengeID, req)
	if err != nil {
		h.fail(ctx, w, "update challenge failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toChallengeResponse(c, requestcontext.Now(ctx)))
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteChallenge(ctx, p, challengeID); err != nil {
		h.fail(ctx, w, "delete challenge failed", err, "challenge_id", challengeID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	stats, err := h.service.GetChallengeStats(ctx, p, challengeID)
	if err != nil {
		h.fail(ctx, w, "challenge stats failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

// HandleEnroll answers 201 for a new enrollment and 200 when the caller was
// already enrolled.
func (h *Handler) HandleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	e, created, err := h.service.Enroll(ctx, p, challengeID)
	if err != nil {
		h.fail(ctx, w, "enroll failed", err, "challenge_id", challengeID)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, e)
}

func (h *Handler) HandleSubmitProof(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SubmitProofRequest](w, r, h.logger)
	if !ok {
		return
	}
	proof, err := h.service.SubmitProof(ctx, p, challengeID, req)
	if err != nil {
		h.fail(ctx, w, "submit proof failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, proof)
}

func (h *Handler) HandleListProofs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	page, err := parsePage(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	proofs, err := h.service.ListProofs(ctx, p, challengeID, page)
	if err != nil {
		h.fail(ctx, w, "list proofs failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &ProofListResponse{Proofs: proofs})
}

func (h *Handler) HandleSetWinners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SetWinnersRequest](w, r, h.logger)
	if !ok {
		return
	}
	winners, err := h.service.SetWinners(ctx, p, challengeID, req)
	if err != nil {
		h.fail(ctx, w, "set winners failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &WinnerListResponse{Winners: winners})
}

func (h *Handler) HandleListWinners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	winners, err := h.service.ListWinners(ctx, p, challengeID)
	if err != nil {
		h.fail(ctx, w, "list winners failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &WinnerListResponse{Winners: winners})
}

func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	board, err := h.service.Leaderboard(ctx, p, challengeID)
	if err != nil {
		h.fail(ctx, w, "leaderboard failed", err, "challenge_id", challengeID)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &LeaderboardResponse{Entries: board})
}

func (h *Handler) principal(w http.ResponseWriter, r *http.Request) (identity.Principal, bool) {
	p, err := httputil.RequirePrincipal(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return p, false
	}
	return p, true
}

func (h *Handler) principalAndChallenge(w http.ResponseWriter, r *http.Request) (identity.Principal, id.ChallengeID, bool) {
	p, ok := h.principal(w, r)
	if !ok {
		return p, id.ChallengeID{}, false
	}
	challengeID, err := id.ParseChallengeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid challenge id"))
		return p, id.ChallengeID{}, false
	}
	return p, challengeID, true
}

// fail logs at ERROR only for server-side failures; client errors are routine.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, msg string, err error, attrs ...any) {
	attrs = append(attrs, "error", err, "request_id", requestcontext.RequestID(ctx))
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.InfoContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}

func parsePage(r *http.Request) (models.Page, error) {
	var page models.Page
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, dErrors.New(dErrors.CodeBadRequest, "limit must be an integer")
		}
		page.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return page, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		page.Offset = n
	}
	page.Limit = validation.ClampPageSize(page.Limit)
	return page, nil
}
