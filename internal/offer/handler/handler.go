package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"streak/contracts/identity"
	"streak/internal/offer/models"
	id "streak/pkg/domain"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/httputil"
	"streak/pkg/requestcontext"
)

type Service interface {
	CreateOffer(ctx context.Context, p identity.Principal, challengeID id.ChallengeID, req *models.CreateOfferRequest) (*models.Offer, error)
	UpdateOffer(ctx context.Context, p identity.Principal, offerID id.OfferID, req *models.UpdateOfferRequest) (*models.Offer, error)
	ListOffers(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Offer, error)
	ListEligibleOffers(ctx context.Context, p identity.Principal, challengeID id.ChallengeID) ([]*models.Offer, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/challenges/{id}/offers", h.HandleList)
	r.Post("/v1/challenges/{id}/offers", h.HandleCreate)
	r.Get("/v1/challenges/{id}/offers/eligible", h.HandleEligible)
	r.Patch("/v1/offers/{offerId}", h.HandleUpdate)
}

type OfferListResponse struct {
	Offers []*models.Offer `json:"offers"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.CreateOfferRequest](w, r, h.logger)
	if !ok {
		return
	}
	o, err := h.service.CreateOffer(ctx, p, challengeID, req)
	if err != nil {
		h.logger.InfoContext(ctx, "create offer failed", "error", err, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offerID, err := id.ParseOfferID(chi.URLParam(r, "offerId"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid offer id"))
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpdateOfferRequest](w, r, h.logger)
	if !ok {
		return
	}
	o, err := h.service.UpdateOffer(ctx, p, offerID, req)
	if err != nil {
		h.logger.InfoContext(ctx, "update offer failed", "error", err, "offer_id", offerID, "request_id", requestcontext.RequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	offers, err := h.service.ListOffers(ctx, p, challengeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &OfferListResponse{Offers: offers})
}

func (h *Handler) HandleEligible(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, challengeID, ok := h.principalAndChallenge(w, r)
	if !ok {
		return
	}
	offers, err := h.service.ListEligibleOffers(ctx, p, challengeID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &OfferListResponse{Offers: offers})
}

func (h *Handler) principalAndChallenge(w http.ResponseWriter, r *http.Request) (identity.Principal, id.ChallengeID, bool) {
	p, err := httputil.RequirePrincipal(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return p, id.ChallengeID{}, false
	}
	challengeID, err := id.ParseChallengeID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid challenge id"))
		return p, id.ChallengeID{}, false
	}
	return p, challengeID, true
}
