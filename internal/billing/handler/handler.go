package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"streak/contracts/identity"
	billingmetrics "streak/internal/billing/metrics"
	"streak/internal/billing/models"
	"streak/internal/platform/privacy"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/httputil"
	"streak/pkg/requestcontext"
)

const maxWebhookBody = 1 << 20

type Service interface {
	HandlePayment(ctx context.Context, evt *models.PaymentEvent) (models.Outcome, error)
	Revenue(ctx context.Context, p identity.Principal) ([]models.RevenueTotals, error)
}

type Handler struct {
	service Service
	secret  []byte
	logger  *slog.Logger
	metrics *billingmetrics.Metrics
}

func New(service Service, signingSecret string, logger *slog.Logger, metrics *billingmetrics.Metrics) *Handler {
	return &Handler{service: service, secret: []byte(signingSecret), logger: logger, metrics: metrics}
}

// RegisterWebhook mounts the provider callback. It sits outside the identity
// middleware: the signature is its only authentication.
func (h *Handler) RegisterWebhook(r chi.Router) {
	r.Post("/webhooks/payments", h.HandleWebhook)
}

// Register mounts the tenant-scoped revenue report.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/revenue", h.HandleRevenue)
}

type WebhookResponse struct {
	Received bool           `json:"received"`
	Outcome  models.Outcome `json:"outcome"`
}

type RevenueResponse struct {
	Totals []models.RevenueTotals `json:"totals"`
}

func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "webhook body too large"))
			return
		}
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "failed to read webhook body"))
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(HeaderSignature)) {
		if h.metrics != nil {
			h.metrics.IncSignatureFailure()
		}
		h.logger.WarnContext(ctx, "webhook signature rejected",
			"request_id", requestcontext.RequestID(ctx),
			"client_ip", privacy.ClientIP(r),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid webhook signature"))
		return
	}

	var evt models.PaymentEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid webhook body"))
		return
	}
	if err := httputil.PrepareRequest(&evt); err != nil {
		httputil.WriteError(w, err)
		return
	}

	outcome, err := h.service.HandlePayment(ctx, &evt)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "payment webhook failed", "error", err, "event_id", evt.ID,
				"request_id", requestcontext.RequestID(ctx))
		} else {
			h.logger.WarnContext(ctx, "payment webhook rejected", "error", err, "event_id", evt.ID,
				"request_id", requestcontext.RequestID(ctx))
		}
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &WebhookResponse{Received: true, Outcome: outcome})
}

func (h *Handler) HandleRevenue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	totals, err := h.service.Revenue(ctx, p)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, &RevenueResponse{Totals: totals})
}
