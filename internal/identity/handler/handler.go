// Package handler exposes identity resolution over HTTP: the middleware every
// tenant-scoped route sits behind and the /v1/me endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"streak/internal/identity/models"
	id "streak/pkg/domain"
	"streak/pkg/platform/httputil"
	"streak/pkg/requestcontext"
)

// Service is the read side used by the handler.
type Service interface {
	GetTenant(ctx context.Context, tenantID id.TenantID) (*models.Tenant, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts routes on a router that already runs RequireIdentity.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/me", h.HandleMe)
}

// MeResponse describes the resolved caller.
type MeResponse struct {
	ExternalUserID string `json:"external_user_id"`
	TenantID       string `json:"tenant_id"`
	Role           string `json:"role"`
	CanonicalKey   string `json:"canonical_key"`
	TenantName     string `json:"tenant_name,omitempty"`
}

// HandleMe returns the caller's principal.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := httputil.RequirePrincipal(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tenant, err := h.service.GetTenant(ctx, p.TenantID)
	if err != nil {
		h.logger.ErrorContext(ctx, "load tenant failed",
			"error", err,
			"tenant_id", p.TenantID,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &MeResponse{
		ExternalUserID: p.ExternalUserID.String(),
		TenantID:       p.TenantID.String(),
		Role:           string(p.Role),
		CanonicalKey:   p.CanonicalKey,
		TenantName:     tenant.DisplayName,
	})
}
