package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"streak/internal/identity/models"
	"streak/internal/platform/privacy"
	"streak/internal/platformauth"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/platform/httputil"
	"streak/pkg/requestcontext"
)

// Headers set by the hosting platform on embedded requests.
const (
	HeaderUserToken    = "X-Whop-User-Token"
	HeaderCompanyID    = "X-Whop-Company-Id"
	HeaderExperienceID = "X-Whop-Experience-Id"
)

// TokenVerifier turns a platform user token into a verified caller.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*platformauth.Caller, error)
}

// Resolver maps identity signals to a principal.
type Resolver interface {
	Resolve(ctx context.Context, signals models.Signals) (*models.Resolution, error)
}

// RequireIdentity verifies the platform token, resolves the caller's tenant
// and role, and stores the principal on the context. Requests that cannot be
// resolved stop here, before any tenant-scoped data access.
func RequireIdentity(verifier TokenVerifier, resolver Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			caller, err := verifier.Verify(ctx, platformToken(r))
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid platform token",
					"error", err,
					"request_id", requestID,
					"client_ip", privacy.ClientIP(r),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid platform token"))
				return
			}

			res, err := resolver.Resolve(ctx, models.Signals{
				ExternalUserID:      caller.ExternalUserID.String(),
				OrganizationID:      r.Header.Get(HeaderCompanyID),
				MembershipContextID: r.Header.Get(HeaderExperienceID),
				DisplayName:         caller.DisplayName,
			})
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeInternal) {
					logger.ErrorContext(ctx, "identity resolution failed",
						"error", err,
						"request_id", requestID,
					)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx = requestcontext.WithPrincipal(ctx, res.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// platformToken reads the platform header first and falls back to a bearer token.
func platformToken(r *http.Request) string {
	if token := strings.TrimSpace(r.Header.Get(HeaderUserToken)); token != "" {
		return token
	}
	token, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return strings.TrimSpace(token)
}
