package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"streak/contracts/identity"
	dErrors "streak/pkg/domain-errors"
	"streak/pkg/requestcontext"
)

// ErrorResponse is the JSON body written for every failed request.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
	Hint        string `json:"hint,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; an encode failure cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates a domain error into an HTTP response.
// Internal errors never expose their message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: DomainCodeToHTTPCode(dErrors.CodeInternal)})
		return
	}

	resp := ErrorResponse{Error: DomainCodeToHTTPCode(domainErr.Code)}
	if domainErr.Code != dErrors.CodeInternal {
		resp.Description = domainErr.Message
		resp.Hint = dErrors.HintOf(err)
	}
	WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), resp)
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeIdentityUnresolved:
		return http.StatusForbidden
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" field of the JSON body.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeIdentityUnresolved:
		return "identity_unresolved"
	case dErrors.CodeTimeout:
		return "timeout"
	default:
		return "internal_error"
	}
}

// RequirePrincipal extracts the resolved principal from context.
// A missing principal behind the identity middleware is a wiring bug, so it
// surfaces as an internal error.
func RequirePrincipal(ctx context.Context, logger *slog.Logger) (identity.Principal, error) {
	p, ok := requestcontext.Principal(ctx)
	if !ok {
		if logger != nil {
			logger.ErrorContext(ctx, "principal missing from context despite identity middleware",
				"request_id", requestcontext.RequestID(ctx))
		}
		return identity.Principal{}, dErrors.New(dErrors.CodeInternal, "identity context error")
	}
	return p, nil
}

// RequireOwner is RequirePrincipal plus an OWNER role check.
func RequireOwner(ctx context.Context, logger *slog.Logger) (identity.Principal, error) {
	p, err := RequirePrincipal(ctx, logger)
	if err != nil {
		return p, err
	}
	if !p.IsOwner() {
		return identity.Principal{}, dErrors.New(dErrors.CodeForbidden, "owner role required")
	}
	return p, nil
}
