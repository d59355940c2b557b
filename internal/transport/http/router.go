// Package httptransport assembles the chi router: shared middleware, public
// probes and webhooks, and the tenant-scoped API behind identity resolution.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	identityhandler "streak/internal/identity/handler"
	"streak/internal/platform/health"
	"streak/pkg/platform/middleware/request"
)

const maxBodyBytes = 1 << 20

// Registrar mounts a bounded context's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RegistrarFunc adapts a plain function, such as a webhook mount, to Registrar.
type RegistrarFunc func(r chi.Router)

func (f RegistrarFunc) Register(r chi.Router) { f(r) }

type Deps struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Metrics        *request.Metrics
	Health         *health.Handler
	Verifier       identityhandler.TokenVerifier
	Resolver       identityhandler.Resolver

	// Public routes authenticate themselves (webhook signatures).
	Public []Registrar
	// Tenant routes run with a resolved principal in the context.
	Tenant []Registrar
}

func NewRouter(d Deps) http.Handler {
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(request.Logger(d.Logger))
	r.Use(request.LatencyMiddleware(d.Metrics))
	r.Use(request.Timeout(timeout))
	r.Use(request.BodyLimit(maxBodyBytes))

	if d.Health != nil {
		d.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	for _, reg := range d.Public {
		reg.Register(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(request.ContentTypeJSON)
		r.Use(identityhandler.RequireIdentity(d.Verifier, d.Resolver, d.Logger))
		for _, reg := range d.Tenant {
			reg.Register(r)
		}
	})
	return r
}
