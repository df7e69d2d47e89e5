// Package server wires the HTTP API router and the gRPC health server.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	accounthandler "github.com/CCodeCommunity/CardGameBackend/internal/account/handler"
	accountservice "github.com/CCodeCommunity/CardGameBackend/internal/account/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/audit"
	healthhandler "github.com/CCodeCommunity/CardGameBackend/internal/health/handler"
	identityhandler "github.com/CCodeCommunity/CardGameBackend/internal/identity/handler"
	identityservice "github.com/CCodeCommunity/CardGameBackend/internal/identity/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/rbac"
	"github.com/CCodeCommunity/CardGameBackend/internal/server/middleware"
)

// Deps holds the services behind the HTTP API. Auth, Accounts and Policies are required.
type Deps struct {
	Auth     *identityservice.AuthService
	Accounts *accountservice.AccountService
	Policies *rbac.Engine
	// AuditLogs backs the admin audit-log route. If nil, the route answers 404.
	AuditLogs accounthandler.AuditReader
	// Audit records authenticated requests. If nil, they are not audited.
	Audit audit.AuditLogger
	// Health serves /healthz and /readyz. If nil, the routes are not registered.
	Health *healthhandler.Handler
	Log    logging.Logger
}

// NewRouter returns the API router.
//
//	POST   /api/accounts                              public
//	POST   /api/accounts/login                        public
//	PATCH  /api/accounts/access-token                 public
//	DELETE /api/accounts/login-instance               public
//	GET    /api/accounts                              admin
//	PATCH  /api/accounts/{accountId}/state            admin
//	GET    /api/accounts/{accountId}/audit-logs       admin
//	GET    /api/accounts/{accountId}                  account owner
//	GET    /api/accounts/{accountId}/login-instances  account owner
func NewRouter(d Deps) http.Handler {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	auditLogger := d.Audit
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	identity := identityhandler.NewHandler(d.Auth, log)
	accounts := accounthandler.NewHandler(d.Accounts, d.AuditLogs, log)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.ResolveClientIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)

	if d.Health != nil {
		r.Get("/healthz", d.Health.Live)
		r.Get("/readyz", d.Health.Ready)
	}

	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/", accounts.Register)
		r.Post("/login", identity.Login)
		r.Patch("/access-token", identity.Refresh)
		r.Delete("/login-instance", identity.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.Auth, log))
			r.Use(middleware.Audit(auditLogger))

			admin := middleware.Require(rbac.All(rbac.Authenticated, d.Policies.AdminOnly()), log)
			owner := middleware.Require(rbac.All(rbac.Authenticated, d.Policies.AccountIdentity()), log)

			r.With(admin).Get("/", accounts.List)
			r.With(admin).Patch("/{accountId}/state", accounts.ChangeState)
			r.With(admin).Get("/{accountId}/audit-logs", accounts.AuditLogs)
			r.With(owner).Get("/{accountId}", accounts.Get)
			r.With(owner).Get("/{accountId}/login-instances", identity.LoginInstances)
		})
	})
	return r
}

// NewHTTPServer returns an http.Server for h instrumented with otelhttp. The write
// timeout leaves room for a compromise response to finish.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	return &http.Server{
		Addr: addr,
		Handler: otelhttp.NewHandler(h, "cardgame-http",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
