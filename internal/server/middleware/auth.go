package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	identitydomain "github.com/CCodeCommunity/CardGameBackend/internal/identity/domain"
	identityservice "github.com/CCodeCommunity/CardGameBackend/internal/identity/service"
	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/httpjson"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/rbac"
)

const bearerPrefix = "bearer "

// Authorizer turns an access token into the caller. See identityservice.AuthService.
type Authorizer interface {
	Authorize(ctx context.Context, accessToken string) (*identitydomain.Principal, error)
}

// Authenticate requires a valid Bearer access token and stores the caller in the
// request context. Denied tokens get 401; authorization storage failures get 500.
func Authenticate(a Authorizer, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpjson.Error(w, http.StatusUnauthorized)
				return
			}
			p, err := a.Authorize(r.Context(), token)
			if err != nil {
				if errors.Is(err, identityservice.ErrUnauthorized) {
					log.Debug(r.Context(), "access token rejected", "error", err)
					httpjson.Error(w, http.StatusUnauthorized)
					return
				}
				log.Error(r.Context(), "authorize failed", "error", err)
				httpjson.Error(w, http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// extractBearer returns the Bearer token of the Authorization header, or "".
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) || !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// Require runs policy against the caller and the {accountId} route parameter.
// It must be mounted after Authenticate.
func Require(policy rbac.Policy, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := PrincipalFrom(r.Context())
			err := policy(r.Context(), rbac.Request{Principal: p, AccountID: chi.URLParam(r, "accountId")})
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, rbac.ErrUnauthenticated):
				httpjson.Error(w, http.StatusUnauthorized)
			case errors.Is(err, rbac.ErrForbidden):
				httpjson.Error(w, http.StatusForbidden)
			default:
				log.Error(r.Context(), "policy evaluation failed", "error", err)
				httpjson.Error(w, http.StatusInternalServerError)
			}
		})
	}
}
