// Package middleware holds the HTTP middleware of the API: client IP resolution, bearer
// authentication, policy enforcement, auditing and request logging.
package middleware

import (
	"context"

	identitydomain "github.com/CCodeCommunity/CardGameBackend/internal/identity/domain"
)

type contextKey struct{ name string }

var (
	principalKey = contextKey{"principal"}
	clientIPKey  = contextKey{"client_ip"}
)

// WithPrincipal returns a context carrying the authenticated caller.
func WithPrincipal(ctx context.Context, p *identitydomain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFrom returns the authenticated caller and true if set; otherwise nil, false.
func PrincipalFrom(ctx context.Context) (*identitydomain.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*identitydomain.Principal)
	return p, ok && p != nil
}

// WithClientIP returns a context carrying the resolved client IP.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by ResolveClientIP, or "".
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey).(string)
	return ip
}
