package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/CCodeCommunity/CardGameBackend/internal/audit"
)

// Audit records an audit entry after each authenticated request, keyed by the matched
// route pattern. Requests without a principal are not audited.
func Audit(l audit.AuditLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			p, ok := PrincipalFrom(r.Context())
			if !ok {
				return
			}
			pattern := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				pattern = rctx.RoutePattern()
			}
			ar := audit.ParseRoute(r.Method, pattern)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			meta := fmt.Sprintf("status=%d", status)
			if target := chi.URLParam(r, "accountId"); target != "" {
				meta = fmt.Sprintf("target=%s %s", target, meta)
			}
			l.LogEvent(r.Context(), p.AccountID, ar.Action, ar.Resource, meta)
		})
	}
}
