package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
)

// RequestLogger logs one line per request at Info, or Error for 5xx responses.
func RequestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			args := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
				"client_ip", ClientIPFromContext(r.Context()),
			}
			if status >= http.StatusInternalServerError {
				log.Error(r.Context(), "http request", args...)
				return
			}
			log.Info(r.Context(), "http request", args...)
		})
	}
}
