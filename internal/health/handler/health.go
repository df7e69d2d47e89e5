package handler

import (
	"context"
	"net/http"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/CCodeCommunity/CardGameBackend/internal/logging"
	"github.com/CCodeCommunity/CardGameBackend/internal/platform/httpjson"
)

const checkTimeout = 2 * time.Second

// Check is a named readiness dependency, e.g. the database or the policy engine.
type Check struct {
	Name  string
	Check func(ctx context.Context) error
}

// Handler serves liveness and readiness and keeps the gRPC health status in step with
// readiness.
type Handler struct {
	checks []Check
	log    logging.Logger
}

// NewHandler returns a Handler running checks for readiness.
func NewHandler(log logging.Logger, checks ...Check) *Handler {
	if log == nil {
		log = logging.Nop()
	}
	return &Handler{checks: checks, log: log}
}

type statusResponse struct {
	Status string   `json:"status"`
	Failed []string `json:"failed,omitempty"`
}

// Live handles GET /healthz.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	httpjson.Write(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Ready handles GET /readyz: 200 when every check passes, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if failed := h.run(r.Context()); len(failed) > 0 {
		httpjson.Write(w, http.StatusServiceUnavailable, statusResponse{Status: "unavailable", Failed: failed})
		return
	}
	httpjson.Write(w, http.StatusOK, statusResponse{Status: "ok"})
}

// run returns the names of the failing checks.
func (h *Handler) run(ctx context.Context) []string {
	var failed []string
	for _, c := range h.checks {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()
		if err != nil {
			h.log.Warn(ctx, "readiness check failed", "check", c.Name, "error", err)
			failed = append(failed, c.Name)
		}
	}
	return failed
}

// Watch runs the checks every interval and sets the overall serving status of hs until
// ctx is done.
func (h *Handler) Watch(ctx context.Context, hs *health.Server, interval time.Duration) {
	update := func() {
		status := healthpb.HealthCheckResponse_SERVING
		if len(h.run(ctx)) > 0 {
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
		hs.SetServingStatus("", status)
	}
	update()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			update()
		}
	}
}
