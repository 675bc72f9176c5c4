// Package httptransport assembles the public HTTP surface: request id and
// metrics middleware, bearer auth, the protocol routes and the operational
// endpoints.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	platformmetrics "civicdesk/internal/platform/metrics"
	"civicdesk/internal/platform/middleware"
	"civicdesk/internal/protocol/handler"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/httputil"
)

// HealthCheck probes one dependency. A non-nil error marks the service
// unhealthy.
type HealthCheck func(ctx context.Context) error

// Deps carries everything the router mounts.
type Deps struct {
	Protocols *handler.Handler
	Tokens    middleware.TokenValidator
	Logger    *slog.Logger
	Metrics   *platformmetrics.Metrics

	// HealthChecks run on /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
}

// New builds the HTTP router. Operational endpoints stay outside the auth
// group; everything under /admin additionally requires an administrative
// role.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestMetrics(deps.Metrics))

	r.Get("/healthz", healthHandler(deps.Logger, deps.HealthChecks))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(pr chi.Router) {
		pr.Use(middleware.RequireAuth(deps.Tokens, deps.Logger))
		deps.Protocols.Register(pr)

		pr.Route("/admin", func(ar chi.Router) {
			ar.Use(middleware.RequireRole(deps.Logger, id.RoleAdmin, id.RoleSuperAdmin))
			deps.Protocols.RegisterAdmin(ar)
		})
	})

	return r
}

// requestMetrics counts served requests by method, chi route pattern and
// status code.
func requestMetrics(m *platformmetrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.IncrementHTTPRequest(r.Method, route, strconv.Itoa(ww.Status()))
		})
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(logger *slog.Logger, checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "check", name, "error", err)
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
