package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custodia/internal/platform/middleware"
)

// Registrar is any handler that attaches its routes to the mux.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig carries the pieces NewRouter needs beyond the handlers
// themselves.
type RouterConfig struct {
	Logger       *slog.Logger
	JWTValidator middleware.JWTValidator
	Timeout      time.Duration
}

// NewRouter assembles the full HTTP surface. Bearer-authenticated API routes
// are mounted behind RequireAuth; the delegated submission endpoint
// authenticates by relayer secret plus subject signature instead, so it
// mounts outside the auth chain. Metrics and health probes stay open.
func NewRouter(cfg RouterConfig, delegated *DelegatedHandler, handlers ...Registrar) http.Handler {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	root := chi.NewRouter()
	root.Use(middleware.Recovery(cfg.Logger))
	root.Use(middleware.RequestID)
	root.Use(middleware.Logger(cfg.Logger))
	root.Use(middleware.Device)
	root.Use(middleware.Timeout(timeout))

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	root.Method(http.MethodGet, "/metrics", promhttp.Handler())

	if delegated != nil {
		delegated.Register(root)
	}

	api := chi.NewRouter()
	api.Use(middleware.RequireAuth(cfg.JWTValidator, cfg.Logger))
	for _, h := range handlers {
		h.Register(api)
	}
	root.Mount("/", api)

	return root
}
