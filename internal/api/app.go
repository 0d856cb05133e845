// Package api assembles the public router of the store.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"EStore/internal/auth"
	"EStore/internal/cart"
	"EStore/internal/catalog"
	"EStore/internal/order"
	"EStore/pkg/kit"
)

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

type Deps struct {
	Users    *auth.Store
	Products *catalog.Products
	Kits     *catalog.Kits
	Ledger   *order.Ledger
	Cart     *cart.Manager[catalog.Kit]

	JWT      *auth.TokenMaker
	TokenTTL time.Duration
	Limits   auth.RateLimits
}

type pinger interface {
	Ping() error
}

func NewHandler(deps Deps, httpDeps HTTPDeps) http.Handler {
	log := httpDeps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	setupMiddleware(r, log)
	setupMetrics(r, httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(log, map[string]pinger{
		"users":    deps.Users,
		"products": deps.Products,
		"kits":     deps.Kits,
		"orders":   deps.Ledger,
	}))

	admin := chi.Chain(auth.RequireUser(deps.JWT), auth.RequireRole(auth.RoleAdmin)).Handler

	(&auth.Server{
		Log:      log,
		Store:    deps.Users,
		JWT:      deps.JWT,
		TokenTTL: deps.TokenTTL,
		Limits:   deps.Limits,
	}).MountRoutes(r)

	catalog.NewServer(deps.Products, catalog.ProductsPrefix, log, admin).MountRoutes(r)
	catalog.NewServer(deps.Kits, catalog.KitsPrefix, log, admin).MountRoutes(r)

	(&cart.Server[catalog.Kit]{Manager: deps.Cart, JWT: deps.JWT, Log: log}).MountRoutes(r)
	(&order.Server{Ledger: deps.Ledger, JWT: deps.JWT, Log: log}).MountRoutes(r)

	return r
}

func setupMiddleware(r *chi.Mux, log *zap.Logger) {
	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer(log))
	r.Use(kit.Logging(log))
}

func setupMetrics(r *chi.Mux, deps HTTPDeps) {
	if deps.Registry == nil {
		return
	}

	metrics := kit.NewMetrics(deps.Registry)
	r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

	if !deps.MetricsEnabled {
		return
	}

	r.With(kit.MetricsAuth(deps.MetricsToken)).
		Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func readyz(log *zap.Logger, stores map[string]pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for name, s := range stores {
			if err := s.Ping(); err != nil {
				log.Warn("readyz failed", zap.String("store", name), zap.Error(err))
				kit.WriteError(w, r, http.StatusServiceUnavailable, name+" not ready", nil)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}
}
