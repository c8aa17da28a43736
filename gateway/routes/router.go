// Package routes exposes the read-only views over HTTP.
package routes

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"backchain/gateway/middleware"
	"backchain/views"
)

// Views is the query surface served by the gateway. *views.Aggregator
// implements it.
type Views interface {
	Dashboard(ctx context.Context) (views.Dashboard, error)
	Validators(ctx context.Context) ([]views.ValidatorInfo, error)
	Store(ctx context.Context, user common.Address) ([]views.StoreTier, error)
	Actions(ctx context.Context, filter views.ActionFilter) ([]views.Action, error)
	UserView(ctx context.Context, user common.Address) (views.UserView, error)
	Rewards(ctx context.Context, user common.Address) (views.RewardsView, error)
	Certificates(ctx context.Context, user common.Address) ([]views.Certificate, error)
	CertificateDetail(ctx context.Context, tokenID *big.Int) (views.CertificateDetail, error)
}

// Rate limit keys.
const (
	LimitPublic   = "public"
	LimitAccounts = "accounts"
)

type Config struct {
	Views         Views
	Logger        *slog.Logger
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	CORS          middleware.CORSConfig
	// ViewTimeout bounds each request's chain reads. Zero leaves only the
	// client's own deadline.
	ViewTimeout time.Duration
}

var errNoViews = errors.New("routes: views are required")

func New(cfg Config) (http.Handler, error) {
	if cfg.Views == nil {
		return nil, errNoViews
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{views: cfg.Views, logger: logger, timeout: cfg.ViewTimeout}

	r := chi.NewRouter()
	r.Use(middleware.CORS(cfg.CORS))
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.RouteMiddleware())
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(pub chi.Router) {
			if cfg.RateLimiter != nil {
				pub.Use(cfg.RateLimiter.Middleware(LimitPublic))
			}
			pub.Get("/dashboard", h.dashboard)
			pub.Get("/validators", h.validators)
			pub.Get("/store", h.store)
			pub.Get("/actions", h.actions)
			pub.Get("/certificates/{tokenID}", h.certificate)
		})
		v1.Route("/accounts/{address}", func(acc chi.Router) {
			if cfg.RateLimiter != nil {
				acc.Use(cfg.RateLimiter.Middleware(LimitAccounts))
			}
			acc.Get("/", h.account)
			acc.Get("/rewards", h.rewards)
			acc.Get("/certificates", h.certificates)
			acc.Get("/store", h.accountStore)
		})
	})
	return r, nil
}
