package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"feedchain/internal/lifecycle"
	"feedchain/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/go-playground/form/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var decoder = form.NewDecoder()

// Authenticator resolves a bearer token to the actor it was issued to.
type Authenticator interface {
	Verify(ctx context.Context, raw string) (types.Actor, error)
}

// ProofStorage stores proof-of-delivery images and returns their key.
type ProofStorage interface {
	UploadProof(ctx context.Context, claimID string, body io.Reader, size int64, contentType string) (string, error)
	DeleteProof(ctx context.Context, key string) error
}

type Service struct {
	logger  *logrus.Logger
	config  *types.Config
	engine  *lifecycle.Engine
	auth    Authenticator
	proofs  ProofStorage
	metrics *httpMetrics

	gatherer    prometheus.Gatherer
	corsOrigins []string

	server *http.Server
}

// New builds the HTTP service. proofs may be nil, in which case proof uploads
// answer 503. Request metrics are registered with registry and served from
// /metrics.
func New(
	config *types.Config,
	logger *logrus.Logger,
	engine *lifecycle.Engine,
	auth Authenticator,
	proofs ProofStorage,
	registry *prometheus.Registry,
) (*Service, error) {
	mux := flow.New()

	var (
		registerer prometheus.Registerer
		gatherer   prometheus.Gatherer
	)
	if registry != nil {
		registerer, gatherer = registry, registry
	}

	metrics, err := newHTTPMetrics(registerer)
	if err != nil {
		return nil, err
	}

	s := &Service{
		logger:   logger,
		config:   config,
		engine:   engine,
		auth:     auth,
		proofs:   proofs,
		metrics:  metrics,
		gatherer: gatherer,

		corsOrigins: trimOrigins(config.CORSAllowedOrigins),

		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	// Wrapped outside the router: flow only runs middleware for matched
	// routes, and preflights, 404s and 405s must pass through these too.
	s.server.Handler = s.RequestID(s.LoggingMiddleware(s.CORS(s.StripTrailingSlash(mux))))

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) Handler() http.Handler {
	return s.server.Handler
}

// Routes are matched in the order they are declared, so the fixed
// /food-posts/my and /food-posts/nearby must come before /food-posts/:id.
func (s *Service) buildRouter(r *flow.Mux) {
	r.HandleFunc("/healthz", s.handleHealth, http.MethodGet)
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}), http.MethodGet)
	}

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRole(types.RoleDonor))

			r.HandleFunc("/food-posts", s.handleCreateFoodPost, http.MethodPost)
			r.HandleFunc("/food-posts/my", s.handleMyFoodPosts, http.MethodGet)
		})

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRole(types.RoleNGO))

			r.HandleFunc("/food-posts/nearby", s.handleNearbyFoodPosts, http.MethodGet)
			r.HandleFunc("/food-posts/:id/claim", s.handleClaimFoodPost, http.MethodPost)

			r.HandleFunc("/claims/my", s.handleMyClaims, http.MethodGet)
			r.HandleFunc("/claims/:id/cancel", s.handleCancelClaim, http.MethodPost)
			r.HandleFunc("/claims/:id/pickup", s.handleStartPickup, http.MethodPost)
			r.HandleFunc("/claims/:id/verify", s.handleVerifyPickup, http.MethodPost)
			r.HandleFunc("/claims/:id/proof", s.handleUploadProof, http.MethodPost)
			r.HandleFunc("/claims/:id/proof", s.handleDeleteProof, http.MethodDelete)
			r.HandleFunc("/claims/:id/distribute", s.handleDistribute, http.MethodPost)
		})

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireRole(types.RoleAdmin))

			r.HandleFunc("/admin/overview", s.handleAdminOverview, http.MethodGet)
		})

		r.HandleFunc("/food-posts/:id", s.handleGetFoodPost, http.MethodGet)
		r.HandleFunc("/food-posts/:id/events", s.handleFoodPostEvents, http.MethodGet)
		r.HandleFunc("/listing", s.handleListing, http.MethodGet)
		r.HandleFunc("/impact/summary", s.handleImpactSummary, http.MethodGet)
	})
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
