// Package api exposes the carbon engine over HTTP. Read endpoints that the
// ledger allows any caller to use are public. Every other endpoint requires
// a bearer token whose subject is the caller's account.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xraph/carbon"
)

// DefaultBasePath is the mount point used when none is configured.
const DefaultBasePath = "/carbon"

// Server serves the carbon HTTP API.
type Server struct {
	engine   *carbon.Engine
	auth     *Authenticator
	logger   *slog.Logger
	basePath string
	timeout  time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithBasePath sets the URL prefix the routes are mounted under.
func WithBasePath(path string) Option {
	return func(s *Server) {
		if path != "" {
			s.basePath = path
		}
	}
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a Server for engine. Authenticated routes validate tokens
// with auth.
func New(engine *carbon.Engine, auth *Authenticator, opts ...Option) *Server {
	s := &Server{
		engine:   engine,
		auth:     auth,
		logger:   slog.Default(),
		basePath: DefaultBasePath,
		timeout:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BasePath returns the mount point of the routes.
func (s *Server) BasePath() string { return s.basePath }

// Handler returns the chi router serving every route under the base path.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/healthz", s.handleHealth)
	r.Route(s.basePath, s.Register)
	return r
}

// Register adds the carbon routes to r.
func (s *Server) Register(r chi.Router) {
	// Public reads
	r.Get("/governor", s.handleGovernor)
	r.Get("/custodians", s.handleListCustodians)
	r.Get("/mints/{registryID}", s.handlePendingMint)
	r.Get("/editions/last", s.handleLastMintedEdition)
	r.Get("/editions/{editionID}", s.handleEdition)
	r.Get("/supply", s.handleSupply)
	r.Get("/supply/editions/{editionID}", s.handleSupplyByID)
	r.Get("/supply/years/{year}", s.handleSupplyByYear)
	r.Get("/reports/last", s.handleLastReport)
	r.Get("/reports/{retirementID}", s.handleReport)
	r.Get("/accounts/{account}/reports", s.handleAccountReports)

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(s.auth, s.logger))

		// Governance
		r.Post("/custodians", s.handleAdmitCustodian)
		r.Delete("/custodians/{account}", s.handleRevokeCustodian)
		r.Post("/mints/{registryID}/approve", s.handleApproveMint)
		r.Post("/mints/{registryID}/deny", s.handleDenyMint)

		// Custodians
		r.Post("/mints", s.handleRequestMint)

		// Holders
		r.Get("/me/balances", s.handleBalances)
		r.Get("/me/balances/total", s.handleTotalBalance)
		r.Get("/me/balances/editions/{editionID}", s.handleBalanceByID)
		r.Get("/me/balances/years/{year}", s.handleBalanceByYear)
		r.Get("/me/reports", s.handleMyReports)
		r.Post("/transfers/all", s.handleTransferAll)
		r.Post("/transfers/edition", s.handleTransferByID)
		r.Post("/transfers/year", s.handleTransferByYear)
		r.Post("/transfers/bundle", s.handleTransferCompounded)
		r.Post("/retirements", s.handleRetire)
	})
}
