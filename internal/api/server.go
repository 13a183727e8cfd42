// Package api provides the HTTP API server implementation.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/treasury-tracker/internal/logging"
	"github.com/treasury-tracker/internal/service"
	"github.com/treasury-tracker/internal/storage"
	"github.com/treasury-tracker/internal/types"
)

// NetworkHeader carries the network a request is about
const NetworkHeader = "x-network"

// TreasuryServiceInterface defines the treasury operations the API exposes
type TreasuryServiceInterface interface {
	GetCombinedBalances(ctx context.Context, network string) *service.CombinedBalances
	GetTreasuryHistory(ctx context.Context, network string) ([]types.DayBalance, error)
	GetArchivedBalances(ctx context.Context, network, chain, from, to string) ([]storage.ArchivedBalance, error)
}

// ListingServiceInterface defines the latest activity listing operations
type ListingServiceInterface interface {
	Load(ctx context.Context, network string) (*service.Listing, error)
	Invalidate(ctx context.Context, network string) error
}

// BountyServiceInterface defines the bounty dashboard operation
type BountyServiceInterface interface {
	ListBounties(ctx context.Context, network string, page int) (*service.BountyListing, error)
}

// Server represents the HTTP API server.
type Server struct {
	router          *mux.Router
	httpServer      *http.Server
	treasuryService TreasuryServiceInterface
	listingService  ListingServiceInterface
	bountyService   BountyServiceInterface
	config          *ServerConfig
	logger          *logging.Logger
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	RequestsPerSec  int // per client
	Burst           int
}

// NewServer creates a new API server instance.
func NewServer(
	config *ServerConfig,
	treasuryService TreasuryServiceInterface,
	listingService ListingServiceInterface,
	bountyService BountyServiceInterface,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	s := &Server{
		router:          mux.NewRouter(),
		treasuryService: treasuryService,
		listingService:  listingService,
		bountyService:   bountyService,
		config:          config,
		logger:          logger.WithComponent("api"),
	}

	s.setupRouter()

	return s
}

// setupRouter configures the router with middleware and routes
func (s *Server) setupRouter() {
	rateLimiter := NewRateLimiter(s.config.RequestsPerSec, s.config.Burst)

	// order matters
	s.router.Use(RequestIDMiddleware(s.logger))
	s.router.Use(LoggingMiddleware)
	s.router.Use(RecoveryMiddleware)
	s.router.Use(CORSMiddleware)
	s.router.Use(RateLimitMiddleware(rateLimiter))
	s.router.Use(CompressionMiddleware)

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	v1 := s.router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/treasury-amount-history", s.handleGetTreasuryHistory).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/treasury-amount-history/old-treasury-data", s.handleOldTreasuryData).Methods(http.MethodPost, http.MethodOptions)
	v1.HandleFunc("/treasury-amount-history/archive", s.handleGetArchivedBalances).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/latest-activity", s.handleLatestActivity).Methods(http.MethodGet, http.MethodOptions)
	v1.HandleFunc("/latest-activity", s.handleInvalidateLatestActivity).Methods(http.MethodDelete)
	v1.HandleFunc("/bounties", s.handleListBounties).Methods(http.MethodGet, http.MethodOptions)
}

// handleHealth handles health check requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "treasury-tracker",
	})
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("Starting API server")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down API server")
	return s.httpServer.Shutdown(ctx)
}
