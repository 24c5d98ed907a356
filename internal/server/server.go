package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/headline-goat/split-goat/internal/engine"
)

type Server struct {
	engine    *engine.Engine
	port      int
	token     string
	logger    *zap.Logger
	gatherer  prometheus.Gatherer
	router    *http.ServeMux
	startTime time.Time
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGatherer exposes g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// New builds the HTTP surface for e. An empty token is replaced by a
// random one; read it back with Token.
func New(e *engine.Engine, port int, token string, opts ...Option) *Server {
	if token == "" {
		token = generateToken()
	}
	srv := &Server{
		engine:    e,
		port:      port,
		token:     token,
		logger:    zap.NewNop(),
		router:    http.NewServeMux(),
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.setupRoutes()
	return srv
}

func (s *Server) setupRoutes() {
	// Public endpoints
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("POST /assign", s.handleAssign)
	s.router.HandleFunc("POST /events", s.handleEvent)
	s.router.HandleFunc("POST /conversions", s.handleConversion)
	if s.gatherer != nil {
		s.router.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}

	// Campaign API (protected)
	s.router.Handle("GET /api/campaigns", s.authMiddleware(http.HandlerFunc(s.handleListCampaigns)))
	s.router.Handle("POST /api/campaigns", s.authMiddleware(http.HandlerFunc(s.handleCreateCampaign)))
	s.router.Handle("POST /api/campaigns/{id}/status", s.authMiddleware(http.HandlerFunc(s.handleSetStatus)))
	s.router.Handle("POST /api/campaigns/{id}/analyze", s.authMiddleware(http.HandlerFunc(s.handleAnalyze)))
	s.router.Handle("GET /api/campaigns/{id}/results", s.authMiddleware(http.HandlerFunc(s.handleResults)))
	s.router.Handle("POST /api/campaigns/{id}/winner", s.authMiddleware(http.HandlerFunc(s.handleWinner)))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("split-goat listening", zap.Int("port", s.port))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) StartTime() time.Time {
	return s.startTime
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 16)
	if _, err := rand.Read(bytes); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(bytes)
}
