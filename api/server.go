// Package api provides the HTTP API server for claim estimate pricing
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"claim-cost/decision/catalog"
	"claim-cost/decision/estimate"
	claimerrors "claim-cost/pkg/errors"
	"claim-cost/pkg/platform"
)

// Server is the HTTP API server
type Server struct {
	httpServer *http.Server
	engine     *estimate.Engine
	config     *Config
	log        zerolog.Logger
}

// Config holds server configuration
type Config struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxRequestSize int64
	// APIKey enables X-API-Key checks on /api routes when set.
	APIKey string
}

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	return &Config{
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   60 * time.Second,
		RequestTimeout: 30 * time.Second,
		MaxRequestSize: 10 * 1024 * 1024, // 10MB
	}
}

// NewServer creates a new API server
func NewServer(engine *estimate.Engine, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	return &Server{
		engine: engine,
		config: config,
		log:    log.Logger.With().Str("component", "api").Logger(),
	}
}

// Handler builds the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	if s.config.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.config.RequestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(platform.APIKeyMiddleware(s.config.APIKey))
		r.Post("/scopes/price", s.handlePriceScope)
		r.Post("/estimates/price", s.handlePriceEstimate)
	})
	return r
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().Int("port", s.config.Port).Msg("claim cost API server starting")
	return s.httpServer.ListenAndServe()
}

// StartWithGracefulShutdown starts server with graceful shutdown handling
func (s *Server) StartWithGracefulShutdown() error {
	errChan := make(chan error, 1)
	go func() {
		if err := s.Start(); !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case <-quit:
		s.log.Info().Msg("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(ctx)
	}
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// requestLogger puts a request-scoped logger in the context and logs each request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqLog := s.log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(reqLog.WithContext(r.Context())))

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		reqLog.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("duration", time.Since(start)).
			Str("remote_addr", r.RemoteAddr).
			Msg("HTTP request")
	})
}

// =============================================================================
// HEALTH ENDPOINTS
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "1.0.0",
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if p, ok := s.engine.Lookup().Store().(catalog.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("catalog store not ready")
			s.jsonError(w, http.StatusServiceUnavailable, claimerrors.ErrCodeCatalogUnavailable, "catalog store not ready")
			return
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

// =============================================================================
// PRICING ENDPOINTS
// =============================================================================

// PriceScopeRequest prices the items of one zone
type PriceScopeRequest struct {
	Scope  estimate.ScopeResult `json:"scope"`
	Config estimate.Config      `json:"config"`
}

// PriceEstimateRequest prices the items of several zones as one estimate
type PriceEstimateRequest struct {
	Scopes []estimate.ScopeResult `json:"scopes"`
	Config estimate.Config        `json:"config"`
}

func (s *Server) handlePriceScope(w http.ResponseWriter, r *http.Request) {
	var req PriceScopeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := validateRequest([]estimate.ScopeResult{req.Scope}, req.Config); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.PriceScope(r.Context(), req.Scope, req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

func (s *Server) handlePriceEstimate(w http.ResponseWriter, r *http.Request) {
	var req PriceEstimateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Scopes) == 0 {
		s.writeError(w, r, claimerrors.NewValidationError("scopes", "at least one scope is required"))
		return
	}
	if err := validateRequest(req.Scopes, req.Config); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.engine.PriceEstimate(r.Context(), req.Scopes, req.Config)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, res)
}

// validateRequest rejects inputs the engine would otherwise price silently
func validateRequest(scopes []estimate.ScopeResult, cfg estimate.Config) error {
	for i, scope := range scopes {
		for j, item := range scope.Items {
			field := fmt.Sprintf("scopes[%d].items[%d]", i, j)
			if item.Code == "" {
				return claimerrors.NewValidationError(field+".code", "code is required")
			}
			if item.CoverageCode != "" && !item.CoverageCode.Valid() {
				return claimerrors.NewValidationError(field+".coverage_code", fmt.Sprintf("unknown coverage code %q", item.CoverageCode))
			}
		}
	}
	if cfg.OverheadPct != nil && cfg.OverheadPct.IsNegative() {
		return claimerrors.NewValidationError("config.overhead_pct", "must not be negative")
	}
	if cfg.ProfitPct != nil && cfg.ProfitPct.IsNegative() {
		return claimerrors.NewValidationError("config.profit_pct", "must not be negative")
	}
	for code, amount := range cfg.Deductibles {
		if !catalog.CoverageCode(code).Valid() {
			return claimerrors.NewValidationError("config.deductibles", fmt.Sprintf("unknown coverage code %q", code))
		}
		if amount.IsNegative() {
			return claimerrors.NewValidationError("config.deductibles", fmt.Sprintf("deductible for %s must not be negative", code))
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.jsonError(w, http.StatusBadRequest, claimerrors.ErrCodeInvalidRequest, fmt.Sprintf("invalid request: %v", err))
		return false
	}
	return true
}

// writeError maps engine and validation errors to a status code
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := claimerrors.CodeOf(err)
	status := http.StatusInternalServerError
	message := "internal error"

	var ce *claimerrors.ClaimError
	if errors.As(err, &ce) {
		message = ce.Message
		if ce.Field != "" {
			message = ce.Field + ": " + ce.Message
		}
	}

	switch code {
	case claimerrors.ErrCodeInvalidRequest:
		status = http.StatusBadRequest
	case claimerrors.ErrCodeCatalogUnavailable:
		status = http.StatusBadGateway
	case "":
		code = claimerrors.ErrCodePricingFailed
	}

	ev := zerolog.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		ev = zerolog.Ctx(r.Context()).Error()
	}
	ev.Err(err).Str("code", code).Int("status", status).Msg("pricing request failed")

	s.jsonError(w, status, code, message)
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) jsonError(w http.ResponseWriter, status int, code, message string) {
	s.jsonResponse(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}
