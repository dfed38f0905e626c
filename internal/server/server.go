package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/verdantiq/ai-router/internal/config"
	"github.com/verdantiq/ai-router/internal/routing"
	"github.com/verdantiq/ai-router/internal/types"
)

// Server exposes the routing engine over HTTP.
type Server struct {
	config     *config.ServerConfig
	engine     *routing.Engine
	logger     *logrus.Logger
	httpServer *http.Server
	router     *mux.Router
	handler    http.Handler
}

// NewServer wires the HTTP surface around an engine. The OpenAPI validator
// is compiled up front so a broken document fails at startup.
func NewServer(cfg *config.ServerConfig, engine *routing.Engine, logger *logrus.Logger) (*Server, error) {
	s := &Server{
		config: cfg,
		engine: engine,
		logger: logger,
		router: mux.NewRouter(),
	}

	validator, err := NewRequestValidator(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build request validator: %w", err)
	}

	auth := NewAuthenticator(cfg.Auth.Enabled, cfg.Auth.JWTSecret, logger)

	s.setupRoutes()

	// Wrapping the full chain around the mux keeps CORS and auth in front
	// of unmatched methods and paths too
	s.handler = s.loggingMiddleware(s.corsMiddleware(auth.Middleware(validator.Middleware(s.router))))

	s.httpServer = &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        s.handler,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	return s, nil
}

func (s *Server) setupRoutes() {
	// Liveness, stays outside the versioned API
	s.router.HandleFunc("/health", s.handleLiveness).Methods("GET")
	s.router.HandleFunc("/openapi.yaml", s.handleOpenAPISpec).Methods("GET")
	s.router.HandleFunc("/openapi.json", s.handleOpenAPISpec).Methods("GET")

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/usage", s.handleUsage).Methods("POST")
	api.HandleFunc("/health", s.handleHealthStatus).Methods("GET")
	api.HandleFunc("/health/{provider}", s.handleProviderHealth).Methods("GET")
	api.HandleFunc("/health/{provider}/check", s.handleForceCheck).Methods("POST")
	api.HandleFunc("/providers", s.handleProviders).Methods("GET")
	api.HandleFunc("/providers/{provider}/stats", s.handleResetStats).Methods("DELETE")
	api.HandleFunc("/decisions", s.handleDecisions).Methods("GET")
	api.HandleFunc("/decisions/stats", s.handleDecisionStats).Methods("GET")
}

// Handler returns the configured root handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start begins serving and blocks until the server stops.
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port":         s.config.Port,
		"auth_enabled": s.config.Auth.Enabled,
	}).Info("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleRoute runs a query through the routing engine and returns the decision.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	var req types.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	decision, err := s.engine.RouteQuery(&req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, decision)
}

// usagePayload is the wire form of a usage report.
type usagePayload struct {
	ProviderID     string  `json:"provider_id"`
	TenantID       string  `json:"tenant_id"`
	Success        bool    `json:"success"`
	ResponseTimeMs float64 `json:"response_time_ms"`
	TokensUsed     int64   `json:"tokens_used"`
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	var payload usagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if payload.ProviderID == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "provider_id is required")
		return
	}

	s.engine.RecordUsage(payload.TenantID, types.UsageRecord{
		ProviderID:   payload.ProviderID,
		Success:      payload.Success,
		ResponseTime: time.Duration(payload.ResponseTimeMs * float64(time.Millisecond)),
		TokensUsed:   payload.TokensUsed,
	})

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealthStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.GetHealthStatus())
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	providerID := mux.Vars(r)["provider"]

	stats, ok := s.engine.StatsFor(providerID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "unknown_provider", fmt.Sprintf("provider %q is not registered", providerID))
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleForceCheck(w http.ResponseWriter, r *http.Request) {
	providerID := mux.Vars(r)["provider"]

	result, err := s.engine.ForceHealthCheck(r.Context(), providerID)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "unknown_provider", err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"providers": s.engine.Capabilities(),
	})
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	providerID := mux.Vars(r)["provider"]

	if _, ok := s.engine.StatsFor(providerID); !ok {
		s.writeError(w, http.StatusNotFound, "unknown_provider", fmt.Sprintf("provider %q is not registered", providerID))
		return
	}

	s.engine.ResetProviderStats(providerID)
	s.logger.WithField("provider", providerID).Info("Provider stats reset")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDecisions(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"decisions": s.engine.History().Recent(limit),
	})
}

func (s *Server) handleDecisionStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.engine.History().Stats())
}

func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	s.writeJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// loggingMiddleware records method, path, status and duration per request.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapped.statusCode,
			"duration": time.Since(start).String(),
			"remote":   r.RemoteAddr,
		}).Info("HTTP request")
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
