package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pv-groupings/internal/review"
	"github.com/pv-groupings/internal/web/handlers"
	"github.com/pv-groupings/internal/web/middleware"
)

// Server represents the web server
type Server struct {
	config     *Config
	data       *handlers.Data
	sink       review.Sink
	sessionID  string
	logger     *slog.Logger
	httpServer *http.Server
	router     *mux.Router
}

// NewServer creates a new web server instance. Every validation recorded
// through it carries the same session id.
func NewServer(config *Config, data *handlers.Data, sink review.Sink, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := &Server{
		config:    config,
		data:      data,
		sink:      sink,
		sessionID: uuid.New().String(),
		logger:    logger,
	}

	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:      server.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// SessionID identifies this review session
func (s *Server) SessionID() string {
	return s.sessionID
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router = mux.NewRouter()

	// Convert config for handlers (to avoid import cycle)
	handlerConfig := &handlers.Config{}
	handlerConfig.Features.ExportEnabled = s.config.Features.ExportEnabled
	handlerConfig.Features.ReviewEnabled = s.config.Features.ReviewEnabled

	apiHandler := &handlers.APIHandler{Data: s.data, Sink: s.sink, Config: handlerConfig, Logger: s.logger}
	groupsHandler := &handlers.GroupsHandler{
		Data:      s.data,
		Sink:      s.sink,
		Config:    handlerConfig,
		SessionID: s.sessionID,
		Logger:    s.logger,
	}
	mapsHandler := &handlers.MapsHandler{Data: s.data, Config: handlerConfig}
	comparisonHandler := &handlers.ComparisonHandler{Data: s.data, Config: handlerConfig}
	registryHandler := &handlers.RegistryHandler{Data: s.data, Config: handlerConfig}

	api := s.router.PathPrefix("/api").Subrouter()

	// Groups and review
	api.HandleFunc("/groups", groupsHandler.ListGroups).Methods("GET")
	api.HandleFunc("/groups/geojson", mapsHandler.GetGeoJSON).Methods("GET")
	api.HandleFunc("/groups/{id:[0-9]+}", groupsHandler.GetGroup).Methods("GET")
	api.HandleFunc("/groups/{id:[0-9]+}/validation", groupsHandler.Validate).Methods("POST")
	api.HandleFunc("/validations", groupsHandler.ListValidations).Methods("GET")

	// Comparison
	api.HandleFunc("/comparison", comparisonHandler.ListComparison).Methods("GET")
	api.HandleFunc("/comparison/export", comparisonHandler.ExportComparison).Methods("GET")

	// Registry
	api.HandleFunc("/registry/{id}", registryHandler.GetInstallation).Methods("GET")

	api.HandleFunc("/stats", apiHandler.GetStats).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// Static file serving
	staticDir := "internal/web/static"
	if _, err := os.Stat(staticDir); err == nil {
		s.router.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir + "/")))
	}

	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestLogging(s.logger))

	if s.config.Auth.Enabled {
		// API routes only; /metrics stays open for scraping
		api.Use(middleware.Authentication(s.config.Auth.APIKey))
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully and closes
// the results sink.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", "http://"+s.httpServer.Addr, "session_id", s.sessionID)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("server shutdown error", "error", err)
	}
	if err := s.sink.Close(); err != nil {
		s.logger.Error("results sink close error", "error", err)
	}

	s.logger.Info("server stopped")
	return nil
}
