// Package http exposes the reception workflow over a JSON API.
// This is a thin adapter layer that translates HTTP requests to coordinator
// and event log calls.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/application/workflow"
	"github.com/garyjia/reception-workflow/internal/domain/event"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
	"github.com/garyjia/reception-workflow/internal/infrastructure/export"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// HandlerLister reports the handlers registered for an event type
type HandlerLister interface {
	ListHandlers(eventType event.Type) []dispatcher.HandlerInfo
}

// HistoryWriter renders an aggregate's history as a workbook
type HistoryWriter interface {
	Write(w io.Writer, h export.History) error
}

// PatientWriter maintains the patient reference data
type PatientWriter interface {
	Upsert(ctx context.Context, patientID, fullName string, active bool) error
}

// PlanWriter maintains the insurance plan reference data
type PlanWriter interface {
	Upsert(ctx context.Context, plan port.InsurancePlan) error
}

// MetricsReader exposes in-process counters
type MetricsReader interface {
	Counters(ctx context.Context) (map[string]int64, error)
}

// Services are the collaborators behind the routes. Coordinator, Table and
// Events are required; routes backed by a nil optional service answer 503.
type Services struct {
	Coordinator workflow.Coordinator
	Table       domainwf.Table
	Events      port.EventLog
	Transitions port.TransitionRecorder
	Dispatcher  HandlerLister
	Exporter    HistoryWriter
	Patients    PatientWriter
	Plans       PlanWriter
	Tx          port.TransactionManager
	Metrics     MetricsReader

	// HealthCheck reports a failing dependency, nil when healthy
	HealthCheck func(ctx context.Context) error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	services   Services
	logger     Logger
}

// NewServer creates a new HTTP server over the given services
func NewServer(config ServerConfig, services Services, logger Logger) (*Server, error) {
	if services.Coordinator == nil || services.Table == nil || services.Events == nil {
		return nil, errors.New("coordinator, table and event log are required")
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultServerConfig().ShutdownTimeout
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	server := &Server{
		config:   config,
		router:   router,
		services: services,
		logger:   logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server, nil
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		s.logger.Error("HTTP handler panic recovered",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"panic", recovered,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   internalErrorMessage,
		})
	}))
	s.router.Use(s.loggingMiddleware())
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		s.logger.Info("HTTP request",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
			"client_ip", c.ClientIP(),
		)
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.services, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api/v1")
	{
		api.GET("/states/:state/next", h.NextStates)
		api.GET("/transitions/check", h.CheckTransition)

		receptions := api.Group("/receptions/:id")
		{
			receptions.POST("/transitions", h.ExecuteTransition)
			receptions.GET("/transitions", h.TransitionHistory)

			receptions.POST("/events", h.ProcessEvent)
			receptions.GET("/events", h.AggregateEvents)
			receptions.GET("/events/last", h.LastEvent)
			receptions.GET("/events/count", h.CountEvents)
			receptions.GET("/events/export", h.ExportHistory)
			receptions.GET("/statistics", h.Statistics)

			receptions.POST("/snapshots", h.CreateSnapshot)
			receptions.POST("/replay", h.Replay)
		}

		api.POST("/snapshots/:snapshotId/restore", h.RestoreSnapshot)
		api.GET("/events", h.FilterEvents)
		api.GET("/event-types/:type/handlers", h.ListHandlers)
		api.GET("/metrics", h.Metrics)

		api.PUT("/patients/:patientId", h.UpsertPatient)
		api.PUT("/insurance-plans/:planId", h.UpsertPlan)
		api.POST("/reference-data", h.ImportReferenceData)
	}
}

// Start runs the server until ctx is cancelled or listening fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
