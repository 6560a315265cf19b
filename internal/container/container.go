package container

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/application/workflow"
	"github.com/garyjia/reception-workflow/internal/infrastructure/telemetry"
	httpapi "github.com/garyjia/reception-workflow/internal/interfaces/http"
)

// Container manages all application dependencies and lifecycle.
// Components are initialized in dependency order and torn down in reverse.
type Container struct {
	config *Config
	logger *zap.Logger

	telemetry *telemetry.Provider
	database  *DatabaseBundle
	stores    *StoreBundle
	workflow  *WorkflowBundle
	server    *httpapi.Server

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components in dependency order:
// 1. Telemetry
// 2. Database and migrations
// 3. Event log and stores
// 4. Handlers, dispatcher and coordinator
// 5. HTTP server
//
// The server is built but not listening; call Server().Start to serve.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	tp, err := ProvideTelemetry(ctx, &c.config.Telemetry, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	c.telemetry = tp

	dbBundle, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.database = dbBundle
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	stores, err := ProvideStores(&c.config.Workflow, c.database, c.logger)
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize stores: %w", err)
	}
	c.stores = stores
	c.logger.Info("Stores initialized", zap.String("audit_store", c.config.Workflow.AuditStore))

	wf, err := ProvideWorkflow(&WorkflowDeps{
		Config:    &c.config.Workflow,
		Stores:    c.stores,
		Telemetry: c.telemetry,
		Logger:    c.logger,
	})
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workflow: %w", err)
	}
	c.workflow = wf
	c.logger.Info("Workflow coordinator initialized",
		zap.Bool("fire_entry_events", c.config.Workflow.FireEntryEvents),
		zap.Int("guard_count", len(c.config.Workflow.Guards)))

	server, err := ProvideServer(&ServerDeps{
		Config:      &c.config.Server,
		Workflow:    c.workflow,
		Stores:      c.stores,
		Database:    c.database,
		Telemetry:   c.telemetry,
		HealthCheck: c.healthError,
		Logger:      c.logger,
	})
	if err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	c.server = server

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	err := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if err != nil {
		c.logger.Error("Container closed with errors", zap.Error(err))
		return err
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been initialized so far
func (c *Container) teardown() error {
	var errs []error

	if c.server != nil {
		if err := c.server.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}

	if c.database != nil {
		if err := c.database.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	if c.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := c.telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	set := func(name string, healthy bool, message string) {
		status.Components[name] = ComponentHealth{Healthy: healthy, Message: message}
		if !healthy {
			status.Overall = false
		}
	}

	if c.database == nil {
		set("database", false, "not initialized")
	} else if err := c.database.DB.PingContext(ctx); err != nil {
		set("database", false, fmt.Sprintf("ping failed: %v", err))
	} else {
		set("database", true, "")
	}

	if c.stores == nil {
		set("event_log", false, "not initialized")
	} else {
		set("event_log", true, "")
	}

	if c.workflow == nil {
		set("coordinator", false, "not initialized")
	} else {
		set("coordinator", true, "")
	}

	return status
}

func (c *Container) healthError(ctx context.Context) error {
	status := c.Health(ctx)
	if status.Overall {
		return nil
	}
	for name, component := range status.Components {
		if !component.Healthy {
			return fmt.Errorf("%s: %s", name, component.Message)
		}
	}
	return errors.New("unhealthy")
}

// Getters for accessing container components

// Coordinator returns the workflow coordinator.
func (c *Container) Coordinator() workflow.Coordinator {
	return c.workflow.Coordinator
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.workflow.Dispatcher
}

// EventLog returns the event log.
func (c *Container) EventLog() port.EventLog {
	return c.stores.Events
}

// Transitions returns the transition audit store.
func (c *Container) Transitions() port.TransitionRecorder {
	return c.stores.Transitions
}

// Server returns the HTTP server.
func (c *Container) Server() *httpapi.Server {
	return c.server
}
