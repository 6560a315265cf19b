// Package container provides dependency injection and lifecycle management
// for the reception workflow service.
package container

import (
	"fmt"
	"time"

	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Telemetry TelemetryConfig
	Workflow  WorkflowConfig
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file, or ":memory:"
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool
	ServiceName  string
	OTLPEndpoint string
	SampleRate   float64
}

// WorkflowConfig holds reception workflow settings.
type WorkflowConfig struct {
	// FireEntryEvents processes each state's entry events after a transition
	FireEntryEvents bool

	// AuditStore is "sqlite" or "memory"
	AuditStore string

	// NotificationChannels gets one notification handler per channel
	NotificationChannels []string

	// Guards are compiled guard bindings applied to the reception table
	Guards []domainwf.GuardBinding
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "data/reception.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "reception-workflow",
			SampleRate:  1.0,
		},
		Workflow: WorkflowConfig{
			FireEntryEvents:      false,
			AuditStore:           "sqlite",
			NotificationChannels: []string{"email"},
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	switch c.Workflow.AuditStore {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("workflow.audit_store must be sqlite or memory, got %q", c.Workflow.AuditStore)
	}
	return nil
}
