package config

import (
	"github.com/garyjia/reception-workflow/internal/container"
)

// ToContainerConfig converts the application Config to a container.Config,
// compiling the configured transition guards on the way.
func (c *Config) ToContainerConfig() (*container.Config, error) {
	guards, err := c.Workflow.GuardBindings()
	if err != nil {
		return nil, err
	}

	return &container.Config{
		Database: container.DatabaseConfig{
			Path:            c.Database.Path,
			MaxOpenConns:    c.Database.MaxOpenConns,
			MaxIdleConns:    c.Database.MaxIdleConns,
			ConnMaxLifetime: c.Database.ConnMaxLifetime,
		},
		Server: container.ServerConfig{
			Host:            c.Server.Host,
			Port:            c.Server.Port,
			ReadTimeout:     c.Server.ReadTimeout,
			WriteTimeout:    c.Server.WriteTimeout,
			ShutdownTimeout: c.Server.ShutdownTimeout,
		},
		Telemetry: container.TelemetryConfig{
			Enabled:      c.Telemetry.Enabled,
			ServiceName:  c.Telemetry.ServiceName,
			OTLPEndpoint: c.Telemetry.OTLPEndpoint,
			SampleRate:   c.Telemetry.SampleRate,
		},
		Workflow: container.WorkflowConfig{
			FireEntryEvents:      c.Workflow.FireEntryEvents,
			AuditStore:           c.Workflow.AuditStore,
			NotificationChannels: append([]string(nil), c.Workflow.NotificationChannels...),
			Guards:               guards,
		},
	}, nil
}
