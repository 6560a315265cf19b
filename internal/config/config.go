package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
	"go.uber.org/zap/zapcore"

	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
)

// EnvPrefix is prepended to every environment override, e.g. RECEPTION_SERVER_PORT
const EnvPrefix = "RECEPTION"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate"`
}

// WorkflowConfig tunes the reception workflow
type WorkflowConfig struct {
	// FireEntryEvents processes each state's entry events after a transition
	FireEntryEvents bool `mapstructure:"fire_entry_events"`

	// AuditStore selects where transition records go: sqlite or memory
	AuditStore string `mapstructure:"audit_store"`

	NotificationChannels []string      `mapstructure:"notification_channels"`
	Guards               []GuardConfig `mapstructure:"guards"`
}

// GuardConfig is a CEL guard on one edge of the transition table
type GuardConfig struct {
	From       string `mapstructure:"from"`
	To         string `mapstructure:"to"`
	Expression string `mapstructure:"expression"`
}

// Audit store backends
const (
	AuditStoreSQLite = "sqlite"
	AuditStoreMemory = "memory"
)

// Load reads configuration from the optional YAML file, .env files and the
// environment. A missing .env file is not an error; a missing config file is.
func Load(configPath string, envFiles ...string) (*Config, error) {
	if err := loadEnvFiles(envFiles...); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if err := gotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	// Database defaults
	v.SetDefault("database.path", "data/reception.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "reception-workflow")
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.sample_rate", 1.0)

	v.SetDefault("workflow.fire_entry_events", false)
	v.SetDefault("workflow.audit_store", AuditStoreSQLite)
	v.SetDefault("workflow.notification_channels", []string{"email"})
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logger.Level)); err != nil {
		return fmt.Errorf("logger.level %q is invalid", c.Logger.Level)
	}
	if c.Logger.Format != "json" && c.Logger.Format != "console" {
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be within [0, 1], got %v", c.Telemetry.SampleRate)
	}

	switch c.Workflow.AuditStore {
	case AuditStoreSQLite, AuditStoreMemory:
	default:
		return fmt.Errorf("workflow.audit_store must be %s or %s, got %q", AuditStoreSQLite, AuditStoreMemory, c.Workflow.AuditStore)
	}

	for i, ch := range c.Workflow.NotificationChannels {
		if strings.TrimSpace(ch) == "" {
			return fmt.Errorf("workflow.notification_channels[%d] is empty", i)
		}
	}

	for i, g := range c.Workflow.Guards {
		if _, ok := domainwf.ParseState(g.From); !ok {
			return fmt.Errorf("workflow.guards[%d].from: unknown state %q", i, g.From)
		}
		if _, ok := domainwf.ParseState(g.To); !ok {
			return fmt.Errorf("workflow.guards[%d].to: unknown state %q", i, g.To)
		}
		if strings.TrimSpace(g.Expression) == "" {
			return fmt.Errorf("workflow.guards[%d].expression is required", i)
		}
	}

	return nil
}

// GuardBindings compiles the configured guards
func (c *WorkflowConfig) GuardBindings() ([]domainwf.GuardBinding, error) {
	bindings := make([]domainwf.GuardBinding, 0, len(c.Guards))
	for i, g := range c.Guards {
		from, _ := domainwf.ParseState(g.From)
		to, _ := domainwf.ParseState(g.To)

		guard, err := domainwf.CompileCELGuard(g.Expression)
		if err != nil {
			return nil, fmt.Errorf("workflow.guards[%d]: %w", i, err)
		}
		bindings = append(bindings, domainwf.GuardBinding{From: from, To: to, Guard: guard})
	}
	return bindings, nil
}
