package container

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/reception-workflow/internal/application/dispatcher"
	"github.com/garyjia/reception-workflow/internal/application/port"
	"github.com/garyjia/reception-workflow/internal/application/workflow"
	domainwf "github.com/garyjia/reception-workflow/internal/domain/workflow"
	"github.com/garyjia/reception-workflow/internal/infrastructure/export"
	"github.com/garyjia/reception-workflow/internal/infrastructure/handlers"
	"github.com/garyjia/reception-workflow/internal/infrastructure/persistence/memory"
	"github.com/garyjia/reception-workflow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/reception-workflow/internal/infrastructure/telemetry"
	httpapi "github.com/garyjia/reception-workflow/internal/interfaces/http"
	"github.com/garyjia/reception-workflow/pkg/database"
	"github.com/garyjia/reception-workflow/pkg/utils"
)

const instrumentationName = "github.com/garyjia/reception-workflow"

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// StoreBundle groups the event log and the SQLite-backed stores.
type StoreBundle struct {
	Events      *memory.EventLog
	Transitions port.TransitionRecorder
	Patients    *sqlite.PatientDirectory
	Plans       *sqlite.InsuranceCatalog
}

// WorkflowBundle groups the table, dispatcher and coordinator.
type WorkflowBundle struct {
	Table       domainwf.Table
	Dispatcher  dispatcher.Dispatcher
	Coordinator workflow.Coordinator
}

// ProvideTelemetry creates the trace and metric providers.
func ProvideTelemetry(ctx context.Context, cfg *TelemetryConfig, logger *zap.Logger) (*telemetry.Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telemetry config is required")
	}

	return telemetry.New(ctx, telemetry.Config{
		Enabled:      cfg.Enabled,
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SampleRate:   cfg.SampleRate,
	}, logger)
}

// ProvideDatabase opens the database, applies the embedded migrations and
// wraps the connection in a transaction manager.
func ProvideDatabase(cfg *DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunEmbedded(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideStores creates the event log, the configured audit store and the
// reference data lookups.
func ProvideStores(cfg *WorkflowConfig, dbBundle *DatabaseBundle, logger *zap.Logger) (*StoreBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("workflow config is required")
	}
	if dbBundle == nil {
		return nil, fmt.Errorf("database is required")
	}

	stores := &StoreBundle{
		Events:   memory.NewEventLog(logger),
		Patients: sqlite.NewPatientDirectory(dbBundle.TransactionMgr, logger),
		Plans:    sqlite.NewInsuranceCatalog(dbBundle.TransactionMgr, logger),
	}

	switch cfg.AuditStore {
	case "memory":
		stores.Transitions = memory.NewTransitionHistory()
	case "sqlite":
		stores.Transitions = sqlite.NewTransitionRepository(dbBundle.TransactionMgr, logger)
	default:
		return nil, fmt.Errorf("unknown audit store %q", cfg.AuditStore)
	}

	return stores, nil
}

// WorkflowDeps holds dependencies required for creating the workflow bundle.
type WorkflowDeps struct {
	Config    *WorkflowConfig
	Stores    *StoreBundle
	Telemetry *telemetry.Provider
	Logger    *zap.Logger
}

// ProvideWorkflow builds the handler registry, dispatcher and coordinator.
func ProvideWorkflow(deps *WorkflowDeps) (*WorkflowBundle, error) {
	if deps == nil || deps.Config == nil || deps.Stores == nil || deps.Telemetry == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	meter := deps.Telemetry.Meter(instrumentationName)

	registry, err := handlers.DefaultRegistry(handlers.Deps{
		Patients:             deps.Stores.Patients,
		Insurance:            deps.Stores.Plans,
		Notifier:             handlers.NewLogNotifier(deps.Logger),
		Meter:                meter,
		Logger:               deps.Logger,
		NotificationChannels: deps.Config.NotificationChannels,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build handler registry: %w", err)
	}

	kvLogger := utils.NewSugaredLogger(deps.Logger)
	disp := dispatcher.NewDispatcher(registry,
		dispatcher.WithLogger(kvLogger),
		dispatcher.WithMeter(meter),
	)

	table := domainwf.ReceptionTable(deps.Config.Guards...)

	opts := []workflow.Option{
		workflow.WithRecorder(deps.Stores.Transitions),
		workflow.WithLogger(kvLogger),
		workflow.WithTracer(deps.Telemetry.Tracer(instrumentationName)),
	}
	if deps.Config.FireEntryEvents {
		opts = append(opts, workflow.WithHooks(workflow.HooksFromEntryEvents(table)))
	}

	return &WorkflowBundle{
		Table:       table,
		Dispatcher:  disp,
		Coordinator: workflow.NewCoordinator(table, deps.Stores.Events, disp, opts...),
	}, nil
}

// ServerDeps holds dependencies required for creating the HTTP server.
type ServerDeps struct {
	Config      *ServerConfig
	Workflow    *WorkflowBundle
	Stores      *StoreBundle
	Database    *DatabaseBundle
	Telemetry   *telemetry.Provider
	HealthCheck func(ctx context.Context) error
	Logger      *zap.Logger
}

// ProvideServer creates the HTTP server over the workflow and stores.
func ProvideServer(deps *ServerDeps) (*httpapi.Server, error) {
	if deps == nil || deps.Config == nil || deps.Workflow == nil || deps.Stores == nil || deps.Database == nil {
		return nil, fmt.Errorf("server dependencies are required")
	}

	return httpapi.NewServer(httpapi.ServerConfig{
		Host:            deps.Config.Host,
		Port:            deps.Config.Port,
		ReadTimeout:     deps.Config.ReadTimeout,
		WriteTimeout:    deps.Config.WriteTimeout,
		ShutdownTimeout: deps.Config.ShutdownTimeout,
	}, httpapi.Services{
		Coordinator: deps.Workflow.Coordinator,
		Table:       deps.Workflow.Table,
		Events:      deps.Stores.Events,
		Transitions: deps.Stores.Transitions,
		Dispatcher:  deps.Workflow.Dispatcher,
		Exporter:    export.NewHistoryExporter(deps.Logger),
		Patients:    deps.Stores.Patients,
		Plans:       deps.Stores.Plans,
		Tx:          deps.Database.TransactionMgr,
		Metrics:     deps.Telemetry,
		HealthCheck: deps.HealthCheck,
	}, utils.NewSugaredLogger(deps.Logger))
}
