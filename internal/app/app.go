package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/handlers"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/services/analyzer"
	"github.com/ternarybob/geoscope/internal/services/engine"
	"github.com/ternarybob/geoscope/internal/services/events"
	"github.com/ternarybob/geoscope/internal/services/fetcher"
	"github.com/ternarybob/geoscope/internal/services/pipeline"
	"github.com/ternarybob/geoscope/internal/services/report"
	"github.com/ternarybob/geoscope/internal/services/resolver"
	"github.com/ternarybob/geoscope/internal/services/seeds"
	"github.com/ternarybob/geoscope/internal/storage/badger"
)

// App wires configuration, storage, services, and handlers together.
// Construction order matters: storage first, then the pipeline services,
// then the engine, then the handlers that expose them.
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event bus (engine progress -> WebSocket)
	EventService interfaces.EventService

	// Page pipeline services
	FetchService    interfaces.Fetcher
	RenderService   interfaces.Renderer
	AnalyzerService interfaces.Analyzer
	ResolverService interfaces.EntitySearcher
	Pipeline        interfaces.PagePipeline
	SeedService     interfaces.SeedDiscoverer

	// Audit job engine
	AuditService interfaces.AuditService
	engine       *engine.Service

	// Report rendering
	ReportService interfaces.ReportService

	// HTTP handlers
	APIHandler     *handlers.APIHandler
	AuditHandler   *handlers.AuditHandler
	SchemaHandler  *handlers.SchemaHandler
	EntityHandler  *handlers.EntityHandler
	HistoryHandler *handlers.HistoryHandler
	WSHandler      *handlers.WebSocketHandler
}

// New builds a fully wired application from config
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.EventService = events.NewService(logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger, &cfg.WebSocket)

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	if err := app.engine.Start(); err != nil {
		return nil, fmt.Errorf("failed to start audit engine: %w", err)
	}

	logger.Info().
		Str("llm_provider", app.AnalyzerService.Name()).
		Int("concurrency", cfg.Engine.Concurrency).
		Msg("Application initialization complete")

	return app, nil
}

// initServices builds the page pipeline and the audit engine on top of it
func (a *App) initServices() error {
	a.FetchService = fetcher.NewService(a.Config, a.Logger)
	a.RenderService = fetcher.NewChromeRenderer(a.Config, a.Logger)

	analyzerService, err := analyzer.NewAnalyzer(a.Config, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}
	a.AnalyzerService = analyzerService

	a.ResolverService = resolver.NewService(a.Config, a.Logger)

	a.Pipeline = pipeline.New(
		a.FetchService,
		a.RenderService,
		a.AnalyzerService,
		a.ResolverService,
		a.Config,
		a.Logger,
	)

	a.SeedService = seeds.NewDiscoverer(a.FetchService, a.Config, a.Logger)

	a.engine = engine.NewService(
		a.Config,
		a.Pipeline,
		a.AnalyzerService,
		a.StorageManager,
		a.EventService,
		a.Logger,
	)
	a.AuditService = a.engine

	a.ReportService = report.NewService(a.Logger)

	return nil
}

// initHandlers builds HTTP handlers over the services
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler()
	a.AuditHandler = handlers.NewAuditHandler(
		a.AuditService,
		a.SeedService,
		a.ReportService,
		a.StorageManager,
		a.Logger,
	)
	a.SchemaHandler = handlers.NewSchemaHandler(a.Logger)
	a.EntityHandler = handlers.NewEntityHandler(a.ResolverService, a.Logger)
	a.HistoryHandler = handlers.NewHistoryHandler(a.StorageManager, a.Logger)

	return nil
}

// Close shuts down services in reverse dependency order: the engine drains
// its workers first so nothing writes to storage after it closes.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.AuditService != nil {
		if err := a.AuditService.Stop(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop audit engine")
		} else {
			a.Logger.Info().Msg("Audit engine stopped")
		}
	}

	if a.RenderService != nil {
		if err := a.RenderService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close renderer")
		}
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
			return err
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}
