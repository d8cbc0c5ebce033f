// Package app provides application initialization and wiring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jobrunner/stacsync/internal/adapters/bus"
	httpAdapter "github.com/jobrunner/stacsync/internal/adapters/http"
	"github.com/jobrunner/stacsync/internal/adapters/journal"
	"github.com/jobrunner/stacsync/internal/adapters/metrics"
	"github.com/jobrunner/stacsync/internal/adapters/raster"
	"github.com/jobrunner/stacsync/internal/adapters/schema"
	"github.com/jobrunner/stacsync/internal/adapters/storage"
	tlsAdapter "github.com/jobrunner/stacsync/internal/adapters/tls"
	"github.com/jobrunner/stacsync/internal/application"
	"github.com/jobrunner/stacsync/internal/config"
	"github.com/jobrunner/stacsync/internal/ports/output"
)

// App holds all application components.
type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	StacIO        *storage.StacIO
	Extractor     *raster.Extractor
	Validator     *schema.Validator
	Store         *application.CatalogStore
	Updater       *application.Updater
	Journal       output.Journal
	Subscriber    output.Subscriber
	Consumer      *application.Consumer
	HealthService *application.HealthService
	HTTPServer    *httpAdapter.Server
	Metrics       *metrics.Collector
}

// New creates and initializes the updater service.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app, err := newCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	// Initialize journal
	app.Journal = output.NoOpJournal{}
	if cfg.Journal.Enabled {
		j, err := journal.Open(ctx, cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		app.Journal = j
	}

	// Initialize notification subscriber
	sub, err := initSubscriber(cfg.Bus, logger)
	if err != nil {
		_ = app.Journal.Close()
		return nil, fmt.Errorf("initializing bus: %w", err)
	}
	app.Subscriber = sub

	app.Consumer = application.NewConsumer(
		app.Subscriber,
		app.Updater,
		app.Journal,
		app.metricsCollector(),
		logger,
	)
	app.HealthService = application.NewHealthService(app.Consumer)

	// Initialize ops HTTP server
	if cfg.Server.Enabled {
		var exporter httpAdapter.MetricsExporter
		if app.Metrics != nil {
			exporter = app.Metrics
		}
		app.HTTPServer = httpAdapter.NewServer(
			cfg.Server,
			app.Consumer,
			app.HealthService,
			exporter,
			cfg.Metrics.Path,
			logger,
		)

		tlsConfig, err := tlsAdapter.NewTLSConfig(tlsConfigFrom(cfg.Server.TLS), logger)
		if err != nil {
			_ = app.Journal.Close()
			return nil, fmt.Errorf("initializing TLS: %w", err)
		}
		if tlsConfig != nil {
			app.HTTPServer.SetTLSConfig(tlsConfig)
		}
	}

	return app, nil
}

// NewBootstrap creates the components needed to build a new catalog. It
// does not touch the bus or the journal.
func NewBootstrap(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	return newCore(ctx, cfg, logger)
}

func newCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Initialize metrics
	if cfg.Metrics.Enabled {
		app.Metrics = metrics.NewCollector("stacsync", nil)
	}
	collector := app.metricsCollector()

	// Initialize catalog storage
	stacIO, err := initStacIO(ctx, cfg.Storage, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}
	app.StacIO = stacIO

	// Initialize schema validator
	app.Validator, err = schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("initializing schema validator: %w", err)
	}

	// Initialize geometry extractor
	app.Extractor = raster.NewExtractor(rasterConfig(cfg), collector, logger)

	app.Store = application.NewCatalogStore(
		app.StacIO,
		app.Validator,
		collector,
		logger,
		cfg.Catalog.Root,
	)
	app.Updater = application.NewUpdater(
		application.UpdaterConfig{
			Namespace:     cfg.Metadata.Namespace,
			CatalogedType: cfg.Metadata.CatalogedType,
		},
		app.Extractor,
		app.Store,
		logger,
	)

	return app, nil
}

// Run loads the catalog, starts the ops server and blocks in the consumer
// loop until ctx is cancelled or the bus goes away.
func (a *App) Run(ctx context.Context) error {
	catalog, err := a.Store.Load(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	a.Logger.Debug("catalog tree", "tree", catalog.Describe())

	serverErr := make(chan error, 1)
	if a.HTTPServer != nil {
		go func() {
			if err := a.HTTPServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- a.Consumer.Run(ctx, catalog)
	}()

	select {
	case err := <-consumerErr:
		return err
	case err := <-serverErr:
		return fmt.Errorf("ops server: %w", err)
	}
}

// Bootstrap builds a catalog from plan and saves it under the configured root.
func (a *App) Bootstrap(ctx context.Context, plan application.BootstrapPlan) error {
	b := application.NewBootstrapper(a.Updater, a.Store, a.Logger)
	catalog, err := b.Run(ctx, plan)
	if err != nil {
		return err
	}
	a.Logger.Info("catalog bootstrapped",
		"id", catalog.ID,
		"href", catalog.Href(),
		"items", catalog.ItemCount(),
	)
	return nil
}

// Shutdown gracefully shuts down all components.
func (a *App) Shutdown(ctx context.Context) error {
	a.Logger.Info("shutting down application")

	// Shutdown HTTP server
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", "error", err)
		}
	}

	if a.Journal != nil {
		if err := a.Journal.Close(); err != nil {
			a.Logger.Error("journal close error", "error", err)
			return err
		}
	}

	return nil
}

func (a *App) metricsCollector() output.MetricsCollector {
	if a.Metrics != nil {
		return a.Metrics
	}
	return &output.NoOpMetrics{}
}

// initStacIO registers a backend for every configured scheme. The local
// file backend is always present.
func initStacIO(ctx context.Context, cfg config.StorageConfig, collector output.MetricsCollector, logger *slog.Logger) (*storage.StacIO, error) {
	stacIO := storage.NewStacIO(collector, logger)

	s3Backend, err := storage.NewS3Backend(ctx, storage.S3Config{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		UsePathStyle:    cfg.S3.UsePathStyle,
	})
	if err != nil {
		return nil, err
	}
	stacIO.Register(output.StorageTypeS3, s3Backend)

	if cfg.Azure.Enabled() {
		azBackend, err := storage.NewAzureBackend(storage.AzureConfig{
			AccountName:      cfg.Azure.AccountName,
			AccountKey:       cfg.Azure.AccountKey,
			ConnectionString: cfg.Azure.ConnectionString,
		})
		if err != nil {
			return nil, err
		}
		stacIO.Register(output.StorageTypeAzure, azBackend)
	}

	httpBackend := storage.NewHTTPBackend(storage.HTTPConfig{
		Timeout:  cfg.HTTP.Timeout,
		Username: cfg.HTTP.Username,
		Password: cfg.HTTP.Password,
	})
	stacIO.Register(output.StorageTypeHTTP, httpBackend)
	stacIO.Register(output.StorageTypeHTTPS, httpBackend)

	logger.Debug("catalog storage ready", "schemes", stacIO.Schemes())
	return stacIO, nil
}

// initSubscriber creates the subscriber for the configured bus type.
func initSubscriber(cfg config.BusConfig, logger *slog.Logger) (output.Subscriber, error) {
	switch cfg.Type {
	case config.BusAMQP:
		return bus.NewAMQPSubscriber(bus.AMQPConfig{
			URL:             cfg.AMQP.URL,
			Exchange:        cfg.AMQP.Exchange,
			ExchangeType:    cfg.AMQP.ExchangeType,
			DeclareExchange: cfg.AMQP.DeclareExchange,
			RoutingKey:      cfg.AMQP.RoutingKey,
			Prefetch:        cfg.AMQP.Prefetch,
		}, logger), nil

	case config.BusNATS:
		return bus.NewNATSSubscriber(bus.NATSConfig{
			URL:     cfg.NATS.URL,
			Subject: cfg.NATS.Subject,
			Name:    cfg.NATS.Name,
		}, logger), nil

	case config.BusSpool:
		return bus.NewSpoolSubscriber(bus.SpoolConfig{
			Dir:      cfg.Spool.Dir,
			Debounce: cfg.Spool.Debounce,
		}, logger)

	default:
		return nil, fmt.Errorf("unknown bus type: %s", cfg.Type)
	}
}

func tlsConfigFrom(cfg config.TLSConfig) tlsAdapter.Config {
	return tlsAdapter.Config{
		Enabled:  cfg.Enabled,
		Domains:  cfg.Domains,
		Email:    cfg.Email,
		CacheDir: cfg.CacheDir,
		Staging:  cfg.Staging,
		DNS: tlsAdapter.DNSConfig{
			SubscriptionID:    cfg.DNS.SubscriptionID,
			ResourceGroupName: cfg.DNS.ResourceGroupName,
			ClientID:          cfg.DNS.ClientID,
		},
	}
}

// rasterConfig derives the GDAL settings. The raster S3 endpoint defaults
// to the catalog storage endpoint.
func rasterConfig(cfg *config.Config) raster.Config {
	endpoint := cfg.Raster.S3Endpoint
	if endpoint == "" {
		endpoint = cfg.Storage.S3.Endpoint
	}
	return raster.Config{
		TargetEPSG:       cfg.Raster.TargetEPSG,
		S3Endpoint:       endpoint,
		S3HTTPS:          cfg.Raster.S3HTTPS,
		S3VirtualHosting: cfg.Raster.S3VirtualHosting,
		S3Region:         cfg.Storage.S3.Region,
		AccessKeyID:      cfg.Storage.S3.AccessKeyID,
		SecretAccessKey:  cfg.Storage.S3.SecretAccessKey,
	}
}
