// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "ecf-service/docs"
	"ecf-service/internal/config"
	"ecf-service/internal/database"
	"ecf-service/internal/discovery"
	serialscan "ecf-service/internal/discovery/serial"
	usbscan "ecf-service/internal/discovery/usb"
	drivers "ecf-service/internal/driver"
	"ecf-service/internal/handler"
	"ecf-service/internal/repository"
	"ecf-service/internal/routes"
	"ecf-service/internal/service"
	"ecf-service/internal/utils"
)

const (
	shutdownTimeout = 30 * time.Second
	cleanupInterval = 24 * time.Hour
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	migrator *database.Migrator
	spool    repository.Spool
	clock    clockwork.Clock

	// Services
	journal          *service.Journal
	deviceService    *service.DeviceService
	operationService *service.OperationService
	couponService    *service.CouponService
	tillService      *service.TillService
	printService     *service.PrintService
	discoveryService *service.DiscoveryService
	eventBus         *handler.EventBus

	// Repositories
	deviceRepo  repository.DeviceRepository
	journalRepo repository.JournalRepository

	driverRegistry *drivers.Registry
}

// @title ECF Service API
// @version 1.0.0
// @description Fiscal printer (ECF) management service: coupons, till, reports and device discovery

// @contact.name ECF Service API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	migrateCmd := flag.String("migrate", "", "run a migration command (up, down, version) and exit")
	flag.Parse()

	if *migrateCmd != "" {
		if err := runMigration(*migrateCmd); err != nil {
			fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app, err := NewApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Application stopped with error", zap.Error(err))
	}
}

// runMigration applies one migration command against the configured
// database.
func runMigration(cmd string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger, &cfg.Database)
	switch cmd {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%t\n", version, dirty)
		return nil
	default:
		return fmt.Errorf("unknown migration command %q", cmd)
	}
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	utils.NewServiceLogger(logger, "ecf-service").LogServiceStart(cfg.App.Version)

	app := &Application{
		config: cfg,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := app.initializeRepositories(); err != nil {
		return nil, fmt.Errorf("failed to initialize repositories: %w", err)
	}
	if err := app.initializeDriverRegistry(); err != nil {
		return nil, fmt.Errorf("failed to initialize driver registry: %w", err)
	}
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	app.migrator = database.NewMigrator(db, app.logger, &app.config.Database)
	if err := app.migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	version, _, err := app.migrator.Version()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	app.logger.Info("Database initialized successfully", zap.Uint("schema_version", version))
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() error {
	app.deviceRepo = repository.NewDeviceRepository(app.database, app.logger)
	app.journalRepo = repository.NewJournalRepository(app.database, app.logger)

	if app.config.Offline.Enabled {
		spool, err := repository.OpenSpool(app.config.Offline.LocalDBPath, app.config.Offline.MaxQueueSize, app.logger)
		if err != nil {
			return fmt.Errorf("failed to open journal spool: %w", err)
		}
		app.spool = spool
	}

	app.logger.Info("Repositories initialized successfully",
		zap.Bool("offline_spool", app.spool != nil),
	)
	return nil
}

// initializeDriverRegistry sets up the printer driver registry
func (app *Application) initializeDriverRegistry() error {
	app.driverRegistry = drivers.NewRegistry(app.logger)

	opts := drivers.Options{
		BusyAttempts:    app.config.Device.BusyRetries,
		BusyDelay:       app.config.Device.BusyDelay,
		LegacyConfig:    app.config.Device.LegacyConfig,
		VirtualStateDir: app.config.Device.VirtualStateDir,
		Clock:           app.clock,
	}
	return drivers.RegisterDefaultDrivers(app.driverRegistry, opts, drivers.NewVirtualDevices(), app.logger)
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)
	app.journal = service.NewJournal(app.journalRepo, app.spool, app.clock, app.logger)

	app.deviceService = service.NewDeviceService(
		app.deviceRepo,
		app.journal,
		app.driverRegistry,
		app.config,
		app.logger,
		service.WithClock(app.clock),
		service.WithEvents(app.eventBus),
	)
	app.operationService = service.NewOperationService(app.deviceService, app.logger)
	app.couponService = service.NewCouponService(app.deviceService, app.logger)
	app.tillService = service.NewTillService(app.deviceService, app.logger)
	app.printService = service.NewPrintService(app.deviceService, app.logger)

	manager := discovery.NewManager(app.driverRegistry.IsSupported, app.logger)
	manager.Register(usbscan.NewScanner(app.logger))
	manager.Register(serialscan.NewScanner(nil, app.config.SerialDefaults(), app.logger))
	app.discoveryService = service.NewDiscoveryService(manager, app.driverRegistry, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	router := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		routes.Services{
			Devices:    app.deviceService,
			Operations: app.operationService,
			Coupons:    app.couponService,
			Till:       app.tillService,
			Print:      app.printService,
			Discovery:  app.discoveryService,
		},
		app.eventBus,
	).SetupRouter()

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// Start runs the server and the background loops until a signal arrives or
// one of them fails.
func (app *Application) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))
		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(app.config.Server.TLS.CertFile, app.config.Server.TLS.KeyFile)
		} else {
			err = app.server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error { return app.eventBus.Run(ctx) })
	g.Go(func() error { return app.deviceService.MonitorHealth(ctx) })
	g.Go(func() error { return app.journal.Run(ctx, app.config.Offline.SyncInterval) })
	g.Go(func() error { return app.runCleanup(ctx) })
	g.Go(func() error {
		<-ctx.Done()
		return app.shutdown()
	})

	return g.Wait()
}

// runCleanup prunes journal entries past the retention window once a day.
func (app *Application) runCleanup(ctx context.Context) error {
	ticker := app.clock.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := app.migrator.RunCleanup(); err != nil {
				app.logger.Warn("Journal cleanup failed", zap.Error(err))
			}
		}
	}
}

// shutdown stops accepting requests, closes every printer session and
// releases the stores.
func (app *Application) shutdown() error {
	app.logger.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := app.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	app.deviceService.Shutdown(ctx)

	if app.spool != nil {
		if err := app.spool.Close(); err != nil {
			errs = append(errs, fmt.Errorf("journal spool: %w", err))
		}
	}
	if err := app.database.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	utils.NewServiceLogger(app.logger, "ecf-service").LogServiceStop("signal")
	_ = app.logger.Sync()
	return errors.Join(errs...)
}
