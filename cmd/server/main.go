// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "monitor-service/docs"
	"monitor-service/internal/config"
	"monitor-service/internal/database"
	"monitor-service/internal/discovery"
	"monitor-service/internal/discovery/serial"
	"monitor-service/internal/eventbus"
	"monitor-service/internal/handler"
	"monitor-service/internal/repository"
	"monitor-service/internal/routes"
	"monitor-service/internal/service"
	"monitor-service/internal/utils"
)

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB
	migrator *database.Migrator

	bus            *eventbus.EventBus
	events         repository.EventRepository
	scanner        *discovery.ScannerManager
	monitorService *service.MonitorService
	wsHandler      *handler.WebSocketHandler
}

var configFile string

// @title Monitor Service API
// @version 1.0.0
// @description Serial monitor control RPC. Port data is streamed on a separate websocket whose address is returned by /monitor/stream.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8084
// @BasePath /api/v1
func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "monitor-service",
	Short: "Serial monitor service",
	Long: `Serves the monitor control RPC and streams the data read from the
connected serial port to websocket clients.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApplication()
		if err != nil {
			return fmt.Errorf("failed to initialize application: %w", err)
		}
		defer utils.LogPanic(app.logger)
		return app.Start(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate <up|down|version|force> [version]",
	Short:     "Manage the event journal schema",
	Args:      cobra.RangeArgs(1, 2),
	ValidArgs: []string{"up", "down", "version", "force"},
	RunE:      runMigrate,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Config file (default: ./config.yaml)")
	rootCmd.AddCommand(migrateCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWith(viper.New(), configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// NewApplication creates a new application instance
func NewApplication() (*Application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, cfg.App.Name)
	serviceLogger.LogServiceStart(cfg.App.Version, cfg.App)

	app := &Application{
		config: cfg,
		logger: logger,
	}

	if err := app.initializeDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()
	app.initializeDiscovery()
	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase connects the journal database and migrates it. Nothing
// happens when the database is disabled.
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, journal kept in memory")
		return nil
	}

	db, err := database.NewConnection(&app.config.Database, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	app.migrator = database.NewMigrator(db, app.logger, &app.config.Database)
	if err := app.migrator.Up(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates the event journal
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.events = repository.NewEventRepository(app.database, app.logger)
	} else {
		app.events = repository.NewMemoryEventRepository(repository.DefaultMemoryCapacity)
	}
	app.logger.Info("Repositories initialized successfully")
}

// initializeDiscovery registers the port scanners
func (app *Application) initializeDiscovery() {
	app.scanner = discovery.NewScannerManager(app.logger)
	app.scanner.RegisterScanner(serial.NewScanner(app.logger, nil, nil))
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.bus = eventbus.NewEventBus(app.logger)
	app.monitorService = service.NewMonitorService(app.events, app.bus, nil, app.config, app.logger)
	app.wsHandler = handler.NewWebSocketHandler(app.bus, app.monitorService.Hub(), app.config.Stream.SendBuffer, app.logger)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		app.database,
		app.monitorService,
		app.events,
		app.scanner,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// Start runs the server and the background loops until a shutdown signal
func (app *Application) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.bus.Start(gctx)
		return nil
	})
	g.Go(func() error {
		app.wsHandler.Run(gctx)
		return nil
	})
	g.Go(func() error {
		app.runCleanup(gctx)
		return nil
	})
	g.Go(func() error {
		app.logger.Info("Starting HTTP server", zap.String("address", app.server.Addr))

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(app.config.Server.TLS.CertFile, app.config.Server.TLS.KeyFile)
		} else {
			err = app.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("Received shutdown signal")
		app.shutdown()
		return nil
	})

	err := g.Wait()
	app.closeResources()
	return err
}

// runCleanup prunes old journal entries every CleanupInterval
func (app *Application) runCleanup(ctx context.Context) {
	interval := app.config.Database.CleanupInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		cleanupCtx, cancel := context.WithTimeout(ctx, time.Minute)
		var (
			deleted int64
			err     error
		)
		if app.migrator != nil {
			deleted, err = app.migrator.RunCleanup(cleanupCtx)
		} else {
			deleted, err = app.events.DeleteOlderThan(cleanupCtx, time.Now().Add(-app.config.Database.Retention))
		}
		cancel()

		if err != nil {
			app.logger.Error("Failed to cleanup old events", zap.Error(err))
		} else if deleted > 0 {
			app.logger.Info("Cleaned up old events", zap.Int64("deleted", deleted))
		}
	}
}

// shutdown closes the port and stops accepting requests
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, app.config.App.Name)
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.monitorService.Stop(ctx); err != nil {
		app.logger.Error("Monitor service stop error", zap.Error(err))
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		app.logger.Info("HTTP server stopped")
	}
}

// closeResources releases what outlives the server
func (app *Application) closeResources() {
	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")
	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Fprintf(os.Stderr, "Logger close error: %v\n", err)
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	defer db.Close()

	migrator := database.NewMigrator(db, logger, &cfg.Database)

	switch args[0] {
	case "up":
		return migrator.Up()
	case "down":
		return migrator.Down()
	case "version":
		version, dirty, err := migrator.Version()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
		return nil
	case "force":
		if len(args) != 2 {
			return fmt.Errorf("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return migrator.Force(version)
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
}
