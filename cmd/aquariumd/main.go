package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smart_aquarium/internal/config"
	"smart_aquarium/internal/device"
	"smart_aquarium/internal/handlers"
	"smart_aquarium/internal/logger"
	"smart_aquarium/internal/repository"
	"smart_aquarium/internal/repository/db"
	"smart_aquarium/internal/server"
	"smart_aquarium/internal/service"
	"smart_aquarium/internal/store"
)

func main() {
	// load config.yml
	cfg, err := config.Load()
	if err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger
	log := logger.Get(cfg.Log.Level)

	// open DB
	sqlDB, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(sqlDB)
	seed, err := loadSeed(cfg.Store.Seed, log)
	if err != nil {
		log.Fatalw("failed to load store seed", "err", err)
	}
	tree, err := service.NewStoreService(ctx, repos.TreeRepo, repos.EventRepo, cfg.Store.Root, seed, log.Named("store"))
	if err != nil {
		log.Fatalw("failed to restore store", "err", err)
	}
	defer func() { _ = tree.Close() }()

	services := service.NewService(repos, tree, serviceOptions(cfg, log))
	apiHandler := handlers.NewHandler(services, log.Named("http"))

	// start simulator (via composed service)
	if cfg.Simulator.Enabled {
		go services.Simulator.Run(ctx, cfg.Simulator.Tick)
	}

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

// loadSeed reads the initial tree. An unset path means an empty store.
func loadSeed(path string, log *logger.Logger) (map[string]any, error) {
	if path == "" {
		log.Infow("store.seed not set; starting from an empty tree")
		return nil, nil
	}
	return store.LoadSeed(path)
}

// serviceOptions maps config onto the service layer, attaching the optional
// hardware adapters when configured.
func serviceOptions(cfg *config.Config, log *logger.Logger) service.Options {
	loc, _ := cfg.Location() // validated by config.Load
	opts := service.Options{
		Root:       cfg.Store.Root,
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		Location:   loc,
		Logger:     log,
	}
	if cfg.Hue.Bridge != "" {
		opts.Mirror = device.NewHueMirror(cfg.Hue.Bridge, cfg.Hue.User, cfg.Hue.LightID)
		log.Infow("hue_mirror_enabled", "bridge", cfg.Hue.Bridge, "light_id", cfg.Hue.LightID)
	}
	if cfg.Modbus.Address != "" {
		opts.Probe = device.NewModbusProbe(cfg.Modbus.Address, byte(cfg.Modbus.SlaveID), uint16(cfg.Modbus.Register), cfg.Modbus.Timeout)
		log.Infow("modbus_probe_enabled", "address", cfg.Modbus.Address, "register", cfg.Modbus.Register)
	}
	if cfg.Auth.SigningKey == "" {
		log.Warnw("auth.signing_key not set; protected routes will reject every token")
	}
	return opts
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
	}
}
