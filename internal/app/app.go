package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/cyclehire/internal/cache"
	"github.com/chrissnell/cyclehire/internal/log"
	"github.com/chrissnell/cyclehire/internal/managers"
	"github.com/chrissnell/cyclehire/internal/service"
	"github.com/chrissnell/cyclehire/internal/warehouse"
	"github.com/chrissnell/cyclehire/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	config *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance. cfg must already be finalized.
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	return &App{
		config: cfg,
		logger: logger,
	}
}

// Service connects to the warehouse and cache and builds the analysis
// service. The returned cleanup function closes both.
func (a *App) Service(ctx context.Context) (*service.Service, func(), error) {
	source, err := warehouse.New(ctx, a.config.Warehouse, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening warehouse: %w", err)
	}

	c, ttl, err := cache.New(a.config.Cache)
	if err != nil {
		source.Close()
		return nil, nil, fmt.Errorf("error opening cache: %w", err)
	}

	opts, err := service.OptionsFromConfig(a.config.Analysis, ttl)
	if err != nil {
		c.Close()
		source.Close()
		return nil, nil, fmt.Errorf("error reading analysis settings: %w", err)
	}

	cleanup := func() {
		if err := c.Close(); err != nil {
			a.logger.Warnf("error closing cache: %v", err)
		}
		if err := source.Close(); err != nil {
			a.logger.Warnf("error closing warehouse: %v", err)
		}
	}
	return service.New(source, c, opts, a.logger), cleanup, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, cleanup, err := a.Service(ctx)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			log.Info("context cancelled during startup, shutting down...")
			return nil
		}
		return err
	}
	defer cleanup()

	cm, err := managers.NewControllerManager(ctx, &wg, a.config.Controllers, svc, a.logger)
	if err != nil {
		return err
	}
	if err := cm.StartControllers(); err != nil {
		return err
	}

	log.Infow("Application started successfully",
		"warehouse", a.config.Warehouse.Backend,
		"cache", a.config.Cache.Backend,
		"controllers", len(a.config.Controllers),
	)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	cancel()

	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
