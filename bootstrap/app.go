// Package bootstrap wires configuration, logging and services into a running
// relay application.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"nostrelay/api"
	"nostrelay/config"
	"nostrelay/core"
	"nostrelay/ingest"
	"nostrelay/util/goroutine"

	"go.uber.org/zap"
)

// App represents the relay application with all its components.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// ValidatedEventCh carries events that passed validation. Downstream
	// consumers (storage, subscription matching) attach here; until they
	// exist the app drains the channel itself.
	ValidatedEventCh chan *core.Event

	Validator     *core.Validator
	RelayListener *ingest.RelayListener
	AdminServer   *api.Admin

	serviceWg  *sync.WaitGroup
	shutdownCh chan struct{}
}

// NewApp creates a new application instance and initializes all components.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{
		serviceWg:  &sync.WaitGroup{},
		shutdownCh: make(chan struct{}),
	}

	logger, sugar, level, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("nostrelay starting...")

	cfg, err := InitConfig(sugar)
	if err != nil {
		return nil, err
	}
	app.Config = cfg
	level.SetLevel(LogLevel(cfg.Logging.Level))

	app.ValidatedEventCh = make(chan *core.Event, cfg.Relay.EventChannelSize)
	app.Validator = core.NewValidator(core.Policy{
		RejectFutureSeconds: cfg.Options.RejectFutureSeconds,
	}, sugar)

	app.RelayListener = ingest.NewRelayListener(
		cfg.Relay.Host,
		cfg.Relay.Port,
		cfg.Relay.MaxMessageSize,
		cfg.Relay.RateLimit,
		app.Validator,
		app.ValidatedEventCh,
		sugar,
	)
	app.AdminServer = api.NewAdmin(cfg.Admin.Host, cfg.Admin.Port, sugar)

	return app, nil
}

// Start starts all services.
func (a *App) Start(ctx context.Context) error {
	if err := a.AdminServer.Start(); err != nil {
		return fmt.Errorf("failed to start admin server: %w", err)
	}
	if err := a.RelayListener.Start(); err != nil {
		return fmt.Errorf("failed to start relay listener: %w", err)
	}

	// Drain validated events until downstream consumers are wired in.
	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		defer goroutine.Recover("event-drain", a.Sugar)
		for {
			select {
			case event := <-a.ValidatedEventCh:
				a.Sugar.Infow("Event accepted",
					"event", event.IDPrefix(),
					"kind", event.Kind)
			case <-a.shutdownCh:
				return
			}
		}
	}()

	a.Sugar.Info("nostrelay started")
	return nil
}

// WaitForShutdown blocks until SIGINT or SIGTERM.
func (a *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	a.Sugar.Infof("Received signal %v, shutting down", sig)
}

// Shutdown stops all services gracefully.
func (a *App) Shutdown() {
	close(a.shutdownCh)
	if a.RelayListener != nil {
		a.RelayListener.Stop()
	}
	if a.AdminServer != nil {
		a.AdminServer.Stop()
	}
	a.serviceWg.Wait()
	_ = a.Logger.Sync()
	a.Sugar.Info("Shutdown complete")
}
