package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ceilingd/internal/config"
)

// Options adjust how the daemon starts.
type Options struct {
	// ResetState forgets remembered light state before discovery runs, so
	// every fixture is seeded from its hardware again.
	ResetState bool
}

// App runs the daemon until its context ends or a service fails.
type App struct {
	cfg      *config.Config
	services *Services
}

// New builds every service without starting any.
func New(cfg *config.Config, opts Options) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}

	if opts.ResetState {
		log.Info().Msg("Clearing remembered light state")
		if err := services.ClearState(); err != nil {
			services.Close()
			return nil, fmt.Errorf("reset state: %w", err)
		}
	}

	return &App{cfg: cfg, services: services}, nil
}

// Run starts the services and blocks until ctx is done or one of them fails.
// Services are always stopped before Run returns. The first service failure
// is returned.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(chan error, 1)
	onFatalError := func(err error) {
		log.Error().Err(err).Msg("Service failed, shutting down")
		select {
		case failed <- err:
		default:
		}
		cancel()
	}

	if err := a.services.Start(ctx, onFatalError); err != nil {
		a.stop()
		return err
	}

	log.Info().
		Int("devices", len(a.cfg.Devices)).
		Bool("api", a.cfg.API.Enabled).
		Bool("persist", a.cfg.Database.Persist).
		Msg("ceilingd running")

	<-ctx.Done()
	a.stop()

	select {
	case err := <-failed:
		return err
	default:
		return nil
	}
}

func (a *App) stop() {
	log.Info().Msg("Shutting down...")
	if err := a.services.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

// SignalContext is cancelled by the first SIGINT or SIGTERM.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		signal.Stop(signals)
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
