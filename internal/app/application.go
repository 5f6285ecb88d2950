package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"topchat/internal/config"
	"topchat/internal/history"
	"topchat/internal/server"
)

const shutdownTimeout = 30 * time.Second

// Application wires the server-side components together: the optional
// history archive, the snapshot server, and the HTTP listener.
type Application struct {
	config     *config.Config
	archive    *history.Store
	server     *server.Server
	httpServer *http.Server
}

// NewApplication builds the server stack from configuration. Initialization
// follows dependency order: archive, then snapshot server, then HTTP.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	var archive *history.Store
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path, cfg.History.Timeout)
		if err != nil {
			return nil, fmt.Errorf("failed to open history archive: %w", err)
		}
		archive = store
		log.Printf("History archive enabled: path=%s", cfg.History.Path)
	}

	opts := server.Options{
		Interval:     cfg.Sampler.Interval,
		WriteTimeout: cfg.Socket.WriteTimeout,
		SendBuffer:   cfg.Socket.SendBuffer,
	}
	if archive != nil {
		opts.Archive = archive
	}
	srv := server.New(opts)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		archive:    archive,
		server:     srv,
		httpServer: httpServer,
	}, nil
}

// Addr returns the listen address for external connections.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}

// Server exposes the snapshot server, primarily for tests.
func (app *Application) Server() *server.Server {
	return app.server
}

// Run serves until ctx is cancelled, then shuts down in reverse order:
// listener first so no new sessions start, generator next, archive last.
func (app *Application) Run(ctx context.Context) error {
	log.Printf("Starting topchat server on %s", app.httpServer.Addr)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := app.server.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		err := app.httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		return nil
	})

	err := g.Wait()

	if app.archive != nil {
		if closeErr := app.archive.Close(); closeErr != nil {
			log.Printf("History archive shutdown error: %v", closeErr)
		}
	}

	log.Printf("Topchat server shutdown complete")
	return err
}
