package app

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"vmget/handlers"
	"vmget/internal/middleware"
	"vmget/routes"
)

// Application serves the control API over a container
type Application struct {
	container  *Container
	logger     *slog.Logger
	httpServer *http.Server
	serveErr   chan error

	mu       sync.Mutex
	listener net.Listener
}

// NewApplication creates an application over container
func NewApplication(container *Container) *Application {
	return &Application{
		container: container,
		logger:    container.Logger.With(slog.String("component", "http")),
		serveErr:  make(chan error, 1),
	}
}

// Handler returns the router wrapped in the default middleware chain
func (a *Application) Handler() http.Handler {
	h := handlers.NewHandlers(&handlers.Container{
		Sessions: a.container.Sessions,
		Config:   a.container.Config,
		Logger:   a.container.Logger,
	})
	router := routes.Setup(h)

	chain := middleware.DefaultMiddleware(a.logger, a.container.Config.HTTP.CORSOrigins)
	return middleware.ChainMiddleware(chain...)(router)
}

// Start binds the listen address and serves in the background
func (a *Application) Start() error {
	ln, err := net.Listen("tcp", a.container.Config.HTTP.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.container.Config.HTTP.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()

	a.httpServer = &http.Server{
		Handler:        a.Handler(),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   45 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		a.logger.Info("HTTP API server started", slog.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			a.serveErr <- err
		}
		close(a.serveErr)
	}()
	return nil
}

// Addr returns the bound address, useful when listening on port 0
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Stop shuts the server down, cancels sessions and closes the database
func (a *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.httpServer != nil {
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("Error shutting down HTTP server", slog.String("error", err.Error()))
		}
	}

	if err := a.container.Close(); err != nil {
		a.logger.Error("Error closing container", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("Application stopped")
	return nil
}

// Run starts the application and blocks until ctx is done or the server fails
func (a *Application) Run(ctx context.Context) error {
	if err := a.Start(); err != nil {
		return fmt.Errorf("failed to start application: %w", err)
	}

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down application")
	case err, ok := <-a.serveErr:
		if ok {
			serveErr = fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	if err := a.Stop(); err != nil {
		return fmt.Errorf("failed to stop application: %w", err)
	}
	return serveErr
}
