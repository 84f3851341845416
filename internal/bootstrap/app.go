package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/callnotes/internal/domain/callnotes"
	"github.com/yanqian/callnotes/internal/infra/config"
)

const sweepInterval = time.Minute

// sweeper is implemented by session stores that expire entries themselves.
type sweeper interface {
	RunSweeper(ctx context.Context, interval time.Duration)
}

// App encapsulates the HTTP server lifecycle.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	server   *http.Server
	sessions callnotes.SessionStore
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, server *http.Server, sessions callnotes.SessionStore) *App {
	return &App{cfg: cfg, logger: logger.With("component", "bootstrap"), server: server, sessions: sessions}
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run(ctx context.Context) error {
	if s, ok := a.sessions.(sweeper); ok {
		go s.RunSweeper(ctx, sweepInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http server starting", "address", a.cfg.HTTP.Address)
		if err := a.server.ListenAndServe(); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("shutdown signal received")
		return a.server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
