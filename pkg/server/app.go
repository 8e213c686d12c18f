package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StratGate/internal/domain/repository"
	"StratGate/pkg/config"
	xhttp "StratGate/pkg/http"
	applogger "StratGate/pkg/logger"
)

// App encapsulates the HTTP service lifecycle: start the server, wait for
// a signal, drain, and close infrastructure clients.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	store      repository.ReportStore
	pub        repository.Publisher
	httpServer *xhttp.Server
}

// New creates a new App instance. Store and publisher may be nil when the
// corresponding backends are disabled.
func New(cfg *config.Config, log *applogger.Logger, handler xhttp.Handler, store repository.ReportStore, pub repository.Publisher) *App {
	return &App{cfg: cfg, log: log, handler: handler, store: store, pub: pub}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.store != nil {
		if err := a.store.Init(ctx); err != nil {
			return err
		}
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops the server and closes clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	// Flush aggregated logs while the producer is still open.
	a.log.RemoveCollector()

	if a.pub != nil {
		if err := a.pub.Close(); err != nil {
			a.log.Warn("publisher close error", applogger.Error(err))
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("report store close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
