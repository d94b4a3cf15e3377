package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinRank/internal/usecase"
	"FinRank/pkg/config"
	xhttp "FinRank/pkg/http"
	pkgkafka "FinRank/pkg/kafka"
	applogger "FinRank/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	orch       *usecase.Orchestrator
	scheduler  *usecase.RetrainScheduler
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
}

// New creates a new App. scheduler and consumer may be nil when disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	orch *usecase.Orchestrator,
	scheduler *usecase.RetrainScheduler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		orch:       orch,
		scheduler:  scheduler,
		consumer:   consumer,
		kh:         kh,
	}
}

// Run starts the application and blocks until interrupted or the HTTP
// server fails.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.scheduler != nil {
		a.scheduler.Start(ctx)
		a.l.Info("retrain scheduler started", applogger.String("at", a.cfg.Retrain.At))
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.l.Error("kafka consumer start error", applogger.Error(err))
		} else {
			a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
		}
	}

	if err := a.httpServer.Start(); err != nil {
		a.l.Error("http server start error", applogger.Error(err))
		a.shutdown()
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case sig := <-sigCh:
		a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))
	case err := <-a.httpServer.Err():
		a.l.Error("http server error", applogger.Error(err))
		runErr = err
	}

	cancel()
	a.shutdown()
	return runErr
}

// shutdown stops intake first, then waits for in-flight retrains.
func (a *App) shutdown() {
	a.l.Info("shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(ctx); err != nil {
		a.l.Error("http shutdown error", applogger.Error(err))
	}

	if a.scheduler != nil {
		a.scheduler.Stop()
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), a.retrainGrace())
	defer waitCancel()
	if err := a.orch.Wait(waitCtx); err != nil {
		a.l.Warn("background retrain still running at shutdown", applogger.Error(err))
	}

	a.l.Info("shutdown complete")
}

func (a *App) retrainGrace() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
