package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hashbridge/config"
	"hashbridge/core/events"
	"hashbridge/core/types"
	"hashbridge/gateway/middleware"
	"hashbridge/gateway/routes"
	"hashbridge/native/htlc"
	"hashbridge/observability/logging"
	"hashbridge/storage"
)

// eventLogger bridges engine events onto the structured log stream so every
// order transition is observable without a chain event bus.
type eventLogger struct {
	logger *slog.Logger
}

func (l *eventLogger) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{"type", evt.EventType()}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := typed.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, key, value)
			}
		}
	}
	l.logger.Info("escrow event", args...)
}

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./htlc-gateway.toml", "path to gateway configuration")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("HASHBRIDGE_ENV"))
	logger := logging.Setup("htlc-gateway", env)

	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "path", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := htlc.NewEngine()
	engine.SetState(htlc.NewState(db))
	engine.SetEmitter(&eventLogger{logger: logger})

	err = engine.Initialize(cfg.Escrow.Admin, htlc.Config{
		Admin:               cfg.Escrow.Admin,
		MinSafetyDepositBps: cfg.Escrow.MinSafetyDepositBps,
		NativeDenom:         cfg.Escrow.NativeDenom,
	})
	switch {
	case err == nil:
		logger.Info("escrow module initialized", "admin", cfg.Escrow.Admin)
	case errors.Is(err, htlc.ErrAlreadyInitialized):
		// Stored config is authoritative after first boot.
	default:
		logger.Error("initialize escrow module", "error", err)
		os.Exit(1)
	}

	obs := middleware.NewObservability(middleware.ObservabilityConfig{
		ServiceName:   cfg.Observability.ServiceName,
		MetricsPrefix: cfg.Observability.MetricsPrefix,
		LogRequests:   cfg.Observability.LogRequests,
		Enabled:       cfg.Observability.Metrics || cfg.Observability.Tracing,
	}, logger)

	handler := routes.New(routes.Config{
		Engine:        engine,
		Observability: obs,
		Logger:        logger,
	})

	server := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout(),
		WriteTimeout: cfg.WriteTimeout(),
		IdleTimeout:  cfg.IdleTimeout(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		logger.Error("listen", "address", cfg.ListenAddress, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("listening", "address", listener.Addr().String())
		if serveErr := server.Serve(listener); serveErr != nil && serveErr != http.ErrServerClosed {
			logger.Error("serve", "error", serveErr)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}
