package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/serp1412/coinfeed/internal/app"
	"github.com/serp1412/coinfeed/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// Pprof stays on localhost, the public router does not expose it.
	go func() {
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(ctx); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer bootstrap.Shutdown()

	infra.PrintBanner(os.Stdout, bootstrap.Config, bootstrap.Providers.Names())
	bootstrap.Start(ctx)

	httpServer := &http.Server{
		Addr:              bootstrap.Config.API.Addr,
		Handler:           bootstrap.Server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	slog.Info("✨ coinfeed operational. Press Ctrl+C to exit.", slog.String("addr", httpServer.Addr))

	select {
	case <-ctx.Done():
		slog.Info("👋 Shutting down gracefully...")
	case err := <-serverErrCh:
		slog.Error("❌ API server terminated unexpectedly", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", slog.Any("error", err))
	}
}
