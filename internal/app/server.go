package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// Start serves HTTP in the background. The returned channel fires once on
// SIGINT, SIGTERM or SIGHUP; the caller is expected to call Stop then.
func (a *App) Start() <-chan struct{} {
	terminateChan := make(chan struct{})

	for _, route := range a.router.Routes() {
		slog.Debug("http route registered", "method", route.Method, "path", route.Path)
	}

	go func() {
		slog.Info("http server listening", "address", a.httpServer.Addr)

		if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to listen and serve http server", "error", err)
			os.Exit(1)
		}
	}()

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

		sig := <-sigint
		slog.Info("shutdown signal received", "signal", sig.String())

		terminateChan <- struct{}{}
		close(terminateChan)
	}()

	return terminateChan
}

// Stop shuts down in dependency order. In-flight requests finish first, so
// uploads already accepted keep streaming into their batches. Background
// batches then get until ctx expires before the root context is canceled,
// which makes running inserts stop and roll back. Closers run last.
func (a *App) Stop(ctx context.Context) {
	if err := a.httpServer.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to close resources", "name", "HTTP Server", "error", err)
	}

	// handlers still waiting for a worker slot give up once root is canceled
	slog.InfoContext(ctx, "waiting for background batches to finish")
	if err := a.waitGoroutines(ctx); err != nil {
		slog.ErrorContext(ctx, "error from goroutines executions", "error", err)
	}
	slog.InfoContext(ctx, "all goroutines have finished")

	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to close resources", "name", c.name, "error", err)
			continue
		}
		slog.InfoContext(ctx, "resource closed", "name", c.name)
	}

	slog.InfoContext(ctx, "application gracefully shutdown")
}

// waitGoroutines waits for the goroutine manager, canceling the root context
// when ctx expires first. The root context is always canceled on return.
func (a *App) waitGoroutines(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- a.goroutine.Wait() }()

	select {
	case err := <-done:
		a.cancelRoot()
		return err
	case <-ctx.Done():
		slog.WarnContext(ctx, "shutdown deadline reached, canceling background batches", "because", ctx.Err())
		a.cancelRoot()
		return <-done
	}
}

func (a *App) cancelRoot() {
	if a.cancel != nil {
		a.cancel()
	}
}
