package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"certistage/config"
)

// shutdownTimeout bounds in-flight requests and the final editor flush
const shutdownTimeout = 20 * time.Second

// Serve runs the HTTP server until ctx is cancelled, then drains requests and
// flushes every open editor session
func Serve(ctx context.Context, cfg *config.Config) error {
	application, err := Initialize(ctx, cfg)
	if err != nil {
		return err
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go application.Editors.Run(sweepCtx, time.Minute)

	// Listen on 0.0.0.0 to accept connections from all interfaces (required for Docker)
	addr := "0.0.0.0:" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		config.Log.Infof("Server starting on %s", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = application.Shutdown(context.Background())
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		config.Log.Info("🔄 Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain requests: %w", err))
	}
	stopSweep()
	if err := application.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	config.Log.Info("✓ Server stopped")
	return nil
}
