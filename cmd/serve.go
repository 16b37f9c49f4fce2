package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/tenderwatch/internal/adapters/http/api"
	"github.com/okian/tenderwatch/internal/adapters/http/site"
	"github.com/okian/tenderwatch/internal/adapters/http/swagger"
	"github.com/okian/tenderwatch/pkg/logger"
	"github.com/okian/tenderwatch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func newServeCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard and JSON API (default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, g)
		},
	}
}

func runServe(cmd *cobra.Command, g *globalFlags) error {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	e, err := bootstrap(ctx, g, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer e.Close()

	return serve(ctx, e)
}

// newMux registers every route of the HTTP surface.
func newMux(ctx context.Context, e *env) *http.ServeMux {
	mux := http.NewServeMux()
	swagger.Register(ctx, mux)
	api.NewServer(e.svc, e.svc, api.WithLogger(e.log.Named("api"))).Register(ctx, mux)
	site.Register(ctx, mux)
	return mux
}

func serve(ctx context.Context, e *env) error {
	if err := e.svc.Start(ctx); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}
	defer e.svc.Stop()

	go metrics.RunSystemCollector(ctx)

	// Refresh requests may wait on a full paginated fetch.
	srv := &http.Server{
		Addr:              e.cfg.Addr,
		Handler:           newMux(ctx, e),
		ReadTimeout:       readTimeout,
		WriteTimeout:      e.loadTimeout() + readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info(ctx, "starting HTTP server", logger.String("addr", e.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	e.log.Info(ctx, "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		e.log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}
	e.log.Info(shutdownCtx, "server stopped")
	return nil
}
