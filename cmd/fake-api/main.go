// Command fake-api serves synthetic procurement release packages so the
// dashboard can run without the real API.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/tenderwatch/internal/fakeapi"
	"github.com/okian/tenderwatch/pkg/logger"
)

// Default configuration constants.
const (
	defaultAddr            = ":9090"
	defaultPages           = 3
	defaultPerPage         = 25
	defaultMatchEvery      = 3
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 5 * time.Second
)

type options struct {
	addr       string
	pages      int
	perPage    int
	matchEvery int
	nextURL    bool
	script     []int
	retryAfter string
}

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var o options
	cmd := &cobra.Command{
		Use:          "fake-api",
		Short:        "Serve synthetic OCDS release packages",
		Example:      "  fake-api --pages 12 --script 429,503 --retry-after 5",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.addr, "addr", defaultAddr, "listen address")
	f.IntVar(&o.pages, "pages", defaultPages, "number of pages before the cursor runs out")
	f.IntVar(&o.perPage, "per-page", defaultPerPage, "releases per page")
	f.IntVar(&o.matchEvery, "match-every", defaultMatchEvery, "every nth release mentions BNSSG (0 disables)")
	f.BoolVar(&o.nextURL, "next-url", false, "return links.next as a full URL")
	f.IntSliceVar(&o.script, "script", nil, "status codes answered before normal pages, e.g. 429,503 (-1 drops the releases array)")
	f.StringVar(&o.retryAfter, "retry-after", "5", "Retry-After header sent with scripted 429s")
	return cmd
}

// build creates the fake API from the parsed flags.
func build(o options) *fakeapi.Server {
	return fakeapi.New(
		fakeapi.WithPages(o.pages),
		fakeapi.WithPerPage(o.perPage),
		fakeapi.WithMatchEvery(o.matchEvery),
		fakeapi.WithNextAsURL(o.nextURL),
		fakeapi.WithRetryAfter(o.retryAfter),
		fakeapi.WithScript(o.script...),
	)
}

func run(cmd *cobra.Command, o options) error {
	if err := logger.InitWriter(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	log := logger.Named("fake-api")
	api := build(o)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: o.addr, Handler: api, ReadHeaderTimeout: readHeaderTimeout}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "serving fake procurement api",
			logger.String("addr", o.addr),
			logger.Int("pages", o.pages),
			logger.Int("matching", api.Matching()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("fake api: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown failed", logger.Error(err))
	}
	log.Info(shutdownCtx, "fake api stopped", logger.Int("requests", api.Hits()))
	return nil
}
