package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/tenderwatch/internal/adapters/procurement"
	"github.com/okian/tenderwatch/internal/adapters/repository"
	service "github.com/okian/tenderwatch/internal/app"
	"github.com/okian/tenderwatch/internal/config"
	"github.com/okian/tenderwatch/internal/domain/classify"
	"github.com/okian/tenderwatch/internal/domain/view"
	"github.com/okian/tenderwatch/pkg/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	config  string
	envFile string
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "tenderwatch",
		Short:        "Watch public procurement notices that mention BNSSG",
		Long:         "tenderwatch fetches OCDS release packages from Find a Tender, keeps the ones that mention BNSSG, caches them locally and serves a filterable dashboard.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, &g)
		},
	}
	root.PersistentFlags().StringVar(&g.config, "config", "", "path to YAML config file (overrides "+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file read before the environment")

	root.AddCommand(
		newServeCmd(&g),
		newFetchCmd(&g),
		newListCmd(&g),
		newExportCmd(&g),
		newPrefsCmd(&g),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:  "version",
		Short:"Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tenderwatch %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}

// env is the wired object graph shared by the subcommands.
type env struct {
	cfg   *config.Config
	log   logger.Logger
	store *repository.SQLiteStore
	svc   *service.Service
}

// bootstrap loads configuration, initializes logging to logs and wires the
// store, the procurement client and the service.
func bootstrap(ctx context.Context, g *globalFlags, logs io.Writer, opts ...service.Option) (*env, error) {
	cfg, err := config.Load(ctx, config.WithFile(g.config), config.WithEnvFile(g.envFile))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := logger.InitWriter(logs); err != nil {
		return nil, fmt.Errorf("initializing logging: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := repository.Open(cfg.CachePath, repository.WithLogger(log.Named("store")))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}

	client, err := procurement.New(cfg.APIBaseURL,
		procurement.WithTimeout(cfg.HTTPTimeout),
		procurement.WithPageSize(cfg.PageSize),
		procurement.WithMaxPages(cfg.MaxPages),
		procurement.WithLookbackDays(cfg.LookbackDays),
		procurement.WithDefaultRetryAfter(cfg.DefaultRetryAfter),
		procurement.WithUserAgent("tenderwatch/"+version),
		procurement.WithLogger(log.Named("procurement")),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("creating procurement client: %w", err)
	}

	base := []service.Option{
		service.WithLogger(log),
		service.WithClassifier(classify.New(
			classify.WithKeywords(cfg.Keywords),
			classify.WithShowAll(cfg.ShowAll),
		)),
		service.WithViewModel(view.New(view.WithSoonWindow(cfg.SoonDays))),
		service.WithCacheTTL(cfg.CacheTTL),
		service.WithStaleAfter(cfg.StaleAfter),
		service.WithLoadTimeout(loadTimeout(cfg)),
		service.WithDebugRing(cfg.DebugBufferSize),
		// Polling only runs once the service is started, i.e. under serve.
		service.WithPollInterval(cfg.PollInterval),
	}
	svc := service.New(store, client, append(base, opts...)...)

	return &env{cfg: cfg, log: log, store: store, svc: svc}, nil
}

func (e *env) Close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn(context.Background(), "closing cache failed", logger.Error(err))
	}
}

// loadTimeout bounds one pipeline run: every page at the client timeout plus
// one rate-limit wait.
func loadTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.MaxPages+1)*cfg.HTTPTimeout + cfg.DefaultRetryAfter
}

func (e *env) loadTimeout() time.Duration {
	return loadTimeout(e.cfg)
}
