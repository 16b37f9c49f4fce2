package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/okian/tenderwatch/internal/adapters/terminal"
	service "github.com/okian/tenderwatch/internal/app"
	"github.com/okian/tenderwatch/internal/domain/view"
)

func newFetchCmd(g *globalFlags) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Load tenders into the local cache",
		Long:  "Fetch tenders from the procurement API unless the cached snapshot is younger than cache_ttl. --force always fetches.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			res, err := e.load(cmd.Context(), force)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case res.Fetched:
				fmt.Fprintf(out, "Fetched %d pages, %d matching tenders.\n", res.Pages, len(res.Tenders))
				if res.Truncated {
					fmt.Fprintf(out, "Stopped at the %d page limit; older notices were skipped.\n", e.cfg.MaxPages)
				}
			case res.Message != "":
				fmt.Fprintf(out, "%s\nServing %d cached tenders from %s.\n",
					res.Message, len(res.Tenders), res.CapturedAt.Local().Format("2006-01-02 15:04"))
			default:
				fmt.Fprintf(out, "Cache is fresh: %d tenders from %s.\n",
					len(res.Tenders), res.CapturedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "fetch even when the cache is fresh")
	return cmd
}

// filterFlags mirror the /api/tenders query parameters.
type filterFlags struct {
	query    string
	buckets  []string
	deadline string
	sort     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "case-insensitive search in title, description and buyer")
	cmd.Flags().StringSliceVar(&f.buckets, "bucket", nil, "value buckets: lt50k, 50k-250k, 250k-1m, gt1m, unknown")
	cmd.Flags().StringVar(&f.deadline, "deadline", string(view.WindowAll), "closing window: all, 7d, 14d, 30d")
	cmd.Flags().StringVar(&f.sort, "sort", string(view.SortPublished), "sort by published, deadline or value")
}

func (f *filterFlags) parse(m *view.Model) (view.Filter, error) {
	q := url.Values{}
	q.Set("q", f.query)
	for _, b := range f.buckets {
		q.Add("bucket", b)
	}
	q.Set("deadline", f.deadline)
	q.Set("sort", f.sort)
	filter, _, err := m.ParseFilter(q)
	return filter, err
}

func newListCmd(g *globalFlags) *cobra.Command {
	var (
		filters filterFlags
		force   bool
		width   int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the filtered tender list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := filters.parse(e.svc.Views())
			if err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), force); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			resp := e.svc.Response(e.svc.ViewWith(f))
			return terminal.New(out, terminal.WithWidth(width)).Render(out, resp)
		},
	}
	filters.register(cmd)
	cmd.Flags().BoolVar(&force, "refresh", false, "fetch even when the cache is fresh")
	cmd.Flags().IntVar(&width, "width", 100, "wrap width")
	return cmd
}

func newExportCmd(g *globalFlags) *cobra.Command {
	var (
		filters filterFlags
		output  string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered tender list as CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			f, err := filters.parse(e.svc.Views())
			if err != nil {
				return err
			}
			if err := e.svc.SetFilter(f); err != nil {
				return err
			}
			if _, err := e.load(cmd.Context(), false); err != nil {
				return err
			}

			if output == "-" {
				_, err := e.svc.ExportCSV(cmd.Context(), cmd.OutOrStdout())
				return err
			}
			return exportFile(cmd, e.svc, output)
		},
	}
	filters.register(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "file or directory to write; - for stdout (default: ./BNSSG_Tenders_<date>.csv)")
	return cmd
}

// exportFile writes to a temporary file next to the target and renames it
// once the name, which depends on the export date, is known.
func exportFile(cmd *cobra.Command, svc *service.Service, output string) error {
	dir := "."
	target := ""
	if output != "" {
		if st, err := os.Stat(output); err == nil && st.IsDir() {
			dir = output
		} else {
			dir, target = filepath.Dir(output), output
		}
	}

	tmp, err := os.CreateTemp(dir, ".tenderwatch-export-*.csv")
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	name, err := svc.ExportCSV(cmd.Context(), tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if target == "" {
		target = filepath.Join(dir, name)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("saving export: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
	return nil
}

func newPrefsCmd(g *globalFlags) *cobra.Command {
	var emailAlerts, debugMode bool
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Show or change the persisted preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := bootstrap(cmd.Context(), g, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			p, err := e.svc.Preferences(cmd.Context())
			if err != nil {
				return err
			}
			changed := false
			if cmd.Flags().Changed("email-alerts") {
				p.EmailAlerts, changed = emailAlerts, true
			}
			if cmd.Flags().Changed("debug-mode") {
				p.DebugMode, changed = debugMode, true
			}
			if changed {
				if err := e.svc.SetPreferences(cmd.Context(), p); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "email_alerts: %t\ndebug_mode:   %t\n", p.EmailAlerts, p.DebugMode)
			return nil
		},
	}
	cmd.Flags().BoolVar(&emailAlerts, "email-alerts", false, "enable or disable email alerts")
	cmd.Flags().BoolVar(&debugMode, "debug-mode", false, "enable or disable the debug panel")
	return cmd
}

// load runs one pipeline load bounded by the CLI load timeout. A fetch
// failure with no snapshot to fall back on is returned as the user message.
func (e *env) load(ctx context.Context, force bool) (service.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.loadTimeout())
	defer cancel()

	res, err := e.svc.Load(ctx, force)
	if err != nil {
		if errors.Is(err, service.ErrNoData) && res.Message != "" {
			return res, errors.New(res.Message)
		}
		return res, err
	}
	return res, nil
}
