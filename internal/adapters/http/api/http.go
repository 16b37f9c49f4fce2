// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	service "github.com/okian/tenderwatch/internal/app"
	"github.com/okian/tenderwatch/internal/domain/types"
	"github.com/okian/tenderwatch/internal/domain/view"
	"github.com/okian/tenderwatch/pkg/logger"
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	// Load returns the current dataset, fetching when forced or stale.
	Load(ctx context.Context, force bool) (service.Result, error)

	// Filter state and view derivation.
	Filter() view.Filter
	SetFilter(f view.Filter) error
	ViewWith(f view.Filter) service.ViewResult
	Response(v service.ViewResult) types.TendersResponse
	Views() *view.Model

	// ExportCSV writes the current filtered view and returns the file name.
	ExportCSV(ctx context.Context, w io.Writer) (string, error)

	Preferences(ctx context.Context) (types.Preferences, error)
	SetPreferences(ctx context.Context, p types.Preferences) error

	DebugEntries() []logger.Entry
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	tendersHandler     *TendersHandler
	preferencesHandler *PreferencesHandler
	debugHandler       *DebugHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := serverConfig{logger: logger.Discard()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		tendersHandler:     NewTendersHandler(deps, cfg.logger),
		preferencesHandler: NewPreferencesHandler(deps),
		debugHandler:       NewDebugHandler(deps),
	}
}

// Option configures the Server.
type Option func(*serverConfig)

type serverConfig struct {
	logger logger.Logger
}

// WithLogger sets the logger used by handlers.
func WithLogger(l logger.Logger) Option {
	return func(c *serverConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/tenders", MetricsMiddleware(s.tendersHandler.HandleTenders, "tenders"))
	mux.HandleFunc("/api/tenders.csv", MetricsMiddleware(s.tendersHandler.HandleExport, "export"))
	mux.HandleFunc("/api/refresh", MetricsMiddleware(s.tendersHandler.HandleRefresh, "refresh"))
	mux.HandleFunc("/api/preferences", MetricsMiddleware(s.preferencesHandler.HandlePreferences, "preferences"))
	mux.HandleFunc("/api/debug", MetricsMiddleware(s.debugHandler.HandleDebug, "debug"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = publicMessage(err)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

func methodNotAllowed(w http.ResponseWriter, op string, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind(op, ErrMethodNotAllowed))
}

func allowed(method string, methods ...string) bool {
	for _, m := range methods {
		if method == m {
			return true
		}
	}
	return false
}
