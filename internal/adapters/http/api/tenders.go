package api

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"

	service "github.com/okian/tenderwatch/internal/app"
	"github.com/okian/tenderwatch/internal/domain/view"
	"github.com/okian/tenderwatch/pkg/logger"
)

// TendersHandler serves the filtered tender list, refreshes and CSV exports.
type TendersHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewTendersHandler creates a new tenders handler.
func NewTendersHandler(deps Dependencies, l logger.Logger) *TendersHandler {
	return &TendersHandler{deps: deps, logger: l}
}

// HandleTenders handles GET /api/tenders?q=&bucket=&deadline=&sort=&refresh=.
// Filter parameters also become the current filter.
func (h *TendersHandler) HandleTenders(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_tenders"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	force := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("refresh must be true or false")))
			return
		}
		force = v
	}
	h.serve(w, r, op, force)
}

// HandleRefresh handles GET|POST /api/refresh, a forced load.
func (h *TendersHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	const op = "api.refresh"
	if !allowed(r.Method, http.MethodGet, http.MethodPost) {
		methodNotAllowed(w, op, http.MethodGet, http.MethodPost)
		return
	}
	h.serve(w, r, op, true)
}

func (h *TendersHandler) serve(w http.ResponseWriter, r *http.Request, op string, force bool) {
	f, ok := h.filter(w, r, op)
	if !ok {
		return
	}

	res, err := h.deps.Load(r.Context(), force)
	if err != nil {
		h.unavailable(w, r, op, res, err)
		return
	}

	resp := h.deps.Response(h.deps.ViewWith(f))
	if resp.Error == "" && res.Message != "" {
		resp.Error = res.Message
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleExport handles GET /api/tenders.csv.
func (h *TendersHandler) HandleExport(w http.ResponseWriter, r *http.Request) {
	const op = "api.export"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	if _, ok := h.filter(w, r, op); !ok {
		return
	}
	if res, err := h.deps.Load(r.Context(), false); err != nil {
		h.unavailable(w, r, op, res, err)
		return
	}

	var buf bytes.Buffer
	name, err := h.deps.ExportCSV(r.Context(), &buf)
	if err != nil {
		h.logger.Error(r.Context(), "export failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, errors.New("export failed")))
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// filter parses the request's filter parameters. When any are present they
// replace the current filter; otherwise the current filter is returned.
func (h *TendersHandler) filter(w http.ResponseWriter, r *http.Request, op string) (view.Filter, bool) {
	f, present, err := h.deps.Views().ParseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_filter", WrapKind(op, ErrBadRequest, err))
		return view.Filter{}, false
	}
	if !present {
		return h.deps.Filter(), true
	}
	if err := h.deps.SetFilter(f); err != nil {
		writeError(w, http.StatusBadRequest, "bad_filter", WrapKind(op, ErrBadRequest, err))
		return view.Filter{}, false
	}
	return h.deps.Filter(), true
}

func (h *TendersHandler) unavailable(w http.ResponseWriter, r *http.Request, op string, res service.Result, err error) {
	if ctxErr := r.Context().Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return
	}
	msg := res.Message
	if msg == "" {
		msg = "Failed to fetch tenders"
	}
	h.logger.Warn(r.Context(), "no tenders to serve", logger.String("op", op), logger.Error(err))
	writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, errors.New(msg)))
}
