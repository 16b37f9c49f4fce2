package api

import (
	"errors"
	"net/http"

	"github.com/okian/tenderwatch/pkg/logger"
)

// DebugHandler exposes the buffered log entries.
type DebugHandler struct {
	deps Dependencies
}

// NewDebugHandler creates a new debug handler.
func NewDebugHandler(deps Dependencies) *DebugHandler {
	return &DebugHandler{deps: deps}
}

type debugResponse struct {
	DebugMode bool           `json:"debug_mode"`
	Entries   []logger.Entry `json:"entries"`
}

// HandleDebug handles GET /api/debug.
func (h *DebugHandler) HandleDebug(w http.ResponseWriter, r *http.Request) {
	const op = "api.debug"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, op, http.MethodGet)
		return
	}
	p, err := h.deps.Preferences(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, errors.New("preferences unavailable")))
		return
	}
	entries := h.deps.DebugEntries()
	if entries == nil {
		entries = []logger.Entry{}
	}
	writeJSON(w, http.StatusOK, debugResponse{DebugMode: p.DebugMode, Entries: entries})
}
