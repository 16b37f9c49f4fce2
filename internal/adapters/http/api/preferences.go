package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/tenderwatch/internal/domain/types"
)

const maxPreferencesBody = 4 << 10

// PreferencesHandler reads and updates the persisted toggles.
type PreferencesHandler struct {
	deps Dependencies
}

// NewPreferencesHandler creates a new preferences handler.
func NewPreferencesHandler(deps Dependencies) *PreferencesHandler {
	return &PreferencesHandler{deps: deps}
}

// preferencesRequest allows partial updates; omitted toggles keep their value.
type preferencesRequest struct {
	EmailAlerts *bool `json:"email_alerts"`
	DebugMode   *bool `json:"debug_mode"`
}

// HandlePreferences handles GET and PUT /api/preferences.
func (h *PreferencesHandler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	const op = "api.preferences"
	switch r.Method {
	case http.MethodGet:
		p, err := h.deps.Preferences(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, errors.New("preferences unavailable")))
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut, http.MethodPost:
		var req preferencesRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPreferencesBody))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("invalid preferences body")))
			return
		}
		current, err := h.deps.Preferences(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, errors.New("preferences unavailable")))
			return
		}
		next := merge(current, req)
		if err := h.deps.SetPreferences(r.Context(), next); err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, errors.New("preferences not saved")))
			return
		}
		writeJSON(w, http.StatusOK, next)
	default:
		methodNotAllowed(w, op, http.MethodGet, http.MethodPut, http.MethodPost)
	}
}

func merge(p types.Preferences, req preferencesRequest) types.Preferences {
	if req.EmailAlerts != nil {
		p.EmailAlerts = *req.EmailAlerts
	}
	if req.DebugMode != nil {
		p.DebugMode = *req.DebugMode
	}
	return p
}
