package routes

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
	"github.com/synaptica-ai/risk-gateway/pkg/sessions"
)

const (
	defaultSessionLimit = 25
	maxSessionLimit     = sessions.DefaultCapacity
)

type SessionsHandler struct {
	repo sessions.Repository
}

func NewSessionsHandler(repo sessions.Repository) *SessionsHandler {
	return &SessionsHandler{repo: repo}
}

func (h *SessionsHandler) Register(r *mux.Router) {
	r.HandleFunc("/sessions", h.handleList).Methods(http.MethodGet)
}

func (h *SessionsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := defaultSessionLimit
	if val := r.URL.Query().Get("limit"); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			respondError(w, r, models.NewValidationError("limit must be an integer"))
			return
		}
		limit = parsed
	}
	if limit > maxSessionLimit {
		limit = maxSessionLimit
	}

	records, err := h.repo.Latest(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if records == nil {
		records = []models.SessionRecord{}
	}
	writeJSON(w, records)
}
