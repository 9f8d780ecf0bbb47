package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/labeler"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

type AdminHandler struct {
	engine  *scoring.Engine
	labeler *labeler.Labeler
	store   store.Store
}

func NewAdminHandler(e *scoring.Engine, l *labeler.Labeler, s store.Store) *AdminHandler {
	return &AdminHandler{engine: e, labeler: l, store: s}
}

type StatsResponse struct {
	Labeler hermes.StatsEvent `json:"labeler"`
	Store   *store.ScoreStats `json:"store,omitempty"`
}

// Params reports the constants the engine was built with.
func (h *AdminHandler) Params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Params())
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Labeler: h.labeler.Stats()}
	if h.store != nil {
		stats, err := h.store.GetStats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp.Store = stats
	}
	writeJSON(w, http.StatusOK, resp)
}
