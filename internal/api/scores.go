package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Habitat/internal/export"
	"github.com/MikeSquared-Agency/Habitat/internal/hermes"
	"github.com/MikeSquared-Agency/Habitat/internal/metrics"
	"github.com/MikeSquared-Agency/Habitat/internal/store"
)

type ScoresHandler struct {
	store   store.Store
	hermes  hermes.Client
	metrics *metrics.Metrics
}

func NewScoresHandler(s store.Store, h hermes.Client, m *metrics.Metrics) *ScoresHandler {
	return &ScoresHandler{store: s, hermes: h, metrics: m}
}

type RatingRequest struct {
	// Rating is the expert's grade on a 0..100 scale.
	Rating *float64 `json:"rating"`
}

func (h *ScoresHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	filter, err := parseScoreFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	records, err := h.store.ListScores(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*store.ScoreRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Export streams the matching rows as a training CSV, expert ratings included.
// It takes the List filters; without a limit every matching row is exported.
func (h *ScoresHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	filter, err := parseScoreFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	vectors, err := export.StoredVectors(r.Context(), h.store, filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="habitat-scores.csv"`)
	w.WriteHeader(http.StatusOK)
	n, err := export.WriteCSV(w, vectors)
	if err != nil {
		// Headers are gone; the client sees a truncated body.
		return
	}
	h.metrics.RowsExported(n)
}

func parseScoreFilter(r *http.Request) (store.ScoreFilter, error) {
	q := r.URL.Query()
	filter := store.ScoreFilter{
		HabitatID: q.Get("habitat_id"),
		Variant:   q.Get("variant"),
	}
	for name, dst := range map[string]**bool{"vetoed": &filter.Vetoed, "rated": &filter.Rated} {
		if v := q.Get(name); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return store.ScoreFilter{}, fmt.Errorf("invalid %s", name)
			}
			*dst = &b
		}
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return store.ScoreFilter{}, fmt.Errorf("invalid %s", name)
			}
			*dst = n
		}
	}
	if filter.Variant != "" && filter.Variant != store.VariantVector && filter.Variant != store.VariantWeighted {
		return store.ScoreFilter{}, errors.New("invalid variant")
	}
	return filter, nil
}

func (h *ScoresHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	rec, err := h.store.GetScore(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "score not found"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Rate attaches an expert rating to a stored row.
func (h *ScoresHandler) Rate(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	var req RatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Rating == nil || *req.Rating < 0 || *req.Rating > 100 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rating must be between 0 and 100"})
		return
	}

	rating := *req.Rating / 100
	rec, err := h.store.SetExpertRating(r.Context(), id, rating)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "score not found"})
		return
	}
	h.metrics.RatingApplied()

	if h.hermes != nil {
		evt := hermes.LayoutRatedEvent{HabitatID: rec.HabitatID, RecordID: rec.ID.String(), ExpertRating: rating}
		if err := h.hermes.Publish(hermes.SubjectLayoutRated(rec.HabitatID), evt); err != nil {
			h.metrics.PublishFailed()
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *ScoresHandler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "score store not configured"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
