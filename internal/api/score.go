package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Habitat/internal/labeler"
	"github.com/MikeSquared-Agency/Habitat/internal/layout"
	"github.com/MikeSquared-Agency/Habitat/internal/scoring"
)

// maxBodyBytes caps request bodies; batches of a few thousand layouts fit.
const maxBodyBytes = 32 << 20

type ScoreHandler struct {
	labeler *labeler.Labeler
}

func NewScoreHandler(l *labeler.Labeler) *ScoreHandler {
	return &ScoreHandler{labeler: l}
}

type ScoreResponse struct {
	scoring.ScoreVector
	RecordID *uuid.UUID `json:"record_id,omitempty"`
}

type BatchResponse struct {
	Count   int              `json:"count"`
	Results []labeler.Result `json:"results"`
}

func (h *ScoreHandler) Score(w http.ResponseWriter, r *http.Request) {
	weighted, ok := weightedParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	doc, err := layout.DecodeDocument(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	res, err := h.labeler.ScoreAndRecord(r.Context(), doc, weighted)
	if err != nil {
		writeJSON(w, scoreErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ScoreResponse{ScoreVector: res.Vector, RecordID: res.RecordID})
}

func (h *ScoreHandler) Batch(w http.ResponseWriter, r *http.Request) {
	weighted, ok := weightedParam(w, r)
	if !ok {
		return
	}
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	docs, err := layout.DecodeDocuments(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	results, err := h.labeler.LabelBatch(r.Context(), docs, weighted)
	if err != nil {
		writeJSON(w, scoreErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, BatchResponse{Count: len(results), Results: results})
}

func weightedParam(w http.ResponseWriter, r *http.Request) (bool, bool) {
	raw := r.URL.Query().Get("weighted")
	if raw == "" {
		return false, true
	}
	weighted, err := strconv.ParseBool(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid weighted flag"})
		return false, false
	}
	return weighted, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
			return nil, false
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return nil, false
	}
	return body, true
}

// scoreErrorStatus maps contract violations to 400 and everything else to 500.
func scoreErrorStatus(err error) int {
	if errors.Is(err, layout.ErrInvalidLayout) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
