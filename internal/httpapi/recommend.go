package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/recommend"
	"github.com/synapselabs/synapse-api/internal/store"
)

// handleRecommend returns related notes for the target. A missing,
// foreign, or deleted target is a 404; an out-of-range k is a 422.
func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	noteID := chi.URLParam(r, "note_id")

	k := s.RecommendDefaultK
	if q := r.URL.Query().Get("k"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "k must be an integer")
			return
		}
		k = n
	}

	resp, err := s.Recommend.Recommend(r.Context(), auth.UserID(r.Context()), noteID, k)
	if err != nil {
		switch {
		case errors.Is(err, recommend.ErrInvalidK):
			writeError(w, http.StatusUnprocessableEntity, "k must be between 1 and 50")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "note not found")
		default:
			log.Error().Err(err).Str("note_id", noteID).Msg("recommendation failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
