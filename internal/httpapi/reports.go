package httpapi

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/report"
)

// handleWeeklyReport serves GET /reports/weekly?week=YYYY-WNN&regenerate=bool.
func (s *Server) handleWeeklyReport(w http.ResponseWriter, r *http.Request) {
	week := r.URL.Query().Get("week")
	if week == "" {
		writeError(w, http.StatusBadRequest, "week parameter is required")
		return
	}
	regenerate := r.URL.Query().Get("regenerate") == "true"

	resp, err := s.Reports.Weekly(r.Context(), auth.UserID(r.Context()), week, regenerate)
	if err != nil {
		switch {
		case errors.Is(err, report.ErrInvalidWeek):
			writeError(w, http.StatusBadRequest, "invalid week key")
		case errors.Is(err, report.ErrNoNotes):
			writeError(w, http.StatusNotFound, "no notes found for this week")
		default:
			log.Error().Err(err).Str("week", week).Msg("weekly report failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
