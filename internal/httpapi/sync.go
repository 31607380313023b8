package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/auth"
	"github.com/synapselabs/synapse-api/internal/service/syncservice"
	"github.com/synapselabs/synapse-api/internal/syncx"
)

// handlePush applies a batch of client mutations. The envelope succeeds
// with 200 even when individual items fail; only protocol-level problems
// (bad body, oversized batch) reject the whole request.
func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.MaxBatchBytes)

	var req syncservice.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body exceeds size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	resp, err := s.Sync.Push(r.Context(), auth.UserID(r.Context()), req)
	if err != nil {
		switch {
		case errors.Is(err, syncservice.ErrBatchTooLarge):
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		case errors.Is(err, syncservice.ErrEmptyBatch):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			log.Error().Err(err).Msg("push failed")
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// pullReq is the pull request envelope. A null checkpoint means initial
// sync.
type pullReq struct {
	DeviceID   string  `json:"device_id"`
	Checkpoint *string `json:"checkpoint"`
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req pullReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	var checkpoint *time.Time
	if req.Checkpoint != nil {
		ts, ok := syncx.ParseCheckpoint(*req.Checkpoint)
		if !ok {
			writeError(w, http.StatusBadRequest, "malformed checkpoint")
			return
		}
		checkpoint = &ts
	}

	resp, err := s.Sync.Pull(r.Context(), auth.UserID(r.Context()), checkpoint)
	if err != nil {
		log.Error().Err(err).Msg("pull failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
