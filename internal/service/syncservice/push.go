package syncservice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/store"
	"github.com/synapselabs/synapse-api/internal/syncx"
)

// PushRequest is a batch of client-side mutations.
type PushRequest struct {
	DeviceID string         `json:"device_id"`
	Changes  []syncx.Change `json:"changes"`
}

// PushItemResult reports one change's outcome, in input order.
type PushItemResult struct {
	EntityID string `json:"entity_id"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// PushResponse acknowledges a whole batch.
type PushResponse struct {
	SuccessCount  int              `json:"success_count"`
	FailureCount  int              `json:"failure_count"`
	Results       []PushItemResult `json:"results"`
	NewCheckpoint string           `json:"new_checkpoint"`
}

// Push applies a batch of changes for userID. Each item commits
// independently: a failed item is rolled back on its own and processing
// continues, so the results array always has one entry per input change in
// input order. Batch-level limits reject the whole request before any item
// is applied.
func (s *Service) Push(ctx context.Context, userID string, req PushRequest) (*PushResponse, error) {
	if len(req.Changes) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(req.Changes) > s.MaxBatch {
		return nil, ErrBatchTooLarge
	}

	start := time.Now()
	resp := &PushResponse{Results: make([]PushItemResult, 0, len(req.Changes))}

	for _, change := range req.Changes {
		if err := s.applyChange(ctx, userID, change); err != nil {
			log.Warn().Err(err).
				Str("entity_type", string(change.EntityType)).
				Str("entity_id", change.EntityID).
				Str("operation", string(change.Operation)).
				Msg("push item failed")
			resp.Results = append(resp.Results, PushItemResult{
				EntityID: change.EntityID,
				Success:  false,
				Error:    err.Error(),
			})
			resp.FailureCount++
			continue
		}
		resp.Results = append(resp.Results, PushItemResult{
			EntityID: change.EntityID,
			Success:  true,
		})
		resp.SuccessCount++
	}

	resp.NewCheckpoint = syncx.NowCheckpoint()

	log.Info().
		Str("user_id", userID).
		Str("device_id", req.DeviceID).
		Int("success", resp.SuccessCount).
		Int("failure", resp.FailureCount).
		Dur("elapsed", time.Since(start)).
		Msg("push completed")

	return resp, nil
}

// applyChange routes one change to its typed handler. Any returned error
// fails only this item.
func (s *Service) applyChange(ctx context.Context, userID string, change syncx.Change) error {
	payload, err := syncx.ParseChange(change)
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case syncx.NoteUpsert:
		return s.applyNoteUpsert(ctx, userID, change.EntityID, p)
	case syncx.NoteDelete:
		return s.applyNoteDelete(ctx, userID, change.EntityID, p)
	case syncx.RelationInsert:
		return s.applyRelationInsert(ctx, userID, change.EntityID, p)
	case syncx.RelationDelete:
		return s.Store.DeleteRelation(ctx, userID, change.EntityID)
	case syncx.ReflectionUpsert:
		_, err := s.Store.UpsertReflection(ctx, store.Reflection{
			UserID:    userID,
			Date:      p.Date,
			Content:   *p.Content,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
		return err
	case syncx.ReflectionDelete:
		date := p.Date
		if date == "" {
			date = change.EntityID
		}
		return s.Store.DeleteReflection(ctx, userID, date)
	default:
		return &syncx.ValidationError{Msg: "unsupported change"}
	}
}

// applyNoteUpsert runs the LWW pre-check, derives embedding and keywords
// for a winning write, and commits the note with its rebuilt keyword links.
// Stale writes are silently dropped and reported as success.
func (s *Service) applyNoteUpsert(ctx context.Context, userID, noteID string, p syncx.NoteUpsert) error {
	meta, err := s.Store.GetNoteMeta(ctx, noteID)
	switch {
	case err == nil:
		if meta.UserID != userID {
			return store.ErrForbidden
		}
		// Pre-check saves derivation work for stale writes; the store
		// re-checks under the row lock so a concurrent winner still holds.
		if !p.UpdatedAt.After(meta.UpdatedAt) {
			log.Debug().Str("note_id", noteID).Msg("stale note write dropped")
			return nil
		}
	case errors.Is(err, store.ErrNotFound):
		// New note, nothing to compare against.
	default:
		return err
	}

	derived, err := s.Deriver.Derive(ctx, noteID, *p.Body)
	if err != nil {
		return err
	}

	_, err = s.Store.UpsertNote(ctx, store.NoteWrite{
		ID:         noteID,
		UserID:     userID,
		Body:       *p.Body,
		Importance: p.Importance,
		SourceURL:  p.SourceURL,
		ImagePath:  p.ImagePath,
		Embedding:  derived.Embedding,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		DeletedAt:  p.DeletedAt,
	}, derived.Keywords)
	return err
}

func (s *Service) applyNoteDelete(ctx context.Context, userID, noteID string, p syncx.NoteDelete) error {
	deletedAt := time.Now().UTC()
	if p.DeletedAt != nil {
		deletedAt = *p.DeletedAt
	}
	_, err := s.Store.SoftDeleteNote(ctx, userID, noteID, deletedAt)
	return err
}

// applyRelationInsert verifies both endpoints exist and are owned by the
// pusher, then inserts idempotently.
func (s *Service) applyRelationInsert(ctx context.Context, userID, relationID string, p syncx.RelationInsert) error {
	for _, noteID := range []string{p.FromNoteID, p.ToNoteID} {
		meta, err := s.Store.GetNoteMeta(ctx, noteID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return &syncx.ValidationError{Msg: "relation endpoint note not found: " + noteID}
			}
			return err
		}
		if meta.UserID != userID {
			return store.ErrForbidden
		}
	}

	return s.Store.InsertRelation(ctx, store.Relation{
		ID:           relationID,
		FromNoteID:   p.FromNoteID,
		ToNoteID:     p.ToNoteID,
		RelationType: p.RelationType,
		CreatedAt:    p.CreatedAt,
	})
}
