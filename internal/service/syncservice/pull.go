package syncservice

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/synapselabs/synapse-api/internal/syncx"
)

// Delta is one pull response element: an upsert carrying the full entity
// payload, or a delete with no data.
type Delta struct {
	EntityType      syncx.EntityType `json:"entity_type"`
	EntityID        string           `json:"entity_id"`
	Operation       string           `json:"operation"` // upsert | delete
	Data            any              `json:"data"`
	UpdatedAt       time.Time        `json:"updated_at"`
	ServerTimestamp time.Time        `json:"server_timestamp"`
}

// PullResponse is one page of deltas. Clients resubmit with NewCheckpoint
// until HasMore is false; convergence holds because server_timestamp is
// monotonic per row.
type PullResponse struct {
	HasMore       bool    `json:"has_more"`
	Changes       []Delta `json:"changes"`
	NewCheckpoint *string `json:"new_checkpoint"`
	TotalChanges  int     `json:"total_changes"`
}

// noteData is the upsert payload for a note delta.
type noteData struct {
	ID         string     `json:"id"`
	Body       string     `json:"body"`
	Importance int        `json:"importance"`
	SourceURL  *string    `json:"source_url"`
	ImagePath  *string    `json:"image_path"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

type relationData struct {
	ID           string    `json:"id"`
	FromNoteID   string    `json:"from_note_id"`
	ToNoteID     string    `json:"to_note_id"`
	RelationType string    `json:"relation_type"`
	CreatedAt    time.Time `json:"created_at"`
}

type reflectionData struct {
	Date      string    `json:"date"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Pull returns all user-owned rows written after the checkpoint, per
// entity type, each type capped at PageSize and ordered by
// server_timestamp ascending. A nil checkpoint is an initial sync and
// returns everything.
func (s *Service) Pull(ctx context.Context, userID string, checkpoint *time.Time) (*PullResponse, error) {
	resp := &PullResponse{Changes: make([]Delta, 0)}
	var maxTS time.Time

	notes, err := s.Store.ListNotesSince(ctx, userID, checkpoint, s.PageSize)
	if err != nil {
		return nil, err
	}
	for _, n := range notes {
		delta := Delta{
			EntityType:      syncx.EntityNote,
			EntityID:        n.ID,
			Operation:       "upsert",
			UpdatedAt:       n.UpdatedAt,
			ServerTimestamp: n.ServerTimestamp,
		}
		if n.DeletedAt != nil {
			// Tombstone: the row still flows through sync as a delete.
			delta.Operation = "delete"
		} else {
			delta.Data = noteData{
				ID:         n.ID,
				Body:       n.Body,
				Importance: n.Importance,
				SourceURL:  n.SourceURL,
				ImagePath:  n.ImagePath,
				CreatedAt:  n.CreatedAt,
				UpdatedAt:  n.UpdatedAt,
				DeletedAt:  n.DeletedAt,
			}
		}
		resp.Changes = append(resp.Changes, delta)
		maxTS = syncx.MaxTime(maxTS, n.ServerTimestamp)
	}

	relations, err := s.Store.ListRelationsSince(ctx, userID, checkpoint, s.PageSize)
	if err != nil {
		return nil, err
	}
	for _, r := range relations {
		resp.Changes = append(resp.Changes, Delta{
			EntityType: syncx.EntityRelation,
			EntityID:   r.ID,
			Operation:  "upsert",
			Data: relationData{
				ID:           r.ID,
				FromNoteID:   r.FromNoteID,
				ToNoteID:     r.ToNoteID,
				RelationType: r.RelationType,
				CreatedAt:    r.CreatedAt,
			},
			UpdatedAt:       r.CreatedAt,
			ServerTimestamp: r.ServerTimestamp,
		})
		maxTS = syncx.MaxTime(maxTS, r.ServerTimestamp)
	}

	reflections, err := s.Store.ListReflectionsSince(ctx, userID, checkpoint, s.PageSize)
	if err != nil {
		return nil, err
	}
	for _, r := range reflections {
		resp.Changes = append(resp.Changes, Delta{
			EntityType: syncx.EntityReflection,
			EntityID:   r.Date,
			Operation:  "upsert",
			Data: reflectionData{
				Date:      r.Date,
				Content:   r.Content,
				CreatedAt: r.CreatedAt,
				UpdatedAt: r.UpdatedAt,
			},
			UpdatedAt:       r.UpdatedAt,
			ServerTimestamp: r.ServerTimestamp,
		})
		maxTS = syncx.MaxTime(maxTS, r.ServerTimestamp)
	}

	resp.TotalChanges = len(resp.Changes)
	resp.HasMore = len(notes) >= s.PageSize ||
		len(relations) >= s.PageSize ||
		len(reflections) >= s.PageSize

	// The new checkpoint is the highest server_timestamp seen; with no
	// rows the client keeps its previous position.
	if !maxTS.IsZero() {
		cp := syncx.FormatCheckpoint(maxTS)
		resp.NewCheckpoint = &cp
	} else if checkpoint != nil {
		cp := syncx.FormatCheckpoint(*checkpoint)
		resp.NewCheckpoint = &cp
	}

	log.Info().
		Str("user_id", userID).
		Int("changes", resp.TotalChanges).
		Bool("has_more", resp.HasMore).
		Msg("pull completed")

	return resp, nil
}
