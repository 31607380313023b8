// Package syncservice implements the push/pull delta protocol: batch apply
// with last-writer-wins conflict resolution and per-item results on push,
// checkpoint-bounded deltas on pull.
package syncservice

import (
	"context"
	"errors"
	"time"

	"github.com/synapselabs/synapse-api/internal/derive"
	"github.com/synapselabs/synapse-api/internal/store"
)

var (
	// ErrBatchTooLarge rejects the whole push before any item is applied.
	ErrBatchTooLarge = errors.New("batch exceeds maximum size")
	// ErrEmptyBatch rejects a push with no changes.
	ErrEmptyBatch = errors.New("batch contains no changes")
)

// Store is the persistence surface the sync engine needs. *store.Store
// satisfies it; tests substitute a fake.
type Store interface {
	GetNoteMeta(ctx context.Context, noteID string) (*store.NoteMeta, error)
	UpsertNote(ctx context.Context, w store.NoteWrite, keywords []store.DerivedKeyword) (bool, error)
	SoftDeleteNote(ctx context.Context, userID, noteID string, deletedAt time.Time) (bool, error)
	ListNotesSince(ctx context.Context, userID string, since *time.Time, limit int) ([]store.Note, error)

	InsertRelation(ctx context.Context, r store.Relation) error
	DeleteRelation(ctx context.Context, userID, relationID string) error
	ListRelationsSince(ctx context.Context, userID string, since *time.Time, limit int) ([]store.Relation, error)

	UpsertReflection(ctx context.Context, r store.Reflection) (bool, error)
	DeleteReflection(ctx context.Context, userID, date string) error
	ListReflectionsSince(ctx context.Context, userID string, since *time.Time, limit int) ([]store.Reflection, error)
}

// Deriver computes embedding and keywords for a winning note write.
type Deriver interface {
	Derive(ctx context.Context, noteID, body string) (derive.Result, error)
}

// Service wires the sync engine's dependencies.
type Service struct {
	Store    Store
	Deriver  Deriver
	MaxBatch int // maximum changes per push
	PageSize int // per-entity-type pull cap
}

func New(st Store, deriver Deriver, maxBatch, pageSize int) *Service {
	return &Service{Store: st, Deriver: deriver, MaxBatch: maxBatch, PageSize: pageSize}
}
